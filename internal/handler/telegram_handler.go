package handler

import (
	"net/http"
	"strings"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"go.uber.org/zap"
)

// maskToken hides all but the trailing characters of a bot token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func getTelegramConfigHandler(svc *service.NotifyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/telegram/config")
		defer span.End()

		cfg, err := svc.GetConfig(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// The token never leaves the service unmasked.
		masked := *cfg
		masked.BotToken = maskToken(cfg.BotToken)
		writeJSON(w, http.StatusOK, masked)
	}
}

func updateTelegramConfigHandler(svc *service.NotifyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/telegram/config")
		defer span.End()

		var req domain.TelegramConfig
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		cfg, err := svc.UpdateConfig(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		masked := *cfg
		masked.BotToken = maskToken(cfg.BotToken)
		writeJSON(w, http.StatusOK, masked)
	}
}

func telegramTestHandler(svc *service.NotifyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/telegram/test")
		defer span.End()

		if err := svc.SendTest(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sent": true})
	}
}

func telegramCheckHandler(svc *service.NotifyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/telegram/check")
		defer span.End()

		check, err := svc.Check(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}
