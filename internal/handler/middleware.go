package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const partnerIDKey contextKey = "partnerID"

// AuthMiddleware validates Bearer tokens and injects the partner ID into the
// request context. When authentication is disabled (no secret configured) it
// lets every request through, which is the expected localhost mode.
func AuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authSvc.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing authorization token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			partnerID, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), partnerIDKey, partnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PartnerIDFromContext extracts the authenticated partner ID from context.
// Returns the zero value when the request was not authenticated.
func PartnerIDFromContext(ctx context.Context) domain.PartnerID {
	v, _ := ctx.Value(partnerIDKey).(domain.PartnerID)
	return v
}
