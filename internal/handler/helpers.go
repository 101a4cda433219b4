package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lucafranzi/contabile/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDeleted is the uniform body for successful deletes.
func writeDeleted(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var conflict *domain.ErrConflict
	var unauthorized *domain.ErrUnauthorized
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("resource not found", zap.Error(err))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.Error(err))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.Error(err))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("operation timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into v, rejecting unparseable payloads.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
