package handler

import (
	"net/http"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clients
// ============================================================

func listClientsHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients")
		defer span.End()

		clients, err := svc.ListClients(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
	}
}

func createClientHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients")
		defer span.End()

		var req domain.ClientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		client, err := svc.CreateClient(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	}
}

func getClientHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		span.SetAttributes(attribute.String("client.id", clientID))

		client, err := svc.GetClient(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func updateClientHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/clients/{clientId}")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")

		var req domain.ClientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		client, err := svc.UpdateClient(ctx, clientID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func deleteClientHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/clients/{clientId}")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		if err := svc.DeleteClient(ctx, clientID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, clientID)
	}
}

// ============================================================
// Partners
// ============================================================

func listPartnersHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/partners")
		defer span.End()

		partners, err := svc.ListPartners(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
	}
}

func updatePartnerHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/partners/{partnerId}")
		defer span.End()

		partnerID := domain.PartnerID(chi.URLParam(r, "partnerId"))
		if !partnerID.Valid() {
			writeError(w, http.StatusBadRequest, "unknown partner id")
			return
		}

		var req domain.PartnerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		partner, err := svc.UpdatePartner(ctx, partnerID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, partner)
	}
}

// ============================================================
// Bank details
// ============================================================

func getBankDetailsHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bank-details")
		defer span.End()

		details, err := svc.GetBankDetails(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func updateBankDetailsHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/bank-details")
		defer span.End()

		var req domain.BankDetails
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		details, err := svc.UpdateBankDetails(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}
