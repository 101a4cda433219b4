package handler

import (
	"net/http"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Recurring fees
// ============================================================

func listFeesHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/recurring-fees")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		activeOnly := r.URL.Query().Get("active") == "true"

		fees, err := svc.ListFees(ctx, clientID, activeOnly)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recurring_fees": fees})
	}
}

func createFeeHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/recurring-fees")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		span.SetAttributes(attribute.String("client.id", clientID))

		var req domain.RecurringFeeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		fee, err := svc.CreateFee(ctx, clientID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, fee)
	}
}

func getFeeHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring-fees/{feeId}")
		defer span.End()

		fee, err := svc.GetFee(ctx, chi.URLParam(r, "feeId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fee)
	}
}

func updateFeeHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/recurring-fees/{feeId}")
		defer span.End()

		var req domain.RecurringFeeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		fee, err := svc.UpdateFee(ctx, chi.URLParam(r, "feeId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fee)
	}
}

// deactivateFeeHandler soft-deletes: the fee stops generating but keeps its
// event history.
func deactivateFeeHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/recurring-fees/{feeId}")
		defer span.End()

		feeID := chi.URLParam(r, "feeId")
		if err := svc.DeactivateFee(ctx, feeID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, feeID)
	}
}

func generateInvoiceForFeeHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring-fees/{feeId}/generate-invoice")
		defer span.End()

		feeID := chi.URLParam(r, "feeId")
		span.SetAttributes(attribute.String("fee.id", feeID))

		var req struct {
			TemplateID    string `json:"template_id"`
			PartnerAShare int    `json:"partner_a_share"`
			PartnerBShare int    `json:"partner_b_share"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		invoice, err := svc.GenerateInvoiceForFee(ctx, feeID, req.TemplateID, req.PartnerAShare, req.PartnerBShare)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, invoice)
	}
}

// ============================================================
// Payment events
// ============================================================

func listEventsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payment-events")
		defer span.End()

		filter := domain.EventFilter{
			ClientID: r.URL.Query().Get("client_id"),
			Status:   domain.EventStatus(r.URL.Query().Get("status")),
		}

		events, err := svc.ListEvents(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payment_events": events})
	}
}

func createEventHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payment-events")
		defer span.End()

		var req domain.PaymentEventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := svc.CreateManualEvent(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, event)
	}
}

// generateEventsHandler materializes the due occurrences of every active fee.
// Re-running is safe; already generated occurrences are skipped.
func generateEventsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payment-events/generate")
		defer span.End()

		asOf := time.Now().UTC()
		if r.ContentLength > 0 {
			var req struct {
				AsOf string `json:"as_of,omitempty"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.AsOf != "" {
				parsed, err := time.Parse(domain.DateLayout, req.AsOf)
				if err != nil {
					writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
					return
				}
				asOf = parsed
			}
		}

		generated, err := svc.GenerateDueEvents(ctx, asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"generated": generated})
	}
}

func getEventHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payment-events/{eventId}")
		defer span.End()

		event, err := svc.GetEvent(ctx, chi.URLParam(r, "eventId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}

func updateEventHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/payment-events/{eventId}")
		defer span.End()

		var req domain.PaymentEventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := svc.UpdateEvent(ctx, chi.URLParam(r, "eventId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}

func deleteEventHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/payment-events/{eventId}")
		defer span.End()

		eventID := chi.URLParam(r, "eventId")
		if err := svc.DeleteEvent(ctx, eventID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, eventID)
	}
}

func cancelEventHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payment-events/{eventId}/cancel")
		defer span.End()

		eventID := chi.URLParam(r, "eventId")
		if err := svc.CancelEvent(ctx, eventID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "id": eventID})
	}
}
