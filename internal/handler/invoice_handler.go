package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxInvoiceFormSize bounds the multipart payload, logo included.
const maxInvoiceFormSize = 10 << 20

// parseInvoiceForm decodes the multipart invoice payload. The data field
// arrives JSON-encoded; the logo file is optional.
func parseInvoiceForm(r *http.Request) (*domain.InvoiceRequest, string, []byte, error) {
	if err := r.ParseMultipartForm(maxInvoiceFormSize); err != nil {
		return nil, "", nil, errors.New("invalid multipart form")
	}

	req := &domain.InvoiceRequest{
		ClientID:    r.FormValue("client_id"),
		TemplateID:  r.FormValue("template_id"),
		EventID:     r.FormValue("payment_event_id"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	if raw := r.FormValue("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Data); err != nil {
			return nil, "", nil, errors.New("data must be a JSON object")
		}
	}

	var err error
	if v := r.FormValue("partner_a_share"); v != "" {
		if req.PartnerAShare, err = strconv.Atoi(v); err != nil {
			return nil, "", nil, errors.New("partner_a_share must be an integer")
		}
	}
	if v := r.FormValue("partner_b_share"); v != "" {
		if req.PartnerBShare, err = strconv.Atoi(v); err != nil {
			return nil, "", nil, errors.New("partner_b_share must be an integer")
		}
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, "", nil, nil
		}
		return nil, "", nil, errors.New("invalid logo upload")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, "", nil, errors.New("could not read logo upload")
	}
	return req, header.Filename, content, nil
}

func listInvoicesHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		filter := domain.InvoiceFilter{
			ClientID: r.URL.Query().Get("client_id"),
			Status:   domain.InvoiceStatus(r.URL.Query().Get("status")),
		}

		invoices, err := svc.ListInvoices(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	}
}

func createInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices")
		defer span.End()

		req, logoName, logoContent, err := parseInvoiceForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		span.SetAttributes(attribute.String("client.id", req.ClientID))

		invoice, err := svc.CreateInvoice(ctx, req, logoName, logoContent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, invoice)
	}
}

func getInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{invoiceId}")
		defer span.End()

		invoice, err := svc.GetInvoice(ctx, chi.URLParam(r, "invoiceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}

func updateInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/invoices/{invoiceId}")
		defer span.End()

		req, logoName, logoContent, err := parseInvoiceForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		invoice, err := svc.UpdateInvoice(ctx, chi.URLParam(r, "invoiceId"), req, logoName, logoContent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}

func updateInvoiceStatusHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/invoices/{invoiceId}/status")
		defer span.End()

		var req domain.InvoiceStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		invoice, err := svc.UpdateInvoiceStatus(ctx, chi.URLParam(r, "invoiceId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}

func deleteInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/invoices/{invoiceId}")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceId")
		if err := svc.DeleteInvoice(ctx, invoiceID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, invoiceID)
	}
}
