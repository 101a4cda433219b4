package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxTemplateFormSize = 5 << 20

// readFormFile returns the content of an optional multipart file field.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	return io.ReadAll(file)
}

func listTemplatesHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/templates")
		defer span.End()

		templates, err := svc.ListTemplates(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
	}
}

func createTemplateHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/templates")
		defer span.End()

		if err := r.ParseMultipartForm(maxTemplateFormSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		name := r.FormValue("name")
		html, err := readFormFile(r, "html")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid html upload")
			return
		}
		css, err := readFormFile(r, "css")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid css upload")
			return
		}

		tmpl, err := svc.CreateTemplate(ctx, name, html, css)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tmpl)
	}
}

func getTemplateHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/templates/{templateId}")
		defer span.End()

		tmpl, err := svc.GetTemplate(ctx, chi.URLParam(r, "templateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tmpl)
	}
}

func updateTemplateHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/templates/{templateId}")
		defer span.End()

		if err := r.ParseMultipartForm(maxTemplateFormSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		html, err := readFormFile(r, "html")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid html upload")
			return
		}
		css, err := readFormFile(r, "css")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid css upload")
			return
		}

		tmpl, err := svc.UpdateTemplate(ctx, chi.URLParam(r, "templateId"), html, css)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tmpl)
	}
}

func deleteTemplateHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/templates/{templateId}")
		defer span.End()

		templateID := chi.URLParam(r, "templateId")
		if err := svc.DeleteTemplate(ctx, templateID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, templateID)
	}
}

func templateFieldsHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/templates/{templateId}/fields")
		defer span.End()

		fields, err := svc.GetFields(ctx, chi.URLParam(r, "templateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
	}
}

func templateContentHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/templates/{templateId}/content")
		defer span.End()

		html, css, err := svc.GetContent(ctx, chi.URLParam(r, "templateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"html": html, "css": css})
	}
}

// templatePreviewHandler renders the template against the posted field map
// and returns the filled HTML.
func templatePreviewHandler(svc *service.TemplateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/templates/{templateId}/preview")
		defer span.End()

		var data map[string]string
		if err := decodeJSON(r, &data); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rendered, err := svc.Preview(ctx, chi.URLParam(r, "templateId"), data)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rendered))
	}
}
