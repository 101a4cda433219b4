package service

import (
	"context"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var templateTracer = otel.Tracer("service/template")

// TemplateService manages invoice templates: metadata rows in sqlite plus
// html/css assets on disk. The {{field}} schema is extracted at upload
// time and stored with the metadata.
type TemplateService struct {
	store  port.TemplateStore
	files  port.TemplateFiles
	logger *zap.Logger
}

func NewTemplateService(store port.TemplateStore, files port.TemplateFiles, logger *zap.Logger) *TemplateService {
	return &TemplateService{store: store, files: files, logger: logger}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, name string, html, css []byte) (*domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.CreateTemplate")
	defer span.End()

	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if len(html) == 0 {
		return nil, &domain.ErrValidation{Field: "html_file", Message: "required"}
	}

	if err := s.files.Save(name, html, css); err != nil {
		return nil, err
	}
	fields, err := s.files.Fields(name)
	if err != nil {
		return nil, err
	}

	tmpl := &domain.Template{
		ID:        uuid.New().String(),
		Name:      name,
		Fields:    fields,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.CreateTemplate(ctx, tmpl); err != nil {
		// Metadata insert failed; remove the orphaned files.
		if cleanupErr := s.files.Delete(name); cleanupErr != nil {
			s.logger.Warn("failed to clean up template files", zap.String("name", name), zap.Error(cleanupErr))
		}
		return nil, err
	}

	s.logger.Info("template created",
		zap.String("template_id", tmpl.ID),
		zap.String("name", name),
		zap.Int("fields", len(fields)),
	)
	return tmpl, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.GetTemplate")
	defer span.End()

	return s.store.GetTemplate(ctx, id)
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.ListTemplates")
	defer span.End()

	return s.store.ListTemplates(ctx)
}

// UpdateTemplate replaces the html/css assets and re-extracts the field
// schema. The name stays fixed once created.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, html, css []byte) (*domain.Template, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.UpdateTemplate")
	defer span.End()

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(html) == 0 {
		return nil, &domain.ErrValidation{Field: "html_file", Message: "required"}
	}

	if err := s.files.Save(tmpl.Name, html, css); err != nil {
		return nil, err
	}
	fields, err := s.files.Fields(tmpl.Name)
	if err != nil {
		return nil, err
	}
	tmpl.Fields = fields

	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	ctx, span := templateTracer.Start(ctx, "TemplateService.DeleteTemplate")
	defer span.End()

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	if err := s.files.Delete(tmpl.Name); err != nil {
		s.logger.Warn("template files not removed", zap.String("name", tmpl.Name), zap.Error(err))
	}

	s.logger.Info("template deleted", zap.String("template_id", id), zap.String("name", tmpl.Name))
	return nil
}

func (s *TemplateService) GetFields(ctx context.Context, id string) ([]string, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.GetFields")
	defer span.End()

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.files.Fields(tmpl.Name)
}

// GetContent returns the raw html and css of the template.
func (s *TemplateService) GetContent(ctx context.Context, id string) (html, css string, err error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.GetContent")
	defer span.End()

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return "", "", err
	}
	return s.files.Content(tmpl.Name)
}

// Preview renders the template with the supplied field data. Missing
// fields render empty.
func (s *TemplateService) Preview(ctx context.Context, id string, data map[string]string) (string, error) {
	ctx, span := templateTracer.Start(ctx, "TemplateService.Preview")
	defer span.End()

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	return s.files.Render(tmpl.Name, data)
}
