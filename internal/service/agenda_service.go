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

var agendaTracer = otel.Tracer("service/agenda")

// AgendaService handles todos and calendar events. Plain CRUD, no state
// machine.
type AgendaService struct {
	store  port.AgendaStore
	logger *zap.Logger
}

func NewAgendaService(store port.AgendaStore, logger *zap.Logger) *AgendaService {
	return &AgendaService{store: store, logger: logger}
}

// ============================================================
// Todos
// ============================================================

func (s *AgendaService) CreateTodo(ctx context.Context, req *domain.TodoRequest) (*domain.Todo, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.CreateTodo")
	defer span.End()

	if req.Text == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "required"}
	}
	if req.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.DueDate); err != nil {
			return nil, &domain.ErrValidation{Field: "due_date", Message: "invalid format, use YYYY-MM-DD"}
		}
	}

	todo := &domain.Todo{
		ID:        uuid.New().String(),
		Text:      req.Text,
		DueDate:   req.DueDate,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if req.Done != nil {
		todo.Done = *req.Done
	}

	if err := s.store.CreateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *AgendaService) ListTodos(ctx context.Context) ([]domain.Todo, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.ListTodos")
	defer span.End()

	return s.store.ListTodos(ctx)
}

func (s *AgendaService) UpdateTodo(ctx context.Context, id string, req *domain.TodoRequest) (*domain.Todo, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.UpdateTodo")
	defer span.End()

	todo, err := s.store.GetTodo(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Text != "" {
		todo.Text = req.Text
	}
	if req.Done != nil {
		todo.Done = *req.Done
	}
	if req.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.DueDate); err != nil {
			return nil, &domain.ErrValidation{Field: "due_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		todo.DueDate = req.DueDate
	}

	if err := s.store.UpdateTodo(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *AgendaService) DeleteTodo(ctx context.Context, id string) error {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.DeleteTodo")
	defer span.End()

	return s.store.DeleteTodo(ctx, id)
}

// ============================================================
// Calendar events
// ============================================================

func (s *AgendaService) CreateCalendarEvent(ctx context.Context, req *domain.CalendarEventRequest) (*domain.CalendarEvent, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.CreateCalendarEvent")
	defer span.End()

	if req.Title == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if _, err := time.Parse(domain.DateLayout, req.StartDate); err != nil {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
	}
	if req.EndDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.EndDate); err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		if req.EndDate < req.StartDate {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "must not precede start_date"}
		}
	}

	event := &domain.CalendarEvent{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateCalendarEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *AgendaService) ListCalendarEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.ListCalendarEvents")
	defer span.End()

	return s.store.ListCalendarEvents(ctx)
}

func (s *AgendaService) UpdateCalendarEvent(ctx context.Context, id string, req *domain.CalendarEventRequest) (*domain.CalendarEvent, error) {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.UpdateCalendarEvent")
	defer span.End()

	event, err := s.store.GetCalendarEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		event.Title = req.Title
	}
	if req.Description != "" {
		event.Description = req.Description
	}
	if req.StartDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.StartDate); err != nil {
			return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		event.StartDate = req.StartDate
	}
	if req.EndDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.EndDate); err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		event.EndDate = req.EndDate
	}

	if err := s.store.UpdateCalendarEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *AgendaService) DeleteCalendarEvent(ctx context.Context, id string) error {
	ctx, span := agendaTracer.Start(ctx, "AgendaService.DeleteCalendarEvent")
	defer span.End()

	return s.store.DeleteCalendarEvent(ctx, id)
}
