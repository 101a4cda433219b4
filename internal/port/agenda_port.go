package port

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// AgendaStore defines data operations for todos, calendar events and the
// Telegram reminder configuration.
type AgendaStore interface {
	CreateTodo(ctx context.Context, t *domain.Todo) error
	ListTodos(ctx context.Context) ([]domain.Todo, error)
	GetTodo(ctx context.Context, id string) (*domain.Todo, error)
	UpdateTodo(ctx context.Context, t *domain.Todo) error
	DeleteTodo(ctx context.Context, id string) error

	CreateCalendarEvent(ctx context.Context, e *domain.CalendarEvent) error
	ListCalendarEvents(ctx context.Context) ([]domain.CalendarEvent, error)
	GetCalendarEvent(ctx context.Context, id string) (*domain.CalendarEvent, error)
	UpdateCalendarEvent(ctx context.Context, e *domain.CalendarEvent) error
	DeleteCalendarEvent(ctx context.Context, id string) error

	GetTelegramConfig(ctx context.Context) (*domain.TelegramConfig, error)
	UpdateTelegramConfig(ctx context.Context, c *domain.TelegramConfig) error
}
