// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// ReminderDispatcher hands a renewal reminder to the delivery side channel.
// Implementations are best effort and must never be called inside a ledger
// transaction.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, msg domain.ReminderMessage) error
	Depth() int
}

// Notifier sends operator-facing messages (Telegram in production).
type Notifier interface {
	SendMessage(ctx context.Context, token, chatID, text string) error
	GetMe(ctx context.Context, token string) (string, error)
}

// TemplateFiles stores and renders template assets on behalf of the
// template service.
type TemplateFiles interface {
	Save(name string, html, css []byte) error
	Content(name string) (html, css string, err error)
	Fields(name string) ([]string, error)
	Render(name string, data map[string]string) (string, error)
	Delete(name string) error
	SaveLogo(invoiceNumber, filename string, content []byte) (string, error)
}
