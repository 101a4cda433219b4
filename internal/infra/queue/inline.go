package queue

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// Inline delivers reminders synchronously through a send func. It is the
// dispatcher used when no AMQP broker is configured.
type Inline struct {
	send func(context.Context, domain.ReminderMessage) error
}

func NewInline(send func(context.Context, domain.ReminderMessage) error) *Inline {
	return &Inline{send: send}
}

func (i *Inline) Dispatch(ctx context.Context, msg domain.ReminderMessage) error {
	return i.send(ctx, msg)
}

// Depth is always zero: inline delivery never buffers.
func (i *Inline) Depth() int { return 0 }
