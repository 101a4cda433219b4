package port

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// BillingStore defines all data operations for fees, payment events and
// invoices. Mutations that touch more than one row (invoice linking, status
// propagation) are single atomic operations at this boundary so the service
// layer never sees a half-applied state.
type BillingStore interface {
	// Clients (referenced for validation and renewal display)
	GetClient(ctx context.Context, id string) (*domain.Client, error)

	// Recurring fees
	CreateFee(ctx context.Context, fee *domain.RecurringFee) error
	GetFee(ctx context.Context, id string) (*domain.RecurringFee, error)
	ListFees(ctx context.Context, clientID string, activeOnly bool) ([]domain.RecurringFee, error)
	UpdateFee(ctx context.Context, fee *domain.RecurringFee) error
	// DeactivateFee flips active to false; historical events are untouched.
	DeactivateFee(ctx context.Context, id string) error

	// Payment events
	CreateEvent(ctx context.Context, ev *domain.PaymentEvent) error
	// CreateOccurrenceEvent inserts a generated event keyed on
	// (fee_id, occurrence_date); returns false without error when that
	// occurrence already exists, so generation is idempotent.
	CreateOccurrenceEvent(ctx context.Context, ev *domain.PaymentEvent) (bool, error)
	GetEvent(ctx context.Context, id string) (*domain.PaymentEvent, error)
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.PaymentEvent, error)
	UpdateEvent(ctx context.Context, ev *domain.PaymentEvent) error
	// DeleteEvent removes an event only in pending or cancelled state.
	DeleteEvent(ctx context.Context, id string) error
	// CancelEvent moves pending → cancelled with a guarded update.
	CancelEvent(ctx context.Context, id string) error

	// Invoices. CreateInvoice links the referenced event pending → invoiced
	// in the same transaction; exactly one concurrent caller wins.
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
	// UpdateInvoiceStatus applies a lifecycle transition and propagates it
	// to the linked event (paid → paid, cancelled → back to pending)
	// atomically.
	UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus, paidDate string, collectedBy domain.PartnerID) (*domain.Invoice, error)
	// DeleteInvoice removes a non-paid invoice and unlinks its event back
	// to pending in the same transaction.
	DeleteInvoice(ctx context.Context, id string) error
}
