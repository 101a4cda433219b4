package service

import (
	"context"
	"strings"

	"github.com/lucafranzi/contabile/internal/domain"
)

// mockBillingStore is an in-memory BillingStore for service tests. It
// mirrors the sqlite store's guarded-update semantics closely enough to
// exercise the state machine.
type mockBillingStore struct {
	clients  map[string]*domain.Client
	fees     map[string]*domain.RecurringFee
	events   map[string]*domain.PaymentEvent
	invoices map[string]*domain.Invoice
}

func newMockBillingStore() *mockBillingStore {
	return &mockBillingStore{
		clients:  map[string]*domain.Client{},
		fees:     map[string]*domain.RecurringFee{},
		events:   map[string]*domain.PaymentEvent{},
		invoices: map[string]*domain.Invoice{},
	}
}

func (m *mockBillingStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return c, nil
}

func (m *mockBillingStore) CreateFee(ctx context.Context, fee *domain.RecurringFee) error {
	cp := *fee
	m.fees[fee.ID] = &cp
	return nil
}

func (m *mockBillingStore) GetFee(ctx context.Context, id string) (*domain.RecurringFee, error) {
	f, ok := m.fees[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "recurring_fee", ID: id}
	}
	cp := *f
	return &cp, nil
}

func (m *mockBillingStore) ListFees(ctx context.Context, clientID string, activeOnly bool) ([]domain.RecurringFee, error) {
	var out []domain.RecurringFee
	for _, f := range m.fees {
		if clientID != "" && f.ClientID != clientID {
			continue
		}
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (m *mockBillingStore) UpdateFee(ctx context.Context, fee *domain.RecurringFee) error {
	if _, ok := m.fees[fee.ID]; !ok {
		return &domain.ErrNotFound{Resource: "recurring_fee", ID: fee.ID}
	}
	cp := *fee
	m.fees[fee.ID] = &cp
	return nil
}

func (m *mockBillingStore) DeactivateFee(ctx context.Context, id string) error {
	f, ok := m.fees[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "recurring_fee", ID: id}
	}
	f.Active = false
	return nil
}

func (m *mockBillingStore) CreateEvent(ctx context.Context, ev *domain.PaymentEvent) error {
	cp := *ev
	m.events[ev.ID] = &cp
	return nil
}

func (m *mockBillingStore) CreateOccurrenceEvent(ctx context.Context, ev *domain.PaymentEvent) (bool, error) {
	for _, existing := range m.events {
		if existing.FeeID != nil && ev.FeeID != nil &&
			*existing.FeeID == *ev.FeeID &&
			existing.OccurrenceDate != nil && ev.OccurrenceDate != nil &&
			*existing.OccurrenceDate == *ev.OccurrenceDate {
			return false, nil
		}
	}
	cp := *ev
	m.events[ev.ID] = &cp
	return true, nil
}

func (m *mockBillingStore) GetEvent(ctx context.Context, id string) (*domain.PaymentEvent, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "payment_event", ID: id}
	}
	cp := *ev
	return &cp, nil
}

func (m *mockBillingStore) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.PaymentEvent, error) {
	var out []domain.PaymentEvent
	for _, ev := range m.events {
		if filter.ClientID != "" && ev.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && ev.Status != filter.Status {
			continue
		}
		out = append(out, *ev)
	}
	return out, nil
}

func (m *mockBillingStore) UpdateEvent(ctx context.Context, ev *domain.PaymentEvent) error {
	existing, ok := m.events[ev.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "payment_event", ID: ev.ID}
	}
	existing.Amount = ev.Amount
	existing.DueDate = ev.DueDate
	existing.Description = ev.Description
	return nil
}

func (m *mockBillingStore) DeleteEvent(ctx context.Context, id string) error {
	ev, ok := m.events[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "payment_event", ID: id}
	}
	if ev.Status != domain.EventPending && ev.Status != domain.EventCancelled {
		return &domain.ErrConflict{Message: "payment event is invoiced; cancel its invoice first"}
	}
	delete(m.events, id)
	return nil
}

func (m *mockBillingStore) CancelEvent(ctx context.Context, id string) error {
	ev, ok := m.events[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "payment_event", ID: id}
	}
	if ev.Status != domain.EventPending {
		return &domain.ErrConflict{Message: "payment event is not pending; cancel its invoice first"}
	}
	ev.Status = domain.EventCancelled
	return nil
}

func (m *mockBillingStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	if inv.EventID != nil {
		ev, ok := m.events[*inv.EventID]
		if !ok {
			return &domain.ErrNotFound{Resource: "payment_event", ID: *inv.EventID}
		}
		if ev.Status != domain.EventPending {
			return &domain.ErrConflict{Message: "payment event is already " + string(ev.Status)}
		}
		ev.Status = domain.EventInvoiced
		invoiceID := inv.ID
		ev.InvoiceID = &invoiceID
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockBillingStore) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	cp := *inv
	return &cp, nil
}

func (m *mockBillingStore) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if filter.ClientID != "" && inv.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (m *mockBillingStore) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	existing, ok := m.invoices[inv.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "invoice", ID: inv.ID}
	}
	if existing.Status == domain.InvoicePaid {
		return &domain.ErrConflict{Message: "paid invoices are immutable"}
	}
	cp := *inv
	cp.Status = existing.Status
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockBillingStore) UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus, paidDate string, collectedBy domain.PartnerID) (*domain.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	if inv.Status == domain.InvoicePaid && status != domain.InvoiceCancelled {
		return nil, &domain.ErrConflict{Message: "paid invoices only accept cancellation"}
	}
	if inv.Status == domain.InvoiceCancelled {
		return nil, &domain.ErrConflict{Message: "invoice is cancelled"}
	}
	switch status {
	case domain.InvoicePaid:
		inv.Status = domain.InvoicePaid
		inv.PaidDate = &paidDate
		inv.CollectedBy = collectedBy
		if inv.EventID != nil {
			if ev, ok := m.events[*inv.EventID]; ok {
				ev.Status = domain.EventPaid
			}
		}
	case domain.InvoiceCancelled:
		inv.Status = domain.InvoiceCancelled
		inv.PaidDate = nil
		if inv.EventID != nil {
			if ev, ok := m.events[*inv.EventID]; ok {
				ev.Status = domain.EventPending
				ev.InvoiceID = nil
			}
		}
	default:
		if inv.Status == domain.InvoiceSent && status == domain.InvoiceDraft {
			return nil, &domain.ErrConflict{Message: "sent invoices cannot return to draft"}
		}
		inv.Status = status
	}
	cp := *inv
	return &cp, nil
}

func (m *mockBillingStore) DeleteInvoice(ctx context.Context, id string) error {
	inv, ok := m.invoices[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	if inv.Status == domain.InvoicePaid {
		return &domain.ErrConflict{Message: "paid invoices cannot be deleted"}
	}
	if inv.EventID != nil {
		if ev, ok := m.events[*inv.EventID]; ok {
			ev.Status = domain.EventPending
			ev.InvoiceID = nil
		}
	}
	delete(m.invoices, id)
	return nil
}

// mockTemplateStore holds template metadata in memory.
type mockTemplateStore struct {
	templates map[string]*domain.Template
}

func newMockTemplateStore() *mockTemplateStore {
	return &mockTemplateStore{templates: map[string]*domain.Template{}}
}

func (m *mockTemplateStore) CreateTemplate(ctx context.Context, t *domain.Template) error {
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *mockTemplateStore) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "template", ID: id}
	}
	cp := *t
	return &cp, nil
}

func (m *mockTemplateStore) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	var out []domain.Template
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTemplateStore) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	if _, ok := m.templates[t.ID]; !ok {
		return &domain.ErrNotFound{Resource: "template", ID: t.ID}
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *mockTemplateStore) DeleteTemplate(ctx context.Context, id string) error {
	if _, ok := m.templates[id]; !ok {
		return &domain.ErrNotFound{Resource: "template", ID: id}
	}
	delete(m.templates, id)
	return nil
}

// mockTemplateFiles is an in-memory TemplateFiles.
type mockTemplateFiles struct {
	html  map[string]string
	css   map[string]string
	logos map[string][]byte
}

func newMockTemplateFiles() *mockTemplateFiles {
	return &mockTemplateFiles{html: map[string]string{}, css: map[string]string{}, logos: map[string][]byte{}}
}

func (m *mockTemplateFiles) Save(name string, html, css []byte) error {
	m.html[name] = string(html)
	m.css[name] = string(css)
	return nil
}

func (m *mockTemplateFiles) Content(name string) (string, string, error) {
	html, ok := m.html[name]
	if !ok {
		return "", "", &domain.ErrNotFound{Resource: "template", ID: name}
	}
	return html, m.css[name], nil
}

func (m *mockTemplateFiles) Fields(name string) ([]string, error) {
	html, ok := m.html[name]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "template", ID: name}
	}
	var fields []string
	for _, part := range strings.Split(html, "{{") {
		if idx := strings.Index(part, "}}"); idx >= 0 {
			fields = append(fields, strings.TrimSpace(part[:idx]))
		}
	}
	return fields, nil
}

func (m *mockTemplateFiles) Render(name string, data map[string]string) (string, error) {
	html, ok := m.html[name]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "template", ID: name}
	}
	for k, v := range data {
		html = strings.ReplaceAll(html, "{{"+k+"}}", v)
	}
	return html, nil
}

func (m *mockTemplateFiles) Delete(name string) error {
	delete(m.html, name)
	delete(m.css, name)
	return nil
}

func (m *mockTemplateFiles) SaveLogo(invoiceNumber, filename string, content []byte) (string, error) {
	path := "logos/" + invoiceNumber + "/" + filename
	m.logos[path] = content
	return path, nil
}
