package domain

// DateLayout is the wire format for all date-only fields.
const DateLayout = "2006-01-02"

// Interval is the billing interval of a recurring fee.
type Interval string

const (
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalYearly    Interval = "yearly"
)

// Months returns the number of calendar months one interval step spans.
func (i Interval) Months() int {
	switch i {
	case IntervalQuarterly:
		return 3
	case IntervalYearly:
		return 12
	default:
		return 1
	}
}

// Valid reports whether the interval is one of the enumerated values.
func (i Interval) Valid() bool {
	switch i {
	case IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return true
	}
	return false
}

// EventStatus is the lifecycle state of a payment event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventInvoiced  EventStatus = "invoiced"
	EventPaid      EventStatus = "paid"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventInvoiced, EventPaid, EventCancelled:
		return true
	}
	return false
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// RecurringFee is a template for periodically billing a client a fixed amount.
type RecurringFee struct {
	ID          string   `json:"id"`
	ClientID    string   `json:"client_id"`
	Amount      Money    `json:"amount_cents"`
	Interval    Interval `json:"interval"`
	StartDate   string   `json:"start_date"`
	Description string   `json:"description,omitempty"`
	Active      bool     `json:"active"`
	CreatedAt   string   `json:"created_at"`
}

// RecurringFeeRequest is the payload for creating or updating a recurring fee.
type RecurringFeeRequest struct {
	Amount      Money    `json:"amount_cents"`
	Interval    Interval `json:"interval"`
	StartDate   string   `json:"start_date"`
	Description string   `json:"description,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

// PaymentEvent is a single billable occurrence, either spawned by a recurring
// fee or created ad hoc. OccurrenceDate is set only on generated events and,
// together with FeeID, is the idempotency key for generation.
type PaymentEvent struct {
	ID             string      `json:"id"`
	ClientID       string      `json:"client_id"`
	FeeID          *string     `json:"fee_id,omitempty"`
	InvoiceID      *string     `json:"invoice_id,omitempty"`
	Amount         Money       `json:"amount_cents"`
	DueDate        string      `json:"due_date"`
	OccurrenceDate *string     `json:"occurrence_date,omitempty"`
	Status         EventStatus `json:"status"`
	Description    string      `json:"description,omitempty"`
	CreatedAt      string      `json:"created_at"`
}

// PaymentEventRequest is the payload for creating or updating an ad hoc event.
type PaymentEventRequest struct {
	ClientID    string `json:"client_id"`
	Amount      Money  `json:"amount_cents"`
	DueDate     string `json:"due_date"`
	Description string `json:"description,omitempty"`
}

// EventFilter narrows payment event listings.
type EventFilter struct {
	ClientID string
	Status   EventStatus
}

// Invoice references one client and one template. Data carries the line-item
// field map defined by the template. Shares always sum to 100.
type Invoice struct {
	ID            string         `json:"id"`
	Number        string         `json:"number"`
	ClientID      string         `json:"client_id"`
	TemplateID    string         `json:"template_id"`
	EventID       *string        `json:"payment_event_id,omitempty"`
	Data          map[string]any `json:"data"`
	LogoPath      string         `json:"logo_path,omitempty"`
	PartnerAShare int            `json:"partner_a_share"`
	PartnerBShare int            `json:"partner_b_share"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Amount        Money          `json:"amount_cents"`
	Status        InvoiceStatus  `json:"status"`
	PaidDate      *string        `json:"paid_date,omitempty"`
	CollectedBy   PartnerID      `json:"collected_by"`
	CreatedAt     string         `json:"created_at"`
}

// InvoiceRequest is the decoded multipart payload for creating or updating an
// invoice. Data arrives as a JSON-encoded form field.
type InvoiceRequest struct {
	ClientID      string
	TemplateID    string
	EventID       string
	Data          map[string]any
	PartnerAShare int
	PartnerBShare int
	Title         string
	Description   string
}

// InvoiceStatusRequest is the payload for PUT /v1/invoices/{id}/status.
type InvoiceStatusRequest struct {
	Status      InvoiceStatus `json:"status"`
	PaidDate    string        `json:"paid_date,omitempty"`
	CollectedBy PartnerID     `json:"collected_by,omitempty"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	ClientID string
	Status   InvoiceStatus
}
