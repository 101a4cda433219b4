package domain

// Period selects the aggregation window for dashboard rollups. Buckets are
// the current calendar month/quarter/year in UTC.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodAll, PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

// DashboardStats is the invoice rollup for a period.
type DashboardStats struct {
	Period           Period        `json:"period"`
	TotalInvoiced    Money         `json:"total_invoiced_cents"`
	TotalPaid        Money         `json:"total_paid_cents"`
	TotalOutstanding Money         `json:"total_outstanding_cents"`
	InvoiceCount     int           `json:"invoice_count"`
	CountByStatus    map[string]int `json:"count_by_status"`
}

// Renewal is a recurring fee whose next occurrence falls inside the window.
type Renewal struct {
	Fee        RecurringFee `json:"fee"`
	ClientName string       `json:"client_name"`
	NextDate   string       `json:"next_date"`
	DaysUntil  int          `json:"days_until"`
}

// OutstandingInvoice is a non-paid, non-cancelled invoice past its due
// reference (linked event due date, or creation date for manual invoices).
type OutstandingInvoice struct {
	Invoice     Invoice `json:"invoice"`
	DueDate     string  `json:"due_date"`
	DaysOverdue int     `json:"days_overdue"`
}

// PartnerEarnings applies the revenue splitter over paid invoices in a period.
type PartnerEarnings struct {
	Period       Period `json:"period"`
	PartnerA     Money  `json:"partner_a_cents"`
	PartnerB     Money  `json:"partner_b_cents"`
	Total        Money  `json:"total_cents"`
	InvoiceCount int    `json:"invoice_count"`
}
