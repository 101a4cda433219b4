package domain

// PartnerID identifies one of the two fixed business partners.
type PartnerID string

const (
	PartnerA PartnerID = "a"
	PartnerB PartnerID = "b"
)

func (p PartnerID) Valid() bool {
	return p == PartnerA || p == PartnerB
}

// Other returns the opposite partner.
func (p PartnerID) Other() PartnerID {
	if p == PartnerA {
		return PartnerB
	}
	return PartnerA
}

// ExpenseCategory is a closed set of shared-cost categories.
type ExpenseCategory string

const (
	CategoryOffice    ExpenseCategory = "office"
	CategorySoftware  ExpenseCategory = "software"
	CategoryHosting   ExpenseCategory = "hosting"
	CategoryHardware  ExpenseCategory = "hardware"
	CategoryTravel    ExpenseCategory = "travel"
	CategoryMarketing ExpenseCategory = "marketing"
	CategoryOther     ExpenseCategory = "other"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryOffice, CategorySoftware, CategoryHosting,
		CategoryHardware, CategoryTravel, CategoryMarketing, CategoryOther:
		return true
	}
	return false
}

// ExpenseType distinguishes one-off purchases from running costs.
type ExpenseType string

const (
	ExpenseOneOff       ExpenseType = "one_off"
	ExpenseSubscription ExpenseType = "subscription"
	ExpenseAsset        ExpenseType = "asset"
)

func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseOneOff, ExpenseSubscription, ExpenseAsset:
		return true
	}
	return false
}

// ExpenseStatus marks whether an expense has been covered by a settlement.
// Both states count toward the balance; the flag is informational.
type ExpenseStatus string

const (
	ExpensePending ExpenseStatus = "pending"
	ExpenseSettled ExpenseStatus = "settled"
)

func (s ExpenseStatus) Valid() bool {
	return s == ExpensePending || s == ExpenseSettled
}

// Expense is a shared cost paid by one partner on behalf of both.
type Expense struct {
	ID        string          `json:"id"`
	Amount    Money           `json:"amount_cents"`
	Category  ExpenseCategory `json:"category"`
	Type      ExpenseType     `json:"expense_type"`
	Payer     PartnerID       `json:"payer"`
	Date      string          `json:"date"`
	Status    ExpenseStatus   `json:"status"`
	Note      string          `json:"note,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// ExpenseRequest is the payload for creating or updating an expense.
type ExpenseRequest struct {
	Amount   Money           `json:"amount_cents"`
	Category ExpenseCategory `json:"category"`
	Type     ExpenseType     `json:"expense_type"`
	Payer    PartnerID       `json:"payer"`
	Date     string          `json:"date"`
	Status   ExpenseStatus   `json:"status,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// ExpenseFilter narrows expense listings.
type ExpenseFilter struct {
	Category ExpenseCategory
	Type     ExpenseType
	Status   ExpenseStatus
	DateFrom string
	DateTo   string
}

// Settlement is a recorded transfer between partners. Immutable once created;
// corrections are new offsetting settlements, never edits.
type Settlement struct {
	ID        string    `json:"id"`
	Amount    Money     `json:"amount_cents"`
	From      PartnerID `json:"from_partner"`
	To        PartnerID `json:"to_partner"`
	Date      string    `json:"date"`
	Note      string    `json:"note,omitempty"`
	CreatedAt string    `json:"created_at"`
}

// SettlementRequest is the payload for recording a settlement.
type SettlementRequest struct {
	Amount Money     `json:"amount_cents"`
	From   PartnerID `json:"from_partner"`
	To     PartnerID `json:"to_partner"`
	Date   string    `json:"date"`
	Note   string    `json:"note,omitempty"`
}

// PartnerBalance is the result of the balance recomputation. A positive
// AmountOwed means FromPartner owes ToPartner that amount.
type PartnerBalance struct {
	PartnerAExpenses Money     `json:"partner_a_expenses_cents"`
	PartnerBExpenses Money     `json:"partner_b_expenses_cents"`
	PartnerARevenue  Money     `json:"partner_a_revenue_cents"`
	PartnerBRevenue  Money     `json:"partner_b_revenue_cents"`
	SettledNet       Money     `json:"settled_net_cents"`
	AmountOwed       Money     `json:"amount_owed_cents"`
	FromPartner      PartnerID `json:"from_partner"`
	ToPartner        PartnerID `json:"to_partner"`
}

// BalanceInputs is the consistent snapshot the balance is recomputed from:
// expense totals per payer, the split-relevant slice of every paid invoice,
// and all settlements. Read in a single transaction.
type BalanceInputs struct {
	ExpensesByPayer map[PartnerID]Money
	PaidInvoices    []PaidInvoiceShare
	Settlements     []Settlement
}

// PaidInvoiceShare is the part of a paid invoice the balance cares about.
type PaidInvoiceShare struct {
	Amount        Money
	PartnerAShare int
	PartnerBShare int
	CollectedBy   PartnerID
}
