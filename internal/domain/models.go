// Package domain defines the core business entities of the billing and
// settlement engine. These models are independent of transport and storage
// and are the canonical structures used throughout the service.
package domain

// Client is a billed customer. Referenced by fees, events and invoices;
// deleting a client keeps those references as historical records.
type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Cap       string `json:"cap,omitempty"`
	City      string `json:"city,omitempty"`
	Nation    string `json:"nation,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ClientRequest is the payload for creating or updating a client.
type ClientRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Cap     string `json:"cap,omitempty"`
	City    string `json:"city,omitempty"`
	Nation  string `json:"nation,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Partner is one of the two fixed business partners. Rows exist from the
// first migration; only profile data is mutable.
type Partner struct {
	ID           PartnerID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	IBAN         string    `json:"iban,omitempty"`
	PasswordHash string    `json:"-"`
}

// PartnerRequest is the payload for updating a partner profile.
type PartnerRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	IBAN     string `json:"iban,omitempty"`
	Password string `json:"password,omitempty"`
}

// BankDetails is the singleton payee record printed on invoices.
type BankDetails struct {
	IBAN            string `json:"iban"`
	BankName        string `json:"bank_name"`
	BankAddress     string `json:"bank_address,omitempty"`
	BIC             string `json:"bic,omitempty"`
	CreditorName    string `json:"creditor_name,omitempty"`
	CreditorAddress string `json:"creditor_address,omitempty"`
	CreditorCity    string `json:"creditor_city,omitempty"`
	CreditorCap     string `json:"creditor_cap,omitempty"`
	CreditorNation  string `json:"creditor_nation,omitempty"`
}

// Template is the metadata record for an uploaded invoice template; the
// html/css assets live on disk under the template store directory.
type Template struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	CreatedAt string   `json:"created_at"`
}

// Todo is a plain task item.
type Todo struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Done      bool   `json:"done"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TodoRequest is the payload for creating or updating a todo.
type TodoRequest struct {
	Text    string `json:"text"`
	Done    *bool  `json:"done,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

// CalendarEvent is a plain calendar entry.
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CalendarEventRequest is the payload for creating or updating an event.
type CalendarEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
}

// TelegramConfig holds the reminder side channel configuration.
type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// ReminderMessage is the payload dispatched for an upcoming renewal.
// Kept small; the consumer re-reads anything else it needs.
type ReminderMessage struct {
	FeeID      string `json:"fee_id"`
	ClientName string `json:"client_name"`
	Amount     Money  `json:"amount_cents"`
	DueDate    string `json:"due_date"`
	Timestamp  string `json:"timestamp"`
}

// LoginRequest is the payload for partner login.
type LoginRequest struct {
	Partner  PartnerID `json:"partner"`
	Password string    `json:"password"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
