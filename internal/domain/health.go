package domain

// ============================================================
// Health & Metrics API responses
// ============================================================

// ServiceHealth is the health of one dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the aggregate health report for GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// OpsMetrics is the JSON counter snapshot for GET /v1/metrics/ops.
type OpsMetrics struct {
	EventsGenerated  int64   `json:"events_generated"`
	InvoicesCreated  int64   `json:"invoices_created"`
	InvoicesPaid     int64   `json:"invoices_paid"`
	RemindersSent    int64   `json:"reminders_sent"`
	RemindersFailed  int64   `json:"reminders_failed"`
	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors    int64   `json:"request_errors"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
}

// TelegramCheck is the report for GET /v1/telegram/check.
type TelegramCheck struct {
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	BotOK      bool   `json:"bot_ok"`
	BotName    string `json:"bot_name,omitempty"`
	QueueDepth int    `json:"queue_depth"`
	Error      string `json:"error,omitempty"`
}
