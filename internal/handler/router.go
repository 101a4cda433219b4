package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router serves.
type Deps struct {
	Registry  *service.RegistryService
	Billing   *service.BillingService
	Ledger    *service.LedgerService
	Dashboard *service.DashboardService
	Templates *service.TemplateService
	Agenda    *service.AgendaService
	Notify    *service.NotifyService
	Auth      *service.AuthService

	DB      interface{ Ping(context.Context) error }
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	logger := d.Logger

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestCounter(d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.DB, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Auth
		// =============================================
		r.Post("/auth/login", loginHandler(d.Auth, logger))

		// =============================================
		// Clients & recurring fees
		// =============================================
		r.Get("/clients", listClientsHandler(d.Registry, logger))
		r.Post("/clients", createClientHandler(d.Registry, logger))
		r.Get("/clients/{clientId}", getClientHandler(d.Registry, logger))
		r.Put("/clients/{clientId}", updateClientHandler(d.Registry, logger))
		r.Delete("/clients/{clientId}", deleteClientHandler(d.Registry, logger))

		r.Get("/clients/{clientId}/recurring-fees", listFeesHandler(d.Billing, logger))
		r.Post("/clients/{clientId}/recurring-fees", createFeeHandler(d.Billing, logger))
		r.Get("/recurring-fees/{feeId}", getFeeHandler(d.Billing, logger))
		r.Put("/recurring-fees/{feeId}", updateFeeHandler(d.Billing, logger))
		r.Delete("/recurring-fees/{feeId}", deactivateFeeHandler(d.Billing, logger))
		r.Post("/recurring-fees/{feeId}/generate-invoice", generateInvoiceForFeeHandler(d.Billing, logger))

		// =============================================
		// Payment events
		// =============================================
		r.Get("/payment-events", listEventsHandler(d.Billing, logger))
		r.Post("/payment-events", createEventHandler(d.Billing, logger))
		r.Post("/payment-events/generate", generateEventsHandler(d.Billing, logger))
		r.Get("/payment-events/{eventId}", getEventHandler(d.Billing, logger))
		r.Put("/payment-events/{eventId}", updateEventHandler(d.Billing, logger))
		r.Delete("/payment-events/{eventId}", deleteEventHandler(d.Billing, logger))
		r.Post("/payment-events/{eventId}/cancel", cancelEventHandler(d.Billing, logger))

		// =============================================
		// Invoice templates (multipart upload)
		// =============================================
		r.Get("/templates", listTemplatesHandler(d.Templates, logger))
		r.Post("/templates", createTemplateHandler(d.Templates, logger))
		r.Get("/templates/{templateId}", getTemplateHandler(d.Templates, logger))
		r.Put("/templates/{templateId}", updateTemplateHandler(d.Templates, logger))
		r.Delete("/templates/{templateId}", deleteTemplateHandler(d.Templates, logger))
		r.Get("/templates/{templateId}/fields", templateFieldsHandler(d.Templates, logger))
		r.Get("/templates/{templateId}/content", templateContentHandler(d.Templates, logger))
		r.Post("/templates/{templateId}/preview", templatePreviewHandler(d.Templates, logger))

		// =============================================
		// Invoices (multipart with optional logo)
		// =============================================
		r.Get("/invoices", listInvoicesHandler(d.Billing, logger))
		r.Post("/invoices", createInvoiceHandler(d.Billing, logger))
		r.Get("/invoices/{invoiceId}", getInvoiceHandler(d.Billing, logger))
		r.Put("/invoices/{invoiceId}", updateInvoiceHandler(d.Billing, logger))
		r.Delete("/invoices/{invoiceId}", deleteInvoiceHandler(d.Billing, logger))
		r.Put("/invoices/{invoiceId}/status", updateInvoiceStatusHandler(d.Billing, logger))

		// =============================================
		// Partners & bank details
		// =============================================
		r.Get("/partners", listPartnersHandler(d.Registry, logger))
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth, logger))
			r.Put("/partners/{partnerId}", updatePartnerHandler(d.Registry, logger))
		})
		r.Get("/bank-details", getBankDetailsHandler(d.Registry, logger))
		r.Put("/bank-details", updateBankDetailsHandler(d.Registry, logger))

		// =============================================
		// Expenses, settlements & partner balance
		// =============================================
		r.Get("/expenses", listExpensesHandler(d.Ledger, logger))
		r.Post("/expenses", createExpenseHandler(d.Ledger, logger))
		r.Get("/expenses/balance", balanceHandler(d.Ledger, logger))
		r.Get("/expenses/{expenseId}", getExpenseHandler(d.Ledger, logger))
		r.Put("/expenses/{expenseId}", updateExpenseHandler(d.Ledger, logger))
		r.Delete("/expenses/{expenseId}", deleteExpenseHandler(d.Ledger, logger))

		r.Get("/settlements", listSettlementsHandler(d.Ledger, logger))
		r.Post("/settlements", createSettlementHandler(d.Ledger, logger))
		r.Get("/settlements/{settlementId}", getSettlementHandler(d.Ledger, logger))

		// =============================================
		// Dashboard
		// =============================================
		r.Get("/dashboard/stats", dashboardStatsHandler(d.Dashboard, logger))
		r.Get("/dashboard/renewals", dashboardRenewalsHandler(d.Dashboard, logger))
		r.Get("/dashboard/outstanding", dashboardOutstandingHandler(d.Dashboard, logger))
		r.Get("/dashboard/partner-earnings", dashboardEarningsHandler(d.Dashboard, logger))
		r.Get("/dashboard/overview", dashboardOverviewHandler(d.Dashboard, logger))

		// =============================================
		// Telegram reminders
		// =============================================
		r.Get("/telegram/config", getTelegramConfigHandler(d.Notify, logger))
		r.Put("/telegram/config", updateTelegramConfigHandler(d.Notify, logger))
		r.Post("/telegram/test", telegramTestHandler(d.Notify, logger))
		r.Get("/telegram/check", telegramCheckHandler(d.Notify, logger))

		// =============================================
		// Todos & calendar
		// =============================================
		r.Get("/todos", listTodosHandler(d.Agenda, logger))
		r.Post("/todos", createTodoHandler(d.Agenda, logger))
		r.Put("/todos/{todoId}", updateTodoHandler(d.Agenda, logger))
		r.Delete("/todos/{todoId}", deleteTodoHandler(d.Agenda, logger))

		r.Get("/calendar/events", listCalendarEventsHandler(d.Agenda, logger))
		r.Post("/calendar/events", createCalendarEventHandler(d.Agenda, logger))
		r.Put("/calendar/events/{calEventId}", updateCalendarEventHandler(d.Agenda, logger))
		r.Delete("/calendar/events/{calEventId}", deleteCalendarEventHandler(d.Agenda, logger))

		// =============================================
		// Ops metrics (JSON counter snapshot)
		// =============================================
		r.Get("/metrics/ops", opsMetricsHandler(d.Metrics))
	})

	return r
}

// requestCounter feeds the requests_total counters.
func requestCounter(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= 400 {
				metrics.IncrRequest("error")
			} else {
				metrics.IncrRequest("success")
			}
		})
	}
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(db interface{ Ping(context.Context) error }, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "contabile-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "unhealthy"
				logger.Error("healthz: database ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "sqlite", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func opsMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.OpsSnapshot())
	}
}

// ============================================================
// Auth
// ============================================================

func loginHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
