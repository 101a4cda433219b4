package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/handler"
	"github.com/lucafranzi/contabile/internal/infra/cache"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/infra/sqlite"
	"github.com/lucafranzi/contabile/internal/infra/templatestore"
	"github.com/lucafranzi/contabile/internal/service"

	"go.uber.org/zap"
)

type stubNotifier struct{}

func (stubNotifier) SendMessage(ctx context.Context, token, chatID, text string) error { return nil }
func (stubNotifier) GetMe(ctx context.Context, token string) (string, error) {
	return "test_bot", nil
}

type testEnv struct {
	srv      *httptest.Server
	registry *service.RegistryService
}

func newTestEnv(t *testing.T, jwtSecret string) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "contabile.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	files, err := templatestore.New(filepath.Join(t.TempDir(), "templates"))
	if err != nil {
		t.Fatalf("open template store: %v", err)
	}

	metrics := observability.NewMetrics()
	statsCache := cache.New[*domain.DashboardStats](time.Minute)

	registry := service.NewRegistryService(store, metrics, logger)
	billing := service.NewBillingService(store, store, files, statsCache, metrics, logger)
	ledger := service.NewLedgerService(store, metrics, logger)
	dashboard := service.NewDashboardService(store, statsCache, metrics, logger)
	templates := service.NewTemplateService(store, files, logger)
	agenda := service.NewAgendaService(store, logger)
	notify := service.NewNotifyService(store, dashboard, stubNotifier{}, metrics, logger)
	auth := service.NewAuthService(store, jwtSecret, time.Hour, logger)

	router := handler.NewRouter(handler.Deps{
		Registry:  registry,
		Billing:   billing,
		Ledger:    ledger,
		Dashboard: dashboard,
		Templates: templates,
		Agenda:    agenda,
		Notify:    notify,
		Auth:      auth,
		DB:        store,
		Metrics:   metrics,
		Logger:    logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, registry: registry}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func decodeBody[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return v
}

func (e *testEnv) createClient(t *testing.T, name string) domain.Client {
	t.Helper()
	resp, raw := e.request(t, http.MethodPost, "/v1/clients", domain.ClientRequest{Name: name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create client: status %d, body %s", resp.StatusCode, raw)
	}
	return decodeBody[domain.Client](t, raw)
}

func (e *testEnv) uploadTemplate(t *testing.T, name, html string) domain.Template {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		t.Fatalf("write name field: %v", err)
	}
	part, err := mw.CreateFormFile("html", "template.html")
	if err != nil {
		t.Fatalf("create html part: %v", err)
	}
	if _, err := part.Write([]byte(html)); err != nil {
		t.Fatalf("write html part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/templates", &buf)
	if err != nil {
		t.Fatalf("build template request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload template: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload template: status %d, body %s", resp.StatusCode, raw)
	}
	return decodeBody[domain.Template](t, raw)
}

func (e *testEnv) createInvoice(t *testing.T, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/invoices", &buf)
	if err != nil {
		t.Fatalf("build invoice request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	resp, raw := env.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	health := decodeBody[domain.HealthStatus](t, raw)
	if health.Status != "healthy" {
		t.Errorf("healthz status = %q, want healthy", health.Status)
	}

	resp, _ = env.request(t, http.MethodGet, "/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz: status %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodGet, "/v1/metrics/ops", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics/ops: status %d", resp.StatusCode)
	}
}

func TestClientCRUD(t *testing.T) {
	env := newTestEnv(t, "")

	client := env.createClient(t, "Acme Srl")
	if client.ID == "" {
		t.Fatal("created client has empty id")
	}

	resp, raw := env.request(t, http.MethodGet, "/v1/clients/"+client.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get client: status %d, body %s", resp.StatusCode, raw)
	}

	resp, raw = env.request(t, http.MethodPut, "/v1/clients/"+client.ID,
		domain.ClientRequest{Name: "Acme Srl", City: "Milano"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update client: status %d, body %s", resp.StatusCode, raw)
	}
	updated := decodeBody[domain.Client](t, raw)
	if updated.City != "Milano" {
		t.Errorf("City = %q, want Milano", updated.City)
	}

	resp, raw = env.request(t, http.MethodDelete, "/v1/clients/"+client.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete client: status %d, body %s", resp.StatusCode, raw)
	}
	deleted := decodeBody[map[string]any](t, raw)
	if deleted["deleted"] != true {
		t.Errorf("delete body = %v, want deleted=true", deleted)
	}

	resp, _ = env.request(t, http.MethodGet, "/v1/clients/"+client.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted client: status %d, want 404", resp.StatusCode)
	}
}

func TestCreateClient_MissingName(t *testing.T) {
	env := newTestEnv(t, "")

	resp, _ := env.request(t, http.MethodPost, "/v1/clients", domain.ClientRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecurringFeeGeneration(t *testing.T) {
	env := newTestEnv(t, "")
	client := env.createClient(t, "Retainer Client")

	resp, raw := env.request(t, http.MethodPost, "/v1/clients/"+client.ID+"/recurring-fees",
		domain.RecurringFeeRequest{
			Amount:    50000,
			Interval:  domain.IntervalMonthly,
			StartDate: "2024-01-01",
		})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create fee: status %d, body %s", resp.StatusCode, raw)
	}
	fee := decodeBody[domain.RecurringFee](t, raw)

	resp, raw = env.request(t, http.MethodPost, "/v1/payment-events/generate",
		map[string]string{"as_of": "2024-03-15"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate: status %d, body %s", resp.StatusCode, raw)
	}
	result := decodeBody[map[string]int](t, raw)
	if result["generated"] != 3 {
		t.Errorf("generated = %d, want 3", result["generated"])
	}

	// Second run over the same window creates nothing.
	resp, raw = env.request(t, http.MethodPost, "/v1/payment-events/generate",
		map[string]string{"as_of": "2024-03-15"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("regenerate: status %d, body %s", resp.StatusCode, raw)
	}
	result = decodeBody[map[string]int](t, raw)
	if result["generated"] != 0 {
		t.Errorf("second run generated = %d, want 0", result["generated"])
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/payment-events?client_id="+client.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list events: status %d, body %s", resp.StatusCode, raw)
	}
	list := decodeBody[map[string][]domain.PaymentEvent](t, raw)
	if len(list["payment_events"]) != 3 {
		t.Errorf("event count = %d, want 3", len(list["payment_events"]))
	}
	for _, ev := range list["payment_events"] {
		if ev.FeeID == nil || *ev.FeeID != fee.ID {
			t.Errorf("event %s not linked to fee", ev.ID)
		}
		if ev.Status != domain.EventPending {
			t.Errorf("event %s status = %s, want pending", ev.ID, ev.Status)
		}
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	client := env.createClient(t, "Invoice Client")
	tmpl := env.uploadTemplate(t, "standard",
		"<html><head></head><body>{{client_name}} owes {{total}}</body></html>")

	// A pending manual event to link the invoice to.
	resp, raw := env.request(t, http.MethodPost, "/v1/payment-events",
		domain.PaymentEventRequest{ClientID: client.ID, Amount: 25099, DueDate: "2024-05-01"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event: status %d, body %s", resp.StatusCode, raw)
	}
	event := decodeBody[domain.PaymentEvent](t, raw)

	resp, raw = env.createInvoice(t, map[string]string{
		"client_id":        client.ID,
		"template_id":      tmpl.ID,
		"payment_event_id": event.ID,
		"partner_a_share":  "60",
		"partner_b_share":  "40",
		"data":             `{"items": [{"description": "consulting", "price": 100.50, "quantity": 2}, {"description": "hosting", "price": 49.99}]}`,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invoice: status %d, body %s", resp.StatusCode, raw)
	}
	invoice := decodeBody[domain.Invoice](t, raw)
	if invoice.Amount != 25099 {
		t.Errorf("amount = %d, want 25099", invoice.Amount)
	}
	if invoice.Status != domain.InvoiceDraft {
		t.Errorf("status = %s, want draft", invoice.Status)
	}
	if len(invoice.Number) != 8 {
		t.Errorf("number = %q, want 8 characters", invoice.Number)
	}

	// Linking the same event again must conflict.
	resp, _ = env.createInvoice(t, map[string]string{
		"client_id":        client.ID,
		"template_id":      tmpl.ID,
		"payment_event_id": event.ID,
		"partner_a_share":  "50",
		"partner_b_share":  "50",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("relink event: status %d, want 409", resp.StatusCode)
	}

	// Mark paid; the linked event follows.
	resp, raw = env.request(t, http.MethodPut, "/v1/invoices/"+invoice.ID+"/status",
		domain.InvoiceStatusRequest{Status: domain.InvoicePaid, PaidDate: "2024-05-10", CollectedBy: domain.PartnerA})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark paid: status %d, body %s", resp.StatusCode, raw)
	}
	paid := decodeBody[domain.Invoice](t, raw)
	if paid.PaidDate == nil || *paid.PaidDate != "2024-05-10" {
		t.Errorf("paid_date = %v, want 2024-05-10", paid.PaidDate)
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/payment-events/"+event.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get event: status %d", resp.StatusCode)
	}
	linked := decodeBody[domain.PaymentEvent](t, raw)
	if linked.Status != domain.EventPaid {
		t.Errorf("event status = %s, want paid", linked.Status)
	}
}

func TestInvoiceStatusForwardOnly(t *testing.T) {
	env := newTestEnv(t, "")
	client := env.createClient(t, "Lifecycle Client")
	tmpl := env.uploadTemplate(t, "plain", "<html><body>{{total}}</body></html>")

	resp, raw := env.createInvoice(t, map[string]string{
		"client_id":       client.ID,
		"template_id":     tmpl.ID,
		"partner_a_share": "50",
		"partner_b_share": "50",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invoice: status %d, body %s", resp.StatusCode, raw)
	}
	invoice := decodeBody[domain.Invoice](t, raw)

	resp, raw = env.request(t, http.MethodPut, "/v1/invoices/"+invoice.ID+"/status",
		domain.InvoiceStatusRequest{Status: domain.InvoiceSent})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark sent: status %d, body %s", resp.StatusCode, raw)
	}

	// A sent invoice never returns to draft.
	resp, _ = env.request(t, http.MethodPut, "/v1/invoices/"+invoice.ID+"/status",
		domain.InvoiceStatusRequest{Status: domain.InvoiceDraft})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("sent to draft: status %d, want 409", resp.StatusCode)
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/invoices/"+invoice.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get invoice: status %d", resp.StatusCode)
	}
	if got := decodeBody[domain.Invoice](t, raw); got.Status != domain.InvoiceSent {
		t.Errorf("status = %s, want sent unchanged", got.Status)
	}
}

func TestInvoiceSharesValidated(t *testing.T) {
	env := newTestEnv(t, "")
	client := env.createClient(t, "Split Client")
	tmpl := env.uploadTemplate(t, "plain", "<html><body>{{total}}</body></html>")

	resp, raw := env.createInvoice(t, map[string]string{
		"client_id":       client.ID,
		"template_id":     tmpl.ID,
		"partner_a_share": "70",
		"partner_b_share": "40",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", resp.StatusCode, raw)
	}
}

func TestTemplateFieldsAndPreview(t *testing.T) {
	env := newTestEnv(t, "")
	tmpl := env.uploadTemplate(t, "fields",
		"<html><body>{{ client_name }} {{total}} {{client_name}}</body></html>")

	resp, raw := env.request(t, http.MethodGet, "/v1/templates/"+tmpl.ID+"/fields", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fields: status %d, body %s", resp.StatusCode, raw)
	}
	fields := decodeBody[map[string][]string](t, raw)
	if len(fields["fields"]) != 2 {
		t.Errorf("fields = %v, want [client_name total]", fields["fields"])
	}

	resp, raw = env.request(t, http.MethodPost, "/v1/templates/"+tmpl.ID+"/preview",
		map[string]string{"client_name": "Acme", "total": "100"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview: status %d, body %s", resp.StatusCode, raw)
	}
	if !bytes.Contains(raw, []byte("Acme")) {
		t.Errorf("preview body %q does not contain substituted value", raw)
	}
}

func TestExpensesAndBalance(t *testing.T) {
	env := newTestEnv(t, "")

	for _, req := range []domain.ExpenseRequest{
		{Amount: 10000, Category: domain.CategoryHosting, Type: domain.ExpenseSubscription, Payer: domain.PartnerA, Date: "2024-02-01"},
		{Amount: 4000, Category: domain.CategoryOffice, Type: domain.ExpenseOneOff, Payer: domain.PartnerB, Date: "2024-02-02"},
	} {
		resp, raw := env.request(t, http.MethodPost, "/v1/expenses", req)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create expense: status %d, body %s", resp.StatusCode, raw)
		}
	}

	resp, raw := env.request(t, http.MethodGet, "/v1/expenses/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance: status %d, body %s", resp.StatusCode, raw)
	}
	balance := decodeBody[domain.PartnerBalance](t, raw)
	// A paid 10000, B paid 4000: B owes A half the difference.
	if balance.AmountOwed != 3000 || balance.FromPartner != domain.PartnerB {
		t.Errorf("balance = %+v, want 3000 owed from b", balance)
	}

	resp, raw = env.request(t, http.MethodPost, "/v1/settlements",
		domain.SettlementRequest{Amount: 3000, From: domain.PartnerB, To: domain.PartnerA, Date: "2024-02-10"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create settlement: status %d, body %s", resp.StatusCode, raw)
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/expenses/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance after settlement: status %d", resp.StatusCode)
	}
	balance = decodeBody[domain.PartnerBalance](t, raw)
	if balance.AmountOwed != 0 {
		t.Errorf("amount owed after settlement = %d, want 0", balance.AmountOwed)
	}
}

func TestExpenseFilters(t *testing.T) {
	env := newTestEnv(t, "")

	for _, req := range []domain.ExpenseRequest{
		{Amount: 1000, Category: domain.CategoryHosting, Type: domain.ExpenseSubscription, Payer: domain.PartnerA, Date: "2024-01-15"},
		{Amount: 2000, Category: domain.CategoryTravel, Type: domain.ExpenseOneOff, Payer: domain.PartnerB, Date: "2024-03-20"},
	} {
		resp, raw := env.request(t, http.MethodPost, "/v1/expenses", req)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create expense: status %d, body %s", resp.StatusCode, raw)
		}
	}

	resp, raw := env.request(t, http.MethodGet, "/v1/expenses?category=hosting", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered list: status %d, body %s", resp.StatusCode, raw)
	}
	list := decodeBody[map[string][]domain.Expense](t, raw)
	if len(list["expenses"]) != 1 || list["expenses"][0].Category != domain.CategoryHosting {
		t.Errorf("filtered expenses = %v, want single hosting row", list["expenses"])
	}

	resp, _ = env.request(t, http.MethodGet, "/v1/expenses?category=nonsense", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad category filter: status %d, want 400", resp.StatusCode)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t, "")
	client := env.createClient(t, "Stats Client")
	tmpl := env.uploadTemplate(t, "plain", "<html><body>{{total}}</body></html>")

	resp, raw := env.createInvoice(t, map[string]string{
		"client_id":       client.ID,
		"template_id":     tmpl.ID,
		"partner_a_share": "50",
		"partner_b_share": "50",
		"data":            `{"items": [{"price": 100.00}]}`,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invoice: status %d, body %s", resp.StatusCode, raw)
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/dashboard/stats?period=all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d, body %s", resp.StatusCode, raw)
	}
	stats := decodeBody[domain.DashboardStats](t, raw)
	if stats.TotalInvoiced != 10000 || stats.InvoiceCount != 1 {
		t.Errorf("stats = %+v, want total 10000 over 1 invoice", stats)
	}

	resp, _ = env.request(t, http.MethodGet, "/v1/dashboard/stats?period=decade", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad period: status %d, want 400", resp.StatusCode)
	}
}

func TestTodosCRUD(t *testing.T) {
	env := newTestEnv(t, "")

	resp, raw := env.request(t, http.MethodPost, "/v1/todos", domain.TodoRequest{Text: "send invoices"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create todo: status %d, body %s", resp.StatusCode, raw)
	}
	todo := decodeBody[domain.Todo](t, raw)

	done := true
	resp, raw = env.request(t, http.MethodPut, "/v1/todos/"+todo.ID,
		domain.TodoRequest{Text: "send invoices", Done: &done})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update todo: status %d, body %s", resp.StatusCode, raw)
	}
	updated := decodeBody[domain.Todo](t, raw)
	if !updated.Done {
		t.Error("todo not marked done")
	}

	resp, _ = env.request(t, http.MethodDelete, "/v1/todos/"+todo.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete todo: status %d", resp.StatusCode)
	}
}

func TestAuthDisabledOpenAccess(t *testing.T) {
	env := newTestEnv(t, "")

	// Without a secret the protected group is open.
	resp, raw := env.request(t, http.MethodPut, "/v1/partners/a",
		domain.PartnerRequest{Name: "Luca"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update partner without auth: status %d, body %s", resp.StatusCode, raw)
	}

	// And login is refused outright.
	resp, _ = env.request(t, http.MethodPost, "/v1/auth/login",
		domain.LoginRequest{Partner: domain.PartnerA, Password: "whatever"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("login with auth disabled: status %d, want 409", resp.StatusCode)
	}
}

func TestAuthEnabledFlow(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	// No token: rejected.
	resp, _ := env.request(t, http.MethodPut, "/v1/partners/a",
		domain.PartnerRequest{Name: "Luca"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("update partner without token: status %d, want 401", resp.StatusCode)
	}

	// Seed a password through the service layer, then log in over HTTP.
	if _, err := env.registry.UpdatePartner(context.Background(), domain.PartnerA,
		&domain.PartnerRequest{Password: "correct-horse"}); err != nil {
		t.Fatalf("seed password: %v", err)
	}

	resp, raw := env.request(t, http.MethodPost, "/v1/auth/login",
		domain.LoginRequest{Partner: domain.PartnerA, Password: "correct-horse"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d, body %s", resp.StatusCode, raw)
	}
	login := decodeBody[domain.LoginResponse](t, raw)
	if login.AccessToken == "" || login.TokenType != "Bearer" {
		t.Fatalf("login response = %+v", login)
	}

	req, err := http.NewRequest(http.MethodPut, env.srv.URL+"/v1/partners/a",
		bytes.NewReader([]byte(`{"name": "Luca"}`)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", login.AccessToken))

	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed update: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(authed.Body)
		t.Fatalf("authed update: status %d, body %s", authed.StatusCode, body)
	}

	// Wrong password stays out.
	resp, _ = env.request(t, http.MethodPost, "/v1/auth/login",
		domain.LoginRequest{Partner: domain.PartnerA, Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login: status %d, want 401", resp.StatusCode)
	}
}

func TestTelegramEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	resp, raw := env.request(t, http.MethodPut, "/v1/telegram/config",
		domain.TelegramConfig{BotToken: "123456:ABCDEF", ChatID: "42", Enabled: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update config: status %d, body %s", resp.StatusCode, raw)
	}
	cfg := decodeBody[domain.TelegramConfig](t, raw)
	if cfg.BotToken == "123456:ABCDEF" {
		t.Error("bot token returned unmasked")
	}

	resp, raw = env.request(t, http.MethodGet, "/v1/telegram/check", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check: status %d, body %s", resp.StatusCode, raw)
	}
	check := decodeBody[domain.TelegramCheck](t, raw)
	if !check.Configured || !check.BotOK {
		t.Errorf("check = %+v, want configured bot_ok", check)
	}

	resp, _ = env.request(t, http.MethodPost, "/v1/telegram/test", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("test message: status %d", resp.StatusCode)
	}
}
