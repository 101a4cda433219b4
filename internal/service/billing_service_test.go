package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/cache"
	"github.com/lucafranzi/contabile/internal/infra/observability"

	"go.uber.org/zap"
)

func newTestBillingService(store *mockBillingStore) *BillingService {
	templates := newMockTemplateStore()
	templates.templates["tpl-1"] = &domain.Template{ID: "tpl-1", Name: "standard"}
	return NewBillingService(store, templates, newMockTemplateFiles(), nil, observability.NewMetrics(), zap.NewNop())
}

func seedClient(store *mockBillingStore) {
	store.clients["client-1"] = &domain.Client{ID: "client-1", Name: "Acme"}
}

func TestOccurrences_MonthlySeries(t *testing.T) {
	fee := &domain.RecurringFee{Interval: domain.IntervalMonthly, StartDate: "2024-01-01"}
	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")

	got := Occurrences(fee, asOf)
	want := []string{"2024-01-01", "2024-02-01", "2024-03-01"}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOccurrences_MonthEndClamping(t *testing.T) {
	fee := &domain.RecurringFee{Interval: domain.IntervalMonthly, StartDate: "2024-01-31"}
	asOf, _ := time.Parse(domain.DateLayout, "2024-04-30")

	got := Occurrences(fee, asOf)
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOccurrences_QuarterlyAndYearly(t *testing.T) {
	asOf, _ := time.Parse(domain.DateLayout, "2025-01-10")

	quarterly := &domain.RecurringFee{Interval: domain.IntervalQuarterly, StartDate: "2024-02-15"}
	if got := Occurrences(quarterly, asOf); len(got) != 4 {
		t.Errorf("quarterly: got %v, want 4 occurrences through 2024-11-15", got)
	}

	yearly := &domain.RecurringFee{Interval: domain.IntervalYearly, StartDate: "2023-06-01"}
	got := Occurrences(yearly, asOf)
	if len(got) != 2 || got[1] != "2024-06-01" {
		t.Errorf("yearly: got %v, want [2023-06-01 2024-06-01]", got)
	}
}

func TestOccurrences_StartInFuture(t *testing.T) {
	fee := &domain.RecurringFee{Interval: domain.IntervalMonthly, StartDate: "2024-06-01"}
	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")

	if got := Occurrences(fee, asOf); len(got) != 0 {
		t.Errorf("expected no occurrences before the anchor, got %v", got)
	}
}

func TestGenerateDueEvents_Scenario(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	fee, err := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    10000,
		Interval:  domain.IntervalMonthly,
		StartDate: "2024-01-01",
	})
	if err != nil {
		t.Fatalf("CreateFee: %v", err)
	}

	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")
	created, err := svc.GenerateDueEvents(ctx, asOf)
	if err != nil {
		t.Fatalf("GenerateDueEvents: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	events, _ := svc.ListEvents(ctx, domain.EventFilter{Status: domain.EventPending})
	if len(events) != 3 {
		t.Fatalf("pending events = %d, want 3", len(events))
	}
	seen := map[string]bool{}
	for _, ev := range events {
		if ev.FeeID == nil || *ev.FeeID != fee.ID {
			t.Errorf("event not linked to fee: %+v", ev)
		}
		if ev.Amount != 10000 {
			t.Errorf("event amount = %d, want 10000", ev.Amount)
		}
		seen[ev.DueDate] = true
	}
	for _, d := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		if !seen[d] {
			t.Errorf("missing event for %s", d)
		}
	}
}

func TestGenerateDueEvents_Idempotent(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	if _, err := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    5000,
		Interval:  domain.IntervalMonthly,
		StartDate: "2024-01-01",
	}); err != nil {
		t.Fatalf("CreateFee: %v", err)
	}

	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")
	if _, err := svc.GenerateDueEvents(ctx, asOf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	created, err := svc.GenerateDueEvents(ctx, asOf)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created %d events, want 0", created)
	}

	events, _ := svc.ListEvents(ctx, domain.EventFilter{})
	if len(events) != 3 {
		t.Errorf("total events = %d, want 3", len(events))
	}
}

func TestGenerateDueEvents_SkipsInactiveFees(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	fee, _ := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    5000,
		Interval:  domain.IntervalMonthly,
		StartDate: "2024-01-01",
	})
	if err := svc.DeactivateFee(ctx, fee.ID); err != nil {
		t.Fatalf("DeactivateFee: %v", err)
	}

	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")
	created, err := svc.GenerateDueEvents(ctx, asOf)
	if err != nil {
		t.Fatalf("GenerateDueEvents: %v", err)
	}
	if created != 0 {
		t.Errorf("created %d events from an inactive fee, want 0", created)
	}
}

func TestDeactivateFee_KeepsHistoricalEvents(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	fee, _ := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    5000,
		Interval:  domain.IntervalMonthly,
		StartDate: "2024-01-01",
	})
	asOf, _ := time.Parse(domain.DateLayout, "2024-03-15")
	svc.GenerateDueEvents(ctx, asOf)

	if err := svc.DeactivateFee(ctx, fee.ID); err != nil {
		t.Fatalf("DeactivateFee: %v", err)
	}

	got, err := svc.GetFee(ctx, fee.ID)
	if err != nil {
		t.Fatalf("GetFee after deactivate: %v", err)
	}
	if got.Active {
		t.Error("fee still active after deactivate")
	}
	events, _ := svc.ListEvents(ctx, domain.EventFilter{})
	if len(events) != 3 {
		t.Errorf("historical events = %d, want 3 unchanged", len(events))
	}
}

func TestCreateFee_Validation(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.RecurringFeeRequest
	}{
		{"zero amount", domain.RecurringFeeRequest{Amount: 0, Interval: domain.IntervalMonthly, StartDate: "2024-01-01"}},
		{"negative amount", domain.RecurringFeeRequest{Amount: -100, Interval: domain.IntervalMonthly, StartDate: "2024-01-01"}},
		{"unknown interval", domain.RecurringFeeRequest{Amount: 100, Interval: "weekly", StartDate: "2024-01-01"}},
		{"bad date", domain.RecurringFeeRequest{Amount: 100, Interval: domain.IntervalMonthly, StartDate: "01/01/2024"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateFee(ctx, "client-1", &tc.req)
			var verr *domain.ErrValidation
			if !errors.As(err, &verr) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		total  domain.Money
		shareA int
		shareB int
		wantA  domain.Money
		wantB  domain.Money
	}{
		{101, 50, 50, 51, 50},
		{100, 50, 50, 50, 50},
		{100, 70, 30, 70, 30},
		{1, 50, 50, 1, 0},
		{99, 33, 67, 33, 66},
		{0, 50, 50, 0, 0},
		{100, 100, 0, 100, 0},
		{100, 0, 100, 0, 100},
	}
	for _, tc := range cases {
		a, b := SplitAmount(tc.total, tc.shareA, tc.shareB)
		if a != tc.wantA || b != tc.wantB {
			t.Errorf("SplitAmount(%d, %d/%d) = %d/%d, want %d/%d",
				tc.total, tc.shareA, tc.shareB, a, b, tc.wantA, tc.wantB)
		}
		if a+b != tc.total {
			t.Errorf("SplitAmount(%d, %d/%d): shares sum to %d", tc.total, tc.shareA, tc.shareB, a+b)
		}
	}
}

func TestCreateInvoice_SharesMustSumTo100(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)

	_, err := svc.CreateInvoice(context.Background(), &domain.InvoiceRequest{
		ClientID:      "client-1",
		TemplateID:    "tpl-1",
		PartnerAShare: 60,
		PartnerBShare: 30,
	}, "", nil)

	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want validation error for shares summing to 90", err)
	}
}

func TestCreateInvoice_AmountFromItems(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)

	inv, err := svc.CreateInvoice(context.Background(), &domain.InvoiceRequest{
		ClientID:   "client-1",
		TemplateID: "tpl-1",
		Data: map[string]any{
			"items": []any{
				map[string]any{"price": 100.50, "qty": 2.0},
				map[string]any{"price": 49.99},
			},
		},
		PartnerAShare: 50,
		PartnerBShare: 50,
	}, "", nil)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// 100.50 × 2 + 49.99 = 250.99 euros
	if inv.Amount != 25099 {
		t.Errorf("amount = %d cents, want 25099", inv.Amount)
	}
	if inv.Status != domain.InvoiceDraft {
		t.Errorf("status = %s, want draft", inv.Status)
	}
	if len(inv.Number) != 8 {
		t.Errorf("invoice number %q, want 8 characters", inv.Number)
	}
}

func TestCreateInvoice_QuantityKeyAlias(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)

	// Clients send either "qty" or "quantity"; both multiply the price.
	inv, err := svc.CreateInvoice(context.Background(), &domain.InvoiceRequest{
		ClientID:   "client-1",
		TemplateID: "tpl-1",
		Data: map[string]any{
			"items": []any{
				map[string]any{"price": 100.50, "quantity": 2.0},
				map[string]any{"price": 49.99},
			},
		},
		PartnerAShare: 50,
		PartnerBShare: 50,
	}, "", nil)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Amount != 25099 {
		t.Errorf("amount = %d cents, want 25099", inv.Amount)
	}
}

func TestInvoiceMutationsFlushCachedStats(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	templates := newMockTemplateStore()
	templates.templates["tpl-1"] = &domain.Template{ID: "tpl-1", Name: "standard"}
	statsCache := cache.New[*domain.DashboardStats](time.Minute)
	svc := NewBillingService(store, templates, newMockTemplateFiles(), statsCache, observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()

	statsCache.Set("stats:all", &domain.DashboardStats{Period: domain.PeriodAll})

	inv, err := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1",
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, ok := statsCache.Get("stats:all"); ok {
		t.Error("cached stats survived invoice creation")
	}

	statsCache.Set("stats:all", &domain.DashboardStats{Period: domain.PeriodAll})
	if _, err := svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{Status: domain.InvoiceSent}); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	if _, ok := statsCache.Get("stats:all"); ok {
		t.Error("cached stats survived a status change")
	}
}

func TestCreateInvoice_LinksEventExactlyOnce(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	ev, err := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{
		ClientID: "client-1",
		Amount:   5000,
		DueDate:  "2024-05-01",
	})
	if err != nil {
		t.Fatalf("CreateManualEvent: %v", err)
	}

	req := &domain.InvoiceRequest{
		ClientID:      "client-1",
		TemplateID:    "tpl-1",
		EventID:       ev.ID,
		PartnerAShare: 50,
		PartnerBShare: 50,
	}
	if _, err := svc.CreateInvoice(ctx, req, "", nil); err != nil {
		t.Fatalf("first invoice: %v", err)
	}

	linked, _ := svc.GetEvent(ctx, ev.ID)
	if linked.Status != domain.EventInvoiced {
		t.Errorf("event status = %s, want invoiced", linked.Status)
	}

	_, err = svc.CreateInvoice(ctx, req, "", nil)
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Fatalf("second link got %v, want conflict error", err)
	}
}

func TestUpdateInvoiceStatus_PaidPropagatesToEvent(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	ev, _ := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{ClientID: "client-1", Amount: 5000, DueDate: "2024-05-01"})
	inv, _ := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1", EventID: ev.ID,
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)

	paid, err := svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{
		Status:      domain.InvoicePaid,
		PaidDate:    "2024-05-10",
		CollectedBy: domain.PartnerB,
	})
	if err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	if paid.PaidDate == nil || *paid.PaidDate != "2024-05-10" {
		t.Errorf("paid_date not set: %+v", paid.PaidDate)
	}
	if paid.CollectedBy != domain.PartnerB {
		t.Errorf("collected_by = %s, want b", paid.CollectedBy)
	}

	linked, _ := svc.GetEvent(ctx, ev.ID)
	if linked.Status != domain.EventPaid {
		t.Errorf("event status = %s, want paid", linked.Status)
	}
}

func TestUpdateInvoiceStatus_CancelRevertsEventToPending(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	ev, _ := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{ClientID: "client-1", Amount: 5000, DueDate: "2024-05-01"})
	inv, _ := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1", EventID: ev.ID,
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)

	if _, err := svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{Status: domain.InvoiceCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	reverted, _ := svc.GetEvent(ctx, ev.ID)
	if reverted.Status != domain.EventPending {
		t.Fatalf("event status = %s, want pending after invoice cancel", reverted.Status)
	}

	// The reverted event can be invoiced again.
	if _, err := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1", EventID: ev.ID,
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil); err != nil {
		t.Fatalf("re-invoice after cancel: %v", err)
	}
}

func TestCancelEvent_RejectedWhileInvoiced(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	ev, _ := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{ClientID: "client-1", Amount: 5000, DueDate: "2024-05-01"})
	svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1", EventID: ev.ID,
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)

	err := svc.CancelEvent(ctx, ev.ID)
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Errorf("got %v, want conflict while invoice references the event", err)
	}
}

func TestDeleteEvent_OnlyPendingOrCancelled(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	ev, _ := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{ClientID: "client-1", Amount: 5000, DueDate: "2024-05-01"})
	svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1", EventID: ev.ID,
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)

	err := svc.DeleteEvent(ctx, ev.ID)
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Fatalf("delete of invoiced event got %v, want conflict", err)
	}

	pending, _ := svc.CreateManualEvent(ctx, &domain.PaymentEventRequest{ClientID: "client-1", Amount: 100, DueDate: "2024-06-01"})
	if err := svc.DeleteEvent(ctx, pending.ID); err != nil {
		t.Errorf("delete of pending event: %v", err)
	}
}

func TestUpdateInvoice_PaidIsImmutable(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	inv, _ := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1",
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)
	svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{Status: domain.InvoicePaid, PaidDate: "2024-05-10"})

	_, err := svc.UpdateInvoice(ctx, inv.ID, &domain.InvoiceRequest{
		PartnerAShare: 70, PartnerBShare: 30,
	}, "", nil)
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Errorf("update of paid invoice got %v, want conflict", err)
	}
}

func TestUpdateInvoiceStatus_SentNeverReturnsToDraft(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	inv, _ := svc.CreateInvoice(ctx, &domain.InvoiceRequest{
		ClientID: "client-1", TemplateID: "tpl-1",
		PartnerAShare: 50, PartnerBShare: 50,
	}, "", nil)
	if _, err := svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{Status: domain.InvoiceSent}); err != nil {
		t.Fatalf("draft to sent: %v", err)
	}

	_, err := svc.UpdateInvoiceStatus(ctx, inv.ID, &domain.InvoiceStatusRequest{Status: domain.InvoiceDraft})
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Fatalf("sent to draft got %v, want conflict", err)
	}

	got, _ := svc.GetInvoice(ctx, inv.ID)
	if got.Status != domain.InvoiceSent {
		t.Errorf("status = %s, want sent unchanged", got.Status)
	}
}

func TestGenerateInvoiceForFee(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	fee, _ := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    20000,
		Interval:  domain.IntervalMonthly,
		StartDate: "2024-01-01",
	})

	inv, err := svc.GenerateInvoiceForFee(ctx, fee.ID, "tpl-1", 50, 50)
	if err != nil {
		t.Fatalf("GenerateInvoiceForFee: %v", err)
	}
	if inv.EventID == nil {
		t.Fatal("invoice not linked to a payment event")
	}
	linked, _ := svc.GetEvent(ctx, *inv.EventID)
	if linked.Status != domain.EventInvoiced {
		t.Errorf("event status = %s, want invoiced", linked.Status)
	}
	if linked.FeeID == nil || *linked.FeeID != fee.ID {
		t.Error("linked event does not reference the fee")
	}
	// The fee's amount flows through the line item into the invoice total.
	if inv.Amount != 20000 {
		t.Errorf("invoice amount = %d cents, want 20000", inv.Amount)
	}
	// The oldest pending occurrence is invoiced first.
	if linked.DueDate != "2024-01-01" {
		t.Errorf("linked event due %s, want 2024-01-01", linked.DueDate)
	}
}

func TestGenerateInvoiceForFee_NoPendingOccurrence(t *testing.T) {
	store := newMockBillingStore()
	seedClient(store)
	svc := newTestBillingService(store)
	ctx := context.Background()

	// Nothing is due yet, so the flow creates an ad hoc event dated today.
	future := time.Now().UTC().AddDate(0, 2, 0).Format(domain.DateLayout)
	fee, _ := svc.CreateFee(ctx, "client-1", &domain.RecurringFeeRequest{
		Amount:    15000,
		Interval:  domain.IntervalMonthly,
		StartDate: future,
	})

	inv, err := svc.GenerateInvoiceForFee(ctx, fee.ID, "tpl-1", 50, 50)
	if err != nil {
		t.Fatalf("GenerateInvoiceForFee: %v", err)
	}
	if inv.Amount != 15000 {
		t.Errorf("invoice amount = %d cents, want 15000", inv.Amount)
	}
	if inv.EventID == nil {
		t.Fatal("invoice not linked to a payment event")
	}
	linked, _ := svc.GetEvent(ctx, *inv.EventID)
	today := time.Now().UTC().Format(domain.DateLayout)
	if linked.DueDate != today {
		t.Errorf("ad hoc event due %s, want %s", linked.DueDate, today)
	}
	if linked.FeeID == nil || *linked.FeeID != fee.ID {
		t.Error("ad hoc event does not reference the fee")
	}
}
