package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/cache"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var billingTracer = otel.Tracer("service/billing")

// BillingService owns recurring fees, payment events and invoices: the
// scheduler that turns fees into events and the generator that turns
// events into invoices with partner splits.
type BillingService struct {
	store      port.BillingStore
	templates  port.TemplateStore
	files      port.TemplateFiles
	statsCache *cache.InMemory[*domain.DashboardStats]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewBillingService(store port.BillingStore, templates port.TemplateStore, files port.TemplateFiles, statsCache *cache.InMemory[*domain.DashboardStats], metrics *observability.Metrics, logger *zap.Logger) *BillingService {
	return &BillingService{store: store, templates: templates, files: files, statsCache: statsCache, metrics: metrics, logger: logger}
}

// flushStats drops the cached dashboard rollups after an invoice mutation
// so the next read reflects the new ledger state.
func (s *BillingService) flushStats() {
	if s.statsCache != nil {
		s.statsCache.Flush()
	}
}

// ============================================================
// Recurring fees
// ============================================================

func (s *BillingService) CreateFee(ctx context.Context, clientID string, req *domain.RecurringFeeRequest) (*domain.RecurringFee, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreateFee")
	defer span.End()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
	}
	if !req.Interval.Valid() {
		return nil, &domain.ErrValidation{Field: "interval", Message: "must be monthly, quarterly or yearly"}
	}
	if _, err := time.Parse(domain.DateLayout, req.StartDate); err != nil {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
	}

	// Client must exist when the fee is created; later deletion leaves the
	// fee as a historical record.
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	fee := &domain.RecurringFee{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		Amount:      req.Amount,
		Interval:    req.Interval,
		StartDate:   req.StartDate,
		Description: req.Description,
		Active:      active,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateFee(ctx, fee); err != nil {
		s.logger.Error("failed to create recurring fee", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("recurring fee created",
		zap.String("fee_id", fee.ID),
		zap.String("client_id", clientID),
		zap.String("interval", string(fee.Interval)),
		zap.Int64("amount_cents", int64(fee.Amount)),
	)
	return fee, nil
}

func (s *BillingService) GetFee(ctx context.Context, id string) (*domain.RecurringFee, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GetFee")
	defer span.End()

	return s.store.GetFee(ctx, id)
}

func (s *BillingService) ListFees(ctx context.Context, clientID string, activeOnly bool) ([]domain.RecurringFee, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.ListFees")
	defer span.End()

	return s.store.ListFees(ctx, clientID, activeOnly)
}

func (s *BillingService) UpdateFee(ctx context.Context, id string, req *domain.RecurringFeeRequest) (*domain.RecurringFee, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.UpdateFee")
	defer span.End()

	fee, err := s.store.GetFee(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != 0 {
		if req.Amount < 0 {
			return nil, &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
		}
		fee.Amount = req.Amount
	}
	if req.Interval != "" {
		if !req.Interval.Valid() {
			return nil, &domain.ErrValidation{Field: "interval", Message: "must be monthly, quarterly or yearly"}
		}
		fee.Interval = req.Interval
	}
	if req.StartDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.StartDate); err != nil {
			return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		fee.StartDate = req.StartDate
	}
	if req.Description != "" {
		fee.Description = req.Description
	}
	if req.Active != nil {
		fee.Active = *req.Active
	}

	if err := s.store.UpdateFee(ctx, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

// DeactivateFee is the delete operation for fees: history stays, the
// scheduler skips the fee from now on.
func (s *BillingService) DeactivateFee(ctx context.Context, id string) error {
	ctx, span := billingTracer.Start(ctx, "BillingService.DeactivateFee")
	defer span.End()

	if err := s.store.DeactivateFee(ctx, id); err != nil {
		return err
	}
	s.logger.Info("recurring fee deactivated", zap.String("fee_id", id))
	return nil
}

// ============================================================
// Occurrence schedule
// ============================================================

// Occurrences returns every occurrence date of the fee on or before asOf,
// oldest first. Each step adds interval months to the anchor, clamping to
// the last day of the month when the anchor day does not exist there
// (Jan 31 monthly → Feb 28/29).
func Occurrences(fee *domain.RecurringFee, asOf time.Time) []string {
	anchor, err := time.Parse(domain.DateLayout, fee.StartDate)
	if err != nil {
		return nil
	}

	step := fee.Interval.Months()
	var dates []string
	for k := 0; ; k++ {
		occ := addMonthsClamped(anchor, k*step)
		if occ.After(asOf) {
			break
		}
		dates = append(dates, occ.Format(domain.DateLayout))
	}
	return dates
}

// NextOccurrence returns the first occurrence on or after asOf, so a fee
// renewing today still counts as upcoming.
func NextOccurrence(fee *domain.RecurringFee, asOf time.Time) string {
	anchor, err := time.Parse(domain.DateLayout, fee.StartDate)
	if err != nil {
		return ""
	}
	step := fee.Interval.Months()
	for k := 0; ; k++ {
		occ := addMonthsClamped(anchor, k*step)
		if !occ.Before(asOf) {
			return occ.Format(domain.DateLayout)
		}
	}
}

// addMonthsClamped shifts t by months, keeping the anchor day-of-month but
// never rolling into the next month. time.AddDate would turn Jan 31 + 1
// month into Mar 3; here it becomes Feb 28 (or 29).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// GenerateDueEvents creates one pending payment event for every occurrence
// of every active fee on or before asOf that has not been generated yet.
// The (fee, occurrence) key makes repeated or concurrent calls idempotent.
// Returns the number of events actually created.
func (s *BillingService) GenerateDueEvents(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GenerateDueEvents")
	defer span.End()
	span.SetAttributes(attribute.String("as_of", asOf.Format(domain.DateLayout)))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("generate_due_events", time.Since(start)) }()

	fees, err := s.store.ListFees(ctx, "", true)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range fees {
		fee := &fees[i]
		for _, occ := range Occurrences(fee, asOf) {
			occ := occ
			feeID := fee.ID
			ev := &domain.PaymentEvent{
				ID:             uuid.New().String(),
				ClientID:       fee.ClientID,
				FeeID:          &feeID,
				Amount:         fee.Amount,
				DueDate:        occ,
				OccurrenceDate: &occ,
				Status:         domain.EventPending,
				Description:    fee.Description,
				CreatedAt:      time.Now().UTC().Format(time.RFC3339),
			}
			inserted, err := s.store.CreateOccurrenceEvent(ctx, ev)
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}

	if created > 0 {
		s.metrics.AddEventsGenerated(created)
	}
	s.logger.Info("due events generated",
		zap.String("as_of", asOf.Format(domain.DateLayout)),
		zap.Int("created", created),
		zap.Int("active_fees", len(fees)),
	)
	return created, nil
}

// GenerateInvoiceForFee is the one-click flow: it ensures a pending event
// exists for the fee (generating due occurrences if needed) and drafts an
// invoice for the fee's amount linked to the oldest pending event.
func (s *BillingService) GenerateInvoiceForFee(ctx context.Context, feeID, templateID string, partnerAShare, partnerBShare int) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GenerateInvoiceForFee")
	defer span.End()

	fee, err := s.store.GetFee(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if !fee.Active {
		return nil, &domain.ErrConflict{Message: "recurring fee is inactive"}
	}

	if _, err := s.GenerateDueEvents(ctx, time.Now().UTC()); err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, domain.EventFilter{ClientID: fee.ClientID, Status: domain.EventPending})
	if err != nil {
		return nil, err
	}
	// Oldest pending occurrence first, so repeated clicks work through the
	// backlog in order.
	var target *domain.PaymentEvent
	for i := range events {
		ev := &events[i]
		if ev.FeeID == nil || *ev.FeeID != feeID {
			continue
		}
		if target == nil || ev.DueDate < target.DueDate {
			target = ev
		}
	}
	if target == nil {
		// Every generated occurrence is already invoiced; bill the fee once
		// more with an ad hoc event dated today.
		target = &domain.PaymentEvent{
			ID:          uuid.New().String(),
			ClientID:    fee.ClientID,
			FeeID:       &fee.ID,
			Amount:      fee.Amount,
			DueDate:     time.Now().UTC().Format(domain.DateLayout),
			Status:      domain.EventPending,
			Description: fee.Description,
		}
		if err := s.store.CreateEvent(ctx, target); err != nil {
			return nil, err
		}
	}

	req := &domain.InvoiceRequest{
		ClientID:   fee.ClientID,
		TemplateID: templateID,
		EventID:    target.ID,
		Data: map[string]any{
			"items": []any{map[string]any{
				"description": fee.Description,
				"price":       fee.Amount.Euros(),
				"qty":         1.0,
			}},
		},
		PartnerAShare: partnerAShare,
		PartnerBShare: partnerBShare,
		Title:         fee.Description,
	}
	return s.CreateInvoice(ctx, req, "", nil)
}

// ============================================================
// Payment events
// ============================================================

func (s *BillingService) CreateManualEvent(ctx context.Context, req *domain.PaymentEventRequest) (*domain.PaymentEvent, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreateManualEvent")
	defer span.End()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
	}
	if req.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "client_id", Message: "required"}
	}
	if _, err := time.Parse(domain.DateLayout, req.DueDate); err != nil {
		return nil, &domain.ErrValidation{Field: "due_date", Message: "invalid format, use YYYY-MM-DD"}
	}
	if _, err := s.store.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	ev := &domain.PaymentEvent{
		ID:          uuid.New().String(),
		ClientID:    req.ClientID,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		Status:      domain.EventPending,
		Description: req.Description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		s.logger.Error("failed to create payment event", zap.String("client_id", req.ClientID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("payment event created",
		zap.String("event_id", ev.ID),
		zap.String("client_id", ev.ClientID),
		zap.String("due_date", ev.DueDate),
	)
	return ev, nil
}

func (s *BillingService) GetEvent(ctx context.Context, id string) (*domain.PaymentEvent, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GetEvent")
	defer span.End()

	return s.store.GetEvent(ctx, id)
}

func (s *BillingService) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.PaymentEvent, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.ListEvents")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown event status"}
	}
	return s.store.ListEvents(ctx, filter)
}

// UpdateEvent edits amount, due date or description. Status never changes
// here; the invoice lifecycle drives it.
func (s *BillingService) UpdateEvent(ctx context.Context, id string, req *domain.PaymentEventRequest) (*domain.PaymentEvent, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.UpdateEvent")
	defer span.End()

	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != 0 {
		if req.Amount < 0 {
			return nil, &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
		}
		ev.Amount = req.Amount
	}
	if req.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, req.DueDate); err != nil {
			return nil, &domain.ErrValidation{Field: "due_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		ev.DueDate = req.DueDate
	}
	if req.Description != "" {
		ev.Description = req.Description
	}

	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *BillingService) DeleteEvent(ctx context.Context, id string) error {
	ctx, span := billingTracer.Start(ctx, "BillingService.DeleteEvent")
	defer span.End()

	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("payment event deleted", zap.String("event_id", id))
	return nil
}

func (s *BillingService) CancelEvent(ctx context.Context, id string) error {
	ctx, span := billingTracer.Start(ctx, "BillingService.CancelEvent")
	defer span.End()

	if err := s.store.CancelEvent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("payment event cancelled", zap.String("event_id", id))
	return nil
}

// ============================================================
// Invoices & partner revenue split
// ============================================================

const numberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newInvoiceNumber() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = numberCharset[rand.Intn(len(numberCharset))]
	}
	return string(b)
}

// SplitAmount divides total between the partners by percentage shares.
// Partner B gets the floored share, partner A the remainder, so the two
// always sum exactly to total.
func SplitAmount(total domain.Money, partnerAShare, partnerBShare int) (a, b domain.Money) {
	b = total * domain.Money(partnerBShare) / 100
	a = total - b
	return a, b
}

// invoiceAmount derives the total from data.items: sum of price times
// quantity, prices in euros. Both "qty" and "quantity" keys are accepted.
func invoiceAmount(data map[string]any) domain.Money {
	items, ok := data["items"].([]any)
	if !ok {
		return 0
	}
	var total domain.Money
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		price, _ := item["price"].(float64)
		qty := 1.0
		if q, ok := item["qty"].(float64); ok && q > 0 {
			qty = q
		} else if q, ok := item["quantity"].(float64); ok && q > 0 {
			qty = q
		}
		total += domain.FromEuros(price * qty)
	}
	return total
}

func (s *BillingService) CreateInvoice(ctx context.Context, req *domain.InvoiceRequest, logoFilename string, logoContent []byte) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreateInvoice")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_invoice", time.Since(start)) }()

	if req.PartnerAShare+req.PartnerBShare != 100 {
		return nil, &domain.ErrValidation{
			Field:   "partner_a_share",
			Message: fmt.Sprintf("shares must sum to 100, got %d", req.PartnerAShare+req.PartnerBShare),
		}
	}
	if req.PartnerAShare < 0 || req.PartnerBShare < 0 {
		return nil, &domain.ErrValidation{Field: "partner_a_share", Message: "shares must be non-negative"}
	}
	if req.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "client_id", Message: "required"}
	}
	if req.TemplateID == "" {
		return nil, &domain.ErrValidation{Field: "template_id", Message: "required"}
	}

	if _, err := s.store.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetTemplate(ctx, req.TemplateID); err != nil {
		return nil, err
	}

	if req.Data == nil {
		req.Data = map[string]any{}
	}

	inv := &domain.Invoice{
		ID:            uuid.New().String(),
		Number:        newInvoiceNumber(),
		ClientID:      req.ClientID,
		TemplateID:    req.TemplateID,
		Data:          req.Data,
		PartnerAShare: req.PartnerAShare,
		PartnerBShare: req.PartnerBShare,
		Title:         req.Title,
		Description:   req.Description,
		Amount:        invoiceAmount(req.Data),
		Status:        domain.InvoiceDraft,
		CollectedBy:   domain.PartnerA,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if req.EventID != "" {
		eventID := req.EventID
		inv.EventID = &eventID
	}

	if len(logoContent) > 0 {
		path, err := s.files.SaveLogo(inv.Number, logoFilename, logoContent)
		if err != nil {
			return nil, err
		}
		inv.LogoPath = path
	}

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		s.logger.Error("failed to create invoice",
			zap.String("client_id", req.ClientID),
			zap.String("event_id", req.EventID),
			zap.Error(err),
		)
		return nil, err
	}

	s.flushStats()
	s.metrics.IncrInvoice("draft")
	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("number", inv.Number),
		zap.String("client_id", inv.ClientID),
		zap.Int64("amount_cents", int64(inv.Amount)),
	)
	return inv, nil
}

func (s *BillingService) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GetInvoice")
	defer span.End()

	return s.store.GetInvoice(ctx, id)
}

func (s *BillingService) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.ListInvoices")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown invoice status"}
	}
	return s.store.ListInvoices(ctx, filter)
}

// UpdateInvoice edits data, shares, title and description while the
// invoice is not paid.
func (s *BillingService) UpdateInvoice(ctx context.Context, id string, req *domain.InvoiceRequest, logoFilename string, logoContent []byte) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.UpdateInvoice")
	defer span.End()

	if req.PartnerAShare+req.PartnerBShare != 100 {
		return nil, &domain.ErrValidation{
			Field:   "partner_a_share",
			Message: fmt.Sprintf("shares must sum to 100, got %d", req.PartnerAShare+req.PartnerBShare),
		}
	}

	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Data != nil {
		inv.Data = req.Data
		inv.Amount = invoiceAmount(req.Data)
	}
	inv.PartnerAShare = req.PartnerAShare
	inv.PartnerBShare = req.PartnerBShare
	if req.Title != "" {
		inv.Title = req.Title
	}
	if req.Description != "" {
		inv.Description = req.Description
	}
	if len(logoContent) > 0 {
		path, err := s.files.SaveLogo(inv.Number, logoFilename, logoContent)
		if err != nil {
			return nil, err
		}
		inv.LogoPath = path
	}

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	s.flushStats()
	return inv, nil
}

func (s *BillingService) UpdateInvoiceStatus(ctx context.Context, id string, req *domain.InvoiceStatusRequest) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.UpdateInvoiceStatus")
	defer span.End()

	if !req.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown invoice status"}
	}

	paidDate := req.PaidDate
	collectedBy := req.CollectedBy
	if req.Status == domain.InvoicePaid {
		if paidDate == "" {
			paidDate = time.Now().UTC().Format(domain.DateLayout)
		} else if _, err := time.Parse(domain.DateLayout, paidDate); err != nil {
			return nil, &domain.ErrValidation{Field: "paid_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		if collectedBy == "" {
			collectedBy = domain.PartnerA
		}
		if !collectedBy.Valid() {
			return nil, &domain.ErrValidation{Field: "collected_by", Message: "must be 'a' or 'b'"}
		}
	}

	inv, err := s.store.UpdateInvoiceStatus(ctx, id, req.Status, paidDate, collectedBy)
	if err != nil {
		return nil, err
	}

	s.flushStats()
	s.metrics.IncrInvoice(string(req.Status))
	s.logger.Info("invoice status updated",
		zap.String("invoice_id", id),
		zap.String("status", string(req.Status)),
	)
	return inv, nil
}

func (s *BillingService) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := billingTracer.Start(ctx, "BillingService.DeleteInvoice")
	defer span.End()

	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.flushStats()
	s.logger.Info("invoice deleted", zap.String("invoice_id", id))
	return nil
}
