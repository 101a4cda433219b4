package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/cache"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// DashboardService computes read-only rollups over the billing ledgers.
// Results are cached for the configured TTL; every mutation path leaves
// the ledgers authoritative, so a stale rollup only ever lags, never lies.
type DashboardService struct {
	store      port.BillingStore
	statsCache *cache.InMemory[*domain.DashboardStats]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewDashboardService(store port.BillingStore, statsCache *cache.InMemory[*domain.DashboardStats], metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{store: store, statsCache: statsCache, metrics: metrics, logger: logger}
}

// periodStart returns the UTC start of the current calendar bucket, or the
// zero time for "all".
func periodStart(p domain.Period, now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case domain.PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case domain.PeriodQuarter:
		quarterFirst := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), quarterFirst, 1, 0, 0, 0, 0, time.UTC)
	case domain.PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// inPeriod reports whether an invoice belongs to the bucket: paid invoices
// bucket on paid_date, everything else on created_at.
func inPeriod(inv *domain.Invoice, start time.Time) bool {
	if start.IsZero() {
		return true
	}
	ref := inv.CreatedAt
	if inv.Status == domain.InvoicePaid && inv.PaidDate != nil {
		ref = *inv.PaidDate
	}
	t, err := parseDateOrTimestamp(ref)
	if err != nil {
		return false
	}
	return !t.Before(start)
}

func parseDateOrTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// GetStats aggregates invoice totals for the period. Cached per period.
func (s *DashboardService) GetStats(ctx context.Context, period domain.Period) (*domain.DashboardStats, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetStats")
	defer span.End()
	span.SetAttributes(attribute.String("period", string(period)))

	if period == "" {
		period = domain.PeriodAll
	}
	if !period.Valid() {
		return nil, &domain.ErrValidation{Field: "period", Message: "must be all, month, quarter or year"}
	}

	cacheKey := fmt.Sprintf("stats:%s", period)
	if cached, ok := s.statsCache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("dashboard")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("dashboard")

	invoices, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{})
	if err != nil {
		return nil, err
	}

	start := periodStart(period, time.Now())
	stats := &domain.DashboardStats{
		Period:        period,
		CountByStatus: map[string]int{},
	}
	for i := range invoices {
		inv := &invoices[i]
		if !inPeriod(inv, start) {
			continue
		}
		stats.InvoiceCount++
		stats.CountByStatus[string(inv.Status)]++
		switch inv.Status {
		case domain.InvoiceCancelled:
			// excluded from totals
		case domain.InvoicePaid:
			stats.TotalInvoiced += inv.Amount
			stats.TotalPaid += inv.Amount
		default:
			stats.TotalInvoiced += inv.Amount
			stats.TotalOutstanding += inv.Amount
		}
	}

	s.statsCache.Set(cacheKey, stats)
	return stats, nil
}

// GetRenewals lists active fees whose next occurrence falls within days
// from now, soonest first is not guaranteed; callers sort if they care.
func (s *DashboardService) GetRenewals(ctx context.Context, days int) ([]domain.Renewal, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetRenewals")
	defer span.End()

	if days <= 0 {
		days = 30
	}

	fees, err := s.store.ListFees(ctx, "", true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	horizon := now.AddDate(0, 0, days)

	renewals := make([]domain.Renewal, 0)
	for i := range fees {
		fee := &fees[i]
		next := NextOccurrence(fee, now)
		if next == "" {
			continue
		}
		nextDate, err := time.Parse(domain.DateLayout, next)
		if err != nil || nextDate.After(horizon) {
			continue
		}
		clientName := ""
		if client, err := s.store.GetClient(ctx, fee.ClientID); err == nil {
			clientName = client.Name
		}
		renewals = append(renewals, domain.Renewal{
			Fee:        *fee,
			ClientName: clientName,
			NextDate:   next,
			DaysUntil:  int(nextDate.Sub(now).Hours() / 24),
		})
	}
	return renewals, nil
}

// GetOutstanding lists non-paid, non-cancelled invoices past their due
// reference: the linked event's due date, or the creation date for
// invoices with no event.
func (s *DashboardService) GetOutstanding(ctx context.Context) ([]domain.OutstandingInvoice, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetOutstanding")
	defer span.End()

	invoices, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	outstanding := make([]domain.OutstandingInvoice, 0)
	for i := range invoices {
		inv := &invoices[i]
		if inv.Status == domain.InvoicePaid || inv.Status == domain.InvoiceCancelled {
			continue
		}
		due := inv.CreatedAt
		if inv.EventID != nil {
			if ev, err := s.store.GetEvent(ctx, *inv.EventID); err == nil {
				due = ev.DueDate
			}
		}
		dueDate, err := parseDateOrTimestamp(due)
		if err != nil || dueDate.After(now) {
			continue
		}
		outstanding = append(outstanding, domain.OutstandingInvoice{
			Invoice:     *inv,
			DueDate:     dueDate.Format(domain.DateLayout),
			DaysOverdue: int(now.Sub(dueDate).Hours() / 24),
		})
	}
	return outstanding, nil
}

// GetPartnerEarnings applies the revenue splitter over paid invoices in
// the period.
func (s *DashboardService) GetPartnerEarnings(ctx context.Context, period domain.Period) (*domain.PartnerEarnings, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetPartnerEarnings")
	defer span.End()

	if period == "" {
		period = domain.PeriodAll
	}
	if !period.Valid() {
		return nil, &domain.ErrValidation{Field: "period", Message: "must be all, month, quarter or year"}
	}

	invoices, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoicePaid})
	if err != nil {
		return nil, err
	}

	start := periodStart(period, time.Now())
	earnings := &domain.PartnerEarnings{Period: period}
	for i := range invoices {
		inv := &invoices[i]
		if !inPeriod(inv, start) {
			continue
		}
		a, b := SplitAmount(inv.Amount, inv.PartnerAShare, inv.PartnerBShare)
		earnings.PartnerA += a
		earnings.PartnerB += b
		earnings.Total += inv.Amount
		earnings.InvoiceCount++
	}
	return earnings, nil
}

// Overview bundles the four rollups, computed concurrently.
type Overview struct {
	Stats       *domain.DashboardStats      `json:"stats"`
	Renewals    []domain.Renewal            `json:"renewals"`
	Outstanding []domain.OutstandingInvoice `json:"outstanding"`
	Earnings    *domain.PartnerEarnings     `json:"partner_earnings"`
}

// GetOverview runs the four aggregations in parallel. Any failure fails
// the whole overview; individual endpoints stay available for retries.
func (s *DashboardService) GetOverview(ctx context.Context, period domain.Period, renewalDays int) (*Overview, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetOverview")
	defer span.End()

	var overview Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.GetStats(ctx, period)
		if err != nil {
			return err
		}
		overview.Stats = stats
		return nil
	})
	g.Go(func() error {
		renewals, err := s.GetRenewals(ctx, renewalDays)
		if err != nil {
			return err
		}
		overview.Renewals = renewals
		return nil
	})
	g.Go(func() error {
		outstanding, err := s.GetOutstanding(ctx)
		if err != nil {
			return err
		}
		overview.Outstanding = outstanding
		return nil
	})
	g.Go(func() error {
		earnings, err := s.GetPartnerEarnings(ctx, period)
		if err != nil {
			return err
		}
		overview.Earnings = earnings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}
