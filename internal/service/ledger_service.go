package service

import (
	"context"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService records shared expenses and inter-partner settlements and
// recomputes the partner balance from the logs on every read.
type LedgerService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewLedgerService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, metrics: metrics, logger: logger}
}

// ============================================================
// Expenses
// ============================================================

func (s *LedgerService) CreateExpense(ctx context.Context, req *domain.ExpenseRequest) (*domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateExpense")
	defer span.End()

	if err := validateExpense(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.ExpensePending
	}

	exp := &domain.Expense{
		ID:        uuid.New().String(),
		Amount:    req.Amount,
		Category:  req.Category,
		Type:      req.Type,
		Payer:     req.Payer,
		Date:      req.Date,
		Status:    status,
		Note:      req.Note,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateExpense(ctx, exp); err != nil {
		s.logger.Error("failed to create expense", zap.String("payer", string(req.Payer)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("expense created",
		zap.String("expense_id", exp.ID),
		zap.String("payer", string(exp.Payer)),
		zap.String("category", string(exp.Category)),
		zap.Int64("amount_cents", int64(exp.Amount)),
	)
	return exp, nil
}

func validateExpense(req *domain.ExpenseRequest) error {
	if req.Amount <= 0 {
		return &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
	}
	if !req.Category.Valid() {
		return &domain.ErrValidation{Field: "category", Message: "unknown expense category"}
	}
	if !req.Type.Valid() {
		return &domain.ErrValidation{Field: "expense_type", Message: "unknown expense type"}
	}
	if !req.Payer.Valid() {
		return &domain.ErrValidation{Field: "payer", Message: "must be 'a' or 'b'"}
	}
	if _, err := time.Parse(domain.DateLayout, req.Date); err != nil {
		return &domain.ErrValidation{Field: "date", Message: "invalid format, use YYYY-MM-DD"}
	}
	if req.Status != "" && !req.Status.Valid() {
		return &domain.ErrValidation{Field: "status", Message: "unknown expense status"}
	}
	return nil
}

func (s *LedgerService) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetExpense")
	defer span.End()

	return s.store.GetExpense(ctx, id)
}

func (s *LedgerService) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListExpenses")
	defer span.End()

	if filter.Category != "" && !filter.Category.Valid() {
		return nil, &domain.ErrValidation{Field: "category", Message: "unknown expense category"}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "expense_type", Message: "unknown expense type"}
	}
	return s.store.ListExpenses(ctx, filter)
}

func (s *LedgerService) UpdateExpense(ctx context.Context, id string, req *domain.ExpenseRequest) (*domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateExpense")
	defer span.End()

	if err := validateExpense(req); err != nil {
		return nil, err
	}

	exp, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	exp.Amount = req.Amount
	exp.Category = req.Category
	exp.Type = req.Type
	exp.Payer = req.Payer
	exp.Date = req.Date
	if req.Status != "" {
		exp.Status = req.Status
	}
	exp.Note = req.Note

	if err := s.store.UpdateExpense(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteExpense")
	defer span.End()

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logger.Info("expense deleted", zap.String("expense_id", id))
	return nil
}

// ============================================================
// Settlements
// ============================================================

// CreateSettlement records an inter-partner transfer. Settlements are
// immutable; a correction is a new offsetting settlement.
func (s *LedgerService) CreateSettlement(ctx context.Context, req *domain.SettlementRequest) (*domain.Settlement, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateSettlement")
	defer span.End()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount_cents", Message: "must be positive"}
	}
	if !req.From.Valid() || !req.To.Valid() {
		return nil, &domain.ErrValidation{Field: "from", Message: "partners must be 'a' or 'b'"}
	}
	if req.From == req.To {
		return nil, &domain.ErrValidation{Field: "to", Message: "cannot settle with yourself"}
	}
	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "invalid format, use YYYY-MM-DD"}
	}

	settlement := &domain.Settlement{
		ID:        uuid.New().String(),
		Amount:    req.Amount,
		From:      req.From,
		To:        req.To,
		Date:      date,
		Note:      req.Note,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		s.logger.Error("failed to create settlement", zap.Error(err))
		return nil, err
	}

	s.logger.Info("settlement recorded",
		zap.String("settlement_id", settlement.ID),
		zap.String("from", string(settlement.From)),
		zap.String("to", string(settlement.To)),
		zap.Int64("amount_cents", int64(settlement.Amount)),
	)
	return settlement, nil
}

func (s *LedgerService) GetSettlement(ctx context.Context, id string) (*domain.Settlement, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetSettlement")
	defer span.End()

	return s.store.GetSettlement(ctx, id)
}

func (s *LedgerService) ListSettlements(ctx context.Context) ([]domain.Settlement, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListSettlements")
	defer span.End()

	return s.store.ListSettlements(ctx)
}

// ============================================================
// Balance
// ============================================================

// GetBalance recomputes the partner balance from the expense, paid-invoice
// and settlement logs. There is no cached running total; the store reads
// all three inside one transaction so the snapshot is consistent.
func (s *LedgerService) GetBalance(ctx context.Context) (*domain.PartnerBalance, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetBalance")
	defer span.End()

	inputs, err := s.store.BalanceInputs(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeBalance(inputs), nil
}

// ComputeBalance derives the minimum transfer that equalizes the partners.
//
// Expenses are shared 50/50 regardless of who paid, so the expense leg of
// what A owes B is (B's outlay - A's outlay) / 2. Revenue splits are
// per-invoice: when A collects a paid invoice, A is holding B's share and
// owes it over, and vice versa. Prior settlements from A to B reduce the
// total. A positive AmountOwed means partner A owes partner B.
func ComputeBalance(in *domain.BalanceInputs) *domain.PartnerBalance {
	expA := in.ExpensesByPayer[domain.PartnerA]
	expB := in.ExpensesByPayer[domain.PartnerB]

	var revA, revB domain.Money
	var owedAtoB domain.Money

	owedAtoB = (expB - expA) / 2

	for _, inv := range in.PaidInvoices {
		a, b := SplitAmount(inv.Amount, inv.PartnerAShare, inv.PartnerBShare)
		revA += a
		revB += b
		switch inv.CollectedBy {
		case domain.PartnerA:
			owedAtoB += b
		case domain.PartnerB:
			owedAtoB -= a
		}
	}

	var settledNet domain.Money
	for _, st := range in.Settlements {
		if st.From == domain.PartnerA {
			settledNet += st.Amount
		} else {
			settledNet -= st.Amount
		}
	}
	owedAtoB -= settledNet

	balance := &domain.PartnerBalance{
		PartnerAExpenses: expA,
		PartnerBExpenses: expB,
		PartnerARevenue:  revA,
		PartnerBRevenue:  revB,
		SettledNet:       settledNet,
		AmountOwed:       owedAtoB,
		FromPartner:      domain.PartnerA,
		ToPartner:        domain.PartnerB,
	}
	if owedAtoB < 0 {
		balance.AmountOwed = -owedAtoB
		balance.FromPartner = domain.PartnerB
		balance.ToPartner = domain.PartnerA
	}
	return balance
}
