package port

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// LedgerStore defines data operations for expenses and settlements.
type LedgerStore interface {
	CreateExpense(ctx context.Context, e *domain.Expense) error
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, e *domain.Expense) error
	DeleteExpense(ctx context.Context, id string) error

	CreateSettlement(ctx context.Context, s *domain.Settlement) error
	GetSettlement(ctx context.Context, id string) (*domain.Settlement, error)
	ListSettlements(ctx context.Context) ([]domain.Settlement, error)

	// BalanceInputs reads everything the balance recomputation needs in one
	// transaction, so the result is a consistent snapshot.
	BalanceInputs(ctx context.Context) (*domain.BalanceInputs, error)
}
