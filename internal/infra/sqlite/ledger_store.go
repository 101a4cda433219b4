package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lucafranzi/contabile/internal/domain"
)

// ============================================================
// Expenses
// ============================================================

const expenseColumns = `id, amount_cents, category, expense_type, payer, date, status, note, created_at`

func (s *Store) CreateExpense(ctx context.Context, e *domain.Expense) error {
	ctx, span := tracer.Start(ctx, "Store.CreateExpense")
	defer span.End()

	e.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, amount_cents, category, expense_type, payer, date, status, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.Amount), string(e.Category), string(e.Type), string(e.Payer),
		e.Date, string(e.Status), e.Note, e.CreatedAt)
	if err != nil {
		return storageErr("create expense", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Store.GetExpense")
	defer span.End()

	e, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	if err != nil {
		return nil, storageErr("get expense", err)
	}
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Store.ListExpenses")
	defer span.End()

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE 1=1`
	args := []any{}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.Type != "" {
		query += ` AND expense_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DateFrom != "" {
		query += ` AND date >= ?`
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += ` AND date <= ?`
		args = append(args, filter.DateTo)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list expenses", err)
	}
	defer rows.Close()

	expenses := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storageErr("scan expense", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *Store) UpdateExpense(ctx context.Context, e *domain.Expense) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateExpense")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET amount_cents = ?, category = ?, expense_type = ?, payer = ?,
		        date = ?, status = ?, note = ?
		 WHERE id = ?`,
		int64(e.Amount), string(e.Category), string(e.Type), string(e.Payer),
		e.Date, string(e.Status), e.Note, e.ID)
	if err != nil {
		return storageErr("update expense", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: e.ID}
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteExpense")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete expense", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return nil
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var e domain.Expense
	var amount int64
	var category, etype, payer, status string
	if err := row.Scan(&e.ID, &amount, &category, &etype, &payer,
		&e.Date, &status, &e.Note, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Amount = domain.Money(amount)
	e.Category = domain.ExpenseCategory(category)
	e.Type = domain.ExpenseType(etype)
	e.Payer = domain.PartnerID(payer)
	e.Status = domain.ExpenseStatus(status)
	return &e, nil
}

// ============================================================
// Settlements
// ============================================================

const settlementColumns = `id, amount_cents, from_partner, to_partner, date, note, created_at`

func (s *Store) CreateSettlement(ctx context.Context, st *domain.Settlement) error {
	ctx, span := tracer.Start(ctx, "Store.CreateSettlement")
	defer span.End()

	st.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, amount_cents, from_partner, to_partner, date, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, int64(st.Amount), string(st.From), string(st.To), st.Date, st.Note, st.CreatedAt)
	if err != nil {
		return storageErr("create settlement", err)
	}
	return nil
}

func (s *Store) GetSettlement(ctx context.Context, id string) (*domain.Settlement, error) {
	ctx, span := tracer.Start(ctx, "Store.GetSettlement")
	defer span.End()

	st, err := scanSettlement(s.db.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "settlement", ID: id}
	}
	if err != nil {
		return nil, storageErr("get settlement", err)
	}
	return st, nil
}

func (s *Store) ListSettlements(ctx context.Context) ([]domain.Settlement, error) {
	ctx, span := tracer.Start(ctx, "Store.ListSettlements")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+settlementColumns+` FROM settlements`)
	if err != nil {
		return nil, storageErr("list settlements", err)
	}
	defer rows.Close()

	settlements := []domain.Settlement{}
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, storageErr("scan settlement", err)
		}
		settlements = append(settlements, *st)
	}
	return settlements, rows.Err()
}

func scanSettlement(row rowScanner) (*domain.Settlement, error) {
	var st domain.Settlement
	var amount int64
	var from, to string
	if err := row.Scan(&st.ID, &amount, &from, &to, &st.Date, &st.Note, &st.CreatedAt); err != nil {
		return nil, err
	}
	st.Amount = domain.Money(amount)
	st.From = domain.PartnerID(from)
	st.To = domain.PartnerID(to)
	return &st, nil
}

// ============================================================
// Balance snapshot
// ============================================================

// BalanceInputs reads expense totals, paid-invoice shares and settlements in
// one transaction so the balance recomputation sees a consistent snapshot.
func (s *Store) BalanceInputs(ctx context.Context) (*domain.BalanceInputs, error) {
	ctx, span := tracer.Start(ctx, "Store.BalanceInputs")
	defer span.End()

	inputs := &domain.BalanceInputs{
		ExpensesByPayer: map[domain.PartnerID]domain.Money{},
	}

	err := s.withTx(ctx, "balance inputs", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT payer, COALESCE(SUM(amount_cents), 0) FROM expenses GROUP BY payer`)
		if err != nil {
			return storageErr("sum expenses", err)
		}
		for rows.Next() {
			var payer string
			var total int64
			if err := rows.Scan(&payer, &total); err != nil {
				rows.Close()
				return storageErr("scan expense sum", err)
			}
			inputs.ExpensesByPayer[domain.PartnerID(payer)] = domain.Money(total)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storageErr("sum expenses", err)
		}

		rows, err = tx.QueryContext(ctx,
			`SELECT amount_cents, partner_a_share, partner_b_share, collected_by
			 FROM invoices WHERE status = ?`, string(domain.InvoicePaid))
		if err != nil {
			return storageErr("paid invoices", err)
		}
		for rows.Next() {
			var share domain.PaidInvoiceShare
			var amount int64
			var collectedBy string
			if err := rows.Scan(&amount, &share.PartnerAShare, &share.PartnerBShare, &collectedBy); err != nil {
				rows.Close()
				return storageErr("scan paid invoice", err)
			}
			share.Amount = domain.Money(amount)
			share.CollectedBy = domain.PartnerID(collectedBy)
			inputs.PaidInvoices = append(inputs.PaidInvoices, share)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storageErr("paid invoices", err)
		}

		rows, err = tx.QueryContext(ctx, `SELECT `+settlementColumns+` FROM settlements`)
		if err != nil {
			return storageErr("settlements", err)
		}
		for rows.Next() {
			st, err := scanSettlement(rows)
			if err != nil {
				rows.Close()
				return storageErr("scan settlement", err)
			}
			inputs.Settlements = append(inputs.Settlements, *st)
		}
		rows.Close()
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return inputs, nil
}
