package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lucafranzi/contabile/internal/domain"
)

// ============================================================
// Recurring fees
// ============================================================

func (s *Store) CreateFee(ctx context.Context, fee *domain.RecurringFee) error {
	ctx, span := tracer.Start(ctx, "Store.CreateFee")
	defer span.End()

	fee.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_fees (id, client_id, amount_cents, interval, start_date, description, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fee.ID, fee.ClientID, int64(fee.Amount), string(fee.Interval),
		fee.StartDate, fee.Description, fee.Active, fee.CreatedAt)
	if err != nil {
		return storageErr("create fee", err)
	}
	return nil
}

func (s *Store) GetFee(ctx context.Context, id string) (*domain.RecurringFee, error) {
	ctx, span := tracer.Start(ctx, "Store.GetFee")
	defer span.End()

	fee, err := scanFee(s.db.QueryRowContext(ctx,
		`SELECT id, client_id, amount_cents, interval, start_date, description, active, created_at
		 FROM recurring_fees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "recurring fee", ID: id}
	}
	if err != nil {
		return nil, storageErr("get fee", err)
	}
	return fee, nil
}

func (s *Store) ListFees(ctx context.Context, clientID string, activeOnly bool) ([]domain.RecurringFee, error) {
	ctx, span := tracer.Start(ctx, "Store.ListFees")
	defer span.End()

	query := `SELECT id, client_id, amount_cents, interval, start_date, description, active, created_at
	          FROM recurring_fees WHERE 1=1`
	args := []any{}
	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	if activeOnly {
		query += ` AND active = 1`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list fees", err)
	}
	defer rows.Close()

	fees := []domain.RecurringFee{}
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, storageErr("scan fee", err)
		}
		fees = append(fees, *fee)
	}
	return fees, rows.Err()
}

func (s *Store) UpdateFee(ctx context.Context, fee *domain.RecurringFee) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateFee")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE recurring_fees SET amount_cents = ?, interval = ?, start_date = ?, description = ?, active = ?
		 WHERE id = ?`,
		int64(fee.Amount), string(fee.Interval), fee.StartDate, fee.Description, fee.Active, fee.ID)
	if err != nil {
		return storageErr("update fee", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "recurring fee", ID: fee.ID}
	}
	return nil
}

// DeactivateFee soft-deletes: history stays, generation skips the fee.
func (s *Store) DeactivateFee(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeactivateFee")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE recurring_fees SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return storageErr("deactivate fee", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "recurring fee", ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFee(row rowScanner) (*domain.RecurringFee, error) {
	var fee domain.RecurringFee
	var amount int64
	var interval string
	if err := row.Scan(&fee.ID, &fee.ClientID, &amount, &interval,
		&fee.StartDate, &fee.Description, &fee.Active, &fee.CreatedAt); err != nil {
		return nil, err
	}
	fee.Amount = domain.Money(amount)
	fee.Interval = domain.Interval(interval)
	return &fee, nil
}

// ============================================================
// Payment events
// ============================================================

const eventColumns = `id, client_id, fee_id, invoice_id, amount_cents, due_date,
	occurrence_date, status, description, created_at`

func (s *Store) CreateEvent(ctx context.Context, ev *domain.PaymentEvent) error {
	ctx, span := tracer.Start(ctx, "Store.CreateEvent")
	defer span.End()

	ev.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_events (id, client_id, fee_id, invoice_id, amount_cents, due_date, occurrence_date, status, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ClientID, nullable(ev.FeeID), nullable(ev.InvoiceID), int64(ev.Amount),
		ev.DueDate, nullable(ev.OccurrenceDate), string(ev.Status), ev.Description, ev.CreatedAt)
	if err != nil {
		return storageErr("create event", err)
	}
	return nil
}

// CreateOccurrenceEvent inserts a generated event, relying on the unique
// (fee_id, occurrence_date) index for idempotency. Returns false when the
// occurrence was already materialized by an earlier or concurrent call.
func (s *Store) CreateOccurrenceEvent(ctx context.Context, ev *domain.PaymentEvent) (bool, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateOccurrenceEvent")
	defer span.End()

	ev.CreatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_events (id, client_id, fee_id, invoice_id, amount_cents, due_date, occurrence_date, status, description, created_at)
		 VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fee_id, occurrence_date) WHERE fee_id IS NOT NULL AND occurrence_date IS NOT NULL DO NOTHING`,
		ev.ID, ev.ClientID, nullable(ev.FeeID), int64(ev.Amount),
		ev.DueDate, nullable(ev.OccurrenceDate), string(ev.Status), ev.Description, ev.CreatedAt)
	if err != nil {
		return false, storageErr("create occurrence event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("create occurrence event", err)
	}
	return n > 0, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*domain.PaymentEvent, error) {
	ctx, span := tracer.Start(ctx, "Store.GetEvent")
	defer span.End()

	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM payment_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "payment event", ID: id}
	}
	if err != nil {
		return nil, storageErr("get event", err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.PaymentEvent, error) {
	ctx, span := tracer.Start(ctx, "Store.ListEvents")
	defer span.End()

	query := `SELECT ` + eventColumns + ` FROM payment_events WHERE 1=1`
	args := []any{}
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	defer rows.Close()

	events := []domain.PaymentEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, storageErr("scan event", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, ev *domain.PaymentEvent) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateEvent")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_events SET amount_cents = ?, due_date = ?, description = ? WHERE id = ?`,
		int64(ev.Amount), ev.DueDate, ev.Description, ev.ID)
	if err != nil {
		return storageErr("update event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "payment event", ID: ev.ID}
	}
	return nil
}

// DeleteEvent removes an event, but only while it is in a state with no
// invoice traceability to preserve.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteEvent")
	defer span.End()

	return s.withTx(ctx, "delete event", func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM payment_events WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "payment event", ID: id}
		}
		if err != nil {
			return storageErr("delete event", err)
		}
		if status != string(domain.EventPending) && status != string(domain.EventCancelled) {
			return &domain.ErrConflict{Message: fmt.Sprintf("cannot delete payment event in status '%s'", status)}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM payment_events WHERE id = ?`, id); err != nil {
			return storageErr("delete event", err)
		}
		return nil
	})
}

// CancelEvent is a guarded pending → cancelled flip; it loses to any
// concurrent invoicing of the same event.
func (s *Store) CancelEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.CancelEvent")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_events SET status = ? WHERE id = ? AND status = ?`,
		string(domain.EventCancelled), id, string(domain.EventPending))
	if err != nil {
		return storageErr("cancel event", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetEvent(ctx, id); err != nil {
			return err
		}
		return &domain.ErrConflict{Message: "payment event is not pending; cancel its invoice first"}
	}
	return nil
}

func scanEvent(row rowScanner) (*domain.PaymentEvent, error) {
	var ev domain.PaymentEvent
	var amount int64
	var status string
	var feeID, invoiceID, occurrence sql.NullString
	if err := row.Scan(&ev.ID, &ev.ClientID, &feeID, &invoiceID, &amount,
		&ev.DueDate, &occurrence, &status, &ev.Description, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Amount = domain.Money(amount)
	ev.Status = domain.EventStatus(status)
	if feeID.Valid {
		ev.FeeID = &feeID.String
	}
	if invoiceID.Valid {
		ev.InvoiceID = &invoiceID.String
	}
	if occurrence.Valid {
		ev.OccurrenceDate = &occurrence.String
	}
	return &ev, nil
}
