package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lucafranzi/contabile/internal/domain"
)

const invoiceColumns = `id, number, client_id, template_id, event_id, data, logo_path,
	partner_a_share, partner_b_share, title, description, amount_cents, status,
	paid_date, collected_by, created_at`

// CreateInvoice inserts the invoice and, when a payment event is referenced,
// links it pending → invoiced in the same transaction. The guarded update
// makes exactly one of two concurrent linkers win.
func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Store.CreateInvoice")
	defer span.End()

	inv.CreatedAt = now()
	data, err := json.Marshal(inv.Data)
	if err != nil {
		return &domain.ErrValidation{Field: "data", Message: "not serializable"}
	}

	return s.withTx(ctx, "create invoice", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (id, number, client_id, template_id, event_id, data, logo_path,
			        partner_a_share, partner_b_share, title, description, amount_cents, status,
			        paid_date, collected_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			inv.ID, inv.Number, inv.ClientID, inv.TemplateID, nullable(inv.EventID), string(data),
			inv.LogoPath, inv.PartnerAShare, inv.PartnerBShare, inv.Title, inv.Description,
			int64(inv.Amount), string(inv.Status), string(inv.CollectedBy), inv.CreatedAt)
		if err != nil {
			return storageErr("create invoice", err)
		}

		if inv.EventID == nil {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE payment_events SET status = ?, invoice_id = ? WHERE id = ? AND status = ?`,
			string(domain.EventInvoiced), inv.ID, *inv.EventID, string(domain.EventPending))
		if err != nil {
			return storageErr("link event", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("link event", err)
		}
		if n == 0 {
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM payment_events WHERE id = ?`, *inv.EventID).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.ErrNotFound{Resource: "payment event", ID: *inv.EventID}
			}
			if err != nil {
				return storageErr("link event", err)
			}
			return &domain.ErrConflict{Message: fmt.Sprintf("payment event %s is already %s", *inv.EventID, status)}
		}
		return nil
	})
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.GetInvoice")
	defer span.End()

	inv, err := scanInvoice(s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	if err != nil {
		return nil, storageErr("get invoice", err)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.ListInvoices")
	defer span.End()

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
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
		return nil, storageErr("list invoices", err)
	}
	defer rows.Close()

	invoices := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, storageErr("scan invoice", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// UpdateInvoice rewrites the mutable fields. Paid invoices are immutable,
// enforced by the status guard.
func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateInvoice")
	defer span.End()

	data, err := json.Marshal(inv.Data)
	if err != nil {
		return &domain.ErrValidation{Field: "data", Message: "not serializable"}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET data = ?, logo_path = ?, partner_a_share = ?, partner_b_share = ?,
		        title = ?, description = ?, amount_cents = ?
		 WHERE id = ? AND status != ?`,
		string(data), inv.LogoPath, inv.PartnerAShare, inv.PartnerBShare,
		inv.Title, inv.Description, int64(inv.Amount), inv.ID, string(domain.InvoicePaid))
	if err != nil {
		return storageErr("update invoice", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetInvoice(ctx, inv.ID); err != nil {
			return err
		}
		return &domain.ErrConflict{Message: "paid invoices are immutable"}
	}
	return nil
}

// UpdateInvoiceStatus applies a lifecycle transition and propagates it to the
// linked payment event in the same transaction: paid marks the event paid,
// cancelled unlinks it back to pending so it can be re-invoiced. The
// lifecycle only moves forward; a sent invoice never returns to draft.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus, paidDate string, collectedBy domain.PartnerID) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateInvoiceStatus")
	defer span.End()

	var out *domain.Invoice
	err := s.withTx(ctx, "update invoice status", func(tx *sql.Tx) error {
		inv, err := scanInvoice(tx.QueryRowContext(ctx,
			`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "invoice", ID: id}
		}
		if err != nil {
			return storageErr("update invoice status", err)
		}

		if inv.Status == domain.InvoicePaid && status != domain.InvoiceCancelled {
			return &domain.ErrConflict{Message: "paid invoices only allow cancellation"}
		}
		if inv.Status == domain.InvoiceCancelled {
			return &domain.ErrConflict{Message: "invoice is cancelled"}
		}

		switch status {
		case domain.InvoicePaid:
			if _, err := tx.ExecContext(ctx,
				`UPDATE invoices SET status = ?, paid_date = ?, collected_by = ? WHERE id = ?`,
				string(status), paidDate, string(collectedBy), id); err != nil {
				return storageErr("update invoice status", err)
			}
			inv.Status = status
			inv.PaidDate = &paidDate
			inv.CollectedBy = collectedBy
			if inv.EventID != nil {
				if _, err := tx.ExecContext(ctx,
					`UPDATE payment_events SET status = ? WHERE id = ? AND invoice_id = ?`,
					string(domain.EventPaid), *inv.EventID, id); err != nil {
					return storageErr("propagate paid", err)
				}
			}

		case domain.InvoiceCancelled:
			if _, err := tx.ExecContext(ctx,
				`UPDATE invoices SET status = ?, paid_date = NULL WHERE id = ?`,
				string(status), id); err != nil {
				return storageErr("update invoice status", err)
			}
			inv.Status = status
			inv.PaidDate = nil
			if inv.EventID != nil {
				if _, err := tx.ExecContext(ctx,
					`UPDATE payment_events SET status = ?, invoice_id = NULL WHERE id = ? AND invoice_id = ?`,
					string(domain.EventPending), *inv.EventID, id); err != nil {
					return storageErr("unlink event", err)
				}
			}

		default: // draft, sent
			if inv.Status == domain.InvoiceSent && status == domain.InvoiceDraft {
				return &domain.ErrConflict{Message: "sent invoices cannot return to draft"}
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE invoices SET status = ? WHERE id = ?`, string(status), id); err != nil {
				return storageErr("update invoice status", err)
			}
			inv.Status = status
		}

		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteInvoice removes a non-paid invoice and reverts its linked event to
// pending in the same transaction.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteInvoice")
	defer span.End()

	return s.withTx(ctx, "delete invoice", func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM invoices WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "invoice", ID: id}
		}
		if err != nil {
			return storageErr("delete invoice", err)
		}
		if status == string(domain.InvoicePaid) {
			return &domain.ErrConflict{Message: "paid invoices cannot be deleted"}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_events SET status = ?, invoice_id = NULL WHERE invoice_id = ?`,
			string(domain.EventPending), id); err != nil {
			return storageErr("unlink event", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
			return storageErr("delete invoice", err)
		}
		return nil
	})
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var amount int64
	var status, collectedBy, data string
	var eventID, paidDate sql.NullString
	if err := row.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.TemplateID, &eventID,
		&data, &inv.LogoPath, &inv.PartnerAShare, &inv.PartnerBShare, &inv.Title,
		&inv.Description, &amount, &status, &paidDate, &collectedBy, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Amount = domain.Money(amount)
	inv.Status = domain.InvoiceStatus(status)
	inv.CollectedBy = domain.PartnerID(collectedBy)
	if eventID.Valid {
		inv.EventID = &eventID.String
	}
	if paidDate.Valid {
		inv.PaidDate = &paidDate.String
	}
	if err := json.Unmarshal([]byte(data), &inv.Data); err != nil {
		inv.Data = map[string]any{}
	}
	return &inv, nil
}
