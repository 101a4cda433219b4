package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lucafranzi/contabile/internal/domain"
)

// ============================================================
// Clients
// ============================================================

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	ctx, span := tracer.Start(ctx, "Store.CreateClient")
	defer span.End()

	c.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, address, cap, city, nation, email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Address, c.Cap, c.City, c.Nation, c.Email, c.CreatedAt)
	if err != nil {
		return storageErr("create client", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Store.GetClient")
	defer span.End()

	var c domain.Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, cap, city, nation, email, created_at
		 FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Address, &c.Cap, &c.City, &c.Nation, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	if err != nil {
		return nil, storageErr("get client", err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Store.ListClients")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, cap, city, nation, email, created_at FROM clients`)
	if err != nil {
		return nil, storageErr("list clients", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Cap, &c.City, &c.Nation, &c.Email, &c.CreatedAt); err != nil {
			return nil, storageErr("scan client", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c *domain.Client) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateClient")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, address = ?, cap = ?, city = ?, nation = ?, email = ?
		 WHERE id = ?`,
		c.Name, c.Address, c.Cap, c.City, c.Nation, c.Email, c.ID)
	if err != nil {
		return storageErr("update client", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "client", ID: c.ID}
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteClient")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete client", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return nil
}

// ============================================================
// Partners
// ============================================================

func (s *Store) GetPartner(ctx context.Context, id domain.PartnerID) (*domain.Partner, error) {
	ctx, span := tracer.Start(ctx, "Store.GetPartner")
	defer span.End()

	var p domain.Partner
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, iban, password_hash FROM partners WHERE id = ?`, string(id)).
		Scan(&p.ID, &p.Name, &p.Email, &p.IBAN, &p.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "partner", ID: string(id)}
	}
	if err != nil {
		return nil, storageErr("get partner", err)
	}
	return &p, nil
}

func (s *Store) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	ctx, span := tracer.Start(ctx, "Store.ListPartners")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, iban, password_hash FROM partners ORDER BY id`)
	if err != nil {
		return nil, storageErr("list partners", err)
	}
	defer rows.Close()

	partners := []domain.Partner{}
	for rows.Next() {
		var p domain.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.IBAN, &p.PasswordHash); err != nil {
			return nil, storageErr("scan partner", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (s *Store) UpdatePartner(ctx context.Context, p *domain.Partner) error {
	ctx, span := tracer.Start(ctx, "Store.UpdatePartner")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE partners SET name = ?, email = ?, iban = ?, password_hash = ? WHERE id = ?`,
		p.Name, p.Email, p.IBAN, p.PasswordHash, string(p.ID))
	if err != nil {
		return storageErr("update partner", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "partner", ID: string(p.ID)}
	}
	return nil
}

// ============================================================
// Bank details (singleton, seeded by migration)
// ============================================================

func (s *Store) GetBankDetails(ctx context.Context) (*domain.BankDetails, error) {
	ctx, span := tracer.Start(ctx, "Store.GetBankDetails")
	defer span.End()

	var b domain.BankDetails
	err := s.db.QueryRowContext(ctx,
		`SELECT iban, bank_name, bank_address, bic, creditor_name, creditor_address,
		        creditor_city, creditor_cap, creditor_nation
		 FROM bank_details WHERE id = 1`).
		Scan(&b.IBAN, &b.BankName, &b.BankAddress, &b.BIC, &b.CreditorName,
			&b.CreditorAddress, &b.CreditorCity, &b.CreditorCap, &b.CreditorNation)
	if err != nil {
		return nil, storageErr("get bank details", err)
	}
	return &b, nil
}

func (s *Store) UpdateBankDetails(ctx context.Context, b *domain.BankDetails) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateBankDetails")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`UPDATE bank_details SET iban = ?, bank_name = ?, bank_address = ?, bic = ?,
		        creditor_name = ?, creditor_address = ?, creditor_city = ?,
		        creditor_cap = ?, creditor_nation = ?
		 WHERE id = 1`,
		b.IBAN, b.BankName, b.BankAddress, b.BIC, b.CreditorName,
		b.CreditorAddress, b.CreditorCity, b.CreditorCap, b.CreditorNation)
	if err != nil {
		return storageErr("update bank details", err)
	}
	return nil
}
