package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"

	"go.uber.org/zap"
)

// mockRegistryStore backs registry and auth tests.
type mockRegistryStore struct {
	clients  map[string]*domain.Client
	partners map[domain.PartnerID]*domain.Partner
	bank     domain.BankDetails
}

func newMockRegistryStore() *mockRegistryStore {
	return &mockRegistryStore{
		clients: map[string]*domain.Client{},
		partners: map[domain.PartnerID]*domain.Partner{
			domain.PartnerA: {ID: domain.PartnerA, Name: "Partner A"},
			domain.PartnerB: {ID: domain.PartnerB, Name: "Partner B"},
		},
	}
}

func (m *mockRegistryStore) CreateClient(ctx context.Context, c *domain.Client) error {
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *mockRegistryStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *mockRegistryStore) ListClients(ctx context.Context) ([]domain.Client, error) {
	var out []domain.Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRegistryStore) UpdateClient(ctx context.Context, c *domain.Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return &domain.ErrNotFound{Resource: "client", ID: c.ID}
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *mockRegistryStore) DeleteClient(ctx context.Context, id string) error {
	if _, ok := m.clients[id]; !ok {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	delete(m.clients, id)
	return nil
}

func (m *mockRegistryStore) GetPartner(ctx context.Context, id domain.PartnerID) (*domain.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "partner", ID: string(id)}
	}
	cp := *p
	return &cp, nil
}

func (m *mockRegistryStore) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	return []domain.Partner{*m.partners[domain.PartnerA], *m.partners[domain.PartnerB]}, nil
}

func (m *mockRegistryStore) UpdatePartner(ctx context.Context, p *domain.Partner) error {
	if _, ok := m.partners[p.ID]; !ok {
		return &domain.ErrNotFound{Resource: "partner", ID: string(p.ID)}
	}
	cp := *p
	m.partners[p.ID] = &cp
	return nil
}

func (m *mockRegistryStore) GetBankDetails(ctx context.Context) (*domain.BankDetails, error) {
	cp := m.bank
	return &cp, nil
}

func (m *mockRegistryStore) UpdateBankDetails(ctx context.Context, b *domain.BankDetails) error {
	m.bank = *b
	return nil
}

func setPartnerPassword(t *testing.T, store *mockRegistryStore, id domain.PartnerID, password string) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store.partners[id].PasswordHash = hash
}

func TestLogin_RoundTrip(t *testing.T) {
	store := newMockRegistryStore()
	setPartnerPassword(t, store, domain.PartnerA, "correct-horse-battery")
	svc := NewAuthService(store, "test-secret", time.Hour, zap.NewNop())

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Partner:  domain.PartnerA,
		Password: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	partner, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if partner != domain.PartnerA {
		t.Errorf("token subject = %s, want a", partner)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockRegistryStore()
	setPartnerPassword(t, store, domain.PartnerA, "correct-horse-battery")
	svc := NewAuthService(store, "test-secret", time.Hour, zap.NewNop())

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Partner:  domain.PartnerA,
		Password: "wrong",
	})
	var uerr *domain.ErrUnauthorized
	if !errors.As(err, &uerr) {
		t.Errorf("got %v, want unauthorized", err)
	}
}

func TestLogin_NoPasswordSet(t *testing.T) {
	store := newMockRegistryStore()
	svc := NewAuthService(store, "test-secret", time.Hour, zap.NewNop())

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Partner:  domain.PartnerB,
		Password: "anything",
	})
	var uerr *domain.ErrUnauthorized
	if !errors.As(err, &uerr) {
		t.Errorf("got %v, want unauthorized", err)
	}
}

func TestLogin_DisabledWithoutSecret(t *testing.T) {
	svc := NewAuthService(newMockRegistryStore(), "", time.Hour, zap.NewNop())

	if svc.Enabled() {
		t.Error("service should be disabled with an empty secret")
	}
	_, err := svc.Login(context.Background(), &domain.LoginRequest{Partner: domain.PartnerA, Password: "x"})
	var cerr *domain.ErrConflict
	if !errors.As(err, &cerr) {
		t.Errorf("got %v, want conflict", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := NewAuthService(newMockRegistryStore(), "test-secret", time.Hour, zap.NewNop())

	_, err := svc.ValidateAccessToken("not.a.token")
	var uerr *domain.ErrUnauthorized
	if !errors.As(err, &uerr) {
		t.Errorf("got %v, want unauthorized", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	store := newMockRegistryStore()
	setPartnerPassword(t, store, domain.PartnerA, "correct-horse-battery")
	svc := NewAuthService(store, "test-secret", -time.Minute, zap.NewNop())

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Partner:  domain.PartnerA,
		Password: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.ValidateAccessToken(resp.AccessToken); err == nil {
		t.Error("expired token accepted")
	}
}

func TestUpdatePartner_HashesPassword(t *testing.T) {
	store := newMockRegistryStore()
	svc := NewRegistryService(store, nil, zap.NewNop())

	updated, err := svc.UpdatePartner(context.Background(), domain.PartnerA, &domain.PartnerRequest{
		Name:     "Luca",
		Password: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("UpdatePartner: %v", err)
	}
	if updated.Name != "Luca" {
		t.Errorf("name = %s, want Luca", updated.Name)
	}
	stored := store.partners[domain.PartnerA]
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse-battery" {
		t.Error("password not hashed")
	}
}

func TestUpdatePartner_ShortPasswordRejected(t *testing.T) {
	svc := NewRegistryService(newMockRegistryStore(), nil, zap.NewNop())

	_, err := svc.UpdatePartner(context.Background(), domain.PartnerA, &domain.PartnerRequest{Password: "short"})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("got %v, want validation error", err)
	}
}
