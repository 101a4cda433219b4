// Package service provides the business logic layer (use cases).
// Each service wraps a store interface, validates input, and enforces
// the billing state machine before anything touches sqlite.
package service

import (
	"context"
	"net/mail"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var registryTracer = otel.Tracer("service/registry")

// RegistryService manages clients, partner profiles and bank details.
type RegistryService struct {
	store   port.RegistryStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewRegistryService(store port.RegistryStore, metrics *observability.Metrics, logger *zap.Logger) *RegistryService {
	return &RegistryService{store: store, metrics: metrics, logger: logger}
}

// ============================================================
// Clients
// ============================================================

func (s *RegistryService) CreateClient(ctx context.Context, req *domain.ClientRequest) (*domain.Client, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.CreateClient")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
		}
	}

	client := &domain.Client{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Address:   req.Address,
		Cap:       req.Cap,
		City:      req.City,
		Nation:    req.Nation,
		Email:     req.Email,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		s.logger.Error("failed to create client", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("client created", zap.String("client_id", client.ID), zap.String("name", client.Name))
	return client, nil
}

func (s *RegistryService) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.GetClient")
	defer span.End()

	return s.store.GetClient(ctx, id)
}

func (s *RegistryService) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.ListClients")
	defer span.End()

	return s.store.ListClients(ctx)
}

func (s *RegistryService) UpdateClient(ctx context.Context, id string, req *domain.ClientRequest) (*domain.Client, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.UpdateClient")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
		}
	}

	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	client.Name = req.Name
	client.Address = req.Address
	client.Cap = req.Cap
	client.City = req.City
	client.Nation = req.Nation
	client.Email = req.Email

	if err := s.store.UpdateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient removes a client. Fees, events and invoices keep the
// client id as a historical reference.
func (s *RegistryService) DeleteClient(ctx context.Context, id string) error {
	ctx, span := registryTracer.Start(ctx, "RegistryService.DeleteClient")
	defer span.End()

	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.logger.Info("client deleted", zap.String("client_id", id))
	return nil
}

// ============================================================
// Partners
// ============================================================

func (s *RegistryService) GetPartner(ctx context.Context, id domain.PartnerID) (*domain.Partner, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.GetPartner")
	defer span.End()

	if !id.Valid() {
		return nil, &domain.ErrValidation{Field: "partner", Message: "must be 'a' or 'b'"}
	}
	return s.store.GetPartner(ctx, id)
}

func (s *RegistryService) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.ListPartners")
	defer span.End()

	return s.store.ListPartners(ctx)
}

func (s *RegistryService) UpdatePartner(ctx context.Context, id domain.PartnerID, req *domain.PartnerRequest) (*domain.Partner, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.UpdatePartner")
	defer span.End()

	if !id.Valid() {
		return nil, &domain.ErrValidation{Field: "partner", Message: "must be 'a' or 'b'"}
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
		}
	}

	partner, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		partner.Name = req.Name
	}
	if req.Email != "" {
		partner.Email = req.Email
	}
	if req.IBAN != "" {
		partner.IBAN = req.IBAN
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		partner.PasswordHash = hash
	}

	if err := s.store.UpdatePartner(ctx, partner); err != nil {
		return nil, err
	}

	s.logger.Info("partner updated", zap.String("partner", string(id)))
	return partner, nil
}

// ============================================================
// Bank details (singleton record used on invoice templates)
// ============================================================

func (s *RegistryService) GetBankDetails(ctx context.Context) (*domain.BankDetails, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.GetBankDetails")
	defer span.End()

	return s.store.GetBankDetails(ctx)
}

func (s *RegistryService) UpdateBankDetails(ctx context.Context, details *domain.BankDetails) (*domain.BankDetails, error) {
	ctx, span := registryTracer.Start(ctx, "RegistryService.UpdateBankDetails")
	defer span.End()

	if details.IBAN == "" {
		return nil, &domain.ErrValidation{Field: "iban", Message: "required"}
	}

	if err := s.store.UpdateBankDetails(ctx, details); err != nil {
		return nil, err
	}

	s.logger.Info("bank details updated")
	return s.store.GetBankDetails(ctx)
}
