package port

import (
	"context"

	"github.com/lucafranzi/contabile/internal/domain"
)

// RegistryStore defines data operations for clients, partners and the
// bank details singleton.
type RegistryStore interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id string) error

	GetPartner(ctx context.Context, id domain.PartnerID) (*domain.Partner, error)
	ListPartners(ctx context.Context) ([]domain.Partner, error)
	UpdatePartner(ctx context.Context, p *domain.Partner) error

	GetBankDetails(ctx context.Context) (*domain.BankDetails, error)
	UpdateBankDetails(ctx context.Context, b *domain.BankDetails) error
}

// TemplateStore defines data operations for template metadata; the html/css
// assets themselves go through TemplateFiles.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *domain.Template) error
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	UpdateTemplate(ctx context.Context, t *domain.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}
