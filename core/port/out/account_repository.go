package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// AccountRepository persists Account rows. Implementations MUST enforce
// that at most one account has IsDefault set.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetDefault(ctx context.Context) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	Create(ctx context.Context, acct *domain.Account) error
	Update(ctx context.Context, acct *domain.Account) error
	// SetDefault clears IsDefault on every other row and sets it on id.
	SetDefault(ctx context.Context, id uuid.UUID) error
	UpdateLastConnected(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProviderTemplateRepository serves domain-pattern -> connection-template
// lookups used by the account-add flow.
type ProviderTemplateRepository interface {
	GetByDomain(ctx context.Context, domainPattern string) (*domain.ProviderTemplate, error)
	List(ctx context.Context) ([]*domain.ProviderTemplate, error)
	Upsert(ctx context.Context, tmpl *domain.ProviderTemplate) error
}
