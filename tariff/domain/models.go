package domain

import (
	"context"
	"errors"
	"time"

	"github.com/tkamdem/livrazone/core/tenant"
)

// Tariff is the default delivery fee for one (agency, quartier) pair.
type Tariff struct {
	ID        int64     `json:"id"`
	AgencyID  int64     `json:"agency_id"`
	Quartier  string    `json:"quartier"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrTariffNotFound = errors.New("tariff not found")

	// ErrDuplicateTariff enforces at most one row per (agency, quartier).
	ErrDuplicateTariff = errors.New("tariff for this agency and quartier already exists")
)

type Repository interface {
	InitSchema(ctx context.Context) error
	Create(ctx context.Context, tariff *Tariff) error
	Update(ctx context.Context, tariff *Tariff, scope tenant.Scope) error
	Delete(ctx context.Context, id int64, scope tenant.Scope) error
	List(ctx context.Context, scope tenant.Scope) ([]*Tariff, error)
	// Lookup is case-insensitive on the quartier.
	Lookup(ctx context.Context, agencyID int64, quartier string) (*Tariff, error)
}
