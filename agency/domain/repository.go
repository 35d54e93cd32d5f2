package domain

import "context"

type Repository interface {
	InitSchema(ctx context.Context) error
	Create(ctx context.Context, agency *Agency) error
	GetByID(ctx context.Context, id int64) (*Agency, error)
	GetByEmail(ctx context.Context, email string) (*Agency, error)
	// GetByCode trims and upper-cases the input before comparison and
	// reports ErrAgencyNotFound for codes shorter than four characters.
	GetByCode(ctx context.Context, code string) (*Agency, error)
	Update(ctx context.Context, agency *Agency) error
	List(ctx context.Context, includeInactive bool) ([]*Agency, error)
	// ListActiveTenants returns active non-super-admin agencies ordered by
	// creation time, oldest first. Auto-provisioning depends on that order.
	ListActiveTenants(ctx context.Context) ([]*Agency, error)
	SoftDelete(ctx context.Context, id int64) error
}
