package domain

import (
	"context"

	"github.com/tkamdem/livrazone/core/tenant"
)

type Repository interface {
	InitSchema(ctx context.Context) error
	Create(ctx context.Context, group *Group) error
	GetByID(ctx context.Context, id int64, scope tenant.Scope) (*Group, error)
	GetByExternalID(ctx context.Context, externalID string) (*Group, error)
	List(ctx context.Context, scope tenant.Scope) ([]*Group, error)
	ListActiveByAgency(ctx context.Context, agencyID int64) ([]*Group, error)
	Update(ctx context.Context, group *Group, scope tenant.Scope) error
	SoftDelete(ctx context.Context, id int64, scope tenant.Scope) error
	// HardDelete removes the row and detaches its deliveries
	// (group_id set to null), never cascading them.
	HardDelete(ctx context.Context, id int64, scope tenant.Scope) error
}
