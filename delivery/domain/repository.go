package domain

import (
	"context"

	"github.com/tkamdem/livrazone/core/tenant"
)

type Repository interface {
	InitSchema(ctx context.Context) error

	// Insert persists the delivery and its `created` history row in one
	// transaction.
	Insert(ctx context.Context, d *Delivery, actor string) error

	// Update persists the full row state plus one history entry in one
	// transaction; a failure anywhere restores the pre-transition state.
	Update(ctx context.Context, d *Delivery, action, details, actor string) error

	GetByID(ctx context.Context, id int64, scope tenant.Scope) (*Delivery, error)

	// FindByPhone returns the most recent delivery with that phone;
	// openOnly excludes delivered/failed/cancelled rows.
	FindByPhone(ctx context.Context, phone string, openOnly bool, scope tenant.Scope) (*Delivery, error)

	// FindByMessageID returns the most recent delivery whose originating
	// WhatsApp message id matches; the key of reply-threaded updates.
	FindByMessageID(ctx context.Context, externalID string, scope tenant.Scope) (*Delivery, error)

	List(ctx context.Context, filter Filter, page Page, sort Sort, scope tenant.Scope) ([]*Delivery, Pagination, error)

	// Search runs a substring match over phone, items, customer name and
	// quartier, capped at 100 rows.
	Search(ctx context.Context, q string, scope tenant.Scope) ([]*Delivery, error)

	// DailyStats aggregates one server-local calendar day; empty date
	// means today.
	DailyStats(ctx context.Context, date string, groupID *int64, scope tenant.Scope) (*DailyStats, error)

	// Delete removes the delivery, cascading its history rows first.
	Delete(ctx context.Context, id int64, scope tenant.Scope) error

	// BulkInsert validates and persists rows with per-row savepoints:
	// valid rows commit with their history, invalid rows are reported.
	BulkInsert(ctx context.Context, rows []*Delivery, actor string) (*BulkResult, error)

	SaveHistory(ctx context.Context, deliveryID int64, action, details, actor string) error
	History(ctx context.Context, deliveryID int64, scope tenant.Scope) ([]*HistoryEntry, error)

	// HasCollection reports whether a payment_received history row already
	// references the given external message id; the dedup key for
	// additive collections.
	HasCollection(ctx context.Context, deliveryID int64, externalMessageID string) (bool, error)
}
