package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tkamdem/livrazone/core/storage"
	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/delivery/domain"
	"gorm.io/gorm"
)

// DeliveryStore implements the delivery repository on the storage adapter.
// The ORM handle is only used for schema migration.
type DeliveryStore struct {
	db  *storage.Adapter
	orm *gorm.DB
}

func NewDeliveryStore(db *storage.Adapter, orm *gorm.DB) *DeliveryStore {
	return &DeliveryStore{db: db, orm: orm}
}

const deliveryColumns = `id, phone, customer_name, items, amount_due, amount_paid, delivery_fee,
	status, quartier, notes, carrier, agency_id, group_id, whatsapp_message_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var (
		d            domain.Delivery
		customerName sql.NullString
		items        sql.NullString
		due, paid    float64
		fee          float64
		quartier     sql.NullString
		notes        sql.NullString
		carrier      sql.NullString
		agencyID     sql.NullInt64
		groupID      sql.NullInt64
		waMessageID  sql.NullString
	)
	err := row.Scan(&d.ID, &d.Phone, &customerName, &items, &due, &paid, &fee,
		&d.Status, &quartier, &notes, &carrier, &agencyID, &groupID, &waMessageID,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.CustomerName = customerName.String
	d.Items = items.String
	d.AmountDue = int64(math.Round(due))
	d.AmountPaid = int64(math.Round(paid))
	d.DeliveryFee = int64(math.Round(fee))
	d.Quartier = quartier.String
	d.Notes = notes.String
	d.Carrier = carrier.String
	if agencyID.Valid {
		v := agencyID.Int64
		d.AgencyID = &v
	}
	if groupID.Valid {
		v := groupID.Int64
		d.GroupID = &v
	}
	d.WhatsappMessageID = waMessageID.String
	return &d, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func validateRow(d *domain.Delivery) error {
	if strings.TrimSpace(d.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(d.Items) == "" {
		return fmt.Errorf("items is required")
	}
	if d.AmountDue < 0 || d.AmountPaid < 0 || d.DeliveryFee < 0 {
		return fmt.Errorf("monetary values cannot be negative")
	}
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	if !domain.ValidStatuses[d.Status] {
		return fmt.Errorf("unknown status %q", d.Status)
	}
	return nil
}

const insertDeliverySQL = `INSERT INTO deliveries
	(phone, customer_name, items, amount_due, amount_paid, delivery_fee, status,
	 quartier, notes, carrier, agency_id, group_id, whatsapp_message_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(d *domain.Delivery, now time.Time) []any {
	var agencyID, groupID any
	if d.AgencyID != nil {
		agencyID = *d.AgencyID
	}
	if d.GroupID != nil {
		groupID = *d.GroupID
	}
	return []any{
		d.Phone, nullStr(d.CustomerName), d.Items,
		d.AmountDue, d.AmountPaid, d.DeliveryFee, string(d.Status),
		nullStr(d.Quartier), nullStr(d.Notes), nullStr(d.Carrier),
		agencyID, groupID, nullStr(d.WhatsappMessageID), now, now,
	}
}

func (s *DeliveryStore) Insert(ctx context.Context, d *domain.Delivery, actor string) error {
	if err := validateRow(d); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.WithinTx(ctx, func(tx *storage.Tx) error {
		id, err := tx.Insert(insertDeliverySQL, insertArgs(d, now)...)
		if err != nil {
			return err
		}
		d.ID = id
		d.CreatedAt = now
		d.UpdatedAt = now
		details := fmt.Sprintf(`{"phone":%q,"amount_due":%d,"external_message_id":%q}`,
			d.Phone, d.AmountDue, d.WhatsappMessageID)
		_, err = tx.Exec(
			`INSERT INTO delivery_history (delivery_id, action, details, actor, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, domain.ActionCreated, details, actor, now)
		return err
	})
}

func (s *DeliveryStore) Update(ctx context.Context, d *domain.Delivery, action, details, actor string) error {
	if err := validateRow(d); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.WithinTx(ctx, func(tx *storage.Tx) error {
		var agencyID, groupID any
		if d.AgencyID != nil {
			agencyID = *d.AgencyID
		}
		if d.GroupID != nil {
			groupID = *d.GroupID
		}
		res, err := tx.Exec(`UPDATE deliveries SET
			phone = ?, customer_name = ?, items = ?, amount_due = ?, amount_paid = ?,
			delivery_fee = ?, status = ?, quartier = ?, notes = ?, carrier = ?,
			agency_id = ?, group_id = ?, updated_at = ?
			WHERE id = ?`,
			d.Phone, nullStr(d.CustomerName), d.Items, d.AmountDue, d.AmountPaid,
			d.DeliveryFee, string(d.Status), nullStr(d.Quartier), nullStr(d.Notes),
			nullStr(d.Carrier), agencyID, groupID, now, d.ID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return domain.ErrDeliveryNotFound
		}
		d.UpdatedAt = now
		_, err = tx.Exec(
			`INSERT INTO delivery_history (delivery_id, action, details, actor, created_at) VALUES (?, ?, ?, ?, ?)`,
			d.ID, action, details, actor, now)
		return err
	})
}

func (s *DeliveryStore) GetByID(ctx context.Context, id int64, scope tenant.Scope) (*domain.Delivery, error) {
	row := s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ? LIMIT 1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, storage.MapError(err)
	}
	// Scope mismatch is indistinguishable from absence.
	if !scope.Allows(d.AgencyID) {
		return nil, domain.ErrDeliveryNotFound
	}
	return d, nil
}

func (s *DeliveryStore) FindByPhone(ctx context.Context, phone string, openOnly bool, scope tenant.Scope) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE phone = ?`
	args := []any{phone}
	if openOnly {
		query += ` AND status NOT IN (?, ?, ?)`
		for _, st := range domain.ClosedStatuses {
			args = append(args, string(st))
		}
	}
	if !scope.Unrestricted {
		query += ` AND agency_id = ?`
		args = append(args, scope.AgencyID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	d, err := scanDelivery(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, storage.MapError(err)
	}
	return d, nil
}

func (s *DeliveryStore) FindByMessageID(ctx context.Context, externalID string, scope tenant.Scope) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE whatsapp_message_id = ?`
	args := []any{externalID}
	if !scope.Unrestricted {
		query += ` AND agency_id = ?`
		args = append(args, scope.AgencyID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	d, err := scanDelivery(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, storage.MapError(err)
	}
	return d, nil
}

func (s *DeliveryStore) List(ctx context.Context, filter domain.Filter, page domain.Page, sort domain.Sort, scope tenant.Scope) ([]*domain.Delivery, domain.Pagination, error) {
	page = page.Normalize()
	where, args := whereClause(filter, scope)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries`+where, args...).Scan(&total); err != nil {
		return nil, domain.Pagination{}, storage.MapError(err)
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries` + where +
		` ORDER BY ` + orderClause(sort) + ` LIMIT ? OFFSET ?`
	args = append(args, page.Limit, (page.Page-1)*page.Limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, domain.Pagination{}, storage.MapError(err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Pagination{}, storage.MapError(err)
	}

	totalPages := (total + int64(page.Limit) - 1) / int64(page.Limit)
	return deliveries, domain.Pagination{
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *DeliveryStore) Search(ctx context.Context, q string, scope tenant.Scope) ([]*domain.Delivery, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE
		(LOWER(phone) LIKE ? OR LOWER(items) LIKE ? OR LOWER(COALESCE(customer_name, '')) LIKE ? OR LOWER(COALESCE(quartier, '')) LIKE ?)`
	args := []any{pattern, pattern, pattern, pattern}
	if !scope.Unrestricted {
		query += ` AND agency_id = ?`
		args = append(args, scope.AgencyID)
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, storage.MapError(err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, storage.MapError(rows.Err())
}

func (s *DeliveryStore) DailyStats(ctx context.Context, date string, groupID *int64, scope tenant.Scope) (*domain.DailyStats, error) {
	conds := []string{}
	args := []any{}
	if date != "" {
		conds = append(conds, `DATE(created_at, 'localtime') = ?`)
		args = append(args, date)
	} else {
		conds = append(conds, `DATE(created_at, 'localtime') = DATE('now', 'localtime')`)
	}
	if !scope.Unrestricted {
		conds = append(conds, `agency_id = ?`)
		args = append(args, scope.AgencyID)
	}
	if groupID != nil {
		conds = append(conds, `group_id = ?`)
		args = append(args, *groupID)
	}

	query := `SELECT status, COUNT(*),
		COALESCE(SUM(amount_paid), 0),
		COALESCE(SUM(amount_due - amount_paid), 0),
		COALESCE(SUM(amount_due), 0)
		FROM deliveries WHERE ` + strings.Join(conds, " AND ") + ` GROUP BY status`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.DailyStats{Date: date, ByStatus: make(map[domain.Status]int64)}
	if stats.Date == "" {
		stats.Date = s.db.Today()
	}
	for rows.Next() {
		var (
			status                    string
			count                     int64
			collected, remaining, due float64
		)
		if err := rows.Scan(&status, &count, &collected, &remaining, &due); err != nil {
			return nil, storage.MapError(err)
		}
		stats.ByStatus[domain.Status(status)] = count
		stats.Total += count
		stats.Collected += int64(math.Round(collected))
		stats.Remaining += int64(math.Round(remaining))
		stats.Due += int64(math.Round(due))
	}
	return stats, storage.MapError(rows.Err())
}

// Delete cascades the history rows before removing the delivery; both
// backends behave identically.
func (s *DeliveryStore) Delete(ctx context.Context, id int64, scope tenant.Scope) error {
	if _, err := s.GetByID(ctx, id, scope); err != nil {
		return err
	}
	return s.db.WithinTx(ctx, func(tx *storage.Tx) error {
		if _, err := tx.Exec(`DELETE FROM delivery_history WHERE delivery_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM deliveries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return domain.ErrDeliveryNotFound
		}
		return nil
	})
}

func (s *DeliveryStore) BulkInsert(ctx context.Context, rowsIn []*domain.Delivery, actor string) (*domain.BulkResult, error) {
	result := &domain.BulkResult{}
	now := time.Now().UTC()

	err := s.db.WithinTx(ctx, func(tx *storage.Tx) error {
		for i, d := range rowsIn {
			sp := fmt.Sprintf("bulk_row_%d", i)
			if err := validateRow(d); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, domain.BulkRowError{RowIndex: i, Error: err.Error()})
				continue
			}
			if err := tx.Savepoint(sp); err != nil {
				return err
			}
			id, err := tx.Insert(insertDeliverySQL, insertArgs(d, now)...)
			if err == nil {
				details := fmt.Sprintf(`{"phone":%q,"amount_due":%d,"bulk":true}`, d.Phone, d.AmountDue)
				_, err = tx.Exec(
					`INSERT INTO delivery_history (delivery_id, action, details, actor, created_at) VALUES (?, ?, ?, ?, ?)`,
					id, domain.ActionCreated, details, actor, now)
			}
			if err != nil {
				if rbErr := tx.RollbackTo(sp); rbErr != nil {
					return rbErr
				}
				result.Failed++
				result.Errors = append(result.Errors, domain.BulkRowError{RowIndex: i, Error: err.Error()})
				continue
			}
			if err := tx.Release(sp); err != nil {
				return err
			}
			d.ID = id
			d.CreatedAt = now
			d.UpdatedAt = now
			result.Created++
			result.Results = append(result.Results, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *DeliveryStore) SaveHistory(ctx context.Context, deliveryID int64, action, details, actor string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO delivery_history (delivery_id, action, details, actor, created_at) VALUES (?, ?, ?, ?, ?)`,
		deliveryID, action, details, actor, time.Now().UTC())
	return err
}

func (s *DeliveryStore) History(ctx context.Context, deliveryID int64, scope tenant.Scope) ([]*domain.HistoryEntry, error) {
	if _, err := s.GetByID(ctx, deliveryID, scope); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, delivery_id, action, details, actor, created_at
		 FROM delivery_history WHERE delivery_id = ? ORDER BY created_at DESC, id DESC`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var (
			e       domain.HistoryEntry
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.Action, &details, &e.Actor, &e.CreatedAt); err != nil {
			return nil, storage.MapError(err)
		}
		e.Details = details.String
		entries = append(entries, &e)
	}
	return entries, storage.MapError(rows.Err())
}

func (s *DeliveryStore) HasCollection(ctx context.Context, deliveryID int64, externalMessageID string) (bool, error) {
	if externalMessageID == "" {
		return false, nil
	}
	var count int64
	pattern := `%"external_message_id":"` + externalMessageID + `"%`
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM delivery_history WHERE delivery_id = ? AND action = ? AND details LIKE ?`,
		deliveryID, domain.ActionPaymentReceived, pattern).Scan(&count)
	if err != nil {
		return false, storage.MapError(err)
	}
	return count > 0, nil
}
