package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

// MapError translates backend driver errors into the stable kinds the rest
// of the system understands. Nothing above the adapter inspects driver
// internals.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, err, "statement deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Unavailable, err, "statement cancelled")
	}
	if errors.Is(err, driver.ErrBadConn) {
		return apperr.Wrap(apperr.Unavailable, err, "database connection lost")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return apperr.Wrap(apperr.Conflict, err, "unique constraint violated")
		case pqErr.Code == "23503":
			return apperr.Wrap(apperr.InvalidArgument, err, "foreign key constraint violated")
		case pqErr.Code == "57014":
			return apperr.Wrap(apperr.Timeout, err, "statement timed out")
		case pqErr.Code.Class() == "08":
			return apperr.Wrap(apperr.Unavailable, err, "database connection lost")
		}
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch {
		case sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return apperr.Wrap(apperr.Conflict, err, "unique constraint violated")
		case sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return apperr.Wrap(apperr.InvalidArgument, err, "foreign key constraint violated")
		case sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked:
			return apperr.Wrap(apperr.Unavailable, err, "database busy")
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperr.Wrap(apperr.Timeout, err, "database network timeout")
		}
		return apperr.Wrap(apperr.Unavailable, err, "database unreachable")
	}

	return apperr.Wrap(apperr.Internal, err, "database error")
}

// IsNoRows reports a missing single row.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
