package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Backend identifies the concrete store behind the adapter.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Result is the normalised outcome of a non-SELECT statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Adapter is the single translation point between the canonical SQL the
// domain stores write and the backend actually connected. It owns the
// statement deadline and the backend error mapping.
type Adapter struct {
	db      *sql.DB
	backend Backend
	tz      string
	timeout time.Duration
}

func New(db *sql.DB, backend Backend, tz string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if tz == "" {
		tz = "UTC"
	}
	return &Adapter{db: db, backend: backend, tz: tz, timeout: timeout}
}

func (a *Adapter) Backend() Backend {
	return a.backend
}

// Today is the current calendar date in the configured time zone, the
// same day the DATE('now', 'localtime') helper resolves to.
func (a *Adapter) Today() string {
	loc, err := time.LoadLocation(a.tz)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02")
}

func (a *Adapter) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

// Rows wraps sql.Rows so the statement deadline is released on Close.
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

func (r *Rows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}

// Query runs a multi-row SELECT. The caller owns the returned rows.
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	qctx, cancel := a.deadline(ctx)
	rows, err := a.db.QueryContext(qctx, a.rewrite(query), args...)
	if err != nil {
		cancel()
		return nil, MapError(err)
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

// QueryRow runs a single-row SELECT; scan errors go through MapError via
// ScanOne below.
func (a *Adapter) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	qctx, cancel := a.deadline(ctx)
	defer cancel()
	return a.db.QueryRowContext(qctx, a.rewrite(query), args...)
}

// Exec runs a non-SELECT statement.
func (a *Adapter) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	qctx, cancel := a.deadline(ctx)
	defer cancel()
	res, err := a.db.ExecContext(qctx, a.rewrite(query), args...)
	if err != nil {
		return Result{}, MapError(err)
	}
	affected, _ := res.RowsAffected()
	id, _ := res.LastInsertId()
	return Result{LastInsertID: id, RowsAffected: affected}, nil
}

// Insert runs an INSERT and returns the new row id. On postgres the
// statement is extended with RETURNING id; sqlite uses last_insert_rowid.
func (a *Adapter) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	qctx, cancel := a.deadline(ctx)
	defer cancel()
	if a.backend == BackendPostgres {
		var id int64
		q := appendReturningID(a.rewrite(query))
		if err := a.db.QueryRowContext(qctx, q, args...).Scan(&id); err != nil {
			return 0, MapError(err)
		}
		return id, nil
	}
	res, err := a.db.ExecContext(qctx, a.rewrite(query), args...)
	if err != nil {
		return 0, MapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, MapError(err)
	}
	return id, nil
}

// WithinTx runs fn in a transaction, rolling back on error or panic.
func (a *Adapter) WithinTx(ctx context.Context, fn func(tx *Tx) error) error {
	qctx, cancel := a.deadline(ctx)
	defer cancel()
	sqlTx, err := a.db.BeginTx(qctx, nil)
	if err != nil {
		return MapError(err)
	}
	tx := &Tx{tx: sqlTx, a: a, ctx: qctx}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return MapError(err)
	}
	return nil
}

// Close drains the pool and waits for in-flight statements.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping checks backend liveness for the health probe.
func (a *Adapter) Ping(ctx context.Context) error {
	qctx, cancel := a.deadline(ctx)
	defer cancel()
	return MapError(a.db.PingContext(qctx))
}

// Tx exposes the adapter surface inside one transaction, plus savepoints
// for the bulk-insert partial-success contract.
type Tx struct {
	tx  *sql.Tx
	a   *Adapter
	ctx context.Context
}

func (t *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.a.rewrite(query), args...)
	if err != nil {
		return nil, MapError(err)
	}
	return rows, nil
}

func (t *Tx) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.a.rewrite(query), args...)
}

func (t *Tx) Exec(query string, args ...any) (Result, error) {
	res, err := t.tx.ExecContext(t.ctx, t.a.rewrite(query), args...)
	if err != nil {
		return Result{}, MapError(err)
	}
	affected, _ := res.RowsAffected()
	id, _ := res.LastInsertId()
	return Result{LastInsertID: id, RowsAffected: affected}, nil
}

func (t *Tx) Insert(query string, args ...any) (int64, error) {
	if t.a.backend == BackendPostgres {
		var id int64
		q := appendReturningID(t.a.rewrite(query))
		if err := t.tx.QueryRowContext(t.ctx, q, args...).Scan(&id); err != nil {
			return 0, MapError(err)
		}
		return id, nil
	}
	res, err := t.tx.ExecContext(t.ctx, t.a.rewrite(query), args...)
	if err != nil {
		return 0, MapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, MapError(err)
	}
	return id, nil
}

// Savepoint/RollbackTo/Release give each bulk row its own failure domain.
func (t *Tx) Savepoint(name string) error {
	_, err := t.tx.ExecContext(t.ctx, "SAVEPOINT "+name)
	return MapError(err)
}

func (t *Tx) RollbackTo(name string) error {
	_, err := t.tx.ExecContext(t.ctx, "ROLLBACK TO SAVEPOINT "+name)
	return MapError(err)
}

func (t *Tx) Release(name string) error {
	_, err := t.tx.ExecContext(t.ctx, "RELEASE SAVEPOINT "+name)
	return MapError(err)
}

func appendReturningID(query string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	return fmt.Sprintf("%s RETURNING id", trimmed)
}
