package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRewritePlaceholders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "two placeholders",
			in:   "SELECT * FROM deliveries WHERE phone = ? AND status = ?",
			want: "SELECT * FROM deliveries WHERE phone = $1 AND status = $2",
		},
		{
			name: "question mark inside string literal untouched",
			in:   "UPDATE deliveries SET notes = 'why?' WHERE id = ?",
			want: "UPDATE deliveries SET notes = 'why?' WHERE id = $1",
		},
		{
			name: "escaped quote inside literal",
			in:   "SELECT 'it''s ?' , ?",
			want: "SELECT 'it''s ?' , $1",
		},
		{
			name: "no placeholders",
			in:   "SELECT 1",
			want: "SELECT 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewritePlaceholders(tt.in))
		})
	}
}

func TestRewriteDates(t *testing.T) {
	got := rewriteDates("SELECT * FROM deliveries WHERE DATE(created_at, 'localtime') = DATE('now', 'localtime')", "Africa/Douala")
	assert.Equal(t, "SELECT * FROM deliveries WHERE (created_at AT TIME ZONE 'Africa/Douala')::date = CURRENT_DATE", got)
}

func TestRewriteOnlyForPostgres(t *testing.T) {
	q := "SELECT * FROM deliveries WHERE phone = ? AND DATE(created_at, 'localtime') = ?"

	lite := New(nil, BackendSQLite, "Africa/Douala", time.Second)
	assert.Equal(t, q, lite.rewrite(q))

	pg := New(nil, BackendPostgres, "Africa/Douala", time.Second)
	assert.Equal(t,
		"SELECT * FROM deliveries WHERE phone = $1 AND (created_at AT TIME ZONE 'Africa/Douala')::date = $2",
		pg.rewrite(q))
}

func TestAdapterToday(t *testing.T) {
	a := New(nil, BackendSQLite, "Africa/Douala", time.Second)
	loc, err := time.LoadLocation("Africa/Douala")
	assert.NoError(t, err)
	assert.Equal(t, time.Now().In(loc).Format("2006-01-02"), a.Today())

	// An unloadable zone falls back to UTC instead of failing.
	bad := New(nil, BackendSQLite, "Not/AZone", time.Second)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), bad.Today())
}

func TestAppendReturningID(t *testing.T) {
	assert.Equal(t, "INSERT INTO t (a) VALUES ($1) RETURNING id",
		appendReturningID("INSERT INTO t (a) VALUES ($1);  "))
}
