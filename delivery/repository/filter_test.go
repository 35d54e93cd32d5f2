package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/delivery/domain"
)

func TestOrderClauseWhitelist(t *testing.T) {
	assert.Equal(t, "amount_due DESC", orderClause(domain.Sort{Column: "amount_due", Desc: true}))
	assert.Equal(t, "phone ASC", orderClause(domain.Sort{Column: " Phone "}))

	// Unknown columns fall back silently; never an error.
	assert.Equal(t, defaultOrder, orderClause(domain.Sort{Column: "password_hash"}))
	assert.Equal(t, defaultOrder, orderClause(domain.Sort{Column: "created_at; DROP TABLE deliveries"}))
	assert.Equal(t, defaultOrder, orderClause(domain.Sort{}))
}

func TestWhereClauseScoped(t *testing.T) {
	gid := int64(3)
	where, args := whereClause(domain.Filter{
		Status:  domain.StatusPending,
		Phone:   "612",
		GroupID: &gid,
		Date:    "2024-05-01",
	}, tenant.ForAgency(7))

	assert.Equal(t,
		" WHERE agency_id = ? AND status = ? AND phone LIKE ? AND group_id = ? AND DATE(created_at, 'localtime') = ?",
		where)
	assert.Equal(t, []any{int64(7), "pending", "%612%", int64(3), "2024-05-01"}, args)
}

func TestWhereClauseUnrestrictedEmpty(t *testing.T) {
	where, args := whereClause(domain.Filter{}, tenant.SuperAdmin())
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestWhereClauseDateRange(t *testing.T) {
	where, args := whereClause(domain.Filter{StartDate: "2024-05-01", EndDate: "2024-05-07"}, tenant.SuperAdmin())
	assert.Equal(t, " WHERE DATE(created_at, 'localtime') BETWEEN ? AND ?", where)
	assert.Equal(t, []any{"2024-05-01", "2024-05-07"}, args)
}

func TestValidateRow(t *testing.T) {
	d := &domain.Delivery{Phone: "612345678", Items: "2 robes", AmountDue: 15000}
	assert.NoError(t, validateRow(d))
	assert.Equal(t, domain.StatusPending, d.Status)

	assert.Error(t, validateRow(&domain.Delivery{Items: "x", AmountDue: 100}))
	assert.Error(t, validateRow(&domain.Delivery{Phone: "612345678", Items: "x", AmountDue: -1}))
	assert.Error(t, validateRow(&domain.Delivery{Phone: "612345678", Items: "x", Status: "weird"}))
}
