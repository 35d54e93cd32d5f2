package repository

import (
	"strings"

	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/delivery/domain"
)

// sortWhitelist is the fixed set of sortable columns. Unknown columns fall
// back to the default silently; they are not validation errors.
var sortWhitelist = map[string]string{
	"created_at":  "created_at",
	"updated_at":  "updated_at",
	"amount_due":  "amount_due",
	"amount_paid": "amount_paid",
	"status":      "status",
	"phone":       "phone",
}

const defaultOrder = "created_at DESC"

func orderClause(sort domain.Sort) string {
	col, ok := sortWhitelist[strings.ToLower(strings.TrimSpace(sort.Column))]
	if !ok {
		return defaultOrder
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return col + " " + dir
}

// whereClause builds the canonical WHERE fragment and its args for a
// delivery listing. The tenant scope is always part of the predicate.
func whereClause(filter domain.Filter, scope tenant.Scope) (string, []any) {
	conds := []string{}
	args := []any{}

	if !scope.Unrestricted {
		conds = append(conds, "agency_id = ?")
		args = append(args, scope.AgencyID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Phone != "" {
		conds = append(conds, "phone LIKE ?")
		args = append(args, "%"+filter.Phone+"%")
	}
	if filter.GroupID != nil {
		conds = append(conds, "group_id = ?")
		args = append(args, *filter.GroupID)
	}
	switch {
	case filter.Date != "":
		conds = append(conds, "DATE(created_at, 'localtime') = ?")
		args = append(args, filter.Date)
	case filter.StartDate != "" && filter.EndDate != "":
		conds = append(conds, "DATE(created_at, 'localtime') BETWEEN ? AND ?")
		args = append(args, filter.StartDate, filter.EndDate)
	case filter.StartDate != "":
		conds = append(conds, "DATE(created_at, 'localtime') >= ?")
		args = append(args, filter.StartDate)
	case filter.EndDate != "":
		conds = append(conds, "DATE(created_at, 'localtime') <= ?")
		args = append(args, filter.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
