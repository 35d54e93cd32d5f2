package tenant

// Scope is the runtime predicate derived from an authenticated session.
// It is threaded through every domain store operation so isolation is an
// argument, not a convention.
type Scope struct {
	AgencyID     int64
	Unrestricted bool
}

// SuperAdmin returns the unrestricted scope.
func SuperAdmin() Scope {
	return Scope{Unrestricted: true}
}

// ForAgency returns a scope restricted to one agency.
func ForAgency(agencyID int64) Scope {
	return Scope{AgencyID: agencyID}
}

// Allows reports whether a row with the given agency id is visible.
// A row with no agency id is only visible to the unrestricted scope.
func (s Scope) Allows(agencyID *int64) bool {
	if s.Unrestricted {
		return true
	}
	return agencyID != nil && *agencyID == s.AgencyID
}
