package domain

import "errors"

var (
	// ErrAgencyNotFound is returned when no agency matches the lookup.
	ErrAgencyNotFound = errors.New("agency not found")

	// ErrDuplicateEmail is returned when the login email is already taken.
	ErrDuplicateEmail = errors.New("agency with this email already exists")

	// ErrDuplicateCode is returned when the agency code is already taken.
	ErrDuplicateCode = errors.New("agency with this code already exists")

	// ErrNoTenantAvailable is returned when auto-provisioning cannot pick
	// any active agency for an unknown group.
	ErrNoTenantAvailable = errors.New("no tenant available for auto-provisioning")
)
