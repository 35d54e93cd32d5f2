package domain

import "errors"

var (
	// ErrDeliveryNotFound is returned when no delivery matches the lookup
	// or the row falls outside the tenant scope.
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrTargetUnresolved is returned when an update carries neither a
	// quoted message context nor an extractable phone.
	ErrTargetUnresolved = errors.New("update target could not be resolved")

	// ErrTargetMissing is returned when the resolved phone has no open
	// delivery.
	ErrTargetMissing = errors.New("no open delivery for this phone")
)
