package domain

import (
	"errors"
	"time"
)

// Group is a WhatsApp channel bound to exactly one agency.
type Group struct {
	ID         int64     `json:"id"`
	AgencyID   int64     `json:"agency_id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrGroupNotFound is returned when no group matches the lookup.
	ErrGroupNotFound = errors.New("group not found")

	// ErrDuplicateExternalID is returned when the channel identifier is
	// already provisioned. Auto-provisioning races resolve by re-reading.
	ErrDuplicateExternalID = errors.New("group with this external id already exists")
)
