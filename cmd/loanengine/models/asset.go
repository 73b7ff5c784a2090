package models

import (
	"time"

	"github.com/google/uuid"
)

// AssetStatus represents the lifecycle state of a loanable asset
type AssetStatus string

const (
	StatusAvailable       AssetStatus = "available"
	StatusLoaned          AssetStatus = "loaned"
	StatusReservedPending AssetStatus = "reserved_pending"
	StatusRemastering     AssetStatus = "remastering"
	StatusOutOfService    AssetStatus = "out_of_service"
)

// Valid reports whether s is a known status value.
func (s AssetStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaned, StatusReservedPending, StatusRemastering, StatusOutOfService:
		return true
	}
	return false
}

// Bookable reports whether new loans/reservations may target an asset
// in this status. Maintenance states suspend bookability without
// touching existing reservations.
func (s AssetStatus) Bookable() bool {
	return s != StatusRemastering && s != StatusOutOfService
}

// Asset represents a shared physical resource (e.g. a loanable PC)
// Maps to: assets table
type Asset struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	SerialNumber string    `db:"serial_number" json:"serial_number"`

	// Mutated exclusively by the lifecycle state machine
	Status        AssetStatus `db:"status" json:"status"`
	CurrentHolder *string     `db:"current_holder" json:"current_holder,omitempty"`
	ActiveLoanID  *uuid.UUID  `db:"active_loan_id" json:"active_loan_id,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`

	// Soft delete: assets with history are never hard-deleted
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Archived reports whether the asset was retired.
func (a *Asset) Archived() bool { return a.ArchivedAt != nil }
