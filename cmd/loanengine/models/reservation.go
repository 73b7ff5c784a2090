package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation represents a future hold on an asset for an inclusive
// date range. Immutable except for cancellation, which removes it from
// the active set and leaves a trace in the ledger.
// Maps to: reservations table
type Reservation struct {
	ID         uuid.UUID `db:"id" json:"id"`
	AssetID    uuid.UUID `db:"asset_id" json:"asset_id"`
	HolderName string    `db:"holder_name" json:"holder_name"`
	StartDate  Date      `db:"start_date" json:"start_date"`
	EndDate    Date      `db:"end_date" json:"end_date"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	CreatedBy  string    `db:"created_by" json:"created_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether day d falls inside the reservation window.
func (r *Reservation) Covers(d Date) bool {
	return !d.Before(r.StartDate) && !d.After(r.EndDate)
}
