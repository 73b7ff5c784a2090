package models

import (
	"time"

	"github.com/google/uuid"
)

// Loan represents an assignment of an asset to a holder for a date
// range. A loan with no actual return date is currently out and blocks
// every future date until returned.
// Maps to: loans table
type Loan struct {
	ID      uuid.UUID `db:"id" json:"id"`
	AssetID uuid.UUID `db:"asset_id" json:"asset_id"`

	// Name at loan time; survives later asset renames for audit
	AssetNameSnapshot string `db:"asset_name_snapshot" json:"asset_name_snapshot"`

	HolderName      string `db:"holder_name" json:"holder_name"`
	Reason          string `db:"reason" json:"reason,omitempty"`
	StartDate       Date   `db:"start_date" json:"start_date"`
	EndDateExpected Date   `db:"end_date_expected" json:"end_date_expected"`

	// Null means "currently out". Setting it is the only mutation a
	// loan record ever receives, and only once.
	ActualReturnDate *Date   `db:"actual_return_date" json:"actual_return_date,omitempty"`
	ReturnedBy       *string `db:"returned_by" json:"returned_by,omitempty"`

	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Returned reports whether the loan has been closed.
func (l *Loan) Returned() bool { return l.ActualReturnDate != nil }
