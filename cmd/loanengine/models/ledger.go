package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType tags a ledger entry
type EventType string

const (
	EventLoanCreated          EventType = "loan_created"
	EventLoanReturned         EventType = "loan_returned"
	EventReservationCreated   EventType = "reservation_created"
	EventReservationCancelled EventType = "reservation_cancelled"
)

// LedgerEvent is one entry of the append-only history ledger. Entries
// are never updated or deleted; the ledger is the source of truth for
// audit and calendar reporting.
// Maps to: ledger table
type LedgerEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AssetID   uuid.UUID `db:"asset_id" json:"asset_id"`
	EventType EventType `db:"event_type" json:"event_type"`

	// Snapshot of the loan/reservation record at event time (JSONB)
	Payload json.RawMessage `db:"payload" json:"payload"`

	Actor      string    `db:"actor" json:"actor"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// NewLedgerEvent builds a ledger entry with a marshalled snapshot.
func NewLedgerEvent(assetID uuid.UUID, eventType EventType, snapshot any, actor string) (*LedgerEvent, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return &LedgerEvent{
		ID:         uuid.New(),
		AssetID:    assetID,
		EventType:  eventType,
		Payload:    payload,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}, nil
}
