package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/db"
)

// LedgerRepository handles the append-only history ledger. It exposes
// no update or delete operations.
type LedgerRepository struct {
	db *db.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(database *db.DB) *LedgerRepository {
	return &LedgerRepository{db: database}
}

const ledgerColumns = `id, asset_id, event_type, payload, actor, occurred_at`

// Append writes one event inside the booking transaction, so the
// ledger entry and the paired registry mutation commit atomically.
func (r *LedgerRepository) Append(ctx context.Context, tx pgx.Tx, event *models.LedgerEvent) error {
	query := `
		INSERT INTO ledger (id, asset_id, event_type, payload, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(
		ctx,
		query,
		event.ID,
		event.AssetID,
		event.EventType,
		event.Payload,
		event.Actor,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger event: %w", err)
	}

	return nil
}

// QueryByAsset returns an asset's events in occurrence order,
// optionally bounded by an inclusive timestamp range.
func (r *LedgerRepository) QueryByAsset(ctx context.Context, assetID uuid.UUID, from, to *models.Date) ([]*models.LedgerEvent, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger WHERE asset_id = $1`
	args := []any{assetID}

	if from != nil {
		args = append(args, from.Time())
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.AddDays(1).Time())
		query += fmt.Sprintf(" AND occurred_at < $%d", len(args))
	}
	query += " ORDER BY occurred_at"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger by asset: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// QueryByPeriod returns all events in the inclusive [from, to] range
func (r *LedgerRepository) QueryByPeriod(ctx context.Context, from, to models.Date) ([]*models.LedgerEvent, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at
	`

	rows, err := r.db.Query(ctx, query, from.Time(), to.AddDays(1).Time())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger by period: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*models.LedgerEvent, error) {
	var events []*models.LedgerEvent
	for rows.Next() {
		event := &models.LedgerEvent{}
		err := rows.Scan(
			&event.ID,
			&event.AssetID,
			&event.EventType,
			&event.Payload,
			&event.Actor,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger events: %w", err)
	}

	return events, nil
}
