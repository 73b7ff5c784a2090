package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/db"
)

// ReservationRepository handles database operations for reservations
type ReservationRepository struct {
	db *db.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(database *db.DB) *ReservationRepository {
	return &ReservationRepository{db: database}
}

const reservationColumns = `id, asset_id, holder_name, start_date, end_date, notes, created_by, created_at`

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	res := &models.Reservation{}
	var start, end time.Time

	err := row.Scan(
		&res.ID,
		&res.AssetID,
		&res.HolderName,
		&start,
		&end,
		&res.Notes,
		&res.CreatedBy,
		&res.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}

	res.StartDate = models.DateOf(start)
	res.EndDate = models.DateOf(end)
	return res, nil
}

// Create inserts a reservation inside a booking transaction
func (r *ReservationRepository) Create(ctx context.Context, tx pgx.Tx, res *models.Reservation) error {
	query := `
		INSERT INTO reservations (id, asset_id, holder_name, start_date, end_date, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(
		ctx,
		query,
		res.ID,
		res.AssetID,
		res.HolderName,
		res.StartDate.Time(),
		res.EndDate.Time(),
		res.Notes,
		res.CreatedBy,
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by its ID
func (r *ReservationRepository) GetByID(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(r.db.QueryRow(ctx, query, reservationID))
}

// Get reads a reservation inside a transaction without locking it.
// Cancellation uses this to learn the asset id, locks the asset row,
// then re-reads the reservation under lock, so every booking path
// takes the asset lock before any reservation lock.
func (r *ReservationRepository) Get(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(tx.QueryRow(ctx, query, reservationID))
}

// GetForUpdate locks a reservation row for cancellation/fulfilment
func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return scanReservation(tx.QueryRow(ctx, query, reservationID))
}

// ListByAsset returns an asset's reservations in start-date order.
// The conflict checker relies on this ordering to report the first
// blocking record deterministically.
func (r *ReservationRepository) ListByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE asset_id = $1 ORDER BY start_date`

	rows, err := tx.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// ListInPeriod returns reservations overlapping the inclusive [from, to] range
func (r *ReservationRepository) ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY start_date
	`

	rows, err := r.db.Query(ctx, query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations in period: %w", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// List retrieves reservations, optionally filtered by asset
func (r *ReservationRepository) List(ctx context.Context, assetID *uuid.UUID) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	args := []any{}

	if assetID != nil {
		args = append(args, *assetID)
		query += " WHERE asset_id = $1"
	}
	query += " ORDER BY start_date"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// Delete removes a reservation from the active set. The ledger keeps
// the cancellation trace; this row simply stops blocking the window.
func (r *ReservationRepository) Delete(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) error {
	query := `DELETE FROM reservations WHERE id = $1`

	tag, err := tx.Exec(ctx, query, reservationID)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func collectReservations(rows pgx.Rows) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return reservations, nil
}
