package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/db"
)

// AssetRepository handles database operations for the asset registry
type AssetRepository struct {
	db *db.DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(database *db.DB) *AssetRepository {
	return &AssetRepository{db: database}
}

const assetColumns = `id, name, serial_number, status, current_holder, active_loan_id, notes, archived_at, created_at, updated_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	asset := &models.Asset{}
	err := row.Scan(
		&asset.ID,
		&asset.Name,
		&asset.SerialNumber,
		&asset.Status,
		&asset.CurrentHolder,
		&asset.ActiveLoanID,
		&asset.Notes,
		&asset.ArchivedAt,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	return asset, nil
}

// Create inserts a new asset
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, name, serial_number, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`

	_, err := r.db.Exec(ctx, query, asset.ID, asset.Name, asset.SerialNumber, asset.Status, asset.Notes)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetByID retrieves an asset by its ID
func (r *AssetRepository) GetByID(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	return scanAsset(r.db.QueryRow(ctx, query, assetID))
}

// GetForUpdate locks the asset row for the duration of the enclosing
// transaction. Concurrent booking requests for the same asset
// serialize on this lock; other assets are unaffected.
func (r *AssetRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 FOR UPDATE`
	return scanAsset(tx.QueryRow(ctx, query, assetID))
}

// List retrieves assets, optionally filtered by status. Archived
// assets are excluded unless includeArchived is set.
func (r *AssetRepository) List(ctx context.Context, status models.AssetStatus, includeArchived bool) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE 1=1`
	args := []any{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// UpdateProvisioning updates the provisioning fields (name, serial,
// notes). Status and holder fields are owned by the lifecycle state
// machine and have their own update path.
func (r *AssetRepository) UpdateProvisioning(ctx context.Context, asset *models.Asset) error {
	query := `
		UPDATE assets
		SET name = $2, serial_number = $3, notes = $4, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, asset.ID, asset.Name, asset.SerialNumber, asset.Notes)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateState writes the lifecycle fields inside a booking transaction
func (r *AssetRepository) UpdateState(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, status models.AssetStatus, holder *string, activeLoanID *uuid.UUID) error {
	query := `
		UPDATE assets
		SET status = $2, current_holder = $3, active_loan_id = $4, updated_at = now()
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, assetID, status, holder, activeLoanID)
	if err != nil {
		return fmt.Errorf("failed to update asset state: %w", err)
	}

	return nil
}

// Archive soft-deletes an asset. History rows keep referencing it.
func (r *AssetRepository) Archive(ctx context.Context, assetID uuid.UUID) error {
	query := `
		UPDATE assets
		SET archived_at = now(), updated_at = now()
		WHERE id = $1 AND archived_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("failed to archive asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
