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

// LoanRepository handles database operations for loan records
type LoanRepository struct {
	db *db.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(database *db.DB) *LoanRepository {
	return &LoanRepository{db: database}
}

const loanColumns = `id, asset_id, asset_name_snapshot, holder_name, reason, start_date, end_date_expected, actual_return_date, returned_by, notes, created_by, created_at`

func scanLoan(row pgx.Row) (*models.Loan, error) {
	loan := &models.Loan{}
	var start, end time.Time
	var returned *time.Time

	err := row.Scan(
		&loan.ID,
		&loan.AssetID,
		&loan.AssetNameSnapshot,
		&loan.HolderName,
		&loan.Reason,
		&start,
		&end,
		&returned,
		&loan.ReturnedBy,
		&loan.Notes,
		&loan.CreatedBy,
		&loan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}

	loan.StartDate = models.DateOf(start)
	loan.EndDateExpected = models.DateOf(end)
	if returned != nil {
		d := models.DateOf(*returned)
		loan.ActualReturnDate = &d
	}
	return loan, nil
}

// Create inserts a new loan record inside a booking transaction
func (r *LoanRepository) Create(ctx context.Context, tx pgx.Tx, loan *models.Loan) error {
	query := `
		INSERT INTO loans (id, asset_id, asset_name_snapshot, holder_name, reason, start_date, end_date_expected, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(
		ctx,
		query,
		loan.ID,
		loan.AssetID,
		loan.AssetNameSnapshot,
		loan.HolderName,
		loan.Reason,
		loan.StartDate.Time(),
		loan.EndDateExpected.Time(),
		loan.Notes,
		loan.CreatedBy,
		loan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(r.db.QueryRow(ctx, query, loanID))
}

// GetForUpdate locks a loan row for the return transaction
func (r *LoanRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, loanID uuid.UUID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	return scanLoan(tx.QueryRow(ctx, query, loanID))
}

// GetActiveByAsset returns the asset's unreturned loan, if any.
// An unreturned loan blocks every future date, so the caller feeds it
// to the conflict checker as an open-ended window.
func (r *LoanRepository) GetActiveByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE asset_id = $1 AND actual_return_date IS NULL`

	loan, err := scanLoan(tx.QueryRow(ctx, query, assetID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return loan, err
}

// MarkReturned sets the actual return date. The WHERE clause keeps the
// write idempotence-safe: a second return matches zero rows.
func (r *LoanRepository) MarkReturned(ctx context.Context, tx pgx.Tx, loanID uuid.UUID, returnDate models.Date, returnedBy string) error {
	query := `
		UPDATE loans
		SET actual_return_date = $2, returned_by = $3
		WHERE id = $1 AND actual_return_date IS NULL
	`

	tag, err := tx.Exec(ctx, query, loanID, returnDate.Time(), returnedBy)
	if err != nil {
		return fmt.Errorf("failed to mark loan returned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List retrieves loans, optionally filtered by asset and open state
func (r *LoanRepository) List(ctx context.Context, assetID *uuid.UUID, openOnly bool) ([]*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE 1=1`
	args := []any{}

	if assetID != nil {
		args = append(args, *assetID)
		query += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if openOnly {
		query += " AND actual_return_date IS NULL"
	}
	query += " ORDER BY start_date DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	return collectLoans(rows)
}

// ListInPeriod retrieves loans whose effective window touches the
// inclusive [from, to] range. Unreturned loans count as open-ended.
func (r *LoanRepository) ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE start_date <= $2
		  AND (actual_return_date IS NULL OR actual_return_date >= $1)
		ORDER BY start_date
	`

	rows, err := r.db.Query(ctx, query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to list loans in period: %w", err)
	}
	defer rows.Close()

	return collectLoans(rows)
}

func collectLoans(rows pgx.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}

	return loans, nil
}
