package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/loandesk/loanengine/common/metrics"
)

// LedgerSource is the read side of the history ledger
type LedgerSource interface {
	QueryByAsset(ctx context.Context, assetID uuid.UUID, from, to *models.Date) ([]*models.LedgerEvent, error)
	QueryByPeriod(ctx context.Context, from, to models.Date) ([]*models.LedgerEvent, error)
}

// HistoryService serves ordered ledger entries to audit and report
// collaborators. Read-only by construction.
type HistoryService struct {
	ledger LedgerSource
	log    *logger.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(ledger LedgerSource, log *logger.Logger) *HistoryService {
	return &HistoryService{ledger: ledger, log: log}
}

// defaultHistoryWindow bounds unfiltered period queries.
const defaultHistoryWindow = 365

// Query returns ledger entries in occurrence order. With an asset id
// the period bounds are optional; without one, a missing bound
// defaults to the last year.
func (s *HistoryService) Query(ctx context.Context, assetID *uuid.UUID, from, to *models.Date) ([]*models.LedgerEvent, error) {
	defer metrics.ObserveDuration("history_query", time.Now())

	if from != nil && to != nil && from.After(*to) {
		return nil, invalidRange(*from, *to)
	}

	if assetID != nil {
		events, err := s.ledger.QueryByAsset(ctx, *assetID, from, to)
		if err != nil {
			return nil, coerceStorage(err)
		}
		return events, nil
	}

	end := models.Today()
	if to != nil {
		end = *to
	}
	start := end.AddDays(-defaultHistoryWindow)
	if from != nil {
		start = *from
	}

	events, err := s.ledger.QueryByPeriod(ctx, start, end)
	if err != nil {
		return nil, coerceStorage(err)
	}
	return events, nil
}
