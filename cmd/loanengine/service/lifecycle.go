package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/loandesk/loanengine/common/metrics"
)

// transitions is the explicit state machine. Anything not listed is
// an illegal transition and is rejected rather than trusted.
var transitions = map[models.AssetStatus][]models.AssetStatus{
	models.StatusAvailable:       {models.StatusLoaned, models.StatusReservedPending, models.StatusRemastering, models.StatusOutOfService},
	models.StatusLoaned:          {models.StatusAvailable, models.StatusReservedPending},
	models.StatusReservedPending: {models.StatusLoaned, models.StatusAvailable},
	models.StatusRemastering:     {models.StatusAvailable},
	models.StatusOutOfService:    {models.StatusAvailable},
}

func canTransition(from, to models.AssetStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AssetStore is the registry surface the state machine mutates
type AssetStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Asset, error)
	UpdateState(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, status models.AssetStatus, holder *string, activeLoanID *uuid.UUID) error
}

// LoanStore is the loan persistence surface used by booking flows
type LoanStore interface {
	Create(ctx context.Context, tx pgx.Tx, loan *models.Loan) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, loanID uuid.UUID) (*models.Loan, error)
	GetActiveByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Loan, error)
	MarkReturned(ctx context.Context, tx pgx.Tx, loanID uuid.UUID, returnDate models.Date, returnedBy string) error
}

// ReservationStore is the reservation persistence surface
type ReservationStore interface {
	Create(ctx context.Context, tx pgx.Tx, res *models.Reservation) error
	Get(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error)
	ListByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) ([]*models.Reservation, error)
	Delete(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) error
}

// LedgerAppender appends history events inside the booking transaction
type LedgerAppender interface {
	Append(ctx context.Context, tx pgx.Tx, event *models.LedgerEvent) error
}

// EventPublisher notifies in-process collaborators after commit
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
}

// CacheInvalidator drops cached calendar views covering a date range
type CacheInvalidator interface {
	InvalidateRange(ctx context.Context, from, to models.Date)
}

// LedgerTopic is the queue topic carrying committed ledger events.
const LedgerTopic = "ledger.events"

// LifecycleService governs asset status transitions and is the only
// component that mutates registry state. Every booking mutation runs
// in one transaction holding the asset row lock, so the conflict
// check and the write are serialized per asset.
type LifecycleService struct {
	tx           TxRunner
	assets       AssetStore
	loans        LoanStore
	reservations ReservationStore
	ledger       LedgerAppender
	policy       *PolicyEvaluator
	publisher    EventPublisher
	calendar     CacheInvalidator
	log          *logger.Logger

	graceDays int
	today     func() models.Date
}

// LifecycleServiceOpts contains options for creating a LifecycleService
type LifecycleServiceOpts struct {
	Tx           TxRunner
	Assets       AssetStore
	Loans        LoanStore
	Reservations ReservationStore
	Ledger       LedgerAppender
	Policy       *PolicyEvaluator
	Publisher    EventPublisher
	Calendar     CacheInvalidator
	Logger       *logger.Logger
	GraceDays    int
}

// NewLifecycleService creates a new lifecycle service with options pattern
func NewLifecycleService(opts *LifecycleServiceOpts) *LifecycleService {
	return &LifecycleService{
		tx:           opts.Tx,
		assets:       opts.Assets,
		loans:        opts.Loans,
		reservations: opts.Reservations,
		ledger:       opts.Ledger,
		policy:       opts.Policy,
		publisher:    opts.Publisher,
		calendar:     opts.Calendar,
		log:          opts.Logger,
		graceDays:    opts.GraceDays,
		today:        models.Today,
	}
}

// CreateLoanRequest represents a request to loan an asset
type CreateLoanRequest struct {
	AssetID         uuid.UUID   `json:"asset_id"`
	HolderName      string      `json:"holder_name"`
	Reason          string      `json:"reason"`
	StartDate       models.Date `json:"start_date"`
	EndDateExpected models.Date `json:"end_date_expected"`
	Notes           string      `json:"notes"`
	CreatedBy       string      `json:"created_by"`

	// Optional: fulfil an existing reservation. Its window is excluded
	// from the conflict check and the reservation is consumed.
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
}

// CreateReservationRequest represents a request to reserve an asset
type CreateReservationRequest struct {
	AssetID    uuid.UUID   `json:"asset_id"`
	HolderName string      `json:"holder_name"`
	StartDate  models.Date `json:"start_date"`
	EndDate    models.Date `json:"end_date"`
	Notes      string      `json:"notes"`
	CreatedBy  string      `json:"created_by"`
}

// CreateLoan loans an asset to a holder. Fails with ConflictError if
// the window overlaps any active booking, StateError if the asset is
// in a maintenance state.
func (s *LifecycleService) CreateLoan(ctx context.Context, req *CreateLoanRequest) (*models.Loan, error) {
	defer metrics.ObserveDuration("create_loan", time.Now())

	if err := s.validateLoanRequest(req); err != nil {
		metrics.Bookings.WithLabelValues("loan", "rejected").Inc()
		return nil, err
	}
	if err := s.policy.Allow(WindowLoan, req.HolderName, req.StartDate, req.EndDateExpected); err != nil {
		metrics.Bookings.WithLabelValues("loan", "rejected").Inc()
		return nil, err
	}

	var loan *models.Loan
	var event *models.LedgerEvent

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		asset, err := s.assets.GetForUpdate(ctx, tx, req.AssetID)
		if err != nil {
			return notFound("asset", req.AssetID, err)
		}
		if asset.Archived() {
			return &StateError{Msg: fmt.Sprintf("asset %s is archived", asset.ID)}
		}
		if !asset.Status.Bookable() {
			return &StateError{Msg: fmt.Sprintf("asset %s is %s and cannot be booked", asset.ID, asset.Status)}
		}

		excludeID := uuid.Nil
		if req.ReservationID != nil {
			res, err := s.reservations.GetForUpdate(ctx, tx, *req.ReservationID)
			if err != nil {
				return notFound("reservation", *req.ReservationID, err)
			}
			if res.AssetID != req.AssetID {
				return &ValidationError{Field: "reservation_id", Msg: "reservation belongs to a different asset"}
			}
			excludeID = res.ID
		}

		windows, err := s.bookingWindows(ctx, tx, req.AssetID)
		if err != nil {
			return err
		}
		if blocking := FindConflict(windows, req.StartDate, req.EndDateExpected, excludeID); blocking != nil {
			return &ConflictError{Blocking: *blocking}
		}

		if !canTransition(asset.Status, models.StatusLoaned) {
			return &StateError{Msg: fmt.Sprintf("cannot loan asset in status %s", asset.Status)}
		}

		loan = &models.Loan{
			ID:                uuid.New(),
			AssetID:           asset.ID,
			AssetNameSnapshot: asset.Name,
			HolderName:        req.HolderName,
			Reason:            req.Reason,
			StartDate:         req.StartDate,
			EndDateExpected:   req.EndDateExpected,
			Notes:             req.Notes,
			CreatedBy:         req.CreatedBy,
			CreatedAt:         time.Now().UTC(),
		}
		if err := s.loans.Create(ctx, tx, loan); err != nil {
			return err
		}

		// Fulfilment consumes the reservation in the same commit
		if req.ReservationID != nil {
			if err := s.reservations.Delete(ctx, tx, *req.ReservationID); err != nil {
				return err
			}
		}

		if err := s.assets.UpdateState(ctx, tx, asset.ID, models.StatusLoaned, &req.HolderName, &loan.ID); err != nil {
			return err
		}

		event, err = models.NewLedgerEvent(asset.ID, models.EventLoanCreated, loan, req.CreatedBy)
		if err != nil {
			return fmt.Errorf("marshal loan snapshot: %w", err)
		}
		return s.ledger.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, s.bookingFailed("loan", err)
	}

	metrics.Bookings.WithLabelValues("loan", "ok").Inc()
	s.log.WithAssetID(req.AssetID.String()).WithLoanID(loan.ID.String()).Info("loan created",
		"holder", req.HolderName,
		"start", req.StartDate.String(),
		"end_expected", req.EndDateExpected.String())

	s.committed(ctx, event)
	s.invalidateOpenEnded(ctx, loan.StartDate)
	return loan, nil
}

// ReturnLoan closes a loan. The asset returns to available, or to
// reserved_pending when a reservation window covers the return day.
func (s *LifecycleService) ReturnLoan(ctx context.Context, loanID uuid.UUID, returnedBy string) (*models.Loan, error) {
	defer metrics.ObserveDuration("return_loan", time.Now())

	if returnedBy == "" {
		return nil, required("returned_by")
	}

	var loan *models.Loan
	var event *models.LedgerEvent

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		loan, err = s.loans.GetForUpdate(ctx, tx, loanID)
		if err != nil {
			return notFound("loan", loanID, err)
		}
		if loan.Returned() {
			return &StateError{Msg: fmt.Sprintf("loan %s is already returned", loanID)}
		}

		asset, err := s.assets.GetForUpdate(ctx, tx, loan.AssetID)
		if err != nil {
			return notFound("asset", loan.AssetID, err)
		}

		today := s.today()
		if err := s.loans.MarkReturned(ctx, tx, loanID, today, returnedBy); err != nil {
			return err
		}
		loan.ActualReturnDate = &today
		loan.ReturnedBy = &returnedBy

		// Policy decision: a reservation already due today parks the
		// asset in reserved_pending; fulfilment still needs an
		// explicit CreateLoan carrying the reservation id.
		next := models.StatusAvailable
		reservations, err := s.reservations.ListByAsset(ctx, tx, asset.ID)
		if err != nil {
			return err
		}
		for _, res := range reservations {
			if res.Covers(today) {
				next = models.StatusReservedPending
				break
			}
		}

		if err := s.assets.UpdateState(ctx, tx, asset.ID, next, nil, nil); err != nil {
			return err
		}

		event, err = models.NewLedgerEvent(asset.ID, models.EventLoanReturned, loan, returnedBy)
		if err != nil {
			return fmt.Errorf("marshal loan snapshot: %w", err)
		}
		return s.ledger.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, coerceStorage(err)
	}

	s.log.WithAssetID(loan.AssetID.String()).WithLoanID(loan.ID.String()).Info("loan returned",
		"returned_by", returnedBy)

	s.committed(ctx, event)
	s.invalidateOpenEnded(ctx, loan.StartDate)
	return loan, nil
}

// CreateReservation places a future hold on an asset. The asset's
// status is untouched: it stays bookable for any other window.
func (s *LifecycleService) CreateReservation(ctx context.Context, req *CreateReservationRequest) (*models.Reservation, error) {
	defer metrics.ObserveDuration("create_reservation", time.Now())

	if err := s.validateReservationRequest(req); err != nil {
		metrics.Bookings.WithLabelValues("reservation", "rejected").Inc()
		return nil, err
	}
	if err := s.policy.Allow(WindowReservation, req.HolderName, req.StartDate, req.EndDate); err != nil {
		metrics.Bookings.WithLabelValues("reservation", "rejected").Inc()
		return nil, err
	}

	var res *models.Reservation
	var event *models.LedgerEvent

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		asset, err := s.assets.GetForUpdate(ctx, tx, req.AssetID)
		if err != nil {
			return notFound("asset", req.AssetID, err)
		}
		if asset.Archived() {
			return &StateError{Msg: fmt.Sprintf("asset %s is archived", asset.ID)}
		}
		if !asset.Status.Bookable() {
			return &StateError{Msg: fmt.Sprintf("asset %s is %s and cannot be booked", asset.ID, asset.Status)}
		}

		windows, err := s.bookingWindows(ctx, tx, req.AssetID)
		if err != nil {
			return err
		}
		if blocking := FindConflict(windows, req.StartDate, req.EndDate, uuid.Nil); blocking != nil {
			return &ConflictError{Blocking: *blocking}
		}

		res = &models.Reservation{
			ID:         uuid.New(),
			AssetID:    asset.ID,
			HolderName: req.HolderName,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			Notes:      req.Notes,
			CreatedBy:  req.CreatedBy,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.reservations.Create(ctx, tx, res); err != nil {
			return err
		}

		event, err = models.NewLedgerEvent(asset.ID, models.EventReservationCreated, res, req.CreatedBy)
		if err != nil {
			return fmt.Errorf("marshal reservation snapshot: %w", err)
		}
		return s.ledger.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, s.bookingFailed("reservation", err)
	}

	metrics.Bookings.WithLabelValues("reservation", "ok").Inc()
	s.log.WithAssetID(req.AssetID.String()).WithReservationID(res.ID.String()).Info("reservation created",
		"holder", req.HolderName,
		"start", req.StartDate.String(),
		"end", req.EndDate.String())

	s.committed(ctx, event)
	s.invalidate(ctx, res.StartDate, res.EndDate)
	return res, nil
}

// CancelReservation removes a reservation from the active set. A
// second cancel of the same id fails with NotFoundError.
func (s *LifecycleService) CancelReservation(ctx context.Context, reservationID uuid.UUID, cancelledBy string) error {
	defer metrics.ObserveDuration("cancel_reservation", time.Now())

	if cancelledBy == "" {
		return required("cancelled_by")
	}

	var res *models.Reservation
	var event *models.LedgerEvent

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		// Unlocked read to learn the asset, then the asset row lock
		// before the reservation row lock. Fulfilment takes its locks
		// in that order; taking them in the reverse order here can
		// deadlock against a concurrent fulfilment.
		var err error
		res, err = s.reservations.Get(ctx, tx, reservationID)
		if err != nil {
			return notFound("reservation", reservationID, err)
		}

		asset, err := s.assets.GetForUpdate(ctx, tx, res.AssetID)
		if err != nil {
			return notFound("asset", res.AssetID, err)
		}

		res, err = s.reservations.GetForUpdate(ctx, tx, reservationID)
		if err != nil {
			return notFound("reservation", reservationID, err)
		}

		if err := s.reservations.Delete(ctx, tx, reservationID); err != nil {
			return err
		}

		// A reserved_pending asset whose due reservation vanished goes
		// back to available unless another reservation is due today.
		if asset.Status == models.StatusReservedPending {
			remaining, err := s.reservations.ListByAsset(ctx, tx, asset.ID)
			if err != nil {
				return err
			}
			stillDue := false
			today := s.today()
			for _, other := range remaining {
				if other.Covers(today) {
					stillDue = true
					break
				}
			}
			if !stillDue {
				if err := s.assets.UpdateState(ctx, tx, asset.ID, models.StatusAvailable, nil, nil); err != nil {
					return err
				}
			}
		}

		event, err = models.NewLedgerEvent(asset.ID, models.EventReservationCancelled, res, cancelledBy)
		if err != nil {
			return fmt.Errorf("marshal reservation snapshot: %w", err)
		}
		return s.ledger.Append(ctx, tx, event)
	})
	if err != nil {
		return coerceStorage(err)
	}

	s.log.WithAssetID(res.AssetID.String()).WithReservationID(reservationID.String()).Info("reservation cancelled",
		"cancelled_by", cancelledBy)

	s.committed(ctx, event)
	s.invalidate(ctx, res.StartDate, res.EndDate)
	return nil
}

// SetMaintenance toggles an asset between available and a maintenance
// state. Maintenance suspends bookability; existing reservations stay
// untouched.
func (s *LifecycleService) SetMaintenance(ctx context.Context, assetID uuid.UUID, target models.AssetStatus, actor string) (*models.Asset, error) {
	if target != models.StatusAvailable && target != models.StatusRemastering && target != models.StatusOutOfService {
		return nil, &ValidationError{Field: "status", Msg: fmt.Sprintf("%s is not a maintenance toggle", target)}
	}

	var asset *models.Asset

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		asset, err = s.assets.GetForUpdate(ctx, tx, assetID)
		if err != nil {
			return notFound("asset", assetID, err)
		}
		if asset.Archived() {
			return &StateError{Msg: fmt.Sprintf("asset %s is archived", assetID)}
		}
		if !canTransition(asset.Status, target) {
			return &StateError{Msg: fmt.Sprintf("cannot move asset from %s to %s", asset.Status, target)}
		}

		if err := s.assets.UpdateState(ctx, tx, assetID, target, nil, nil); err != nil {
			return err
		}
		asset.Status = target
		asset.CurrentHolder = nil
		asset.ActiveLoanID = nil
		return nil
	})
	if err != nil {
		return nil, coerceStorage(err)
	}

	s.log.WithAssetID(assetID.String()).Info("asset maintenance status changed",
		"status", string(target),
		"actor", actor)
	return asset, nil
}

// bookingWindows gathers the asset's blocking windows in stable order:
// the active loan first, then reservations by start date.
func (s *LifecycleService) bookingWindows(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) ([]BookingWindow, error) {
	var windows []BookingWindow

	active, err := s.loans.GetActiveByAsset(ctx, tx, assetID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		windows = append(windows, loanWindow(active))
	}

	reservations, err := s.reservations.ListByAsset(ctx, tx, assetID)
	if err != nil {
		return nil, err
	}
	for _, res := range reservations {
		windows = append(windows, reservationWindow(res))
	}

	return windows, nil
}

func (s *LifecycleService) validateLoanRequest(req *CreateLoanRequest) error {
	if req.AssetID == uuid.Nil {
		return required("asset_id")
	}
	if req.HolderName == "" {
		return required("holder_name")
	}
	if req.CreatedBy == "" {
		return required("created_by")
	}
	if req.StartDate.IsZero() || req.EndDateExpected.IsZero() {
		return required("start_date/end_date_expected")
	}
	if req.StartDate.After(req.EndDateExpected) {
		return invalidRange(req.StartDate, req.EndDateExpected)
	}
	return nil
}

func (s *LifecycleService) validateReservationRequest(req *CreateReservationRequest) error {
	if req.AssetID == uuid.Nil {
		return required("asset_id")
	}
	if req.HolderName == "" {
		return required("holder_name")
	}
	if req.CreatedBy == "" {
		return required("created_by")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return required("start_date/end_date")
	}
	if req.StartDate.After(req.EndDate) {
		return invalidRange(req.StartDate, req.EndDate)
	}

	earliest := s.today().AddDays(-s.graceDays)
	if req.StartDate.Before(earliest) {
		return &ValidationError{
			Field: "start_date",
			Msg:   fmt.Sprintf("%s is more than %d day(s) in the past", req.StartDate, s.graceDays),
		}
	}
	return nil
}

// committed publishes a ledger event to in-process subscribers after
// the transaction committed. The database row is the source of truth;
// delivery here is best-effort.
func (s *LifecycleService) committed(ctx context.Context, event *models.LedgerEvent) {
	if event == nil {
		return
	}
	metrics.LedgerEvents.WithLabelValues(string(event.EventType)).Inc()

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("failed to marshal ledger event for publish", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, LedgerTopic, event.AssetID.String(), payload); err != nil {
		s.log.Warn("failed to publish ledger event", "error", err)
	}
}

func (s *LifecycleService) invalidate(ctx context.Context, from, to models.Date) {
	if s.calendar != nil {
		s.calendar.InvalidateRange(ctx, from, to)
	}
}

// invalidateOpenEnded drops cached months from a loan's start through
// the caching horizon. Until returned, a loan blocks every future
// date, so month views well past its expected end are stale too; the
// calendar never caches months beyond the horizon, which keeps the
// sweep bounded.
func (s *LifecycleService) invalidateOpenEnded(ctx context.Context, from models.Date) {
	s.invalidate(ctx, from, s.today().AddDays(cacheHorizonDays))
}

func (s *LifecycleService) bookingFailed(kind string, err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		metrics.Conflicts.Inc()
		metrics.Bookings.WithLabelValues(kind, "conflict").Inc()
	} else {
		metrics.Bookings.WithLabelValues(kind, "error").Inc()
	}
	return coerceStorage(err)
}

// notFound maps a repository miss to a NotFoundError, passing other
// failures through untouched.
func notFound(resource string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}
	return err
}

// coerceStorage wraps non-domain failures as StorageError so callers
// see a stable error kind for I/O problems.
func coerceStorage(err error) error {
	var ve *ValidationError
	var nf *NotFoundError
	var ce *ConflictError
	var se *StateError
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Err: err}
}
