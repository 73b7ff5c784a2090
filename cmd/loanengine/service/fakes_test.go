package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/common/logger"
)

// fakeTxRunner executes the transactional function directly. The fake
// stores below ignore the tx handle, so passing nil is safe.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// fakeStore is an in-memory stand-in for all four repositories. locks
// records row-lock acquisitions in order so tests can assert that
// every booking path locks rows consistently.
type fakeStore struct {
	assets       map[uuid.UUID]*models.Asset
	loans        map[uuid.UUID]*models.Loan
	reservations map[uuid.UUID]*models.Reservation
	events       []*models.LedgerEvent
	locks        []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:       make(map[uuid.UUID]*models.Asset),
		loans:        make(map[uuid.UUID]*models.Loan),
		reservations: make(map[uuid.UUID]*models.Reservation),
	}
}

func (f *fakeStore) addAsset(status models.AssetStatus) *models.Asset {
	asset := &models.Asset{
		ID:           uuid.New(),
		Name:         "pc-alpha",
		SerialNumber: "SN-" + uuid.NewString()[:8],
		Status:       status,
	}
	f.assets[asset.ID] = asset
	return asset
}

func (f *fakeStore) addReservation(assetID uuid.UUID, holder string, start, end models.Date) *models.Reservation {
	res := &models.Reservation{
		ID:         uuid.New(),
		AssetID:    assetID,
		HolderName: holder,
		StartDate:  start,
		EndDate:    end,
	}
	f.reservations[res.ID] = res
	return res
}

func (f *fakeStore) addOpenLoan(asset *models.Asset, holder string, start, end models.Date) *models.Loan {
	loan := &models.Loan{
		ID:                uuid.New(),
		AssetID:           asset.ID,
		AssetNameSnapshot: asset.Name,
		HolderName:        holder,
		StartDate:         start,
		EndDateExpected:   end,
	}
	f.loans[loan.ID] = loan
	asset.Status = models.StatusLoaned
	asset.CurrentHolder = &loan.HolderName
	asset.ActiveLoanID = &loan.ID
	return loan
}

// AssetStore

func (f *fakeStore) GetForUpdate(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Asset, error) {
	asset, ok := f.assets[assetID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.locks = append(f.locks, "asset")
	return asset, nil
}

func (f *fakeStore) UpdateState(ctx context.Context, tx pgx.Tx, assetID uuid.UUID, status models.AssetStatus, holder *string, activeLoanID *uuid.UUID) error {
	asset, ok := f.assets[assetID]
	if !ok {
		return repository.ErrNotFound
	}
	asset.Status = status
	asset.CurrentHolder = holder
	asset.ActiveLoanID = activeLoanID
	return nil
}

// LoanStore

type fakeLoanStore struct{ *fakeStore }

func (f fakeLoanStore) Create(ctx context.Context, tx pgx.Tx, loan *models.Loan) error {
	f.loans[loan.ID] = loan
	return nil
}

func (f fakeLoanStore) GetForUpdate(ctx context.Context, tx pgx.Tx, loanID uuid.UUID) (*models.Loan, error) {
	loan, ok := f.loans[loanID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return loan, nil
}

func (f fakeLoanStore) GetActiveByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) (*models.Loan, error) {
	for _, loan := range f.loans {
		if loan.AssetID == assetID && !loan.Returned() {
			return loan, nil
		}
	}
	return nil, nil
}

func (f fakeLoanStore) MarkReturned(ctx context.Context, tx pgx.Tx, loanID uuid.UUID, returnDate models.Date, returnedBy string) error {
	loan, ok := f.loans[loanID]
	if !ok || loan.Returned() {
		return repository.ErrNotFound
	}
	loan.ActualReturnDate = &returnDate
	loan.ReturnedBy = &returnedBy
	return nil
}

// ReservationStore

type fakeReservationStore struct{ *fakeStore }

func (f fakeReservationStore) Create(ctx context.Context, tx pgx.Tx, res *models.Reservation) error {
	f.reservations[res.ID] = res
	return nil
}

func (f fakeReservationStore) Get(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error) {
	res, ok := f.reservations[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (f fakeReservationStore) GetForUpdate(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) (*models.Reservation, error) {
	res, ok := f.reservations[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.locks = append(f.locks, "reservation")
	return res, nil
}

func (f fakeReservationStore) ListByAsset(ctx context.Context, tx pgx.Tx, assetID uuid.UUID) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for _, res := range f.reservations {
		if res.AssetID == assetID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (f fakeReservationStore) Delete(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) error {
	if _, ok := f.reservations[reservationID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.reservations, reservationID)
	return nil
}

// LedgerAppender

func (f *fakeStore) appendEvent(event *models.LedgerEvent) {
	f.events = append(f.events, event)
}

func (f *fakeStore) eventTypes() []models.EventType {
	types := make([]models.EventType, 0, len(f.events))
	for _, ev := range f.events {
		types = append(types, ev.EventType)
	}
	return types
}

// ledgerRecorder appends to the shared store through a pointer method
// so events survive the value-receiver wrappers above.
type ledgerRecorder struct{ store *fakeStore }

func (l ledgerRecorder) Append(ctx context.Context, tx pgx.Tx, event *models.LedgerEvent) error {
	l.store.appendEvent(event)
	return nil
}

func newTestLifecycle(store *fakeStore, graceDays int, today models.Date) *LifecycleService {
	svc := NewLifecycleService(&LifecycleServiceOpts{
		Tx:           fakeTxRunner{},
		Assets:       store,
		Loans:        fakeLoanStore{store},
		Reservations: fakeReservationStore{store},
		Ledger:       ledgerRecorder{store},
		Policy:       NewPolicyEvaluator(""),
		Logger:       logger.New("error", "json"),
		GraceDays:    graceDays,
	})
	svc.today = func() models.Date { return today }
	return svc
}
