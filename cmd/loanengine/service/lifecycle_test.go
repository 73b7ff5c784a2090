package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = models.NewDate(2026, time.March, 10)

func loanReq(assetID uuid.UUID, start, end models.Date) *CreateLoanRequest {
	return &CreateLoanRequest{
		AssetID:         assetID,
		HolderName:      "alice",
		Reason:          "field visit",
		StartDate:       start,
		EndDateExpected: end,
		CreatedBy:       "frontdesk",
	}
}

func resReq(assetID uuid.UUID, start, end models.Date) *CreateReservationRequest {
	return &CreateReservationRequest{
		AssetID:    assetID,
		HolderName: "bob",
		StartDate:  start,
		EndDate:    end,
		CreatedBy:  "frontdesk",
	}
}

func TestCreateLoan(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	loan, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(10), day(14)))
	require.NoError(t, err)

	assert.Equal(t, asset.ID, loan.AssetID)
	assert.Equal(t, "pc-alpha", loan.AssetNameSnapshot)
	assert.Equal(t, models.StatusLoaned, asset.Status)
	require.NotNil(t, asset.CurrentHolder)
	assert.Equal(t, "alice", *asset.CurrentHolder)
	require.NotNil(t, asset.ActiveLoanID)
	assert.Equal(t, loan.ID, *asset.ActiveLoanID)

	require.Len(t, store.events, 1)
	assert.Equal(t, models.EventLoanCreated, store.events[0].EventType)
	assert.Equal(t, asset.ID, store.events[0].AssetID)
}

func TestCreateLoanRejectsOverlappingReservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	res := store.addReservation(asset.ID, "bob", day(12), day(15))

	_, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(10), day(12)))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, res.ID, conflict.Blocking.RecordID)
	assert.Equal(t, WindowReservation, conflict.Blocking.Kind)

	// Nothing committed: asset untouched, ledger empty
	assert.Equal(t, models.StatusAvailable, asset.Status)
	assert.Empty(t, store.events)
}

func TestCreateLoanBoundaryTouchIsConflict(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	store.addReservation(asset.ID, "bob", day(15), day(20))

	// Ends exactly on the reservation's first day: whole-day ranges
	// make the shared day double-booked.
	_, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(10), day(15)))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestOpenLoanBlocksAllFutureDates(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	loan := store.addOpenLoan(asset, "carol", day(1), day(5))

	// Expected back long ago, never returned: still blocks next year.
	_, err := svc.CreateReservation(ctx, resReq(asset.ID, day(400), day(405)))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, loan.ID, conflict.Blocking.RecordID)
	assert.True(t, conflict.Blocking.OpenEnded)
}

func TestCreateLoanInvalidRange(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	_, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(14), day(10)))

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, store.events)
}

func TestCreateLoanUnknownAsset(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)

	_, err := svc.CreateLoan(ctx, loanReq(uuid.New(), day(10), day(12)))

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "asset", notFound.Resource)
}

func TestCreateLoanMaintenanceAssetRejected(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusRemastering)

	_, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(10), day(12)))

	var state *StateError
	require.ErrorAs(t, err, &state)
}

func TestReturnLoan(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	loan := store.addOpenLoan(asset, "carol", day(1), day(5))

	returned, err := svc.ReturnLoan(ctx, loan.ID, "frontdesk")
	require.NoError(t, err)

	require.NotNil(t, returned.ActualReturnDate)
	assert.True(t, returned.ActualReturnDate.Equal(testToday))
	require.NotNil(t, returned.ReturnedBy)
	assert.Equal(t, "frontdesk", *returned.ReturnedBy)

	assert.Equal(t, models.StatusAvailable, asset.Status)
	assert.Nil(t, asset.CurrentHolder)
	assert.Nil(t, asset.ActiveLoanID)

	require.Len(t, store.events, 1)
	assert.Equal(t, models.EventLoanReturned, store.events[0].EventType)
}

func TestReturnLoanWithReservationDueToday(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	loan := store.addOpenLoan(asset, "carol", day(1), day(5))
	store.addReservation(asset.ID, "bob", testToday, testToday.AddDays(3))

	_, err := svc.ReturnLoan(ctx, loan.ID, "frontdesk")
	require.NoError(t, err)

	// The asset waits for the due reservation instead of going back to
	// the general pool.
	assert.Equal(t, models.StatusReservedPending, asset.Status)
}

func TestReturnLoanTwice(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	loan := store.addOpenLoan(asset, "carol", day(1), day(5))

	_, err := svc.ReturnLoan(ctx, loan.ID, "frontdesk")
	require.NoError(t, err)

	_, err = svc.ReturnLoan(ctx, loan.ID, "frontdesk")
	var state *StateError
	require.ErrorAs(t, err, &state)

	// Only the first return is ledgered
	assert.Equal(t, []models.EventType{models.EventLoanReturned}, store.eventTypes())
}

func TestReservationFulfilment(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusReservedPending)
	res := store.addReservation(asset.ID, "alice", day(10), day(14))

	req := loanReq(asset.ID, day(10), day(14))
	req.ReservationID = &res.ID

	loan, err := svc.CreateLoan(ctx, req)
	require.NoError(t, err)

	// The reservation's own window did not block the loan and the
	// reservation was consumed in the same commit.
	assert.NotContains(t, store.reservations, res.ID)
	assert.Equal(t, models.StatusLoaned, asset.Status)
	require.NotNil(t, asset.ActiveLoanID)
	assert.Equal(t, loan.ID, *asset.ActiveLoanID)
}

func TestReservationFulfilmentWrongAsset(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	other := store.addAsset(models.StatusAvailable)
	res := store.addReservation(other.ID, "alice", day(10), day(14))

	req := loanReq(asset.ID, day(10), day(14))
	req.ReservationID = &res.ID

	_, err := svc.CreateLoan(ctx, req)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "reservation_id", validation.Field)
}

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	res, err := svc.CreateReservation(ctx, resReq(asset.ID, day(20), day(25)))
	require.NoError(t, err)

	// Reservations never change the asset's status
	assert.Equal(t, models.StatusAvailable, asset.Status)
	assert.Contains(t, store.reservations, res.ID)
	assert.Equal(t, []models.EventType{models.EventReservationCreated}, store.eventTypes())
}

func TestCreateReservationGraceWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	// One day in the past: inside the grace window
	_, err := svc.CreateReservation(ctx, resReq(asset.ID, testToday.AddDays(-1), testToday.AddDays(2)))
	require.NoError(t, err)

	// Two days in the past: rejected
	_, err = svc.CreateReservation(ctx, resReq(asset.ID, testToday.AddDays(-2), testToday.AddDays(-2)))
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "start_date", validation.Field)
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	res := store.addReservation(asset.ID, "bob", day(20), day(25))

	require.NoError(t, svc.CancelReservation(ctx, res.ID, "bob"))
	assert.NotContains(t, store.reservations, res.ID)
	assert.Equal(t, []models.EventType{models.EventReservationCancelled}, store.eventTypes())

	// Cancelling again is a miss, not an idempotent success
	err := svc.CancelReservation(ctx, res.ID, "bob")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCancelDueReservationReleasesAsset(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusReservedPending)
	res := store.addReservation(asset.ID, "bob", testToday, testToday.AddDays(2))

	require.NoError(t, svc.CancelReservation(ctx, res.ID, "bob"))
	assert.Equal(t, models.StatusAvailable, asset.Status)
}

func TestReserveCancelReserveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	first, err := svc.CreateReservation(ctx, resReq(asset.ID, day(20), day(25)))
	require.NoError(t, err)

	// Same window again is blocked until the first is cancelled
	_, err = svc.CreateReservation(ctx, resReq(asset.ID, day(20), day(25)))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, svc.CancelReservation(ctx, first.ID, "bob"))

	_, err = svc.CreateReservation(ctx, resReq(asset.ID, day(20), day(25)))
	require.NoError(t, err)

	assert.Equal(t, []models.EventType{
		models.EventReservationCreated,
		models.EventReservationCancelled,
		models.EventReservationCreated,
	}, store.eventTypes())
}

func TestBookingPathsLockAssetBeforeReservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	res := store.addReservation(asset.ID, "alice", day(10), day(14))

	// Fulfilment locks the asset row, then the reservation row
	req := loanReq(asset.ID, day(10), day(14))
	req.ReservationID = &res.ID
	_, err := svc.CreateLoan(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"asset", "reservation"}, store.locks)

	// Cancellation must take the same order, or a concurrent
	// fulfilment and cancel can each hold the lock the other wants.
	store.locks = nil
	other := store.addReservation(asset.ID, "bob", day(20), day(25))
	require.NoError(t, svc.CancelReservation(ctx, other.ID, "bob"))
	assert.Equal(t, []string{"asset", "reservation"}, store.locks)
}

func TestLoanLifecycleDropsWarmedFutureMonths(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	cache := newMapCache()
	svc.calendar = NewCalendarService(nil, nil, cache, time.Minute, logger.New("error", "json"))

	// A loan is open-ended until returned: months far past its
	// expected end would show it active, so warmed views there must
	// not survive the commit.
	cache.data["calendar:2026-04"] = "warm"
	cache.data["calendar:2027-01"] = "warm"
	loan, err := svc.CreateLoan(ctx, loanReq(asset.ID, day(1), day(5)))
	require.NoError(t, err)
	assert.NotContains(t, cache.data, "calendar:2026-04")
	assert.NotContains(t, cache.data, "calendar:2027-01")

	// Returning stops the loan from blocking future months, which is
	// just as stale for any view cached in between.
	cache.data["calendar:2026-06"] = "warm"
	_, err = svc.ReturnLoan(ctx, loan.ID, "frontdesk")
	require.NoError(t, err)
	assert.NotContains(t, cache.data, "calendar:2026-06")
}

func TestSetMaintenance(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)

	updated, err := svc.SetMaintenance(ctx, asset.ID, models.StatusRemastering, "it-dept")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemastering, updated.Status)

	// Reservations survive maintenance; bookings are refused meanwhile
	store.addReservation(asset.ID, "bob", day(20), day(25))
	_, err = svc.CreateLoan(ctx, loanReq(asset.ID, day(11), day(12)))
	var state *StateError
	require.ErrorAs(t, err, &state)

	updated, err = svc.SetMaintenance(ctx, asset.ID, models.StatusAvailable, "it-dept")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, updated.Status)
	assert.Len(t, store.reservations, 1)
}

func TestSetMaintenanceIllegalTransition(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestLifecycle(store, 1, testToday)
	asset := store.addAsset(models.StatusAvailable)
	store.addOpenLoan(asset, "carol", day(1), day(5))

	// loaned -> remastering is not in the transition table
	_, err := svc.SetMaintenance(ctx, asset.ID, models.StatusRemastering, "it-dept")
	var state *StateError
	require.ErrorAs(t, err, &state)

	// and status itself is validated
	_, err = svc.SetMaintenance(ctx, asset.ID, models.StatusLoaned, "it-dept")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}
