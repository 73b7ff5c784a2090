package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/logger"
	rediscommon "github.com/loandesk/loanengine/common/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSources struct {
	loans        []*models.Loan
	reservations []*models.Reservation
	loanReads    int
}

func (f *fakeSources) ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Loan, error) {
	f.loanReads++
	return f.loans, nil
}

type fakeResSource struct{ *fakeSources }

func (f fakeResSource) ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Reservation, error) {
	return f.reservations, nil
}

type mapCache struct {
	data map[string]string
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]string)} }

func (m *mapCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", rediscommon.ErrNotFound
	}
	return v, nil
}

func (m *mapCache) SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func returnedLoan(assetID uuid.UUID, start, end, returned models.Date) *models.Loan {
	by := "frontdesk"
	return &models.Loan{
		ID:                uuid.New(),
		AssetID:           assetID,
		AssetNameSnapshot: "pc-alpha",
		HolderName:        "alice",
		StartDate:         start,
		EndDateExpected:   end,
		ActualReturnDate:  &returned,
		ReturnedBy:        &by,
	}
}

func openLoan(assetID uuid.UUID, start, end models.Date) *models.Loan {
	return &models.Loan{
		ID:                uuid.New(),
		AssetID:           assetID,
		AssetNameSnapshot: "pc-beta",
		HolderName:        "carol",
		StartDate:         start,
		EndDateExpected:   end,
	}
}

func newTestCalendar(src *fakeSources, cache ViewCache) *CalendarService {
	return NewCalendarService(src, fakeResSource{src}, cache, time.Minute, logger.New("error", "json"))
}

func TestGetMonthView(t *testing.T) {
	ctx := context.Background()
	assetID := uuid.New()
	march := func(d int) models.Date { return models.NewDate(2026, time.March, d) }

	src := &fakeSources{
		loans: []*models.Loan{
			returnedLoan(assetID, march(2), march(10), march(5)),
			openLoan(assetID, march(20), march(24)),
		},
		reservations: []*models.Reservation{
			{
				ID: uuid.New(), AssetID: assetID, HolderName: "bob",
				StartDate: march(12), EndDate: march(14),
			},
		},
	}
	svc := newTestCalendar(src, nil)

	view, err := svc.GetMonthView(ctx, 2026, time.March)
	require.NoError(t, err)
	require.Len(t, view.Days, 31)

	eventsOn := func(d int) []CalendarEvent {
		return view.Days[d-1].Events
	}

	// Returned loan covers its actual span only
	require.Len(t, eventsOn(2), 1)
	assert.Equal(t, StateCompleted, eventsOn(2)[0].State)
	require.Len(t, eventsOn(5), 1)
	assert.Empty(t, eventsOn(6), "loan was returned on the 5th")

	// Reservation days
	require.Len(t, eventsOn(13), 1)
	assert.Equal(t, StateReserved, eventsOn(13)[0].State)
	assert.Equal(t, WindowReservation, eventsOn(13)[0].Kind)

	// Open loan clamps to the month's last day
	require.Len(t, eventsOn(31), 1)
	last := eventsOn(31)[0]
	assert.Equal(t, StateActive, last.State)
	assert.True(t, last.End.Equal(march(31)))

	// Quiet day
	assert.Empty(t, eventsOn(16))
}

func TestGetMonthViewInvalidMonth(t *testing.T) {
	svc := newTestCalendar(&fakeSources{}, nil)
	_, err := svc.GetMonthView(context.Background(), 2026, time.Month(13))

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestMonthViewCache(t *testing.T) {
	ctx := context.Background()
	assetID := uuid.New()
	march := func(d int) models.Date { return models.NewDate(2026, time.March, d) }

	src := &fakeSources{
		loans: []*models.Loan{returnedLoan(assetID, march(2), march(10), march(5))},
	}
	cache := newMapCache()
	svc := newTestCalendar(src, cache)

	first, err := svc.GetMonthView(ctx, 2026, time.March)
	require.NoError(t, err)
	require.Equal(t, 1, src.loanReads)

	// Second read is served from cache and carries identical data
	second, err := svc.GetMonthView(ctx, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, 1, src.loanReads, "cached read must not hit the store")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))

	// Invalidation forces the next read back to the store
	svc.InvalidateRange(ctx, march(1), march(31))
	_, err = svc.GetMonthView(ctx, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, 2, src.loanReads)
}

func TestFarFutureMonthsBypassCache(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	src := &fakeSources{}
	svc := newTestCalendar(src, cache)

	// Booking commits only invalidate up to the caching horizon, so a
	// view past it must never be cached in the first place.
	far := models.Today().AddDays(cacheHorizonDays + 40)
	_, err := svc.GetMonthView(ctx, far.Year(), far.Month())
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	_, err = svc.GetMonthView(ctx, far.Year(), far.Month())
	require.NoError(t, err)
	assert.Equal(t, 2, src.loanReads, "every far-future read hits the store")
}

func TestInvalidateRangeSpansMonths(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	cache.data["calendar:2026-03"] = "x"
	cache.data["calendar:2026-04"] = "x"
	cache.data["calendar:2026-05"] = "x"
	cache.data["calendar:2026-06"] = "x"

	svc := newTestCalendar(&fakeSources{}, cache)
	svc.InvalidateRange(ctx, models.NewDate(2026, time.March, 28), models.NewDate(2026, time.May, 2))

	assert.NotContains(t, cache.data, "calendar:2026-03")
	assert.NotContains(t, cache.data, "calendar:2026-04")
	assert.NotContains(t, cache.data, "calendar:2026-05")
	assert.Contains(t, cache.data, "calendar:2026-06", "months outside the range stay cached")
}

func TestGetDayDetail(t *testing.T) {
	ctx := context.Background()
	assetID := uuid.New()
	march := func(d int) models.Date { return models.NewDate(2026, time.March, d) }

	src := &fakeSources{
		loans: []*models.Loan{openLoan(assetID, march(1), march(5))},
		reservations: []*models.Reservation{
			{
				ID: uuid.New(), AssetID: assetID, HolderName: "bob",
				StartDate: march(10), EndDate: march(12),
			},
		},
	}
	svc := newTestCalendar(src, nil)

	// Open loan is active on the queried day even past its expected end
	events, err := svc.GetDayDetail(ctx, march(8))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, WindowLoan, events[0].Kind)
	assert.Equal(t, StateActive, events[0].State)
	assert.True(t, events[0].End.Equal(march(8)), "open loan clamps to the queried day")

	// Reservation day shows both the hold and the overdue loan
	events, err = svc.GetDayDetail(ctx, march(11))
	require.NoError(t, err)
	require.Len(t, events, 2)
}
