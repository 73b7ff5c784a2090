package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/loandesk/loanengine/common/metrics"
	rediscommon "github.com/loandesk/loanengine/common/redis"
)

// EventState tags how a calendar event should render
type EventState string

const (
	StateActive    EventState = "active"    // loan currently out
	StateCompleted EventState = "completed" // loan returned
	StateReserved  EventState = "reserved"  // future/advisory hold
)

// CalendarEvent is one booking projected onto the calendar. End is
// the effective end: the true end for closed records, clamped to the
// rendered period for open-ended loans.
type CalendarEvent struct {
	RecordID  uuid.UUID   `json:"record_id"`
	AssetID   uuid.UUID   `json:"asset_id"`
	AssetName string      `json:"asset_name,omitempty"`
	Kind      WindowKind  `json:"kind"`
	State     EventState  `json:"state"`
	Holder    string      `json:"holder"`
	Start     models.Date `json:"start_date"`
	End       models.Date `json:"end_date"`
}

// DayBucket holds the events active on one day
type DayBucket struct {
	Date   models.Date     `json:"date"`
	Events []CalendarEvent `json:"events"`
}

// MonthView is the per-day projection of one month
type MonthView struct {
	Year  int         `json:"year"`
	Month int         `json:"month"`
	Days  []DayBucket `json:"days"`
}

// LoanSource feeds loans into the calendar projection
type LoanSource interface {
	ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Loan, error)
}

// ReservationSource feeds reservations into the calendar projection
type ReservationSource interface {
	ListInPeriod(ctx context.Context, from, to models.Date) ([]*models.Reservation, error)
}

// ViewCache stores rendered month views. Satisfied by the common
// Redis client wrapper.
type ViewCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CalendarService is a read-only projection over the ledger's live
// inputs (loans and reservations). It never mutates state.
type CalendarService struct {
	loans        LoanSource
	reservations ReservationSource
	cache        ViewCache
	cacheTTL     time.Duration
	log          *logger.Logger
}

// NewCalendarService creates a new calendar service. cache may be nil
// when caching is disabled.
func NewCalendarService(loans LoanSource, reservations ReservationSource, cache ViewCache, cacheTTL time.Duration, log *logger.Logger) *CalendarService {
	return &CalendarService{
		loans:        loans,
		reservations: reservations,
		cache:        cache,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("calendar:%04d-%02d", year, int(month))
}

// cacheHorizonDays bounds how far ahead month views may be cached. An
// unreturned loan blocks every future date, so a booking commit must
// be able to reach every cached month with one bounded invalidation;
// months past the horizon always read straight from the database.
const cacheHorizonDays = 730

func monthCacheable(year int, month time.Month) bool {
	return !models.NewDate(year, month, 1).After(models.Today().AddDays(cacheHorizonDays))
}

// GetMonthView returns the per-day event buckets for a month. Served
// from cache when possible; a cached view may trail an in-flight
// write by at most the cache TTL.
func (s *CalendarService) GetMonthView(ctx context.Context, year int, month time.Month) (*MonthView, error) {
	defer metrics.ObserveDuration("month_view", time.Now())

	if month < time.January || month > time.December {
		return nil, &ValidationError{Field: "month", Msg: fmt.Sprintf("invalid month %d", month)}
	}

	key := monthKey(year, month)
	cacheable := s.cache != nil && monthCacheable(year, month)
	if cacheable {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			view := &MonthView{}
			if err := json.Unmarshal([]byte(cached), view); err == nil {
				metrics.CalendarReads.WithLabelValues("cache").Inc()
				return view, nil
			}
			s.log.Warn("discarding corrupt cached month view", "key", key)
		} else if !errors.Is(err, rediscommon.ErrNotFound) {
			// Cache trouble never fails a read; fall through to the db
			s.log.Warn("calendar cache read failed", "key", key, "error", err)
		}
	}

	view, err := s.buildMonthView(ctx, year, month)
	if err != nil {
		return nil, coerceStorage(err)
	}
	metrics.CalendarReads.WithLabelValues("db").Inc()

	if cacheable {
		if encoded, err := json.Marshal(view); err == nil {
			if err := s.cache.SetWithExpiry(ctx, key, string(encoded), s.cacheTTL); err != nil {
				s.log.Warn("calendar cache write failed", "key", key, "error", err)
			}
		}
	}

	return view, nil
}

func (s *CalendarService) buildMonthView(ctx context.Context, year int, month time.Month) (*MonthView, error) {
	first, last := models.MonthRange(year, month)

	loans, err := s.loans.ListInPeriod(ctx, first, last)
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservations.ListInPeriod(ctx, first, last)
	if err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(loans)+len(reservations))
	for _, loan := range loans {
		events = append(events, loanEvent(loan, last))
	}
	for _, res := range reservations {
		events = append(events, reservationEvent(res))
	}

	view := &MonthView{Year: year, Month: int(month), Days: make([]DayBucket, 0, 31)}
	for day := first; !day.After(last); day = day.AddDays(1) {
		bucket := DayBucket{Date: day, Events: []CalendarEvent{}}
		for _, ev := range events {
			if activeOn(ev, day) {
				bucket.Events = append(bucket.Events, ev)
			}
		}
		view.Days = append(view.Days, bucket)
	}

	return view, nil
}

// GetDayDetail returns the events active on a single day.
func (s *CalendarService) GetDayDetail(ctx context.Context, day models.Date) ([]CalendarEvent, error) {
	defer metrics.ObserveDuration("day_detail", time.Now())

	loans, err := s.loans.ListInPeriod(ctx, day, day)
	if err != nil {
		return nil, coerceStorage(err)
	}
	reservations, err := s.reservations.ListInPeriod(ctx, day, day)
	if err != nil {
		return nil, coerceStorage(err)
	}

	events := []CalendarEvent{}
	for _, loan := range loans {
		ev := loanEvent(loan, day)
		if activeOn(ev, day) {
			events = append(events, ev)
		}
	}
	for _, res := range reservations {
		ev := reservationEvent(res)
		if activeOn(ev, day) {
			events = append(events, ev)
		}
	}

	return events, nil
}

// InvalidateRange drops cached month views covering [from, to].
// Called after every committed booking mutation.
func (s *CalendarService) InvalidateRange(ctx context.Context, from, to models.Date) {
	if s.cache == nil {
		return
	}

	var keys []string
	year, month := from.Year(), from.Month()
	for {
		keys = append(keys, monthKey(year, month))
		if year == to.Year() && month == to.Month() {
			break
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("calendar cache invalidation failed", "keys", keys, "error", err)
	}
}

// loanEvent projects a loan for rendering up to clampEnd. A returned
// loan ends on its actual return date and renders as completed; an
// open loan spans to the end of the rendered period.
func loanEvent(loan *models.Loan, clampEnd models.Date) CalendarEvent {
	ev := CalendarEvent{
		RecordID:  loan.ID,
		AssetID:   loan.AssetID,
		AssetName: loan.AssetNameSnapshot,
		Kind:      WindowLoan,
		Holder:    loan.HolderName,
		Start:     loan.StartDate,
	}
	if loan.Returned() {
		ev.State = StateCompleted
		ev.End = *loan.ActualReturnDate
	} else {
		ev.State = StateActive
		ev.End = clampEnd
		if ev.End.Before(ev.Start) {
			ev.End = ev.Start
		}
	}
	return ev
}

func reservationEvent(res *models.Reservation) CalendarEvent {
	return CalendarEvent{
		RecordID: res.ID,
		AssetID:  res.AssetID,
		Kind:     WindowReservation,
		State:    StateReserved,
		Holder:   res.HolderName,
		Start:    res.StartDate,
		End:      res.EndDate,
	}
}

func activeOn(ev CalendarEvent, day models.Date) bool {
	return !day.Before(ev.Start) && !day.After(ev.End)
}
