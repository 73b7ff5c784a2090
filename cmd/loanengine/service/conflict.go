package service

import (
	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
)

// WindowKind distinguishes loan and reservation windows
type WindowKind string

const (
	WindowLoan        WindowKind = "loan"
	WindowReservation WindowKind = "reservation"
)

// BookingWindow is one committed booking seen by the conflict checker.
// An unreturned loan is open-ended: its effective end is infinity, so
// it blocks every future date until the asset comes back.
type BookingWindow struct {
	RecordID  uuid.UUID   `json:"record_id"`
	Kind      WindowKind  `json:"kind"`
	Holder    string      `json:"holder"`
	Start     models.Date `json:"start_date"`
	End       models.Date `json:"end_date"`
	OpenEnded bool        `json:"open_ended"`
}

// overlaps reports whether the inclusive-day candidate [start, end]
// intersects the window. Two windows [a,b] and [c,d] overlap iff
// a <= d && c <= b; touching at a boundary day counts as overlap.
func (w BookingWindow) overlaps(start, end models.Date) bool {
	if w.Start.After(end) {
		return false
	}
	if w.OpenEnded {
		return true
	}
	return !start.After(w.End)
}

// FindConflict returns the first window blocking the candidate range,
// or nil if the range is free. Callers pass windows with the active
// loan first and reservations in start-date order, so the reported
// blocker is deterministic. excludeID lets an operation re-check a
// window while ignoring its own record (e.g. fulfilling a
// reservation into a loan over the same days).
func FindConflict(windows []BookingWindow, start, end models.Date, excludeID uuid.UUID) *BookingWindow {
	for i := range windows {
		w := windows[i]
		if excludeID != uuid.Nil && w.RecordID == excludeID {
			continue
		}
		if w.overlaps(start, end) {
			return &w
		}
	}
	return nil
}

// loanWindow converts a loan record to its effective booking window.
func loanWindow(loan *models.Loan) BookingWindow {
	w := BookingWindow{
		RecordID: loan.ID,
		Kind:     WindowLoan,
		Holder:   loan.HolderName,
		Start:    loan.StartDate,
		End:      loan.EndDateExpected,
	}
	if !loan.Returned() {
		w.OpenEnded = true
	}
	return w
}

// reservationWindow converts a reservation to its booking window.
func reservationWindow(res *models.Reservation) BookingWindow {
	return BookingWindow{
		RecordID: res.ID,
		Kind:     WindowReservation,
		Holder:   res.HolderName,
		Start:    res.StartDate,
		End:      res.EndDate,
	}
}
