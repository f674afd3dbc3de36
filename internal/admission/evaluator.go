// Package admission decides whether an event accepts new responses.
//
// Every entry point that needs to know whether an event is over, open, or full
// goes through this package; the same-day end rule exists only in Ended.
package admission

import (
	"time"

	"github.com/eventforms/backend/internal/models"
)

// State is the outcome of evaluating an event at an instant.
type State int

const (
	Admitted State = iota
	NotFound
	DeniedNotOpen
	DeniedClosedOn
	DeniedEnded
	DeniedCapacity
)

func (s State) String() string {
	switch s {
	case Admitted:
		return "ADMITTED"
	case NotFound:
		return "NOT_FOUND"
	case DeniedNotOpen:
		return "DENIED_NOT_OPEN"
	case DeniedClosedOn:
		return "DENIED_CLOSED_ON"
	case DeniedEnded:
		return "DENIED_ENDED"
	case DeniedCapacity:
		return "DENIED_CAPACITY"
	}
	return "UNKNOWN"
}

// Reason is the user-facing explanation of a denial.
func (s State) Reason() string {
	switch s {
	case Admitted:
		return "admitted"
	case NotFound:
		return "event not found"
	case DeniedNotOpen:
		return "event is not open"
	case DeniedClosedOn:
		return "event submissions are closed"
	case DeniedEnded:
		return "event has ended"
	case DeniedCapacity:
		return "capacity reached"
	}
	return "admission denied"
}

// Evaluate checks existence, status, closeOn and schedule, in that order.
// Capacity is not considered; see EvaluateWithCount.
func Evaluate(ev *models.Event, now time.Time) State {
	if ev == nil {
		return NotFound
	}
	if ev.Status != models.StatusOpen {
		return DeniedNotOpen
	}
	if ClosedOnPassed(ev, now) {
		return DeniedClosedOn
	}
	if Ended(ev, now) {
		return DeniedEnded
	}
	return Admitted
}

// EvaluateWithCount is Evaluate followed by the capacity check against the
// number of responses already recorded for the event.
func EvaluateWithCount(ev *models.Event, now time.Time, responses int) State {
	if st := Evaluate(ev, now); st != Admitted {
		return st
	}
	if CapacityFull(ev, responses) {
		return DeniedCapacity
	}
	return Admitted
}

// ClosedOnPassed reports whether now is at or after the event's closeOn deadline.
func ClosedOnPassed(ev *models.Event, now time.Time) bool {
	return ev.CloseOn != nil && !now.Before(*ev.CloseOn)
}

// CapacityFull reports whether responses has reached the event's capacity limit.
func CapacityFull(ev *models.Event, responses int) bool {
	return ev.CapacityLimit != nil && responses >= *ev.CapacityLimit
}

// Ended applies the same-day end rule. now must already be in the event time zone.
// An event dated before today has ended; one dated after today has not. On the
// day itself it ends once the time of day passes endTime, or the start time when
// no end time is set. With neither set it never ends on the day.
func Ended(ev *models.Event, now time.Time) bool {
	switch ev.Date.Compare(models.DateOf(now)) {
	case -1:
		return true
	case 1:
		return false
	}
	tod := models.ClockOf(now)
	if ev.EndTime != nil {
		return tod > *ev.EndTime
	}
	if ev.Time != nil {
		return tod > *ev.Time
	}
	return false
}

// Snapshot holds the derived admission fields exposed on event listings.
type Snapshot struct {
	CapacityFull  bool  `json:"capacityFull"`
	CloseOnPassed bool  `json:"closeOnPassed"`
	IsPast        bool  `json:"isPast"`
	Submittable   bool  `json:"submittable"`
	State         State `json:"-"`
}

// Describe computes the derived listing fields for ev.
func Describe(ev *models.Event, now time.Time, responses int) Snapshot {
	st := EvaluateWithCount(ev, now, responses)
	return Snapshot{
		CapacityFull:  CapacityFull(ev, responses),
		CloseOnPassed: ClosedOnPassed(ev, now),
		IsPast:        Ended(ev, now),
		Submittable:   st == Admitted,
		State:         st,
	}
}

// Evaluator binds the pure functions to a clock and the event time zone.
type Evaluator struct {
	clock Clock
	loc   *time.Location
}

// NewEvaluator creates an evaluator. A nil clock uses the system clock and a nil
// location uses time.Local.
func NewEvaluator(clock Clock, loc *time.Location) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{clock: clock, loc: loc}
}

// Now returns the current instant in the event time zone.
func (e *Evaluator) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Evaluate runs Evaluate at the current instant.
func (e *Evaluator) Evaluate(ev *models.Event) State {
	return Evaluate(ev, e.Now())
}

// EvaluateWithCount runs EvaluateWithCount at the current instant.
func (e *Evaluator) EvaluateWithCount(ev *models.Event, responses int) State {
	return EvaluateWithCount(ev, e.Now(), responses)
}

// Ended runs Ended at the current instant.
func (e *Evaluator) Ended(ev *models.Event) bool {
	return Ended(ev, e.Now())
}

// Describe runs Describe at the current instant.
func (e *Evaluator) Describe(ev *models.Event, responses int) Snapshot {
	return Describe(ev, e.Now(), responses)
}
