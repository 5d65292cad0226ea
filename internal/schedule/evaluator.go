package schedule

import (
	"context"
	"errors"
	"fmt"

	"attendfill/internal/model"
)

// Reason explains an eligibility verdict.
type Reason string

const (
	ReasonEligible Reason = "eligible"
	ReasonWeekend  Reason = "weekend"
	ReasonExisting Reason = "existing"
	ReasonTimeOff  Reason = "time_off"
	ReasonHoliday  Reason = "holiday"
)

// Verdict is the outcome of evaluating one day.
type Verdict struct {
	Day      model.Day
	Eligible bool
	Reason   Reason
}

// ErrNoSnapshot is returned when the evaluator has no day-off snapshot.
var ErrNoSnapshot = errors.New("schedule: day-off snapshot not loaded")

// AttendanceFinder looks up existing records of the session user.
type AttendanceFinder interface {
	FindAttendance(ctx context.Context, day model.Day) ([]model.AttendanceRecord, error)
}

// DayOff answers from the per-run snapshot; see dayoff.Snapshot.
type DayOff interface {
	// Loaded is false for a nil snapshot, including a typed nil.
	Loaded() bool
	OnApprovedTimeOff(day model.Day) bool
	IsHoliday(day model.Day) bool
}

// Evaluator decides whether a day still needs an attendance record.
type Evaluator struct {
	finder AttendanceFinder
	dayOff DayOff
}

func NewEvaluator(finder AttendanceFinder, dayOff DayOff) *Evaluator {
	return &Evaluator{finder: finder, dayOff: dayOff}
}

// Evaluate checks, in order: weekend, existing record (the only remote
// call), approved time off, region holiday. Weekends return before any
// remote call is made.
func (e *Evaluator) Evaluate(ctx context.Context, day model.Day) (Verdict, error) {
	if day.IsWeekend() {
		return Verdict{Day: day, Reason: ReasonWeekend}, nil
	}
	if e.dayOff == nil || !e.dayOff.Loaded() {
		return Verdict{}, ErrNoSnapshot
	}

	existing, err := e.finder.FindAttendance(ctx, day)
	if err != nil {
		return Verdict{}, fmt.Errorf("find attendance %s: %w", day, err)
	}
	if len(existing) > 0 {
		return Verdict{Day: day, Reason: ReasonExisting}, nil
	}

	if e.dayOff.OnApprovedTimeOff(day) {
		return Verdict{Day: day, Reason: ReasonTimeOff}, nil
	}
	if e.dayOff.IsHoliday(day) {
		return Verdict{Day: day, Reason: ReasonHoliday}, nil
	}
	return Verdict{Day: day, Eligible: true, Reason: ReasonEligible}, nil
}

// IsEligible is Evaluate without the reason.
func (e *Evaluator) IsEligible(ctx context.Context, day model.Day) (bool, error) {
	v, err := e.Evaluate(ctx, day)
	if err != nil {
		return false, err
	}
	return v.Eligible, nil
}
