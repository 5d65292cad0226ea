package model

import (
	"fmt"
	"time"
)

// Day is a calendar date with no time-of-day component. The zero value is
// not a valid day; use NewDay or DayOf.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay normalizes y/m/d through time.Date, so NewDay(2024, 2, 30)
// yields 2024-03-01.
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay accepts "2006-01-02" or any RFC3339 timestamp. Timestamps are
// reduced to their UTC calendar day.
func ParseDay(s string) (Day, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DayOf(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t.UTC()), nil
}

// Midnight anchors the day at 00:00:00 UTC.
func (d Day) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// LastInstant is 23:59:59.999 UTC, the inclusive upper bound used by
// attendance lookups.
func (d Day) LastInstant() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// Weekday returns Monday=0 .. Sunday=6.
func (d Day) Weekday() int {
	return (int(d.Midnight().Weekday()) + 6) % 7
}

func (d Day) IsWeekend() bool {
	return d.Weekday() >= Saturday
}

func (d Day) Before(o Day) bool { return d.Midnight().Before(o.Midnight()) }
func (d Day) After(o Day) bool  { return d.Midnight().After(o.Midnight()) }

// AddDays returns the day n days later (or earlier when n is negative).
func (d Day) AddDays(n int) Day {
	return NewDay(d.Year, d.Month, d.Day+n)
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText renders the day as YYYY-MM-DD, also in JSON.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Weekday indexes, Monday first.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Minutes is an offset from midnight, or a duration, in whole minutes.
type Minutes int

// Clock renders m as "HHhMM"; negative values keep their sign.
func (m Minutes) Clock() string {
	sign := ""
	v := int(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%02dh%02d", sign, v/60, v%60)
}

// UserID identifies the account that owns the session. The same value is
// sent as both the record's user and owner, so a user can only schedule
// their own attendance.
type UserID string

// AttendanceRecord is a single day's clock-in/clock-out entry.
type AttendanceRecord struct {
	ID     string
	UserID UserID
	Date   time.Time // 00:00:00 UTC of the day

	StartTime Minutes
	EndTime   Minutes
	BreakTime Minutes
}

// Worked is EndTime - StartTime - BreakTime.
func (r AttendanceRecord) Worked() Minutes {
	return r.EndTime - r.StartTime - r.BreakTime
}

// TimeOffRequest is a leave request. Only requests with at least one approver
// excuse a day.
type TimeOffRequest struct {
	From      Day
	To        Day
	Approvers []string
}

func (r TimeOffRequest) Approved() bool {
	return len(r.Approvers) > 0
}

// Covers reports whether day falls in [From, To], inclusive.
func (r TimeOffRequest) Covers(day Day) bool {
	return !day.Before(r.From) && !day.After(r.To)
}

// HolidayCalendar is a named holiday template, e.g. "spain-barcelona".
type HolidayCalendar struct {
	Key      string
	Holidays []Day
}

func (c HolidayCalendar) Contains(day Day) bool {
	for _, h := range c.Holidays {
		if h == day {
			return true
		}
	}
	return false
}
