package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"attendfill/internal/model"
)

const maxOccurrencesPerEvent = 1000

// HolidayDays expands events into the set of calendar days they cover within
// [from, to], sorted and de-duplicated. Recurring events (typically
// FREQ=YEARLY national holidays) are expanded with their RRULE and EXDATEs.
// An all-day event covers every day from DTSTART up to, not including,
// DTEND; a timed event covers the day it starts on.
func HolidayDays(events []Event, from, to model.Day) ([]model.Day, error) {
	if to.Before(from) {
		return nil, errors.New("ics: range end is before range start")
	}

	seen := make(map[model.Day]struct{})
	for _, ev := range events {
		starts, err := occurrenceStarts(ev, from, to)
		if err != nil {
			return nil, err
		}
		for _, s := range starts {
			for _, d := range coveredDays(ev, s) {
				if d.Before(from) || d.After(to) {
					continue
				}
				seen[d] = struct{}{}
			}
		}
	}

	out := make([]model.Day, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func occurrenceStarts(ev Event, from, to model.Day) ([]time.Time, error) {
	if ev.RawRRule == "" {
		return []time.Time{ev.Start}, nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, fmt.Errorf("ics: vevent %s: RRULE %q: %w", ev.UID, ev.RawRRule, err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so a multi-day occurrence
	// that begins before the range still contributes its tail.
	span := ev.End.Sub(ev.Start)
	lo := from.Midnight().In(ev.Start.Location()).Add(-span)
	hi := to.LastInstant().In(ev.Start.Location())

	starts := set.Between(lo, hi, true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}
	return starts, nil
}

func coveredDays(ev Event, start time.Time) []model.Day {
	first := model.DayOf(start)
	if !ev.AllDay {
		return []model.Day{first}
	}
	n := int(ev.End.Sub(ev.Start).Hours()/24 + 0.5)
	if n < 1 {
		n = 1
	}
	days := make([]model.Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, first.AddDays(i))
	}
	return days
}
