// Package dayoff holds the per-run snapshot of time-off requests and holiday
// calendars. The snapshot is loaded once at the start of a run and never
// refreshed; time off approved while a run is in progress is not seen.
package dayoff

import (
	"context"
	"errors"
	"fmt"

	"attendfill/internal/ics"
	appLog "attendfill/internal/log"
	"attendfill/internal/model"
)

// Source lists the remote day-off data of the logged-in user.
type Source interface {
	ListTimeOffRequests(ctx context.Context) ([]model.TimeOffRequest, error)
	ListHolidayTemplates(ctx context.Context) ([]model.HolidayCalendar, error)
}

// FeedFetcher downloads a holiday ICS feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Options controls Load.
type Options struct {
	// Region is the holiday template key authoritative for the user.
	Region string

	// Feeds are extra ICS calendars whose days are merged into the Region
	// template. Fetcher must be set when Feeds is non-empty.
	Feeds   []ics.Source
	Fetcher FeedFetcher

	// From/To bound feed expansion, normally the month being walked.
	From model.Day
	To   model.Day
}

// Snapshot is immutable once returned by Load.
type Snapshot struct {
	region   string
	timeOff  []model.TimeOffRequest
	holidays []model.HolidayCalendar
}

// New builds a snapshot from already-fetched data.
func New(region string, timeOff []model.TimeOffRequest, holidays []model.HolidayCalendar) *Snapshot {
	return &Snapshot{region: region, timeOff: timeOff, holidays: holidays}
}

// Load fetches time-off requests and holiday templates once, then merges
// the configured ICS feeds into the region template. Any error is fatal for
// the run.
func Load(ctx context.Context, src Source, opts Options) (*Snapshot, error) {
	timeOff, err := src.ListTimeOffRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}
	templates, err := src.ListHolidayTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holiday templates: %w", err)
	}

	if len(opts.Feeds) > 0 {
		extra, err := feedDays(ctx, opts)
		if err != nil {
			return nil, err
		}
		templates = mergeInto(templates, opts.Region, extra)
	}

	s := New(opts.Region, timeOff, templates)
	appLog.Info("day-off snapshot loaded",
		"region", opts.Region,
		"time_off_requests", len(timeOff),
		"approved", s.approvedCount(),
		"templates", len(templates),
		"region_holidays", len(s.regionCalendar().Holidays),
	)
	return s, nil
}

func feedDays(ctx context.Context, opts Options) ([]model.Day, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("holiday feeds configured without a fetcher")
	}
	var days []model.Day
	for _, src := range opts.Feeds {
		res, err := opts.Fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("holiday feed %s: %w", src.ID, err)
		}
		events, err := ics.Parse(src, res.Body)
		if err != nil {
			return nil, fmt.Errorf("holiday feed %s: %w", src.ID, err)
		}
		d, err := ics.HolidayDays(events, opts.From, opts.To)
		if err != nil {
			return nil, fmt.Errorf("holiday feed %s: %w", src.ID, err)
		}
		appLog.Debug("holiday feed merged", "id", src.ID, "days", len(d), "from_cache", res.FromCache)
		days = append(days, d...)
	}
	return days, nil
}

// mergeInto appends extra to the template keyed region, creating it when
// the platform has none. Other templates are returned untouched.
func mergeInto(templates []model.HolidayCalendar, region string, extra []model.Day) []model.HolidayCalendar {
	out := make([]model.HolidayCalendar, 0, len(templates)+1)
	merged := false
	for _, t := range templates {
		if t.Key == region && !merged {
			t.Holidays = append(append([]model.Day(nil), t.Holidays...), extra...)
			merged = true
		}
		out = append(out, t)
	}
	if !merged {
		out = append(out, model.HolidayCalendar{Key: region, Holidays: extra})
	}
	return out
}

// Loaded reports whether s holds a snapshot. It is safe on a nil receiver.
func (s *Snapshot) Loaded() bool { return s != nil }

// OnApprovedTimeOff reports whether an approved request covers day.
// Requests without approvers are ignored.
func (s *Snapshot) OnApprovedTimeOff(day model.Day) bool {
	for _, r := range s.timeOff {
		if r.Approved() && r.Covers(day) {
			return true
		}
	}
	return false
}

// IsHoliday reports whether day is listed in the region template. Holidays
// of other templates never count.
func (s *Snapshot) IsHoliday(day model.Day) bool {
	return s.regionCalendar().Contains(day)
}

func (s *Snapshot) Region() string { return s.region }

func (s *Snapshot) regionCalendar() model.HolidayCalendar {
	for _, c := range s.holidays {
		if c.Key == s.region {
			return c
		}
	}
	return model.HolidayCalendar{Key: s.region}
}

func (s *Snapshot) approvedCount() int {
	n := 0
	for _, r := range s.timeOff {
		if r.Approved() {
			n++
		}
	}
	return n
}
