package walker

import (
	"context"
	"fmt"
	"time"

	appLog "attendfill/internal/log"
	"attendfill/internal/model"
	"attendfill/internal/schedule"
)

// Evaluator is satisfied by *schedule.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, day model.Day) (schedule.Verdict, error)
}

// Generator is satisfied by *schedule.Generator.
type Generator interface {
	Generate(ctx context.Context, day model.Day) (model.AttendanceRecord, error)
}

// Entry is the outcome of one walked day.
type Entry struct {
	Day    model.Day               `json:"day"`
	Reason schedule.Reason         `json:"reason"`
	Record *model.AttendanceRecord `json:"record,omitempty"`

	// Planned is set in dry-run mode for days that would have been created.
	Planned bool `json:"planned,omitempty"`
}

// Report summarizes one walk. It is also what the status server exposes.
type Report struct {
	RunID      string    `json:"run_id"`
	Today      model.Day `json:"today"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Entries    []Entry   `json:"entries"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// MonthDays lists the 1st of today's month through today, ascending.
func MonthDays(today model.Day) []model.Day {
	days := make([]model.Day, 0, today.Day)
	for d := model.NewDay(today.Year, today.Month, 1); !d.After(today); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Walker feeds each day of the month, in order, to the evaluator and, when
// eligible, to the generator. Days are processed one at a time; the first
// error stops the walk and records already created stay in place.
type Walker struct {
	eval   Evaluator
	gen    Generator
	dryRun bool
}

func New(eval Evaluator, gen Generator, dryRun bool) *Walker {
	return &Walker{eval: eval, gen: gen, dryRun: dryRun}
}

// Walk processes MonthDays(today). The returned report is valid, and
// partially filled, even when err is non-nil.
func (w *Walker) Walk(ctx context.Context, today model.Day, report *Report) error {
	report.Today = today
	report.DryRun = w.dryRun

	for _, day := range MonthDays(today) {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := w.eval.Evaluate(ctx, day)
		if err != nil {
			return err
		}

		entry := Entry{Day: day, Reason: v.Reason}
		if !v.Eligible {
			appLog.Debug("day skipped", "day", day.String(), "reason", string(v.Reason))
			report.Skipped++
			report.Entries = append(report.Entries, entry)
			continue
		}

		if w.dryRun {
			entry.Planned = true
			appLog.Info("day needs a schedule", "day", day.String(), "dry_run", true)
			report.Entries = append(report.Entries, entry)
			continue
		}

		rec, err := w.gen.Generate(ctx, day)
		if err != nil {
			// Keep the failed day so the report shows where the walk stopped.
			report.Entries = append(report.Entries, entry)
			return err
		}
		entry.Record = &rec
		report.Created++
		report.Entries = append(report.Entries, entry)

		appLog.Info(Describe(day, rec), "day", day.String(), "record_id", rec.ID)
	}
	return nil
}

// Describe renders a created record the way users read it, e.g.
// "schedule for 2024-06-05: 09h12 -> 18h55, break 01h13, total 08h30".
func Describe(day model.Day, rec model.AttendanceRecord) string {
	return fmt.Sprintf("schedule for %s: %s -> %s, break %s, total %s",
		day, rec.StartTime.Clock(), rec.EndTime.Clock(), rec.BreakTime.Clock(), rec.Worked().Clock())
}
