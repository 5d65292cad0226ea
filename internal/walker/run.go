package walker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"attendfill/internal/credentials"
	"attendfill/internal/dayoff"
	"attendfill/internal/ics"
	appLog "attendfill/internal/log"
	"attendfill/internal/model"
	"attendfill/internal/schedule"
)

// Platform is the remote attendance service as used by one run.
// *remote.Client satisfies it.
type Platform interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error

	schedule.AttendanceFinder
	schedule.AttendanceCreator
	dayoff.Source
}

// Options configures a Runner.
type Options struct {
	Region      string
	Policy      schedule.Policy
	Sampler     schedule.Sampler
	Feeds       []ics.Source
	FeedFetcher dayoff.FeedFetcher
	DryRun      bool

	// Today returns the last day to walk. Defaults to the local date.
	Today func() model.Day
}

// Runner performs complete runs: login, one-time day-off snapshot, month
// walk, logout.
type Runner struct {
	platform Platform
	opts     Options
}

func NewRunner(platform Platform, opts Options) *Runner {
	if opts.Today == nil {
		opts.Today = func() model.Day { return model.DayOf(time.Now()) }
	}
	if opts.Sampler == nil {
		opts.Sampler = schedule.NewSampler(0)
	}
	return &Runner{platform: platform, opts: opts}
}

// Run executes one run. Logout is always attempted once login succeeded;
// a logout failure is only reported when the walk itself succeeded.
func (r *Runner) Run(ctx context.Context, creds credentials.Credentials) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	today := r.opts.Today()

	defer func() {
		rep.FinishedAt = time.Now().UTC()
		if err != nil {
			rep.Error = err.Error()
			appLog.Error("run aborted, remaining days need manual handling", err,
				"run_id", rep.RunID, "created", rep.Created, "skipped", rep.Skipped)
			return
		}
		appLog.Info("run finished", "run_id", rep.RunID, "created", rep.Created, "skipped", rep.Skipped, "dry_run", rep.DryRun)
	}()

	appLog.Info("run started", "run_id", rep.RunID, "today", today.String(), "region", r.opts.Region, "dry_run", r.opts.DryRun)

	if err := r.platform.Login(ctx, creds.Username, creds.Password); err != nil {
		return rep, err
	}
	defer func() {
		// Revoke with a fresh context so a cancelled run still logs out.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if lerr := r.platform.Logout(lctx); lerr != nil {
			appLog.Error("logout failed", lerr, "run_id", rep.RunID)
			if err == nil {
				err = lerr
			}
		}
	}()

	snap, err := dayoff.Load(ctx, r.platform, dayoff.Options{
		Region:  r.opts.Region,
		Feeds:   r.opts.Feeds,
		Fetcher: r.opts.FeedFetcher,
		From:    model.NewDay(today.Year, today.Month, 1),
		To:      today,
	})
	if err != nil {
		return rep, err
	}

	w := New(
		schedule.NewEvaluator(r.platform, snap),
		schedule.NewGenerator(r.platform, r.opts.Policy, r.opts.Sampler),
		r.opts.DryRun,
	)
	if err := w.Walk(ctx, today, &rep); err != nil {
		if errors.Is(err, context.Canceled) {
			appLog.Info("run cancelled", "run_id", rep.RunID)
		}
		return rep, err
	}
	return rep, nil
}
