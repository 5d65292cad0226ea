package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "attendfill/internal/log"
	"attendfill/internal/walker"
	"attendfill/internal/web"
)

// RunFunc performs one complete run.
type RunFunc func(ctx context.Context) (walker.Report, error)

// Scheduler runs the month walk on a cron schedule. At most one run executes
// at a time; a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	run      RunFunc
	status   *web.Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New parses spec (5-field cron syntax or a descriptor such as "@daily").
func New(spec string, run RunFunc, status *web.Status) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", spec, err)
	}
	if status == nil {
		status = web.NewStatus()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron.New(),
		schedule: sched,
		run:      run,
		status:   status,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		if err := s.execute(); err != nil {
			appLog.Info("scheduled run skipped", "reason", err.Error())
		}
	}))
	return s, nil
}

func (s *Scheduler) Status() *web.Status { return s.status }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.status.SetNextRun(s.schedule.Next(time.Now()))
	appLog.Info("scheduler started", "next_run", s.schedule.Next(time.Now()).Format(time.RFC3339))
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	appLog.Info("stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	appLog.Info("scheduler stopped")
}

// Trigger starts a run in the background. It satisfies web.Trigger.
func (s *Scheduler) Trigger() error {
	if !s.status.Begin() {
		return web.ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.finish(s.run(s.ctx))
	}()
	return nil
}

// RunOnce performs a run synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) (walker.Report, error) {
	if !s.status.Begin() {
		return walker.Report{}, web.ErrRunInProgress
	}
	rep, err := s.run(ctx)
	s.finish(rep, err)
	return rep, err
}

func (s *Scheduler) execute() error {
	if !s.status.Begin() {
		return web.ErrRunInProgress
	}
	s.finish(s.run(s.ctx))
	return nil
}

func (s *Scheduler) finish(rep walker.Report, err error) {
	if err != nil && rep.Error == "" {
		rep.Error = err.Error()
	}
	s.status.Finish(rep)
	s.status.SetNextRun(s.schedule.Next(time.Now()))
}
