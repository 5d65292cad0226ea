package schedule

import (
	"context"
	"fmt"

	"attendfill/internal/model"
)

// AttendanceCreator submits a record for the session user.
type AttendanceCreator interface {
	CreateAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
}

// Generator draws a plausible day and submits it.
type Generator struct {
	creator AttendanceCreator
	policy  Policy
	sampler Sampler
}

func NewGenerator(creator AttendanceCreator, policy Policy, sampler Sampler) *Generator {
	return &Generator{creator: creator, policy: policy, sampler: sampler}
}

// Plan computes the record for day without submitting it. Start and break
// are independent draws; end is derived so that end-start-break equals the
// day's work duration exactly.
func (g *Generator) Plan(day model.Day) model.AttendanceRecord {
	work := g.policy.WorkDuration(day)
	start := g.policy.StartBounds.clamp(draw(g.sampler, g.policy.MeanStart, g.policy.StartDeviation))
	brk := g.policy.BreakBounds.clamp(draw(g.sampler, g.policy.MeanBreak, g.policy.BreakDeviation))

	return model.AttendanceRecord{
		Date:      day.Midnight(),
		StartTime: start,
		EndTime:   start + brk + work,
		BreakTime: brk,
	}
}

// Generate plans day and submits it. Only call it for days the Evaluator
// found eligible.
func (g *Generator) Generate(ctx context.Context, day model.Day) (model.AttendanceRecord, error) {
	rec := g.Plan(day)
	created, err := g.creator.CreateAttendance(ctx, rec)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("create attendance %s: %w", day, err)
	}
	return created, nil
}
