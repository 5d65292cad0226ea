package schedule

import (
	"math/rand/v2"
	"time"

	"attendfill/internal/config"
	"attendfill/internal/model"
)

// Bounds optionally clamps a random draw. A zero Min or Max leaves that side
// unbounded.
type Bounds struct {
	Min model.Minutes
	Max model.Minutes
}

func (b Bounds) clamp(v model.Minutes) model.Minutes {
	if b.Min > 0 && v < b.Min {
		return b.Min
	}
	if b.Max > 0 && v > b.Max {
		return b.Max
	}
	return v
}

// Policy is the work-time policy for a run.
type Policy struct {
	NormalWork  model.Minutes
	ReducedWork model.Minutes // last weekday before the weekend

	MeanStart      model.Minutes
	StartDeviation model.Minutes
	MeanBreak      model.Minutes
	BreakDeviation model.Minutes

	StartBounds Bounds
	BreakBounds Bounds
}

// PolicyFrom converts the YAML schedule section.
func PolicyFrom(c config.ScheduleConfig) Policy {
	return Policy{
		NormalWork:     model.Minutes(c.NormalWorkMinutes),
		ReducedWork:    model.Minutes(c.ReducedWorkMinutes),
		MeanStart:      model.Minutes(c.MeanStartMinutes),
		StartDeviation: model.Minutes(c.StartDeviationMinutes),
		MeanBreak:      model.Minutes(c.MeanBreakMinutes),
		BreakDeviation: model.Minutes(c.BreakDeviationMinutes),
		StartBounds:    Bounds{Min: model.Minutes(c.MinStartMinutes), Max: model.Minutes(c.MaxStartMinutes)},
		BreakBounds:    Bounds{Min: model.Minutes(c.MinBreakMinutes), Max: model.Minutes(c.MaxBreakMinutes)},
	}
}

func DefaultPolicy() Policy {
	return PolicyFrom(config.DefaultSchedule())
}

// WorkDuration is ReducedWork on Fridays and NormalWork otherwise.
func (p Policy) WorkDuration(day model.Day) model.Minutes {
	if day.Weekday() == model.Friday {
		return p.ReducedWork
	}
	return p.NormalWork
}

// Sampler yields standard normal variates. *rand.Rand satisfies it.
type Sampler interface {
	NormFloat64() float64
}

// NewSampler returns a PCG-backed sampler. A zero seed draws one from the
// clock so consecutive runs differ.
func NewSampler(seed uint64) Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// draw samples Normal(mean, dev) and truncates toward zero.
func draw(s Sampler, mean, dev model.Minutes) model.Minutes {
	return model.Minutes(int(float64(mean) + float64(dev)*s.NormFloat64()))
}
