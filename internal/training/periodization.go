package training

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/myrjola/traincore/internal/errors"
)

// ErrInvalidCycle is returned when a training cycle definition is malformed.
var ErrInvalidCycle = errors.NewSentinel("invalid training cycle")

// Model is the periodization model of a training cycle.
type Model string

const (
	ModelLinear     Model = "linear"
	ModelUndulating Model = "undulating"
	ModelBlock      Model = "block"
)

// Phase is one named stage of a training cycle. Intensity is a percentage of 1RM.
type Phase struct {
	Name             string  `json:"name"              yaml:"name"`
	DurationWeeks    int     `json:"duration_weeks"    yaml:"duration_weeks"`
	IntensityMin     float64 `json:"intensity_min"     yaml:"intensity_min"`
	IntensityMax     float64 `json:"intensity_max"     yaml:"intensity_max"`
	RepMin           int     `json:"rep_min"           yaml:"rep_min"`
	RepMax           int     `json:"rep_max"           yaml:"rep_max"`
	SetMin           int     `json:"set_min"           yaml:"set_min"`
	SetMax           int     `json:"set_max"           yaml:"set_max"`
	RestSeconds      int     `json:"rest_seconds"      yaml:"rest_seconds"`
	VolumeMultiplier float64 `json:"volume_multiplier" yaml:"volume_multiplier"`
}

// AthleteSnapshot is the athlete state captured when the cycle was created.
type AthleteSnapshot struct {
	OneRepMax         map[string]float64 `json:"one_rep_max"         yaml:"one_rep_max"`
	TrainingAgeMonths int                `json:"training_age_months" yaml:"training_age_months"`
}

// CycleDefinition is the serialisable form of a training cycle.
type CycleDefinition struct {
	Model       Model           `json:"model"        yaml:"model"`
	Phases      []Phase         `json:"phases"       yaml:"phases"`
	CurrentWeek int             `json:"current_week" yaml:"current_week"`
	Athlete     AthleteSnapshot `json:"athlete"      yaml:"athlete"`
}

// Build validates the definition and creates the cycle.
func (d CycleDefinition) Build() (*TrainingCycle, error) {
	return NewTrainingCycle(d.Model, d.Phases, d.CurrentWeek, d.Athlete)
}

// TrainingCycle is a validated periodization program. Its phase list is fixed at creation.
type TrainingCycle struct {
	model   Model
	phases  []Phase
	week    int
	athlete AthleteSnapshot
}

// ActivePhase is the phase resolved for a given day.
type ActivePhase struct {
	Index             int
	Phase             Phase
	WeekInPhase       int
	ProgressionFactor float64
	ProgressPercent   float64
}

// PhaseTargets are the interpolated load, rep and set targets for one exercise.
type PhaseTargets struct {
	Phase            string  `json:"phase"`
	WeekInPhase      int     `json:"week_in_phase"`
	ProgressPercent  float64 `json:"progress_percent"`
	Intensity        float64 `json:"intensity"`
	Weight           float64 `json:"weight"`
	Reps             int     `json:"reps"`
	Sets             int     `json:"sets"`
	RestSeconds      int     `json:"rest_seconds"`
	VolumeMultiplier float64 `json:"volume_multiplier"`
}

// NewTrainingCycle validates the definition and returns a cycle starting at currentWeek. Every problem is
// reported, each wrapping ErrInvalidCycle.
func NewTrainingCycle(model Model, phases []Phase, currentWeek int, athlete AthleteSnapshot) (*TrainingCycle, error) {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidCycle, fmt.Sprintf(format, args...)))
	}

	switch model {
	case ModelLinear, ModelUndulating, ModelBlock:
	default:
		invalid("unknown model %q", model)
	}
	if len(phases) == 0 {
		invalid("no phases")
	}
	if currentWeek < 1 {
		invalid("current week %d", currentWeek)
	}
	for i, p := range phases {
		if p.DurationWeeks < 1 {
			invalid("phase %d %q: duration %d weeks", i, p.Name, p.DurationWeeks)
		}
		if p.IntensityMin < 0 || p.IntensityMin > p.IntensityMax {
			invalid("phase %d %q: intensity range %v-%v", i, p.Name, p.IntensityMin, p.IntensityMax)
		}
		if p.RepMin < 1 || p.RepMin > p.RepMax {
			invalid("phase %d %q: rep range %d-%d", i, p.Name, p.RepMin, p.RepMax)
		}
		if p.SetMin < 1 || p.SetMin > p.SetMax {
			invalid("phase %d %q: set range %d-%d", i, p.Name, p.SetMin, p.SetMax)
		}
		if p.RestSeconds < 0 {
			invalid("phase %d %q: rest %d seconds", i, p.Name, p.RestSeconds)
		}
		if p.VolumeMultiplier <= 0 {
			invalid("phase %d %q: volume multiplier %v", i, p.Name, p.VolumeMultiplier)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	oneRM := make(map[string]float64, len(athlete.OneRepMax))
	for k, v := range athlete.OneRepMax {
		oneRM[k] = v
	}
	return &TrainingCycle{
		model:   model,
		phases:  slices.Clone(phases),
		week:    currentWeek,
		athlete: AthleteSnapshot{OneRepMax: oneRM, TrainingAgeMonths: athlete.TrainingAgeMonths},
	}, nil
}

// Model returns the periodization model.
func (c *TrainingCycle) Model() Model { return c.model }

// Phases returns a copy of the phase list.
func (c *TrainingCycle) Phases() []Phase { return slices.Clone(c.phases) }

// TotalWeeks is the sum of all phase durations.
func (c *TrainingCycle) TotalWeeks() int {
	total := 0
	for _, p := range c.phases {
		total += p.DurationWeeks
	}
	return total
}

// Week returns the current week. Linear and block cycles never report a week past their total.
func (c *TrainingCycle) Week() int {
	if c.model != ModelUndulating {
		return min(c.week, c.TotalWeeks())
	}
	return c.week
}

// Advance moves the cycle one week forward.
func (c *TrainingCycle) Advance() {
	if c.model != ModelUndulating && c.week >= c.TotalWeeks() {
		c.week = c.TotalWeeks()
		return
	}
	c.week++
}

// OneRepMax returns the snapshot estimate for an exercise.
func (c *TrainingCycle) OneRepMax(exerciseID string) (float64, bool) {
	v, ok := c.athlete.OneRepMax[exerciseID]
	return v, ok
}

// ActivePhase resolves the phase in effect on day.
func (c *TrainingCycle) ActivePhase(day time.Time) ActivePhase {
	var (
		idx int
		wip int
	)
	week := c.Week()

	if c.model == ModelUndulating {
		idx = int(day.Weekday()) % len(c.phases)
		wip = ((week - 1) % c.phases[idx].DurationWeeks) + 1
	} else {
		// Week is clamped to the total so the walk always ends on a phase.
		before := 0
		for i, p := range c.phases {
			idx = i
			if before+p.DurationWeeks >= week {
				break
			}
			before += p.DurationWeeks
		}
		wip = max(1, min(week-before, c.phases[idx].DurationWeeks))
	}

	phase := c.phases[idx]
	factor := math.Max(0, math.Min(1, float64(wip)/float64(phase.DurationWeeks)))
	return ActivePhase{
		Index:             idx,
		Phase:             phase,
		WeekInPhase:       wip,
		ProgressionFactor: factor,
		ProgressPercent:   factor * 100, //nolint:mnd // percent
	}
}

// Targets interpolates the active phase ranges for an exercise with the given 1RM. The weight is rounded to a
// whole unit first and then to the nearest increment. Calling it twice with the same arguments gives the same
// targets.
func (c *TrainingCycle) Targets(day time.Time, oneRM, increment float64) PhaseTargets {
	active := c.ActivePhase(day)
	p, f := active.Phase, active.ProgressionFactor

	intensity := p.IntensityMin + (p.IntensityMax-p.IntensityMin)*f
	return PhaseTargets{
		Phase:            p.Name,
		WeekInPhase:      active.WeekInPhase,
		ProgressPercent:  active.ProgressPercent,
		Intensity:        intensity,
		Weight:           roundToIncrement(math.Round(oneRM*intensity/100), increment), //nolint:mnd // percent
		Reps:             int(math.Round(float64(p.RepMax) - float64(p.RepMax-p.RepMin)*f)),
		Sets:             int(math.Round(float64(p.SetMin) + float64(p.SetMax-p.SetMin)*f)),
		RestSeconds:      p.RestSeconds,
		VolumeMultiplier: p.VolumeMultiplier,
	}
}

// roundToIncrement rounds weight to the nearest multiple of increment.
func roundToIncrement(weight, increment float64) float64 {
	if increment <= 0 {
		return math.Round(weight)
	}
	return math.Round(weight/increment) * increment
}
