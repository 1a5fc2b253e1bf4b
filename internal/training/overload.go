package training

import (
	"fmt"
	"math"
	"time"
)

// DecisionType is the outcome of the progressive overload engine.
type DecisionType string

const (
	DecisionWeightIncrease DecisionType = "weight_increase"
	DecisionRepIncrease    DecisionType = "rep_increase"
	DecisionDeload         DecisionType = "deload"
	DecisionMaintain       DecisionType = "maintain"
)

// OverloadInput is one exercise with its history, most recent session first.
type OverloadInput struct {
	Exercise       Exercise
	History        []PerformanceRecord
	PrescribedSets int
	Level          FitnessLevel
	OneRepMax      float64
}

// OverloadDecision proposes the next session's targets for one exercise.
type OverloadDecision struct {
	ExerciseID         string       `json:"exercise_id"`
	Type               DecisionType `json:"type"`
	PreviousWeight     float64      `json:"previous_weight"`
	NewWeight          float64      `json:"new_weight"`
	PreviousReps       int          `json:"previous_reps"`
	NewReps            int          `json:"new_reps"`
	ProgressionPercent float64      `json:"progression_percent"`
	Reason             string       `json:"reason"`
}

// LogEntry converts the decision into a progression log entry.
func (d OverloadDecision) LogEntry() ProgressionLogEntry {
	return ProgressionLogEntry{
		ExerciseID:   d.ExerciseID,
		Decision:     d.Type,
		WeightBefore: d.PreviousWeight,
		WeightAfter:  d.NewWeight,
		RepsBefore:   d.PreviousReps,
		RepsAfter:    d.NewReps,
		Percent:      d.ProgressionPercent,
		LoggedAt:     time.Time{},
	}
}

// DecideOverload evaluates the overload rules in priority order and returns exactly one decision. The history
// is only read.
func DecideOverload(in OverloadInput, rules OverloadRules) OverloadDecision {
	prescribed := in.PrescribedSets
	if prescribed <= 0 {
		prescribed = rules.DefaultSets
	}

	if len(in.History) == 0 {
		weight := roundToIncrement(in.OneRepMax*rules.FirstExposureFraction, rules.PlateIncrement)
		reason := fmt.Sprintf("first exposure at %.0f%% of the 1RM estimate", rules.FirstExposureFraction*100) //nolint:mnd // percent
		if in.OneRepMax <= 0 {
			reason = "first exposure without a 1RM estimate; start light and record the working weight"
		}
		return OverloadDecision{
			ExerciseID:         in.Exercise.ID,
			Type:               DecisionWeightIncrease,
			PreviousWeight:     0,
			NewWeight:          weight,
			PreviousReps:       0,
			NewReps:            rules.DefaultReps,
			ProgressionPercent: 0,
			Reason:             reason,
		}
	}

	latest := in.History[0]
	decision := OverloadDecision{
		ExerciseID:         in.Exercise.ID,
		Type:               DecisionMaintain,
		PreviousWeight:     latest.Weight,
		NewWeight:          latest.Weight,
		PreviousReps:       latest.Reps,
		NewReps:            latest.Reps,
		ProgressionPercent: 0,
		Reason:             "",
	}
	unloaded := in.Exercise.Bodyweight && latest.Weight == 0

	switch {
	case latest.RPE <= rules.MaxRPEForIncrease && latest.Sets == prescribed:
		if unloaded {
			return increaseReps(decision, rules.RepCeiling,
				fmt.Sprintf("all %d sets completed at RPE %.1f", prescribed, latest.RPE))
		}
		increment := rules.increment(in.Exercise.Category, in.Level)
		decision.Type = DecisionWeightIncrease
		decision.NewWeight = latest.Weight + increment
		decision.ProgressionPercent = percentOf(increment, latest.Weight)
		decision.Reason = fmt.Sprintf("all %d sets completed at RPE %.1f; adding %g", prescribed, latest.RPE, increment)
		return decision

	case float64(latest.Sets) < rules.DeloadCompletionRatio*float64(prescribed):
		decision.Type = DecisionDeload
		decision.Reason = fmt.Sprintf("only %d of %d sets completed", latest.Sets, prescribed)
		if unloaded {
			decision.NewReps = max(1, latest.Reps-rules.BodyweightDeloadReps)
			return decision
		}
		decision.NewWeight = math.Max(0, math.Max(latest.Weight*rules.DeloadFactor, latest.Weight-rules.MinDeloadDecrement))
		decision.ProgressionPercent = -percentOf(latest.Weight-decision.NewWeight, latest.Weight)
		return decision

	case len(in.History) > 1 && in.History[1].Weight == latest.Weight && in.History[1].Reps == latest.Reps:
		return increaseReps(decision, rules.RepCeiling,
			fmt.Sprintf("plateau at %g x %d for two sessions", latest.Weight, latest.Reps))

	default:
		decision.Reason = "recent performance is progressing; keep the current targets"
		return decision
	}
}

// increaseReps adds one rep unless the ceiling is reached, in which case the decision is maintain.
func increaseReps(d OverloadDecision, ceiling int, reason string) OverloadDecision {
	if d.PreviousReps >= ceiling {
		d.Type = DecisionMaintain
		d.NewReps = d.PreviousReps
		d.Reason = fmt.Sprintf("%s; already at the %d rep ceiling", reason, ceiling)
		return d
	}
	d.Type = DecisionRepIncrease
	d.NewReps = d.PreviousReps + 1
	d.Reason = reason + "; adding a rep"
	return d
}

func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100 //nolint:mnd // percent
}
