package training

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Prescriptions for blocks that are not load driven.
const (
	lightBlockSets      = 1
	lightBlockReps      = 10
	lightBlockRest      = 30
	lightBlockRPE       = 3
	metabolicSets       = 3
	metabolicReps       = 15
	metabolicRest       = 45
	metabolicRPE        = 8
	secondsPerMinute    = 60
	minExercisesInBlock = 1
)

// AssemblyInput is everything needed to build one workout. History maps exercise ids to performance records,
// most recent first.
type AssemblyInput struct {
	Profile    UserTrainingProfile
	Catalog    []Exercise
	Archetypes []Archetype
	Readiness  ReadinessScore
	Cycle      *TrainingCycle
	History    map[string][]PerformanceRecord
	Date       time.Time
	Rules      Rules
}

// AssembleWorkout composes the engines into a workout sized to the preferred duration. Every placed exercise
// passes the catalog filter for in.Profile.
func AssembleWorkout(in AssemblyInput) GeneratedWorkout {
	workout := GeneratedWorkout{
		ID:        uuid.NewString(),
		UserID:    in.Profile.UserID,
		Date:      normalizeDate(in.Date),
		Archetype: "",
		Phase:     "",
		Readiness: in.Readiness.Overall,
		Blocks:    nil,
		Degraded:  false,
		Notes:     slices.Clone(in.Readiness.Notes),
	}

	filterIn := FilterInput{
		Exercises:    in.Catalog,
		Equipment:    in.Profile.Equipment,
		Injuries:     in.Profile.Injuries,
		Restrictions: in.Profile.Restrictions,
	}
	filtered := FilterCatalog(filterIn)
	if len(filtered.Eligible) == 0 {
		filtered = BodyweightFallback(filterIn)
		workout.Degraded = true
		workout.Notes = append(workout.Notes, "No exercise matches your equipment; using bodyweight exercises only.")
	}

	archetypes := in.Archetypes
	if archetypes == nil {
		archetypes = in.Rules.Archetypes
	}
	selection := SelectArchetype(archetypes, in.Profile.Goal, in.Profile.Level, in.Readiness.Overall)
	workout.Archetype = selection.Archetype.Name
	if selection.Fallback {
		workout.Degraded = true
		workout.Notes = append(workout.Notes, selection.Reason)
	}

	if in.Cycle != nil {
		workout.Phase = in.Cycle.ActivePhase(in.Date).Phase.Name
	}

	if len(filtered.Eligible) == 0 {
		workout.Notes = append(workout.Notes, "No safe exercises are available for your current injuries and restrictions.")
		return workout
	}

	a := assembler{in: in, filtered: filtered, used: make(map[string]bool)}
	duration := cmp.Or(in.Profile.PreferredDurationMinutes, in.Rules.Assembly.DefaultDurationMinutes)
	var totalShare float64
	for _, bt := range selection.Archetype.Blocks {
		totalShare += bt.Share
	}
	for _, bt := range selection.Archetype.Blocks {
		minutes := float64(duration) * bt.Share / totalShare
		block := a.block(bt, minutes)
		if len(block.Exercises) == 0 {
			workout.Notes = append(workout.Notes, fmt.Sprintf("No suitable exercises for the %s block.", bt.Type))
			continue
		}
		block.CoachingText = templateCoaching(block, in.Readiness.Recommendation)
		workout.Blocks = append(workout.Blocks, block)
	}

	return workout
}

type assembler struct {
	in       AssemblyInput
	filtered FilterResult
	used     map[string]bool
}

func (a *assembler) block(bt BlockTemplate, minutes float64) Block {
	count := int(math.Floor(minutes / a.minutesPerExercise(bt.Type)))
	count = max(minExercisesInBlock, min(count, bt.MaxExercises))

	picked := a.pick(bt.Type, count)
	block := Block{Type: bt.Type, Exercises: make([]ExerciseInstance, 0, len(picked)), CoachingText: ""}
	for _, fe := range picked {
		block.Exercises = append(block.Exercises, a.instance(bt.Type, fe))
	}
	return block
}

func (a *assembler) minutesPerExercise(t BlockType) float64 {
	if t != BlockStrength {
		return cmp.Or(a.in.Rules.Assembly.MinutesPerExercise[t], 3) //nolint:mnd // fallback estimate
	}
	sets, rest := a.in.Rules.Overload.DefaultSets, a.in.Rules.Assembly.DefaultRestSeconds
	if a.in.Cycle != nil {
		p := a.in.Cycle.ActivePhase(a.in.Date).Phase
		sets, rest = p.SetMax, p.RestSeconds
	}
	return float64(sets*(a.in.Rules.Assembly.WorkSecondsPerSet+rest)) / secondsPerMinute
}

// pick chooses count unused exercises that suit the block type. Exercises within the level's difficulty cap
// come first and, for strength blocks, new movement patterns are preferred.
func (a *assembler) pick(t BlockType, count int) []FilteredExercise {
	diffCap := a.in.Rules.Assembly.DifficultyCaps[a.in.Profile.Level]
	if diffCap == 0 {
		diffCap = 5 //nolint:mnd // highest difficulty
	}

	var candidates []FilteredExercise
	for _, fe := range a.filtered.Eligible {
		if !a.used[fe.Exercise.ID] && suits(t, fe.Exercise) {
			candidates = append(candidates, fe)
		}
	}
	slices.SortStableFunc(candidates, func(x, y FilteredExercise) int {
		return cmp.Or(
			cmp.Compare(rank(t, x.Exercise), rank(t, y.Exercise)),
			cmp.Compare(overCap(x.Exercise, diffCap), overCap(y.Exercise, diffCap)),
		)
	})

	var picked []FilteredExercise
	patterns := make(map[string]bool)
	take := func(fe FilteredExercise) {
		picked = append(picked, fe)
		a.used[fe.Exercise.ID] = true
		patterns[fe.Exercise.MovementPattern] = true
	}
	if t == BlockStrength {
		for _, fe := range candidates {
			if len(picked) < count && !patterns[fe.Exercise.MovementPattern] {
				take(fe)
			}
		}
	}
	for _, fe := range candidates {
		if len(picked) < count && !a.used[fe.Exercise.ID] {
			take(fe)
		}
	}
	return picked
}

func (a *assembler) instance(t BlockType, fe FilteredExercise) ExerciseInstance {
	ex := fe.Exercise
	inst := ExerciseInstance{
		ExerciseID:      ex.ID,
		Name:            ex.Name,
		MovementPattern: ex.MovementPattern,
		Sets:            lightBlockSets,
		Reps:            lightBlockReps,
		Weight:          0,
		RestSeconds:     lightBlockRest,
		TargetRPE:       lightBlockRPE,
		LoadNote:        "",
		Decision:        nil,
	}
	switch t {
	case BlockStrength:
		a.strengthTargets(&inst, fe)
	case BlockMetabolic:
		inst.Sets, inst.Reps, inst.RestSeconds, inst.TargetRPE = metabolicSets, metabolicReps, metabolicRest, metabolicRPE
	case BlockWarmup, BlockCooldown, BlockMobility:
	}
	return inst
}

func (a *assembler) strengthTargets(inst *ExerciseInstance, fe FilteredExercise) {
	rules := a.in.Rules
	ex := fe.Exercise
	oneRM := a.oneRepMax(ex.ID)

	inst.Sets = rules.Overload.DefaultSets
	inst.RestSeconds = rules.Assembly.DefaultRestSeconds
	inst.TargetRPE = rules.Assembly.DefaultTargetRPE

	if a.in.Cycle != nil && oneRM > 0 {
		targets := a.in.Cycle.Targets(a.in.Date, oneRM, rules.Overload.PlateIncrement)
		inst.Sets, inst.Reps, inst.Weight, inst.RestSeconds = targets.Sets, targets.Reps, targets.Weight, targets.RestSeconds
	} else {
		rr, ok := rules.Assembly.RepRanges[a.in.Profile.Goal]
		if !ok {
			rr = RepRange{Min: rules.Overload.DefaultReps, Max: rules.Overload.DefaultReps}
		}
		inst.Reps = (rr.Min + rr.Max) / 2 //nolint:mnd // midpoint
		if oneRM > 0 {
			inst.Weight = roundToIncrement(oneRM*rules.Overload.FirstExposureFraction, rules.Overload.PlateIncrement)
		}
	}

	if history := a.in.History[ex.ID]; len(history) > 0 {
		d := DecideOverload(OverloadInput{
			Exercise:       ex,
			History:        history,
			PrescribedSets: inst.Sets,
			Level:          a.in.Profile.Level,
			OneRepMax:      oneRM,
		}, rules.Overload)
		inst.Weight, inst.Reps = d.NewWeight, d.NewReps
		inst.Decision = &d
	}

	if ex.Bodyweight && inst.Decision == nil {
		inst.Weight = 0
	}

	restrictLoad(inst, fe.Restriction, rules.Assembly.RestrictedLoadFactor, rules.Overload.PlateIncrement)
}

// restrictLoad scales a loaded instance under a load-limiting restriction and notes why. The result stays on the
// plate increment grid.
func restrictLoad(inst *ExerciseInstance, kind RestrictionKind, factor, increment float64) {
	if kind == "" || inst.Weight <= 0 {
		return
	}
	inst.Weight = roundToIncrement(inst.Weight*factor, increment)
	inst.LoadNote = fmt.Sprintf("Load reduced to %.0f%% because of a %s restriction.",
		factor*100, kind) //nolint:mnd // percent
}

func (a *assembler) oneRepMax(id string) float64 {
	if v, ok := a.in.Profile.OneRepMax[id]; ok {
		return v
	}
	if a.in.Cycle != nil {
		if v, ok := a.in.Cycle.OneRepMax(id); ok {
			return v
		}
	}
	return 0
}

// suits reports whether an exercise belongs in a block type.
func suits(t BlockType, ex Exercise) bool {
	switch t {
	case BlockStrength:
		return ex.Category == CategoryCompoundLower || ex.Category == CategoryCompoundUpper ||
			ex.Category == CategoryIsolation
	case BlockMetabolic:
		return ex.Category == CategoryCardio || (ex.Intensity == IntensityHigh && ex.Category != CategoryMobility)
	case BlockWarmup, BlockCooldown, BlockMobility:
		return ex.Category == CategoryMobility || ex.Intensity == IntensityLow
	default:
		return false
	}
}

// rank orders candidates within a block type; lower ranks come first.
func rank(t BlockType, ex Exercise) int {
	switch t {
	case BlockStrength:
		if ex.Category == CategoryIsolation {
			return 1
		}
	case BlockMetabolic:
		if ex.Category != CategoryCardio {
			return 1
		}
	case BlockWarmup, BlockCooldown, BlockMobility:
		if ex.Category != CategoryMobility {
			return 1
		}
	}
	return 0
}

func overCap(ex Exercise, diffCap int) int {
	if ex.Difficulty > diffCap {
		return ex.Difficulty - diffCap
	}
	return 0
}
