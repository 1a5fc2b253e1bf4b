package training

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/myrjola/traincore/internal/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRules is returned when a rules file fails validation.
var ErrInvalidRules = errors.NewSentinel("invalid rules")

// Rules holds every threshold and lookup table the engines use. The zero value is not usable; start from
// DefaultRules or LoadRules.
type Rules struct {
	Readiness  ReadinessRules  `yaml:"readiness"`
	Overload   OverloadRules   `yaml:"overload"`
	Adaptation AdaptationRules `yaml:"adaptation"`
	Assembly   AssemblyRules   `yaml:"assembly"`
	Archetypes []Archetype     `yaml:"archetypes"`
}

// ReadinessWeights are the weights of the sub-scores in the overall readiness score.
type ReadinessWeights struct {
	Sleep        float64 `yaml:"sleep"`
	Recovery     float64 `yaml:"recovery"`
	TrainingLoad float64 `yaml:"training_load"`
	Nutrition    float64 `yaml:"nutrition"`
	Stress       float64 `yaml:"stress"`
	HRV          float64 `yaml:"hrv"`
}

type ReadinessRules struct {
	Weights ReadinessWeights `yaml:"weights"`
	// DefaultSubScore is used for a sub-score with no inputs at all.
	DefaultSubScore float64 `yaml:"default_sub_score"`
	// NoSessionsLoadScore is the training-load score when the window has no sessions.
	NoSessionsLoadScore float64 `yaml:"no_sessions_load_score"`
	DefaultNutrition    float64 `yaml:"default_nutrition"`
	// NoteThreshold adds a note for sleep, stress and recovery sub-scores below it.
	NoteThreshold float64 `yaml:"note_threshold"`
}

// IncrementTiers are weight increments per experience tier. Experts use the advanced tier.
type IncrementTiers struct {
	Beginner     float64 `yaml:"beginner"`
	Intermediate float64 `yaml:"intermediate"`
	Advanced     float64 `yaml:"advanced"`
}

// For returns the increment for level.
func (t IncrementTiers) For(level FitnessLevel) float64 {
	switch level {
	case LevelBeginner:
		return t.Beginner
	case LevelIntermediate:
		return t.Intermediate
	case LevelAdvanced, LevelExpert:
		return t.Advanced
	default:
		return t.Beginner
	}
}

type OverloadRules struct {
	// MaxRPEForIncrease is the highest RPE at which a fully completed session still earns more weight.
	MaxRPEForIncrease float64 `yaml:"max_rpe_for_increase"`
	// DeloadCompletionRatio triggers a deload when completed sets fall below this share of prescribed.
	DeloadCompletionRatio float64 `yaml:"deload_completion_ratio"`
	DeloadFactor          float64 `yaml:"deload_factor"`
	MinDeloadDecrement    float64 `yaml:"min_deload_decrement"`
	BodyweightDeloadReps  int     `yaml:"bodyweight_deload_reps"`
	RepCeiling            int     `yaml:"rep_ceiling"`
	// FirstExposureFraction of 1RM is used the first time an exercise is performed.
	FirstExposureFraction float64        `yaml:"first_exposure_fraction"`
	DefaultReps           int            `yaml:"default_reps"`
	DefaultSets           int            `yaml:"default_sets"`
	PlateIncrement        float64        `yaml:"plate_increment"`
	LowerBodyIncrements   IncrementTiers `yaml:"lower_body_increments"`
	// UpperBodyIncrements apply to compound upper-body and isolation exercises.
	UpperBodyIncrements IncrementTiers `yaml:"upper_body_increments"`
}

// increment returns the weight step for an exercise category at a level.
func (r OverloadRules) increment(c Category, level FitnessLevel) float64 {
	if c == CategoryCompoundLower {
		return r.LowerBodyIncrements.For(level)
	}
	return r.UpperBodyIncrements.For(level)
}

// AdaptationConfidence are the placeholder confidence scores per adaptation type.
type AdaptationConfidence struct {
	LoadReduction    float64 `yaml:"load_reduction"`
	ExerciseSwap     float64 `yaml:"exercise_swap"`
	RestIncrease     float64 `yaml:"rest_increase"`
	FormModification float64 `yaml:"form_modification"`
	EquipmentSwap    float64 `yaml:"equipment_swap"`
}

type AdaptationRules struct {
	RPETolerance        float64              `yaml:"rpe_tolerance"`
	LoadReductionFactor float64              `yaml:"load_reduction_factor"`
	PainSwapThreshold   float64              `yaml:"pain_swap_threshold"`
	PainHighThreshold   float64              `yaml:"pain_high_threshold"`
	FatigueRestSeconds  int                  `yaml:"fatigue_rest_seconds"`
	FormResetLoadFactor float64              `yaml:"form_reset_load_factor"`
	Confidence          AdaptationConfidence `yaml:"confidence"`
	// SafeAlternatives maps a movement pattern to the exercise used when pain is reported.
	SafeAlternatives map[string]string `yaml:"safe_alternatives"`
	// FormResets maps a movement pattern to a simplified variant used on form breakdown.
	FormResets map[string]string `yaml:"form_resets"`
}

// RepRange is an inclusive rep range.
type RepRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type AssemblyRules struct {
	DefaultDurationMinutes int     `yaml:"default_duration_minutes"`
	RestrictedLoadFactor   float64 `yaml:"restricted_load_factor"`
	DefaultTargetRPE       float64 `yaml:"default_target_rpe"`
	DefaultRestSeconds     int     `yaml:"default_rest_seconds"`
	// WorkSecondsPerSet estimates the time under load of one strength set.
	WorkSecondsPerSet int `yaml:"work_seconds_per_set"`
	// MinutesPerExercise estimates the time one exercise takes in non-strength blocks.
	MinutesPerExercise map[BlockType]float64 `yaml:"minutes_per_exercise"`
	// DifficultyCaps are the preferred maximum exercise difficulty per level.
	DifficultyCaps map[FitnessLevel]int `yaml:"difficulty_caps"`
	// RepRanges are used for strength targets when no training cycle applies.
	RepRanges map[Goal]RepRange `yaml:"rep_ranges"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return Rules{
		Readiness: ReadinessRules{
			Weights: ReadinessWeights{
				Sleep:        0.25,
				Recovery:     0.20,
				TrainingLoad: 0.15,
				Nutrition:    0.15,
				Stress:       0.15,
				HRV:          0.10,
			},
			DefaultSubScore:     50,
			NoSessionsLoadScore: 80,
			DefaultNutrition:    75,
			NoteThreshold:       50,
		},
		Overload: OverloadRules{
			MaxRPEForIncrease:     7,
			DeloadCompletionRatio: 0.8,
			DeloadFactor:          0.9,
			MinDeloadDecrement:    2.5,
			BodyweightDeloadReps:  2,
			RepCeiling:            15,
			FirstExposureFraction: 0.65,
			DefaultReps:           8,
			DefaultSets:           3,
			PlateIncrement:        2.5,
			LowerBodyIncrements:   IncrementTiers{Beginner: 2.5, Intermediate: 1.25, Advanced: 0.625},
			UpperBodyIncrements:   IncrementTiers{Beginner: 1.25, Intermediate: 0.625, Advanced: 0.3125},
		},
		Adaptation: AdaptationRules{
			RPETolerance:        1,
			LoadReductionFactor: 0.10,
			PainSwapThreshold:   3,
			PainHighThreshold:   5,
			FatigueRestSeconds:  180,
			FormResetLoadFactor: 0.8,
			Confidence: AdaptationConfidence{
				LoadReduction:    0.85,
				ExerciseSwap:     0.95,
				RestIncrease:     0.78,
				FormModification: 0.90,
				EquipmentSwap:    0.88,
			},
			SafeAlternatives: map[string]string{
				"squat":           "box_squat",
				"hinge":           "glute_bridge",
				"horizontal_push": "incline_push_up",
				"vertical_push":   "band_overhead_press",
				"horizontal_pull": "band_row",
				"vertical_pull":   "band_pulldown",
				"lunge":           "split_squat_hold",
			},
			FormResets: map[string]string{
				"squat":           "goblet_squat",
				"hinge":           "kettlebell_deadlift",
				"horizontal_push": "push_up",
				"vertical_push":   "dumbbell_shoulder_press",
				"horizontal_pull": "dumbbell_row",
				"vertical_pull":   "band_pulldown",
			},
		},
		Assembly: AssemblyRules{
			DefaultDurationMinutes: 45,
			RestrictedLoadFactor:   0.8,
			DefaultTargetRPE:       7,
			DefaultRestSeconds:     90,
			WorkSecondsPerSet:      40,
			MinutesPerExercise: map[BlockType]float64{
				BlockWarmup:    3,
				BlockCooldown:  3,
				BlockMobility:  3,
				BlockMetabolic: 4,
			},
			DifficultyCaps: map[FitnessLevel]int{
				LevelBeginner:     2,
				LevelIntermediate: 3,
				LevelAdvanced:     4,
				LevelExpert:       5,
			},
			RepRanges: map[Goal]RepRange{
				GoalStrength:       {Min: 3, Max: 6},
				GoalHypertrophy:    {Min: 8, Max: 12},
				GoalEndurance:      {Min: 12, Max: 15},
				GoalWeightLoss:     {Min: 10, Max: 15},
				GoalGeneralFitness: {Min: 8, Max: 12},
				GoalMobility:       {Min: 10, Max: 15},
			},
		},
		Archetypes: defaultArchetypes(),
	}
}

// LoadRules reads a YAML rules file and overlays it on DefaultRules. Keys missing from the file keep
// their defaults; a non-empty archetypes list replaces the built-in one.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules is LoadRules for an in-memory document.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks the rules for values that would make the engines produce garbage.
func (r Rules) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidRules}, args...)...))
		}
	}

	w := r.Readiness.Weights
	sum := w.Sleep + w.Recovery + w.TrainingLoad + w.Nutrition + w.Stress + w.HRV
	check(math.Abs(sum-1) < 1e-6, "readiness weights sum to %.3f, want 1", sum)

	o := r.Overload
	check(o.DeloadCompletionRatio > 0 && o.DeloadCompletionRatio <= 1, "deload completion ratio %v", o.DeloadCompletionRatio)
	check(o.DeloadFactor > 0 && o.DeloadFactor < 1, "deload factor %v", o.DeloadFactor)
	check(o.FirstExposureFraction > 0 && o.FirstExposureFraction <= 1, "first exposure fraction %v", o.FirstExposureFraction)
	check(o.RepCeiling > 0, "rep ceiling %d", o.RepCeiling)
	check(o.DefaultReps > 0 && o.DefaultSets > 0, "default reps %d and sets %d", o.DefaultReps, o.DefaultSets)
	check(o.PlateIncrement > 0, "plate increment %v", o.PlateIncrement)

	a := r.Adaptation
	check(a.LoadReductionFactor > 0 && a.LoadReductionFactor < 1, "load reduction factor %v", a.LoadReductionFactor)
	check(a.FormResetLoadFactor > 0 && a.FormResetLoadFactor <= 1, "form reset load factor %v", a.FormResetLoadFactor)
	for name, c := range map[string]float64{
		"load_reduction":    a.Confidence.LoadReduction,
		"exercise_swap":     a.Confidence.ExerciseSwap,
		"rest_increase":     a.Confidence.RestIncrease,
		"form_modification": a.Confidence.FormModification,
		"equipment_swap":    a.Confidence.EquipmentSwap,
	} {
		check(c >= 0 && c <= 1, "confidence %s %v outside [0,1]", name, c)
	}

	check(r.Assembly.DefaultDurationMinutes > 0, "default duration %d", r.Assembly.DefaultDurationMinutes)
	check(r.Assembly.WorkSecondsPerSet > 0, "work seconds per set %d", r.Assembly.WorkSecondsPerSet)
	check(r.Assembly.DefaultRestSeconds > 0, "default rest %d seconds", r.Assembly.DefaultRestSeconds)
	check(r.Assembly.RestrictedLoadFactor > 0 && r.Assembly.RestrictedLoadFactor <= 1,
		"restricted load factor %v", r.Assembly.RestrictedLoadFactor)
	for goal, rr := range r.Assembly.RepRanges {
		check(rr.Min > 0 && rr.Min <= rr.Max, "rep range for %s %d-%d", goal, rr.Min, rr.Max)
	}

	for i, arch := range r.Archetypes {
		if err := arch.validate(); err != nil {
			errs = append(errs, fmt.Errorf("archetype %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
