package training

import (
	"time"
)

// Goal is the user's primary training goal.
type Goal string

const (
	GoalStrength       Goal = "strength"
	GoalHypertrophy    Goal = "hypertrophy"
	GoalEndurance      Goal = "endurance"
	GoalWeightLoss     Goal = "weight_loss"
	GoalGeneralFitness Goal = "general_fitness"
	GoalMobility       Goal = "mobility"
)

// FitnessLevel is the user's training experience tier.
type FitnessLevel string

const (
	LevelBeginner     FitnessLevel = "beginner"
	LevelIntermediate FitnessLevel = "intermediate"
	LevelAdvanced     FitnessLevel = "advanced"
	LevelExpert       FitnessLevel = "expert"
)

// Category groups exercises for load increments and block placement.
type Category string

const (
	CategoryCompoundLower Category = "compound_lower"
	CategoryCompoundUpper Category = "compound_upper"
	CategoryIsolation     Category = "isolation"
	CategoryCardio        Category = "cardio"
	CategoryMobility      Category = "mobility"
)

// IntensityTier describes how demanding an exercise is.
type IntensityTier string

const (
	IntensityLow      IntensityTier = "low"
	IntensityModerate IntensityTier = "moderate"
	IntensityHigh     IntensityTier = "high"
)

// Exercise is immutable catalog reference data.
type Exercise struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	MovementPattern       string   `json:"movement_pattern"`
	Category              Category `json:"category"`
	PrimaryMuscleGroups   []string `json:"primary_muscle_groups"`
	SecondaryMuscleGroups []string `json:"secondary_muscle_groups"`
	// Equipment lists the equipment tags of which any one is enough to perform the exercise.
	Equipment            []string `json:"equipment"`
	ContraindicationTags []string `json:"contraindication_tags"`
	// Alternatives are exercise ids in order of preference, used when the equipment is missing.
	Alternatives        []string      `json:"alternatives"`
	Difficulty          int           `json:"difficulty"`
	Intensity           IntensityTier `json:"intensity"`
	Bodyweight          bool          `json:"bodyweight"`
	Approved            bool          `json:"approved"`
	DescriptionMarkdown string        `json:"description_markdown"`
}

// InjurySeverity grades an injury.
type InjurySeverity string

const (
	InjuryMild     InjurySeverity = "mild"
	InjuryModerate InjurySeverity = "moderate"
	InjurySevere   InjurySeverity = "severe"
)

// Injury is an active injury with the exercise ids or tags it rules out.
type Injury struct {
	BodyPart        string         `json:"body_part"`
	Severity        InjurySeverity `json:"severity"`
	Contraindicated []string       `json:"contraindicated"`
}

// RestrictionKind says how a movement restriction affects the exercises it names.
type RestrictionKind string

const (
	RestrictionAvoid      RestrictionKind = "avoid"
	RestrictionLimitRange RestrictionKind = "limit_range"
	RestrictionReduceLoad RestrictionKind = "reduce_load"
	RestrictionModify     RestrictionKind = "modify"
)

// MovementRestriction maps a movement pattern to the exercises it affects.
type MovementRestriction struct {
	Pattern     string          `json:"pattern"`
	ExerciseIDs []string        `json:"exercise_ids"`
	Kind        RestrictionKind `json:"kind"`
}

// UserTrainingProfile is the latest known state of a user. Newer entries supersede older ones.
type UserTrainingProfile struct {
	UserID                   string                `json:"user_id"`
	Goal                     Goal                  `json:"goal"`
	Level                    FitnessLevel          `json:"level"`
	Equipment                []string              `json:"equipment"`
	Injuries                 []Injury              `json:"injuries"`
	Restrictions             []MovementRestriction `json:"restrictions"`
	OneRepMax                map[string]float64    `json:"one_rep_max"`
	PreferredDurationMinutes int                   `json:"preferred_duration_minutes"`
	ReadinessScore           int                   `json:"readiness_score"`
	TrainingAgeMonths        int                   `json:"training_age_months"`
}

// PerformanceRecord is one completed exercise instance. Records are append-only.
type PerformanceRecord struct {
	ExerciseID  string    `json:"exercise_id"`
	PerformedAt time.Time `json:"performed_at"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	Sets        int       `json:"sets"`
	RPE         float64   `json:"rpe"`
}

// SessionSummary summarises a completed session for training-load scoring.
type SessionSummary struct {
	CompletedAt     time.Time `json:"completed_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Volume          float64   `json:"volume"`
	AverageRPE      float64   `json:"average_rpe"`
}

// BlockType is the role of a block within a workout.
type BlockType string

const (
	BlockWarmup    BlockType = "warmup"
	BlockStrength  BlockType = "strength"
	BlockMetabolic BlockType = "metabolic"
	BlockCooldown  BlockType = "cooldown"
	BlockMobility  BlockType = "mobility"
)

// ExerciseInstance is an exercise placed in a block with its assigned targets.
type ExerciseInstance struct {
	ExerciseID      string  `json:"exercise_id"`
	Name            string  `json:"name"`
	MovementPattern string  `json:"movement_pattern"`
	Sets            int     `json:"sets"`
	Reps            int     `json:"reps"`
	Weight          float64 `json:"weight"`
	RestSeconds     int     `json:"rest_seconds"`
	TargetRPE       float64 `json:"target_rpe"`
	// LoadNote explains a load reduction caused by a movement restriction.
	LoadNote string            `json:"load_note,omitempty"`
	Decision *OverloadDecision `json:"decision,omitempty"`
}

// Block is an ordered group of exercises within a workout.
type Block struct {
	Type         BlockType          `json:"type"`
	Exercises    []ExerciseInstance `json:"exercises"`
	CoachingText string             `json:"coaching_text,omitempty"`
}

// GeneratedWorkout is created fresh per generation and mutated in place during a live session.
type GeneratedWorkout struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	Archetype string    `json:"archetype"`
	Phase     string    `json:"phase,omitempty"`
	Readiness int       `json:"readiness"`
	Blocks    []Block   `json:"blocks"`
	// Degraded is set when a fallback such as the bodyweight-only catalog was used.
	Degraded bool     `json:"degraded"`
	Notes    []string `json:"notes,omitempty"`
}

// ProgressionLogEntry records an overload decision once the session was actually performed.
type ProgressionLogEntry struct {
	ExerciseID   string       `json:"exercise_id"`
	Decision     DecisionType `json:"decision"`
	WeightBefore float64      `json:"weight_before"`
	WeightAfter  float64      `json:"weight_after"`
	RepsBefore   int          `json:"reps_before"`
	RepsAfter    int          `json:"reps_after"`
	Percent      float64      `json:"percent"`
	LoggedAt     time.Time    `json:"logged_at"`
}

// normalizeDate normalizes a date to midnight UTC.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
