package training

import (
	"fmt"
	"slices"
	"strings"
)

// Selection thresholds.
const (
	recoveryPreferenceBelow  = 50
	intensityPreferenceAbove = 80
	highMetabolicEmphasis    = 0.7
	highStrengthEmphasis     = 0.8
	defaultArchetypeName     = "balanced"
	maxReadiness             = 100
)

// BlockTemplate is one block of an archetype. Share is the fraction of the session time it gets.
type BlockTemplate struct {
	Type         BlockType `json:"type"          yaml:"type"`
	Share        float64   `json:"share"         yaml:"share"`
	MaxExercises int       `json:"max_exercises" yaml:"max_exercises"`
}

// Archetype is a reusable workout shape. Empty Goals or Levels match any goal or level.
type Archetype struct {
	Name              string          `json:"name"               yaml:"name"`
	Tags              []string        `json:"tags"               yaml:"tags"`
	Goals             []Goal          `json:"goals"              yaml:"goals"`
	Levels            []FitnessLevel  `json:"levels"             yaml:"levels"`
	ReadinessMin      int             `json:"readiness_min"      yaml:"readiness_min"`
	ReadinessMax      int             `json:"readiness_max"      yaml:"readiness_max"`
	MetabolicEmphasis float64         `json:"metabolic_emphasis" yaml:"metabolic_emphasis"`
	StrengthEmphasis  float64         `json:"strength_emphasis"  yaml:"strength_emphasis"`
	Blocks            []BlockTemplate `json:"blocks"             yaml:"blocks"`
}

// ArchetypeSelection is the chosen archetype and why. Fallback is set when no candidate matched.
type ArchetypeSelection struct {
	Archetype Archetype
	Fallback  bool
	Reason    string
}

// SelectArchetype picks a workout shape with a fixed priority list. Ties resolve to declaration order.
func SelectArchetype(candidates []Archetype, goal Goal, level FitnessLevel, score int) ArchetypeSelection {
	var matching []Archetype
	for _, a := range candidates {
		if !a.allows(goal, level) {
			continue
		}
		if score < a.ReadinessMin || score > a.ReadinessMax {
			continue
		}
		matching = append(matching, a)
	}

	if len(matching) == 0 {
		return ArchetypeSelection{
			Archetype: DefaultArchetype(),
			Fallback:  true,
			Reason: fmt.Sprintf("no archetype for goal %s, level %s and readiness %d; using %s",
				goal, level, score, defaultArchetypeName),
		}
	}

	if score < recoveryPreferenceBelow {
		if idx := slices.IndexFunc(matching, Archetype.isRecovery); idx >= 0 {
			return ArchetypeSelection{
				Archetype: matching[idx],
				Fallback:  false,
				Reason:    fmt.Sprintf("readiness %d is low; preferring recovery", score),
			}
		}
	}

	if score > intensityPreferenceAbove {
		if idx := slices.IndexFunc(matching, Archetype.isIntense); idx >= 0 {
			return ArchetypeSelection{
				Archetype: matching[idx],
				Fallback:  false,
				Reason:    fmt.Sprintf("readiness %d is high; preferring a demanding session", score),
			}
		}
	}

	return ArchetypeSelection{
		Archetype: matching[0],
		Fallback:  false,
		Reason:    fmt.Sprintf("first archetype matching goal %s, level %s and readiness %d", goal, level, score),
	}
}

// DefaultArchetype is the goal- and level-agnostic shape used when nothing else matches.
func DefaultArchetype() Archetype {
	return Archetype{
		Name:              defaultArchetypeName,
		Tags:              nil,
		Goals:             nil,
		Levels:            nil,
		ReadinessMin:      0,
		ReadinessMax:      maxReadiness,
		MetabolicEmphasis: 0.5, //nolint:mnd // even split
		StrengthEmphasis:  0.5, //nolint:mnd // even split
		Blocks: []BlockTemplate{
			{Type: BlockWarmup, Share: 0.15, MaxExercises: 2},
			{Type: BlockStrength, Share: 0.5, MaxExercises: 4},
			{Type: BlockMetabolic, Share: 0.2, MaxExercises: 2},
			{Type: BlockCooldown, Share: 0.15, MaxExercises: 2},
		},
	}
}

func (a Archetype) allows(goal Goal, level FitnessLevel) bool {
	goalOK := len(a.Goals) == 0 || slices.Contains(a.Goals, goal)
	levelOK := len(a.Levels) == 0 || slices.Contains(a.Levels, level)
	return goalOK && levelOK
}

func (a Archetype) isRecovery() bool {
	hints := append([]string{a.Name}, a.Tags...)
	return slices.ContainsFunc(hints, func(s string) bool {
		s = strings.ToLower(s)
		return strings.Contains(s, "recovery") || strings.Contains(s, "mobility")
	})
}

func (a Archetype) isIntense() bool {
	return a.MetabolicEmphasis > highMetabolicEmphasis || a.StrengthEmphasis > highStrengthEmphasis
}

func (a Archetype) validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: archetype without name", ErrInvalidRules)
	}
	if a.ReadinessMin < 0 || a.ReadinessMax > maxReadiness || a.ReadinessMin > a.ReadinessMax {
		return fmt.Errorf("%w: %s readiness range %d-%d", ErrInvalidRules, a.Name, a.ReadinessMin, a.ReadinessMax)
	}
	if len(a.Blocks) == 0 {
		return fmt.Errorf("%w: %s has no blocks", ErrInvalidRules, a.Name)
	}
	for _, b := range a.Blocks {
		switch b.Type {
		case BlockWarmup, BlockStrength, BlockMetabolic, BlockCooldown, BlockMobility:
		default:
			return fmt.Errorf("%w: %s has unknown block type %q", ErrInvalidRules, a.Name, b.Type)
		}
		if b.Share <= 0 || b.MaxExercises < 1 {
			return fmt.Errorf("%w: %s block %s share %v max %d", ErrInvalidRules, a.Name, b.Type, b.Share, b.MaxExercises)
		}
	}
	return nil
}

func defaultArchetypes() []Archetype {
	allLevels := []FitnessLevel{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}
	return []Archetype{
		{
			Name:              "strength_focus",
			Tags:              []string{"strength"},
			Goals:             []Goal{GoalStrength, GoalHypertrophy},
			Levels:            []FitnessLevel{LevelIntermediate, LevelAdvanced, LevelExpert},
			ReadinessMin:      65,
			ReadinessMax:      100,
			MetabolicEmphasis: 0.2,
			StrengthEmphasis:  0.9,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.15, MaxExercises: 2},
				{Type: BlockStrength, Share: 0.7, MaxExercises: 5},
				{Type: BlockCooldown, Share: 0.15, MaxExercises: 2},
			},
		},
		{
			Name:              "foundation_strength",
			Tags:              []string{"strength", "technique"},
			Goals:             []Goal{GoalStrength, GoalHypertrophy, GoalGeneralFitness, GoalWeightLoss},
			Levels:            []FitnessLevel{LevelBeginner, LevelIntermediate},
			ReadinessMin:      40,
			ReadinessMax:      100,
			MetabolicEmphasis: 0.3,
			StrengthEmphasis:  0.6,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.2, MaxExercises: 2},
				{Type: BlockStrength, Share: 0.6, MaxExercises: 4},
				{Type: BlockCooldown, Share: 0.2, MaxExercises: 2},
			},
		},
		{
			Name:              "hypertrophy_circuit",
			Tags:              []string{"volume"},
			Goals:             []Goal{GoalHypertrophy, GoalGeneralFitness},
			Levels:            allLevels,
			ReadinessMin:      50,
			ReadinessMax:      100,
			MetabolicEmphasis: 0.4,
			StrengthEmphasis:  0.7,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.15, MaxExercises: 2},
				{Type: BlockStrength, Share: 0.6, MaxExercises: 5},
				{Type: BlockMetabolic, Share: 0.15, MaxExercises: 2},
				{Type: BlockCooldown, Share: 0.1, MaxExercises: 2},
			},
		},
		{
			Name:              "metabolic_conditioning",
			Tags:              []string{"conditioning"},
			Goals:             []Goal{GoalWeightLoss, GoalEndurance, GoalGeneralFitness},
			Levels:            allLevels,
			ReadinessMin:      60,
			ReadinessMax:      100,
			MetabolicEmphasis: 0.8,
			StrengthEmphasis:  0.3,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.15, MaxExercises: 2},
				{Type: BlockMetabolic, Share: 0.45, MaxExercises: 4},
				{Type: BlockStrength, Share: 0.3, MaxExercises: 3},
				{Type: BlockCooldown, Share: 0.1, MaxExercises: 2},
			},
		},
		{
			Name:              "active_recovery",
			Tags:              []string{"recovery", "mobility"},
			Goals:             nil,
			Levels:            nil,
			ReadinessMin:      0,
			ReadinessMax:      55,
			MetabolicEmphasis: 0.1,
			StrengthEmphasis:  0.1,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.2, MaxExercises: 2},
				{Type: BlockMobility, Share: 0.6, MaxExercises: 4},
				{Type: BlockCooldown, Share: 0.2, MaxExercises: 2},
			},
		},
		{
			Name:              "mobility_flow",
			Tags:              []string{"mobility"},
			Goals:             []Goal{GoalMobility},
			Levels:            nil,
			ReadinessMin:      0,
			ReadinessMax:      100,
			MetabolicEmphasis: 0.1,
			StrengthEmphasis:  0.1,
			Blocks: []BlockTemplate{
				{Type: BlockWarmup, Share: 0.2, MaxExercises: 2},
				{Type: BlockMobility, Share: 0.6, MaxExercises: 5},
				{Type: BlockCooldown, Share: 0.2, MaxExercises: 2},
			},
		},
	}
}
