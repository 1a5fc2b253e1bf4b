package training

import (
	"slices"
)

// RemovalReason says why the catalog filter dropped an exercise.
type RemovalReason string

const (
	RemovedEquipment   RemovalReason = "equipment"
	RemovedInjury      RemovalReason = "injury"
	RemovedRestriction RemovalReason = "restriction"
)

// FilterInput is the candidate pool and the user state it is filtered against.
type FilterInput struct {
	Exercises    []Exercise
	Equipment    []string
	Injuries     []Injury
	Restrictions []MovementRestriction
}

// FilteredExercise is an eligible exercise. Restriction is set when a non-avoid restriction applies so
// that assembly can reduce load.
type FilteredExercise struct {
	Exercise    Exercise
	Restriction RestrictionKind
}

// Removal records a dropped exercise.
type Removal struct {
	ExerciseID string
	Reason     RemovalReason
}

// FilterResult is the safe, usable subset of the catalog in input order.
type FilterResult struct {
	Eligible []FilteredExercise
	// Substitutes maps an exercise removed for equipment only to its first usable alternative.
	Substitutes map[string]Exercise
	Removed     []Removal
}

// Exercises returns the eligible exercises without annotations.
func (r FilterResult) Exercises() []Exercise {
	exercises := make([]Exercise, 0, len(r.Eligible))
	for _, fe := range r.Eligible {
		exercises = append(exercises, fe.Exercise)
	}
	return exercises
}

// Contains reports whether the exercise with id is eligible.
func (r FilterResult) Contains(id string) bool {
	return slices.ContainsFunc(r.Eligible, func(fe FilteredExercise) bool { return fe.Exercise.ID == id })
}

// FilterCatalog returns the exercises that are both equipment-eligible and safety-eligible. It never fails;
// an empty result is valid and callers fall back to BodyweightFallback.
func FilterCatalog(in FilterInput) FilterResult {
	result := FilterResult{
		Eligible:    make([]FilteredExercise, 0, len(in.Exercises)),
		Substitutes: make(map[string]Exercise),
		Removed:     nil,
	}

	for _, ex := range in.Exercises {
		if reason, ok := safetyReason(ex, in.Injuries, in.Restrictions); !ok {
			result.Removed = append(result.Removed, Removal{ExerciseID: ex.ID, Reason: reason})
			continue
		}
		if !equipmentEligible(ex, in.Equipment) {
			result.Removed = append(result.Removed, Removal{ExerciseID: ex.ID, Reason: RemovedEquipment})
			if sub, ok := FindEquipmentSubstitute(ex, in.Exercises, in.Equipment, in.Injuries, in.Restrictions); ok {
				result.Substitutes[ex.ID] = sub
			}
			continue
		}
		result.Eligible = append(result.Eligible, FilteredExercise{
			Exercise:    ex,
			Restriction: restrictionFor(ex.ID, in.Restrictions),
		})
	}

	return result
}

// BodyweightFallback filters the catalog as if the user had no equipment at all.
func BodyweightFallback(in FilterInput) FilterResult {
	in.Equipment = nil
	return FilterCatalog(in)
}

// FindEquipmentSubstitute walks the declared alternatives of ex in order and returns the first one that
// exists in catalog and is itself equipment- and safety-eligible.
func FindEquipmentSubstitute(
	ex Exercise,
	catalog []Exercise,
	equipment []string,
	injuries []Injury,
	restrictions []MovementRestriction,
) (Exercise, bool) {
	for _, altID := range ex.Alternatives {
		idx := slices.IndexFunc(catalog, func(c Exercise) bool { return c.ID == altID })
		if idx < 0 {
			continue
		}
		alt := catalog[idx]
		if !equipmentEligible(alt, equipment) {
			continue
		}
		if _, ok := safetyReason(alt, injuries, restrictions); !ok {
			continue
		}
		return alt, true
	}
	return Exercise{}, false
}

// isEligible reports whether ex passes the filter for the given user state.
func isEligible(ex Exercise, equipment []string, injuries []Injury, restrictions []MovementRestriction) bool {
	_, safe := safetyReason(ex, injuries, restrictions)
	return safe && equipmentEligible(ex, equipment)
}

// equipmentEligible treats the equipment list of an exercise as any-of.
func equipmentEligible(ex Exercise, equipment []string) bool {
	if len(ex.Equipment) == 0 || ex.Bodyweight {
		return true
	}
	for _, tag := range ex.Equipment {
		if slices.Contains(equipment, tag) {
			return true
		}
	}
	return false
}

func safetyReason(ex Exercise, injuries []Injury, restrictions []MovementRestriction) (RemovalReason, bool) {
	for _, injury := range injuries {
		if slices.Contains(injury.Contraindicated, ex.ID) {
			return RemovedInjury, false
		}
		for _, tag := range ex.ContraindicationTags {
			if slices.Contains(injury.Contraindicated, tag) {
				return RemovedInjury, false
			}
		}
	}
	for _, r := range restrictions {
		if r.Kind == RestrictionAvoid && slices.Contains(r.ExerciseIDs, ex.ID) {
			return RemovedRestriction, false
		}
	}
	return "", true
}

// restrictionFor returns the first non-avoid restriction kind naming id, or the empty kind.
func restrictionFor(id string, restrictions []MovementRestriction) RestrictionKind {
	for _, r := range restrictions {
		if r.Kind != RestrictionAvoid && slices.Contains(r.ExerciseIDs, id) {
			return r.Kind
		}
	}
	return ""
}
