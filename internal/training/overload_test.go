package training_test

import (
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/myrjola/traincore/internal/training"
)

func record(daysAgo int, weight float64, reps, sets int, rpe float64) training.PerformanceRecord {
	return training.PerformanceRecord{
		ExerciseID:  "",
		PerformedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo),
		Weight:      weight,
		Reps:        reps,
		Sets:        sets,
		RPE:         rpe,
	}
}

func TestDecideOverload(t *testing.T) {
	rules := training.DefaultRules().Overload
	squat := training.Exercise{ID: "back_squat", Category: training.CategoryCompoundLower}
	bench := training.Exercise{ID: "bench_press", Category: training.CategoryCompoundUpper}
	curl := training.Exercise{ID: "biceps_curl", Category: training.CategoryIsolation}
	pushUp := training.Exercise{ID: "push_up", Category: training.CategoryCompoundUpper, Bodyweight: true}

	tests := []struct {
		name string
		in   training.OverloadInput
		want training.OverloadDecision
	}{
		{
			name: "first exposure at 65 percent of 1RM",
			in:   training.OverloadInput{Exercise: squat, PrescribedSets: 3, Level: training.LevelBeginner, OneRepMax: 100},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionWeightIncrease, NewWeight: 65, NewReps: 8,
			},
		},
		{
			name: "first exposure rounds to the plate increment",
			in:   training.OverloadInput{Exercise: squat, PrescribedSets: 3, Level: training.LevelBeginner, OneRepMax: 137},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionWeightIncrease, NewWeight: 90, NewReps: 8,
			},
		},
		{
			name: "easy session adds the lower body beginner increment",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 3, Level: training.LevelBeginner,
				History: []training.PerformanceRecord{record(2, 100, 5, 3, 6)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionWeightIncrease, PreviousWeight: 100, NewWeight: 102.5,
				PreviousReps: 5, NewReps: 5, ProgressionPercent: 2.5,
			},
		},
		{
			name: "intermediate upper body increment",
			in: training.OverloadInput{
				Exercise: bench, PrescribedSets: 4, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 62.5, 8, 4, 7)},
			},
			want: training.OverloadDecision{
				ExerciseID: "bench_press", Type: training.DecisionWeightIncrease, PreviousWeight: 62.5, NewWeight: 63.125,
				PreviousReps: 8, NewReps: 8, ProgressionPercent: 1,
			},
		},
		{
			name: "expert uses the advanced tier",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 5, Level: training.LevelExpert,
				History: []training.PerformanceRecord{record(3, 200, 3, 5, 7)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionWeightIncrease, PreviousWeight: 200, NewWeight: 200.625,
				PreviousReps: 3, NewReps: 3, ProgressionPercent: 0.3125,
			},
		},
		{
			name: "advanced isolation increment",
			in: training.OverloadInput{
				Exercise: curl, PrescribedSets: 3, Level: training.LevelAdvanced,
				History: []training.PerformanceRecord{record(3, 20, 12, 3, 5)},
			},
			want: training.OverloadDecision{
				ExerciseID: "biceps_curl", Type: training.DecisionWeightIncrease, PreviousWeight: 20, NewWeight: 20.3125,
				PreviousReps: 12, NewReps: 12, ProgressionPercent: 1.5625,
			},
		},
		{
			name: "unloaded bodyweight exercise progresses by reps",
			in: training.OverloadInput{
				Exercise: pushUp, PrescribedSets: 3, Level: training.LevelBeginner,
				History: []training.PerformanceRecord{record(1, 0, 12, 3, 6)},
			},
			want: training.OverloadDecision{
				ExerciseID: "push_up", Type: training.DecisionRepIncrease, PreviousReps: 12, NewReps: 13,
			},
		},
		{
			name: "unloaded bodyweight exercise at the rep ceiling holds",
			in: training.OverloadInput{
				Exercise: pushUp, PrescribedSets: 3, Level: training.LevelBeginner,
				History: []training.PerformanceRecord{record(1, 0, 15, 3, 6)},
			},
			want: training.OverloadDecision{
				ExerciseID: "push_up", Type: training.DecisionMaintain, PreviousReps: 15, NewReps: 15,
			},
		},
		{
			name: "half the sets completed deloads",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 4, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 20, 5, 2, 9)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionDeload, PreviousWeight: 20, NewWeight: 18,
				PreviousReps: 5, NewReps: 5, ProgressionPercent: -10,
			},
		},
		{
			name: "deload keeps the larger of the two reductions",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 3, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 100, 5, 1, 10)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionDeload, PreviousWeight: 100, NewWeight: 97.5,
				PreviousReps: 5, NewReps: 5, ProgressionPercent: -2.5,
			},
		},
		{
			name: "unloaded bodyweight deload drops reps",
			in: training.OverloadInput{
				Exercise: pushUp, PrescribedSets: 3, Level: training.LevelBeginner,
				History: []training.PerformanceRecord{record(1, 0, 10, 1, 9)},
			},
			want: training.OverloadDecision{
				ExerciseID: "push_up", Type: training.DecisionDeload, PreviousReps: 10, NewReps: 8,
			},
		},
		{
			name: "plateau adds a rep",
			in: training.OverloadInput{
				Exercise: bench, PrescribedSets: 3, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 80, 8, 3, 9), record(5, 80, 8, 3, 8.5)},
			},
			want: training.OverloadDecision{
				ExerciseID: "bench_press", Type: training.DecisionRepIncrease, PreviousWeight: 80, NewWeight: 80,
				PreviousReps: 8, NewReps: 9,
			},
		},
		{
			name: "plateau at the rep ceiling holds",
			in: training.OverloadInput{
				Exercise: curl, PrescribedSets: 3, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 15, 15, 3, 9), record(5, 15, 15, 3, 9)},
			},
			want: training.OverloadDecision{
				ExerciseID: "biceps_curl", Type: training.DecisionMaintain, PreviousWeight: 15, NewWeight: 15,
				PreviousReps: 15, NewReps: 15,
			},
		},
		{
			name: "eighty percent completion is not a deload",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 5, Level: training.LevelIntermediate,
				History: []training.PerformanceRecord{record(2, 120, 5, 4, 9), record(5, 117.5, 5, 5, 8)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionMaintain, PreviousWeight: 120, NewWeight: 120,
				PreviousReps: 5, NewReps: 5,
			},
		},
		{
			name: "missing prescription uses the default set count",
			in: training.OverloadInput{
				Exercise: squat, PrescribedSets: 0, Level: training.LevelBeginner,
				History: []training.PerformanceRecord{record(2, 60, 8, 3, 7)},
			},
			want: training.OverloadDecision{
				ExerciseID: "back_squat", Type: training.DecisionWeightIncrease, PreviousWeight: 60, NewWeight: 62.5,
				PreviousReps: 8, NewReps: 8, ProgressionPercent: 2.5 / 60 * 100,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := slices.Clone(tt.in.History)

			got := training.DecideOverload(tt.in, rules)

			opts := cmp.Options{
				cmpopts.IgnoreFields(training.OverloadDecision{}, "Reason"),
				cmpopts.EquateApprox(0, 1e-9),
			}
			if diff := cmp.Diff(tt.want, got, opts); diff != "" {
				t.Errorf("DecideOverload() mismatch (-want +got):\n%s", diff)
			}
			if got.Reason == "" {
				t.Error("Reason is empty")
			}
			if diff := cmp.Diff(history, tt.in.History); diff != "" {
				t.Errorf("history was mutated (-before +after):\n%s", diff)
			}
		})
	}
}

func TestDecideOverload_Properties(t *testing.T) {
	rules := training.DefaultRules().Overload
	levels := []training.FitnessLevel{
		training.LevelBeginner, training.LevelIntermediate, training.LevelAdvanced, training.LevelExpert,
	}
	categories := []training.Category{
		training.CategoryCompoundLower, training.CategoryCompoundUpper, training.CategoryIsolation,
	}

	for _, level := range levels {
		for _, category := range categories {
			ex := training.Exercise{ID: "x", Category: category}
			for _, weight := range []float64{2.5, 20, 57.5, 140} {
				easy := training.DecideOverload(training.OverloadInput{
					Exercise: ex, PrescribedSets: 4, Level: level,
					History: []training.PerformanceRecord{record(1, weight, 6, 4, 6)},
				}, rules)
				if easy.Type != training.DecisionWeightIncrease || easy.NewWeight <= weight {
					t.Errorf("%s %s %v: RPE 6 with all sets gave %s %v", level, category, weight, easy.Type, easy.NewWeight)
				}

				missed := training.DecideOverload(training.OverloadInput{
					Exercise: ex, PrescribedSets: 4, Level: level,
					History: []training.PerformanceRecord{record(1, weight, 6, 2, 9)},
				}, rules)
				if missed.Type != training.DecisionDeload || missed.NewWeight >= weight {
					t.Errorf("%s %s %v: half the sets gave %s %v", level, category, weight, missed.Type, missed.NewWeight)
				}
			}
		}
	}
}

func TestOverloadDecision_LogEntry(t *testing.T) {
	d := training.OverloadDecision{
		ExerciseID: "back_squat", Type: training.DecisionDeload, PreviousWeight: 100, NewWeight: 97.5,
		PreviousReps: 5, NewReps: 5, ProgressionPercent: -2.5, Reason: "missed sets",
	}
	want := training.ProgressionLogEntry{
		ExerciseID: "back_squat", Decision: training.DecisionDeload, WeightBefore: 100, WeightAfter: 97.5,
		RepsBefore: 5, RepsAfter: 5, Percent: -2.5,
	}
	if diff := cmp.Diff(want, d.LogEntry()); diff != "" {
		t.Errorf("LogEntry() mismatch (-want +got):\n%s", diff)
	}
}
