package training_test

import (
	"sync"
	"testing"
	"time"

	"github.com/myrjola/traincore/internal/testhelpers"
	"github.com/myrjola/traincore/internal/training"
)

func liveWorkout() *training.GeneratedWorkout {
	instance := func(id, pattern string, weight float64) training.ExerciseInstance {
		return training.ExerciseInstance{
			ExerciseID:      id,
			Name:            id,
			MovementPattern: pattern,
			Sets:            3,
			Reps:            5,
			Weight:          weight,
			RestSeconds:     120,
			TargetRPE:       7,
		}
	}
	return &training.GeneratedWorkout{
		ID:        "w1",
		UserID:    "u1",
		Date:      monday,
		Archetype: "strength_focus",
		Blocks: []training.Block{
			{Type: training.BlockWarmup, Exercises: []training.ExerciseInstance{instance("cat_cow", "spine_mobility", 0)}},
			{
				Type: training.BlockStrength,
				Exercises: []training.ExerciseInstance{
					instance("back_squat", "squat", 100),
					instance("bench_press", "horizontal_push", 60),
					instance("dumbbell_row", "horizontal_pull", 20),
					instance("biceps_curl", "elbow_flexion", 12),
				},
			},
		},
	}
}

type liveSetup struct {
	equipment    []string
	injuries     []training.Injury
	restrictions []training.MovementRestriction
}

func newLiveSession(t *testing.T, setup liveSetup, workout *training.GeneratedWorkout) *training.LiveSession {
	t.Helper()
	equipment := setup.equipment
	if equipment == nil {
		equipment = []string{"barbell", "bench", "dumbbell"}
	}
	session, err := training.NewLiveSession(training.LiveSessionConfig{
		Workout:      workout,
		Catalog:      testCatalog(),
		Equipment:    equipment,
		Injuries:     setup.injuries,
		Restrictions: setup.restrictions,
		Rules:        training.DefaultRules().Adaptation,
		Logger:       testhelpers.NewLogger(testhelpers.NewWriter(t)),
	})
	if err != nil {
		t.Fatalf("NewLiveSession() error = %v", err)
	}
	return session
}

func findInstance(w *training.GeneratedWorkout, id string) *training.ExerciseInstance {
	for bi := range w.Blocks {
		for ei := range w.Blocks[bi].Exercises {
			if w.Blocks[bi].Exercises[ei].ExerciseID == id {
				return &w.Blocks[bi].Exercises[ei]
			}
		}
	}
	return nil
}

func TestLiveSession_Handle(t *testing.T) {
	at := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		setup          liveSetup
		current        training.SetContext
		trigger        training.Trigger
		wantApplied    bool
		wantType       training.AdaptationType
		wantAdapted    string
		wantConfidence float64
		wantSeverity   training.Severity
		check          func(t *testing.T, w *training.GeneratedWorkout)
	}{
		{
			name:           "rpe above target reduces load",
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerRPEFeedback, Value: 9, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptLoadReduction,
			wantAdapted:    "back_squat",
			wantConfidence: 0.85,
			wantSeverity:   training.SeverityMedium,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if got := findInstance(w, "back_squat").Weight; got != 90 {
					t.Errorf("weight = %v, want 90", got)
				}
			},
		},
		{
			name:        "rpe within tolerance is ignored",
			current:     training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:     training.Trigger{Kind: training.TriggerRPEFeedback, Value: 8, Timestamp: at},
			wantApplied: false,
		},
		{
			name:           "severe pain swaps to the safe alternative",
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerPainSignal, Value: 7, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "box_squat",
			wantConfidence: 0.95,
			wantSeverity:   training.SeverityHigh,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if findInstance(w, "back_squat") != nil {
					t.Error("back_squat still in workout")
				}
				if inst := findInstance(w, "box_squat"); inst == nil || inst.Weight != 0 {
					t.Errorf("box_squat instance = %+v, want unloaded", inst)
				}
			},
		},
		{
			name:           "moderate pain keeps the reported severity",
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerPainSignal, Value: 4, Severity: training.SeverityLow, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "box_squat",
			wantConfidence: 0.95,
			wantSeverity:   training.SeverityLow,
		},
		{
			name:        "mild pain is ignored",
			current:     training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:     training.Trigger{Kind: training.TriggerPainSignal, Value: 3, Timestamp: at},
			wantApplied: false,
		},
		{
			name: "pain falls back to the equipment substitute",
			setup: liveSetup{
				injuries: []training.Injury{{BodyPart: "knee", Severity: training.InjuryMild, Contraindicated: []string{"box_squat"}}},
			},
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerPainSignal, Value: 6, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "goblet_squat",
			wantConfidence: 0.95,
			wantSeverity:   training.SeverityHigh,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if inst := findInstance(w, "goblet_squat"); inst == nil || inst.Weight != 80 {
					t.Errorf("goblet_squat instance = %+v, want weight 80", inst)
				}
			},
		},
		{
			name:           "pain without any alternative removes the exercise",
			current:        training.SetContext{ExerciseID: "biceps_curl", SetNumber: 1, TargetReps: 10, TargetWeight: 12, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerPainSignal, Value: 8, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "",
			wantConfidence: 0.95,
			wantSeverity:   training.SeverityHigh,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if findInstance(w, "biceps_curl") != nil {
					t.Error("biceps_curl still in workout")
				}
			},
		},
		{
			name:           "fatigue extends rest",
			current:        training.SetContext{ExerciseID: "bench_press", SetNumber: 3, TargetReps: 5, TargetWeight: 60, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerFatigue, Value: 1, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptRestIncrease,
			wantAdapted:    "bench_press",
			wantConfidence: 0.78,
			wantSeverity:   training.SeverityMedium,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if got := findInstance(w, "bench_press").RestSeconds; got != 180 {
					t.Errorf("rest = %d, want 180", got)
				}
			},
		},
		{
			name:           "form breakdown uses the registered reset",
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerFormBreakdown, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptFormModification,
			wantAdapted:    "goblet_squat",
			wantConfidence: 0.90,
			wantSeverity:   training.SeverityMedium,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if inst := findInstance(w, "goblet_squat"); inst == nil || inst.Weight != 80 {
					t.Errorf("goblet_squat instance = %+v, want weight 80", inst)
				}
			},
		},
		{
			name:           "form breakdown falls back to the easiest variant",
			setup:          liveSetup{equipment: []string{"barbell"}},
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerFormBreakdown, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptFormModification,
			wantAdapted:    "box_squat",
			wantConfidence: 0.90,
			wantSeverity:   training.SeverityMedium,
		},
		{
			name:           "form breakdown without a variant reduces load",
			current:        training.SetContext{ExerciseID: "dumbbell_row", SetNumber: 2, TargetReps: 10, TargetWeight: 20, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerFormBreakdown, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptFormModification,
			wantAdapted:    "dumbbell_row",
			wantConfidence: 0.90,
			wantSeverity:   training.SeverityMedium,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				if got := findInstance(w, "dumbbell_row").Weight; got != 16 {
					t.Errorf("weight = %v, want 16", got)
				}
			},
		},
		{
			name:           "missing equipment swaps to a substitute",
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerEquipmentUnavailable, Detail: "barbell", Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "goblet_squat",
			wantConfidence: 0.88,
			wantSeverity:   training.SeverityLow,
		},
		{
			name: "missing equipment swaps into a restricted exercise at reduced load",
			setup: liveSetup{
				restrictions: []training.MovementRestriction{
					{Pattern: "squat", ExerciseIDs: []string{"goblet_squat"}, Kind: training.RestrictionReduceLoad},
				},
			},
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerEquipmentUnavailable, Detail: "barbell", Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptExerciseSwap,
			wantAdapted:    "goblet_squat",
			wantConfidence: 0.88,
			wantSeverity:   training.SeverityLow,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				inst := findInstance(w, "goblet_squat")
				if inst == nil || inst.Weight != 80 || inst.LoadNote == "" {
					t.Errorf("goblet_squat instance = %+v, want weight 80 with a load note", inst)
				}
			},
		},
		{
			name: "form reset into a restricted exercise stays on the plate grid",
			setup: liveSetup{
				restrictions: []training.MovementRestriction{
					{Pattern: "squat", ExerciseIDs: []string{"goblet_squat"}, Kind: training.RestrictionLimitRange},
				},
			},
			current:        training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:        training.Trigger{Kind: training.TriggerFormBreakdown, Timestamp: at},
			wantApplied:    true,
			wantType:       training.AdaptFormModification,
			wantAdapted:    "goblet_squat",
			wantConfidence: 0.90,
			wantSeverity:   training.SeverityMedium,
			check: func(t *testing.T, w *training.GeneratedWorkout) {
				t.Helper()
				// 100 * 0.8 * 0.8 = 64, rounded to 65.
				if inst := findInstance(w, "goblet_squat"); inst == nil || inst.Weight != 65 || inst.LoadNote == "" {
					t.Errorf("goblet_squat instance = %+v, want weight 65 with a load note", inst)
				}
			},
		},
		{
			name:        "missing equipment with another option is ignored",
			current:     training.SetContext{ExerciseID: "bench_press", SetNumber: 1, TargetReps: 5, TargetWeight: 60, TargetRPE: 7},
			trigger:     training.Trigger{Kind: training.TriggerEquipmentUnavailable, Detail: "bench", Timestamp: at},
			wantApplied: false,
		},
		{
			name:        "unknown trigger kind is a no-op",
			current:     training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7},
			trigger:     training.Trigger{Kind: "heart_rate_spike", Value: 190, Timestamp: at},
			wantApplied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workout := liveWorkout()
			session := newLiveSession(t, tt.setup, workout)
			session.SetCurrent(tt.current)

			got, applied := session.Handle(t.Context(), tt.trigger)

			if applied != tt.wantApplied {
				t.Fatalf("Handle() applied = %v, want %v (%+v)", applied, tt.wantApplied, got)
			}
			if !applied {
				if len(session.History()) != 0 {
					t.Errorf("History() = %+v, want empty", session.History())
				}
				return
			}
			if got.Type != tt.wantType || got.AdaptedExerciseID != tt.wantAdapted {
				t.Errorf("Handle() = %s to %q, want %s to %q", got.Type, got.AdaptedExerciseID, tt.wantType, tt.wantAdapted)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
			if got.ID == "" || got.Reason == "" || got.OriginalExerciseID != tt.current.ExerciseID {
				t.Errorf("incomplete adaptation record %+v", got)
			}
			if !got.CreatedAt.Equal(at) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
			}
			if history := session.History(); len(history) != 1 || history[0].ID != got.ID {
				t.Errorf("History() = %+v, want the single adaptation", history)
			}
			if tt.check != nil {
				tt.check(t, workout)
			}
		})
	}
}

func TestLiveSession_WithoutSetContext(t *testing.T) {
	session := newLiveSession(t, liveSetup{}, liveWorkout())

	if _, applied := session.Handle(t.Context(), training.Trigger{Kind: training.TriggerFatigue}); applied {
		t.Error("Handle() applied an adaptation before any set context")
	}
	if _, ok := session.Current(); ok {
		t.Error("Current() reported a set context")
	}
}

func TestLiveSession_SwappedExercisesPassFilter(t *testing.T) {
	injuries := []training.Injury{{BodyPart: "shoulder", Severity: training.InjuryModerate, Contraindicated: []string{"incline_push_up"}}}
	workout := liveWorkout()
	session := newLiveSession(t, liveSetup{injuries: injuries}, workout)

	for _, id := range []string{"back_squat", "bench_press", "dumbbell_row"} {
		session.SetCurrent(training.SetContext{ExerciseID: id, SetNumber: 1, TargetReps: 5, TargetWeight: 50, TargetRPE: 7})
		session.Handle(t.Context(), training.Trigger{Kind: training.TriggerPainSignal, Value: 9})
	}

	eligible := training.FilterCatalog(training.FilterInput{
		Exercises: testCatalog(),
		Equipment: session.Equipment(),
		Injuries:  injuries,
	})
	for _, a := range session.History() {
		if a.AdaptedExerciseID != "" && !eligible.Contains(a.AdaptedExerciseID) {
			t.Errorf("%s swapped to %s which does not pass the filter", a.OriginalExerciseID, a.AdaptedExerciseID)
		}
	}
	if len(session.History()) != 3 {
		t.Errorf("History() has %d adaptations, want 3", len(session.History()))
	}
}

func TestLiveSession_EquipmentRemoved(t *testing.T) {
	session := newLiveSession(t, liveSetup{}, liveWorkout())
	session.SetCurrent(training.SetContext{ExerciseID: "back_squat", SetNumber: 1, TargetReps: 5, TargetWeight: 100, TargetRPE: 7})

	session.Handle(t.Context(), training.Trigger{Kind: training.TriggerEquipmentUnavailable, Detail: "barbell"})

	for _, tag := range session.Equipment() {
		if tag == "barbell" {
			t.Fatal("barbell still listed after equipment_unavailable")
		}
	}
	if cur, _ := session.Current(); cur.ExerciseID != "goblet_squat" {
		t.Errorf("current exercise = %s, want goblet_squat", cur.ExerciseID)
	}
}

func TestLiveSession_ConcurrentTriggers(t *testing.T) {
	session := newLiveSession(t, liveSetup{}, liveWorkout())
	session.SetCurrent(training.SetContext{ExerciseID: "bench_press", SetNumber: 1, TargetReps: 5, TargetWeight: 60, TargetRPE: 7})

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			session.Handle(t.Context(), training.Trigger{Kind: training.TriggerFatigue, Value: 1})
		})
	}
	wg.Wait()

	history := session.History()
	if len(history) != 20 {
		t.Fatalf("History() has %d adaptations, want 20", len(history))
	}
	seen := make(map[string]bool, len(history))
	for _, a := range history {
		if seen[a.ID] {
			t.Errorf("duplicate adaptation id %s", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestNewLiveSession_RequiresWorkout(t *testing.T) {
	if _, err := training.NewLiveSession(training.LiveSessionConfig{}); err == nil {
		t.Error("NewLiveSession() without workout returned no error")
	}
}

func TestLiveSession_SwapSkipsPlacedExercises(t *testing.T) {
	workout := liveWorkout()
	workout.Blocks[0].Exercises = append(workout.Blocks[0].Exercises, training.ExerciseInstance{
		ExerciseID: "glute_bridge", Name: "glute_bridge", MovementPattern: "hinge", Sets: 1, Reps: 10, RestSeconds: 30,
	})
	workout.Blocks[1].Exercises[0] = training.ExerciseInstance{
		ExerciseID: "deadlift", Name: "deadlift", MovementPattern: "hinge", Sets: 3, Reps: 5, Weight: 120,
		RestSeconds: 120, TargetRPE: 7,
	}
	session := newLiveSession(t, liveSetup{equipment: []string{"barbell", "bench", "dumbbell", "kettlebell"}}, workout)
	session.SetCurrent(training.SetContext{ExerciseID: "deadlift", SetNumber: 1, TargetReps: 5, TargetWeight: 120, TargetRPE: 7})

	a, applied := session.Handle(t.Context(), training.Trigger{Kind: training.TriggerPainSignal, Value: 7})
	if !applied || a.AdaptedExerciseID != "kettlebell_deadlift" {
		t.Fatalf("Handle() = %+v, %v, want swap past the placed glute_bridge to kettlebell_deadlift", a, applied)
	}
	if _, applied = session.Handle(t.Context(), training.Trigger{Kind: training.TriggerFatigue, Value: 1}); !applied {
		t.Fatal("fatigue trigger not applied")
	}

	counts := make(map[string]int)
	for _, b := range workout.Blocks {
		for _, e := range b.Exercises {
			counts[e.ExerciseID]++
		}
	}
	for id, n := range counts {
		if n > 1 {
			t.Errorf("%s placed %d times", id, n)
		}
	}
	if got := findInstance(workout, "kettlebell_deadlift").RestSeconds; got != 180 {
		t.Errorf("kettlebell_deadlift rest = %d, want 180", got)
	}
	if got := findInstance(workout, "glute_bridge").RestSeconds; got != 30 {
		t.Errorf("glute_bridge rest = %d, want 30", got)
	}
}
