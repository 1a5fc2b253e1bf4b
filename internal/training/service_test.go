package training_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/ptr"
	"github.com/myrjola/traincore/internal/testhelpers"
	"github.com/myrjola/traincore/internal/training"
)

type stubCoach struct {
	text string
	err  error
}

func (c stubCoach) Coach(context.Context, training.GeneratedWorkout, training.Block) (string, error) {
	return c.text, c.err
}

func fixedClock() time.Time {
	return monday.Add(10 * time.Hour)
}

func newService(t *testing.T, opts ...training.Option) (*training.Service, training.Stores) {
	t.Helper()
	stores, _ := newStores(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	opts = append([]training.Option{training.WithClock(fixedClock)}, opts...)
	svc := training.NewService(stores, logger, opts...)
	if err := svc.SaveProfile(t.Context(), strengthProfile()); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	return svc, stores
}

func TestService_ScoreReadiness(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, stores := newService(t)

	for _, s := range []training.SessionSummary{
		{CompletedAt: monday.AddDate(0, 0, -2), DurationMinutes: 50, Volume: 3000, AverageRPE: 8},
		{CompletedAt: monday.AddDate(0, 0, -10), DurationMinutes: 50, Volume: 9000, AverageRPE: 9},
		{CompletedAt: monday.AddDate(0, 0, 3), DurationMinutes: 50, Volume: 9000, AverageRPE: 9},
	} {
		if err := svc.RecordSession(ctx, "u1", s); err != nil {
			t.Fatalf("RecordSession() error = %v", err)
		}
	}

	score, err := svc.ScoreReadiness(ctx, "u1", monday.Add(7*time.Hour), training.ReadinessInput{
		SleepHours:   ptr.Ref(8.0),
		SleepQuality: ptr.Ref(8),
		EnergyLevel:  ptr.Ref(7),
	})
	if err != nil {
		t.Fatalf("ScoreReadiness() error = %v", err)
	}
	// One session in the window: average RPE 8 costs 5 points.
	if score.SubScores.TrainingLoad != 95 {
		t.Errorf("TrainingLoad = %v, want 95", score.SubScores.TrainingLoad)
	}
	if !score.Date.Equal(monday) {
		t.Errorf("Date = %v, want %v", score.Date, monday)
	}

	stored, err := stores.Readiness.Get(ctx, "u1", monday)
	if err != nil {
		t.Fatalf("Readiness.Get() error = %v", err)
	}
	if stored.Overall != score.Overall || stored.Recommendation != score.Recommendation {
		t.Errorf("stored score = %+v, want %+v", stored, score)
	}
	profile, err := svc.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.ReadinessScore != score.Overall {
		t.Errorf("profile readiness = %d, want %d", profile.ReadinessScore, score.Overall)
	}

	if _, err = svc.ScoreReadiness(ctx, "nobody", monday, training.ReadinessInput{}); !errors.Is(err, training.ErrNotFound) {
		t.Errorf("ScoreReadiness() for unknown user error = %v, want ErrNotFound", err)
	}
}

func TestService_GenerateWorkout(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, stores := newService(t)

	catalog, err := stores.Catalog.List(ctx, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, ex := range catalog {
		rec := training.PerformanceRecord{
			ExerciseID: ex.ID, PerformedAt: monday.AddDate(0, 0, -3), Weight: 40, Reps: 8, Sets: 3, RPE: 6,
		}
		if err = svc.RecordPerformance(ctx, "u1", rec); err != nil {
			t.Fatalf("RecordPerformance() error = %v", err)
		}
	}

	w, err := svc.GenerateWorkout(ctx, "u1", monday, nil)
	if err != nil {
		t.Fatalf("GenerateWorkout() error = %v", err)
	}
	if w.UserID != "u1" || len(w.Blocks) == 0 || w.Degraded {
		t.Fatalf("workout = %+v", w)
	}

	profile := strengthProfile()
	eligible := training.FilterCatalog(training.FilterInput{
		Exercises: catalog, Equipment: profile.Equipment, Injuries: nil, Restrictions: nil,
	})
	var strength int
	for _, b := range w.Blocks {
		if b.CoachingText == "" {
			t.Errorf("%s block has no coaching text", b.Type)
		}
		for _, e := range b.Exercises {
			if !eligible.Contains(e.ExerciseID) {
				t.Errorf("%s placed but not eligible", e.ExerciseID)
			}
			if b.Type != training.BlockStrength {
				continue
			}
			strength++
			if e.Decision == nil {
				t.Errorf("%s has history but no overload decision", e.ExerciseID)
			}
		}
	}
	if strength == 0 {
		t.Error("workout has no strength exercises")
	}
}

func TestService_GenerateWorkout_RespectsUpdatedInjuries(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, stores := newService(t)

	injuries := []training.Injury{
		{BodyPart: "lower_back", Severity: training.InjurySevere, Contraindicated: []string{"spinal_loading"}},
	}
	if err := svc.UpdateInjuries(ctx, "u1", injuries); err != nil {
		t.Fatalf("UpdateInjuries() error = %v", err)
	}
	if err := svc.UpdateEquipment(ctx, "u1", []string{"barbell", "dumbbell", "kettlebell"}); err != nil {
		t.Fatalf("UpdateEquipment() error = %v", err)
	}

	catalog, err := stores.Catalog.List(ctx, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	spinal := make(map[string]bool)
	for _, ex := range catalog {
		for _, tag := range ex.ContraindicationTags {
			if tag == "spinal_loading" {
				spinal[ex.ID] = true
			}
		}
	}

	for _, level := range []int{2, 9} {
		if _, err = svc.ScoreReadiness(ctx, "u1", monday, training.ReadinessInput{
			SleepQuality: ptr.Ref(level), EnergyLevel: ptr.Ref(level), Mood: ptr.Ref(level),
		}); err != nil {
			t.Fatalf("ScoreReadiness() error = %v", err)
		}
		w, genErr := svc.GenerateWorkout(ctx, "u1", monday, nil)
		if genErr != nil {
			t.Fatalf("GenerateWorkout() error = %v", genErr)
		}
		for _, b := range w.Blocks {
			for _, e := range b.Exercises {
				if spinal[e.ExerciseID] {
					t.Errorf("check-in level %d: %s loads the spine", level, e.ExerciseID)
				}
			}
		}
	}
}

func TestService_GenerateWorkout_Coach(t *testing.T) {
	t.Parallel()

	t.Run("coach text replaces templates", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t, training.WithCoach(stubCoach{text: "- Brace before every rep.", err: nil}))
		w, err := svc.GenerateWorkout(t.Context(), "u1", monday, nil)
		if err != nil {
			t.Fatalf("GenerateWorkout() error = %v", err)
		}
		for _, b := range w.Blocks {
			if b.CoachingText != "- Brace before every rep." {
				t.Errorf("%s coaching = %q", b.Type, b.CoachingText)
			}
		}
	})

	t.Run("failing coach keeps templates", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t, training.WithCoach(stubCoach{text: "", err: errors.New("rate limited")}))
		w, err := svc.GenerateWorkout(t.Context(), "u1", monday, nil)
		if err != nil {
			t.Fatalf("GenerateWorkout() error = %v", err)
		}
		for _, b := range w.Blocks {
			if !strings.HasPrefix(b.CoachingText, "**") {
				t.Errorf("%s coaching = %q, want template text", b.Type, b.CoachingText)
			}
		}
	})
}

func TestService_GenerateWorkout_UnknownUser(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	if _, err := svc.GenerateWorkout(t.Context(), "nobody", monday, nil); !errors.Is(err, training.ErrNotFound) {
		t.Errorf("GenerateWorkout() error = %v, want ErrNotFound", err)
	}
}

func TestService_Progression(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, stores := newService(t)

	if err := svc.RecordPerformance(ctx, "u1", training.PerformanceRecord{
		ExerciseID: "back_squat", Weight: 100, Reps: 5, Sets: 3, RPE: 6,
	}); err != nil {
		t.Fatalf("RecordPerformance() error = %v", err)
	}
	history, err := stores.History.List(ctx, "u1", "back_squat", 1)
	if err != nil || len(history) != 1 || !history[0].PerformedAt.Equal(fixedClock()) {
		t.Fatalf("history = %+v, %v, want one record at the clock time", history, err)
	}

	decision, err := svc.ProposeProgression(ctx, "u1", "back_squat", 3)
	if err != nil {
		t.Fatalf("ProposeProgression() error = %v", err)
	}
	if decision.Type != training.DecisionWeightIncrease || decision.NewWeight != 101.25 {
		t.Errorf("decision = %+v, want weight_increase to 101.25", decision)
	}
	if err = svc.CommitProgression(ctx, "u1", decision); err != nil {
		t.Fatalf("CommitProgression() error = %v", err)
	}

	if _, err = svc.ProposeProgression(ctx, "u1", "unknown_lift", 3); !errors.Is(err, training.ErrNotFound) {
		t.Errorf("ProposeProgression() for unknown exercise error = %v, want ErrNotFound", err)
	}
}

func TestService_StartLiveSession(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _ := newService(t)

	w := &training.GeneratedWorkout{
		ID:     "w1",
		UserID: "u1",
		Date:   monday,
		Blocks: []training.Block{{
			Type: training.BlockStrength,
			Exercises: []training.ExerciseInstance{
				{ExerciseID: "back_squat", Name: "Back squat", MovementPattern: "squat", Sets: 3, Reps: 5, Weight: 100},
			},
		}},
	}
	live, err := svc.StartLiveSession(ctx, "u1", w)
	if err != nil {
		t.Fatalf("StartLiveSession() error = %v", err)
	}
	live.SetCurrent(training.SetContext{ExerciseID: "back_squat", SetNumber: 2, TargetReps: 5, TargetWeight: 100, TargetRPE: 7})

	a, ok := live.Handle(ctx, training.Trigger{Kind: training.TriggerPainSignal, Value: 7, Timestamp: fixedClock()})
	if !ok {
		t.Fatal("Handle() produced no adaptation")
	}
	if a.Type != training.AdaptExerciseSwap || a.AdaptedExerciseID != "box_squat" || a.Confidence < 0.9 {
		t.Errorf("adaptation = %+v, want swap to box_squat with confidence >= 0.9", a)
	}
	if got := w.Blocks[0].Exercises[0].ExerciseID; got != "box_squat" {
		t.Errorf("workout exercise = %s, want box_squat", got)
	}

	if _, err = svc.StartLiveSession(ctx, "u1", nil); !errors.Is(err, training.ErrNoWorkout) {
		t.Errorf("StartLiveSession(nil) error = %v, want ErrNoWorkout", err)
	}
}
