package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/testhelpers"
	"github.com/myrjola/traincore/internal/training"
)

const profileJSON = `{
  "user_id": "u1",
  "goal": "strength",
  "level": "intermediate",
  "equipment": ["barbell", "bench", "dumbbell"],
  "injuries": [],
  "restrictions": [],
  "one_rep_max": {"back_squat": 140, "bench_press": 100},
  "preferred_duration_minutes": 60,
  "readiness_score": 0,
  "training_age_months": 18
}`

const cycleYAML = `model: linear
current_week: 1
phases:
  - name: accumulation
    duration_weeks: 3
    intensity_min: 65
    intensity_max: 75
    rep_min: 8
    rep_max: 10
    set_min: 3
    set_max: 4
    rest_seconds: 90
    volume_multiplier: 1.1
  - name: intensification
    duration_weeks: 2
    intensity_min: 80
    intensity_max: 90
    rep_min: 3
    rep_max: 5
    set_min: 4
    set_max: 5
    rest_seconds: 180
    volume_multiplier: 0.8
athlete:
  one_rep_max:
    back_squat: 140
  training_age_months: 18
`

type harness struct {
	t   *testing.T
	env map[string]string
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		t:   t,
		env: map[string]string{"TRAINER_SQLITE_URL": filepath.Join(dir, "trainer.sqlite3")},
		dir: dir,
	}
}

func (h *harness) lookupEnv(key string) (string, bool) {
	v, ok := h.env[key]
	return v, ok
}

func (h *harness) file(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		h.t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (h *harness) run(args ...string) ([]byte, error) {
	h.t.Helper()
	var stdout bytes.Buffer
	logger := testhelpers.NewLogger(testhelpers.NewWriter(h.t))
	err := run(h.t.Context(), logger, h.lookupEnv, args, &stdout)
	return stdout.Bytes(), err
}

func (h *harness) mustRun(v any, args ...string) {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("run %v: %v", args, err)
	}
	if v == nil {
		return
	}
	if err = json.Unmarshal(out, v); err != nil {
		h.t.Fatalf("decode output of %v: %v\n%s", args, err, out)
	}
}

func Test_run(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var profile training.UserTrainingProfile
	h.mustRun(&profile, "profile", "-file", h.file("profile.json", profileJSON))
	if profile.UserID != "u1" || profile.Goal != training.GoalStrength {
		t.Fatalf("stored profile = %+v", profile)
	}

	var score training.ReadinessScore
	h.mustRun(&score, "readiness", "-user", "u1", "-date", "2026-03-02",
		"-sleep-hours", "8", "-sleep-quality", "8", "-energy", "7", "-soreness", "3")
	if score.Overall < 0 || score.Overall > 100 || score.Recommendation == "" {
		t.Errorf("readiness = %+v", score)
	}

	h.mustRun(nil, "record", "-user", "u1", "-exercise", "back_squat",
		"-weight", "100", "-reps", "5", "-sets", "3", "-rpe", "6", "-at", "2026-02-27T18:00:00Z")
	h.mustRun(nil, "session", "-user", "u1", "-duration", "55", "-volume", "4200", "-rpe", "7",
		"-at", "2026-02-27T19:00:00Z")

	var decision training.OverloadDecision
	h.mustRun(&decision, "progress", "-user", "u1", "-exercise", "back_squat", "-sets", "3", "-commit")
	if decision.Type != training.DecisionWeightIncrease || decision.NewWeight != 101.25 {
		t.Errorf("decision = %+v, want weight_increase to 101.25", decision)
	}

	out, err := h.run("generate", "-user", "u1", "-date", "2026-03-02", "-cycle", h.file("cycle.yaml", cycleYAML))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var workout training.GeneratedWorkout
	if err = json.Unmarshal(out, &workout); err != nil {
		t.Fatalf("decode workout: %v", err)
	}
	if workout.Phase != "accumulation" || len(workout.Blocks) == 0 {
		t.Fatalf("workout = %+v", workout)
	}

	var exerciseID string
	for _, b := range workout.Blocks {
		if b.Type == training.BlockStrength && len(b.Exercises) > 0 {
			exerciseID = b.Exercises[0].ExerciseID
		}
	}
	if exerciseID == "" {
		t.Fatal("workout has no strength exercise")
	}
	var adapted adaptOutput
	h.mustRun(&adapted, "adapt", "-user", "u1", "-workout", h.file("workout.json", string(out)),
		"-exercise", exerciseID, "-set", "2", "-trigger", "fatigue")
	if adapted.Adaptation == nil || adapted.Adaptation.Type != training.AdaptRestIncrease {
		t.Fatalf("adaptation = %+v, want rest_increase", adapted.Adaptation)
	}
	if adapted.Workout.ID != workout.ID {
		t.Errorf("adapted workout id = %s, want %s", adapted.Workout.ID, workout.ID)
	}

	var html training.GeneratedWorkout
	h.mustRun(&html, "generate", "-user", "u1", "-date", "2026-03-02", "-html")
	for _, b := range html.Blocks {
		if !strings.HasPrefix(b.CoachingText, "<p><strong>") {
			t.Errorf("%s coaching = %q, want HTML", b.Type, b.CoachingText)
		}
	}
}

func Test_run_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr error
	}{
		{
			name:    "no command",
			env:     nil,
			args:    nil,
			wantErr: errUsage,
		},
		{
			name:    "unknown command",
			env:     nil,
			args:    []string{"bench"},
			wantErr: errUsage,
		},
		{
			name:    "missing user",
			env:     nil,
			args:    []string{"generate"},
			wantErr: errUsage,
		},
		{
			name:    "unknown user",
			env:     nil,
			args:    []string{"generate", "-user", "nobody"},
			wantErr: training.ErrNotFound,
		},
		{
			name:    "invalid rules",
			env:     map[string]string{"TRAINER_DEFAULT_DURATION_MINUTES": "0"},
			args:    []string{"generate", "-user", "u1"},
			wantErr: training.ErrInvalidRules,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			for k, v := range tt.env {
				h.env[k] = v
			}
			if _, err := h.run(tt.args...); !errors.Is(err, tt.wantErr) {
				t.Errorf("run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

//nolint:paralleltest // mutates the command table before the parallel tests resume.
func Test_run_RecoversPanic(t *testing.T) {
	commands["explode"] = func(context.Context, *training.Service, []string, io.Writer) error {
		panic("store vanished")
	}
	t.Cleanup(func() { delete(commands, "explode") })

	h := newHarness(t)
	_, err := h.run("explode")
	if err == nil {
		t.Fatal("run() error = nil, want the recovered panic")
	}
	if !strings.Contains(err.Error(), "panic: store vanished") {
		t.Errorf("run() error = %q, want it to report the panic", err)
	}
}
