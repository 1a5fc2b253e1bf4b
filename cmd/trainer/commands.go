package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/ptr"
	"github.com/myrjola/traincore/internal/training"
	"gopkg.in/yaml.v3"
)

var errUsage = errors.NewSentinel(
	"usage: trainer <profile|readiness|record|session|generate|progress|adapt> [flags]")

type command func(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error

//nolint:gochecknoglobals // command table.
var commands = map[string]command{
	"profile":   profileCommand,
	"readiness": readinessCommand,
	"record":    recordCommand,
	"session":   sessionCommand,
	"generate":  generateCommand,
	"progress":  progressCommand,
	"adapt":     adaptCommand,
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", fs.Name(), err)
	}
	return nil
}

// optional registers a flag that stays nil unless given.
func optional[T any](fs *flag.FlagSet, name, usage string, parseValue func(string) (T, error)) **T {
	var p *T
	fs.Func(name, usage, func(s string) error {
		v, err := parseValue(s)
		if err != nil {
			return err //nolint:wrapcheck // flag adds the name.
		}
		p = ptr.Ref(v)
		return nil
	})
	return &p
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func dateFlag(fs *flag.FlagSet) *string {
	return fs.String("date", time.Now().Format(time.DateOnly), "day in YYYY-MM-DD")
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	return d, nil
}

// parseTime accepts RFC 3339 and leaves the zero time for an empty value.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func requireUser(userID string) error {
	if userID == "" {
		return errors.Wrap(errUsage, "-user is required")
	}
	return nil
}

func profileCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("profile")
	file := fs.String("file", "", "JSON profile to store")
	userID := fs.String("user", "", "print the stored profile of this user instead")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *file == "" {
		if err := requireUser(*userID); err != nil {
			return err
		}
		profile, err := svc.Profile(ctx, *userID)
		if err != nil {
			return err //nolint:wrapcheck // already wrapped by the service.
		}
		return writeJSON(stdout, profile)
	}

	var profile training.UserTrainingProfile
	if err := readJSONFile(*file, &profile); err != nil {
		return err
	}
	if err := requireUser(profile.UserID); err != nil {
		return err
	}
	if err := svc.SaveProfile(ctx, profile); err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	return writeJSON(stdout, profile)
}

func readinessCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("readiness")
	userID := fs.String("user", "", "user id")
	date := dateFlag(fs)
	sleepHours := optional(fs, "sleep-hours", "hours slept", parseFloat)
	sleepQuality := optional(fs, "sleep-quality", "sleep quality 1-10", strconv.Atoi)
	restingHR := optional(fs, "resting-hr", "resting heart rate in bpm", strconv.Atoi)
	stress := optional(fs, "stress", "stress 1-10", strconv.Atoi)
	energy := optional(fs, "energy", "energy 1-10", strconv.Atoi)
	mood := optional(fs, "mood", "mood 1-10", strconv.Atoi)
	soreness := optional(fs, "soreness", "soreness 1-10", strconv.Atoi)
	motivation := optional(fs, "motivation", "motivation 1-10", strconv.Atoi)
	hrv := optional(fs, "hrv", "HRV score 0-100", parseFloat)
	nutrition := optional(fs, "nutrition", "nutrition score 0-100", parseFloat)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}
	day, err := parseDate(*date)
	if err != nil {
		return err
	}

	score, err := svc.ScoreReadiness(ctx, *userID, day, training.ReadinessInput{
		SleepHours:     *sleepHours,
		SleepQuality:   *sleepQuality,
		RestingHR:      *restingHR,
		StressLevel:    *stress,
		EnergyLevel:    *energy,
		Mood:           *mood,
		Soreness:       *soreness,
		Motivation:     *motivation,
		HRVScore:       *hrv,
		NutritionScore: *nutrition,
		Sessions:       nil,
	})
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	return writeJSON(stdout, score)
}

func recordCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("record")
	userID := fs.String("user", "", "user id")
	exerciseID := fs.String("exercise", "", "exercise id")
	weight := fs.Float64("weight", 0, "working weight, 0 for bodyweight")
	reps := fs.Int("reps", 0, "reps per set")
	sets := fs.Int("sets", 0, "sets completed")
	rpe := fs.Float64("rpe", 0, "average RPE")
	at := fs.String("at", "", "RFC 3339 time performed, defaults to now")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}
	performedAt, err := parseTime(*at)
	if err != nil {
		return err
	}

	rec := training.PerformanceRecord{
		ExerciseID:  *exerciseID,
		PerformedAt: performedAt,
		Weight:      *weight,
		Reps:        *reps,
		Sets:        *sets,
		RPE:         *rpe,
	}
	if err = svc.RecordPerformance(ctx, *userID, rec); err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	return writeJSON(stdout, rec)
}

func sessionCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("session")
	userID := fs.String("user", "", "user id")
	duration := fs.Int("duration", 0, "session length in minutes")
	volume := fs.Float64("volume", 0, "total volume load")
	rpe := fs.Float64("rpe", 0, "average RPE")
	at := fs.String("at", "", "RFC 3339 completion time, defaults to now")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}
	completedAt, err := parseTime(*at)
	if err != nil {
		return err
	}

	summary := training.SessionSummary{
		CompletedAt:     completedAt,
		DurationMinutes: *duration,
		Volume:          *volume,
		AverageRPE:      *rpe,
	}
	if err = svc.RecordSession(ctx, *userID, summary); err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	return writeJSON(stdout, summary)
}

// loadCycle reads a YAML cycle definition.
func loadCycle(path string) (*training.TrainingCycle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cycle: %w", err)
	}
	var def training.CycleDefinition
	if err = yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode cycle: %w", err)
	}
	cycle, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("build cycle: %w", err)
	}
	return cycle, nil
}

func generateCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("generate")
	userID := fs.String("user", "", "user id")
	date := dateFlag(fs)
	cyclePath := fs.String("cycle", "", "optional YAML periodization cycle")
	html := fs.Bool("html", false, "render coaching text as HTML")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}
	day, err := parseDate(*date)
	if err != nil {
		return err
	}
	var cycle *training.TrainingCycle
	if *cyclePath != "" {
		if cycle, err = loadCycle(*cyclePath); err != nil {
			return err
		}
	}

	workout, err := svc.GenerateWorkout(ctx, *userID, day, cycle)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	if *html {
		for i, b := range workout.Blocks {
			if workout.Blocks[i].CoachingText, err = b.CoachingHTML(); err != nil {
				return err
			}
		}
	}
	return writeJSON(stdout, workout)
}

func progressCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("progress")
	userID := fs.String("user", "", "user id")
	exerciseID := fs.String("exercise", "", "exercise id")
	sets := fs.Int("sets", 0, "prescribed sets, 0 for the default")
	commit := fs.Bool("commit", false, "write the decision to the progression log")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}

	decision, err := svc.ProposeProgression(ctx, *userID, *exerciseID, *sets)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}
	if *commit {
		if err = svc.CommitProgression(ctx, *userID, decision); err != nil {
			return err //nolint:wrapcheck // already wrapped by the service.
		}
	}
	return writeJSON(stdout, decision)
}

type adaptOutput struct {
	Adaptation *training.Adaptation      `json:"adaptation"`
	Workout    training.GeneratedWorkout `json:"workout"`
}

// adaptCommand replays one live trigger against a workout previously printed by generate.
func adaptCommand(ctx context.Context, svc *training.Service, args []string, stdout io.Writer) error {
	fs := newFlagSet("adapt")
	userID := fs.String("user", "", "user id")
	workoutPath := fs.String("workout", "", "JSON workout printed by generate")
	exerciseID := fs.String("exercise", "", "exercise being performed")
	setNumber := fs.Int("set", 1, "set being performed")
	kind := fs.String("trigger", "", "rpe_feedback, pain_signal, form_breakdown, fatigue or equipment_unavailable")
	value := fs.Float64("value", 0, "reported RPE or pain level")
	detail := fs.String("detail", "", "unavailable equipment tag")
	severity := fs.String("severity", "", "low, medium or high")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(*userID); err != nil {
		return err
	}

	var workout training.GeneratedWorkout
	if err := readJSONFile(*workoutPath, &workout); err != nil {
		return err
	}
	live, err := svc.StartLiveSession(ctx, *userID, &workout)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the service.
	}

	current := training.SetContext{ExerciseID: *exerciseID, SetNumber: *setNumber} //nolint:exhaustruct // targets below.
	for _, b := range workout.Blocks {
		for _, e := range b.Exercises {
			if e.ExerciseID == *exerciseID {
				current.TargetReps = e.Reps
				current.TargetWeight = e.Weight
				current.TargetRPE = e.TargetRPE
			}
		}
	}
	live.SetCurrent(current)

	out := adaptOutput{Adaptation: nil, Workout: workout}
	a, ok := live.Handle(ctx, training.Trigger{
		Kind:      training.TriggerKind(*kind),
		Value:     *value,
		Detail:    *detail,
		Severity:  training.Severity(*severity),
		Timestamp: time.Now(),
	})
	if ok {
		out.Adaptation = &a
	}
	out.Workout = workout
	return writeJSON(stdout, out)
}
