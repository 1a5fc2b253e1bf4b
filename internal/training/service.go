package training

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHistoryLimit = 5
	readinessWindowDays = 7
	maxConcurrentLoads  = 4
)

// Service loads what the engines need from the stores and persists their results. It holds no per-user state;
// calls for the same user are expected to be serialised by the caller.
type Service struct {
	stores       Stores
	logger       *slog.Logger
	rules        Rules
	coach        Coach
	historyLimit int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRules replaces DefaultRules.
func WithRules(rules Rules) Option {
	return func(s *Service) { s.rules = rules }
}

// WithCoach writes coaching text with c instead of the built-in templates.
func WithCoach(c Coach) Option {
	return func(s *Service) { s.coach = c }
}

// WithHistoryLimit sets how many recent performance records the overload engine sees per exercise.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over stores.
func NewService(stores Stores, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		stores:       stores,
		logger:       logger,
		rules:        DefaultRules(),
		coach:        nil,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the rule tables in use.
func (s *Service) Rules() Rules {
	return s.rules
}

// Profile returns the stored profile of a user.
func (s *Service) Profile(ctx context.Context, userID string) (UserTrainingProfile, error) {
	p, err := s.stores.Profiles.Get(ctx, userID)
	if err != nil {
		return UserTrainingProfile{}, errors.Wrap(err, "get profile", slog.String("user_id", userID))
	}
	return p, nil
}

// SaveProfile stores a profile, superseding any previous one.
func (s *Service) SaveProfile(ctx context.Context, profile UserTrainingProfile) error {
	if err := s.stores.Profiles.Save(ctx, profile); err != nil {
		return errors.Wrap(err, "save profile", slog.String("user_id", profile.UserID))
	}
	return nil
}

// ScoreReadiness scores today's check-in against the sessions of the last seven days and stores the result as the
// score of date, replacing an earlier score for the same date.
func (s *Service) ScoreReadiness(
	ctx context.Context,
	userID string,
	date time.Time,
	in ReadinessInput,
) (ReadinessScore, error) {
	ctx = logging.WithUser(ctx, userID)
	day := normalizeDate(date)

	profile, err := s.stores.Profiles.Get(ctx, userID)
	if err != nil {
		return ReadinessScore{}, errors.Wrap(err, "get profile")
	}
	sessions, err := s.sessionWindow(ctx, userID, day)
	if err != nil {
		return ReadinessScore{}, err
	}
	in.Sessions = sessions

	score := ScoreReadiness(in, s.rules.Readiness)
	score.Date = day
	if err = s.stores.Readiness.Save(ctx, userID, score); err != nil {
		return ReadinessScore{}, errors.Wrap(err, "save readiness", slog.String("date", day.Format(dateFormat)))
	}

	profile.ReadinessScore = score.Overall
	if err = s.stores.Profiles.Save(ctx, profile); err != nil {
		return ReadinessScore{}, errors.Wrap(err, "save profile readiness")
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scored readiness",
		slog.Int("overall", score.Overall),
		slog.String("recommendation", string(score.Recommendation)),
		slog.Int("sessions", len(sessions)))
	return score, nil
}

// sessionWindow returns the sessions completed in the seven days up to and including day.
func (s *Service) sessionWindow(ctx context.Context, userID string, day time.Time) ([]SessionSummary, error) {
	since := day.AddDate(0, 0, 1-readinessWindowDays)
	sessions, err := s.stores.Sessions.ListCompleted(ctx, userID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions", slog.Time("since", since))
	}
	end := day.AddDate(0, 0, 1)
	return slices.DeleteFunc(sessions, func(ss SessionSummary) bool { return !ss.CompletedAt.Before(end) }), nil
}

// GenerateWorkout builds the workout of date. cycle may be nil.
func (s *Service) GenerateWorkout(
	ctx context.Context,
	userID string,
	date time.Time,
	cycle *TrainingCycle,
) (GeneratedWorkout, error) {
	ctx = logging.WithUser(ctx, userID)
	day := normalizeDate(date)

	var (
		profile      UserTrainingProfile
		catalog      []Exercise
		readiness    ReadinessScore
		hasReadiness bool
		sessions     []SessionSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if profile, err = s.stores.Profiles.Get(gctx, userID); err != nil {
			return errors.Wrap(err, "get profile")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if catalog, err = s.stores.Catalog.List(gctx, true); err != nil {
			return errors.Wrap(err, "list catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		readiness, err = s.stores.Readiness.Get(gctx, userID, day)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		case err != nil:
			return errors.Wrap(err, "get readiness")
		}
		hasReadiness = true
		return nil
	})
	g.Go(func() error {
		var err error
		sessions, err = s.sessionWindow(gctx, userID, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return GeneratedWorkout{}, err
	}

	if !hasReadiness {
		readiness = ScoreReadiness(ReadinessInput{Sessions: sessions}, s.rules.Readiness) //nolint:exhaustruct // empty check-in.
		readiness.Date = day
		s.logger.LogAttrs(ctx, slog.LevelInfo, "no check-in for the day, using default readiness",
			slog.Int("overall", readiness.Overall))
	}

	history, err := s.strengthHistory(ctx, userID, profile, catalog)
	if err != nil {
		return GeneratedWorkout{}, err
	}

	workout := AssembleWorkout(AssemblyInput{
		Profile:    profile,
		Catalog:    catalog,
		Archetypes: nil,
		Readiness:  readiness,
		Cycle:      cycle,
		History:    history,
		Date:       day,
		Rules:      s.rules,
	})
	s.writeCoaching(ctx, &workout)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "generated workout",
		slog.String("workout_id", workout.ID),
		slog.String("archetype", workout.Archetype),
		slog.Int("readiness", workout.Readiness),
		slog.Int("blocks", len(workout.Blocks)),
		slog.Bool("degraded", workout.Degraded))
	return workout, nil
}

// strengthHistory loads the recent history of every exercise that could land in a strength block.
func (s *Service) strengthHistory(
	ctx context.Context,
	userID string,
	profile UserTrainingProfile,
	catalog []Exercise,
) (map[string][]PerformanceRecord, error) {
	filtered := FilterCatalog(FilterInput{
		Exercises:    catalog,
		Equipment:    profile.Equipment,
		Injuries:     profile.Injuries,
		Restrictions: profile.Restrictions,
	})
	candidates := filtered.Exercises()
	if len(candidates) == 0 {
		candidates = BodyweightFallback(FilterInput{
			Exercises:    catalog,
			Equipment:    nil,
			Injuries:     profile.Injuries,
			Restrictions: profile.Restrictions,
		}).Exercises()
	}

	var (
		mu      sync.Mutex
		history = make(map[string][]PerformanceRecord)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for _, ex := range candidates {
		if !suits(BlockStrength, ex) {
			continue
		}
		g.Go(func() error {
			records, err := s.stores.History.List(gctx, userID, ex.ID, s.historyLimit)
			if err != nil {
				return errors.Wrap(err, "list history", slog.String("exercise_id", ex.ID))
			}
			if len(records) > 0 {
				mu.Lock()
				history[ex.ID] = records
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped in the goroutine.
	}
	return history, nil
}

// writeCoaching replaces the template coaching text using the configured coach. Blocks keep the template text when
// the coach fails.
func (s *Service) writeCoaching(ctx context.Context, workout *GeneratedWorkout) {
	if s.coach == nil {
		return
	}
	snapshot := *workout
	snapshot.Blocks = slices.Clone(workout.Blocks)
	texts := make([]string, len(snapshot.Blocks))
	var wg sync.WaitGroup
	for i, block := range snapshot.Blocks {
		wg.Go(func() {
			text, err := s.coach.Coach(ctx, snapshot, block)
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "coach failed, keeping template coaching",
					slog.String("block", string(block.Type)), errors.SlogError(err))
				return
			}
			texts[i] = text
		})
	}
	wg.Wait()
	for i, text := range texts {
		if text != "" {
			workout.Blocks[i].CoachingText = text
		}
	}
}

// ProposeProgression decides the next targets of one exercise from the stored history. Nothing is persisted until
// CommitProgression is called.
func (s *Service) ProposeProgression(
	ctx context.Context,
	userID, exerciseID string,
	prescribedSets int,
) (OverloadDecision, error) {
	ctx = logging.WithUser(ctx, userID)

	var (
		profile UserTrainingProfile
		catalog []Exercise
		history []PerformanceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if profile, err = s.stores.Profiles.Get(gctx, userID); err != nil {
			return errors.Wrap(err, "get profile")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if catalog, err = s.stores.Catalog.List(gctx, false); err != nil {
			return errors.Wrap(err, "list catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if history, err = s.stores.History.List(gctx, userID, exerciseID, s.historyLimit); err != nil {
			return errors.Wrap(err, "list history")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return OverloadDecision{}, err
	}

	idx := slices.IndexFunc(catalog, func(e Exercise) bool { return e.ID == exerciseID })
	if idx < 0 {
		return OverloadDecision{}, errors.Wrap(ErrNotFound, "find exercise", slog.String("exercise_id", exerciseID))
	}

	decision := DecideOverload(OverloadInput{
		Exercise:       catalog[idx],
		History:        history,
		PrescribedSets: prescribedSets,
		Level:          profile.Level,
		OneRepMax:      profile.OneRepMax[exerciseID],
	}, s.rules.Overload)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "proposed progression",
		slog.String("exercise_id", exerciseID),
		slog.String("decision", string(decision.Type)),
		slog.Float64("new_weight", decision.NewWeight),
		slog.Int("new_reps", decision.NewReps))
	return decision, nil
}

// CommitProgression writes the decision to the progression log once the session was performed.
func (s *Service) CommitProgression(ctx context.Context, userID string, decision OverloadDecision) error {
	entry := decision.LogEntry()
	entry.LoggedAt = s.now()
	if err := s.stores.History.AppendProgression(ctx, userID, entry); err != nil {
		return errors.Wrap(err, "append progression",
			slog.String("user_id", userID), slog.String("exercise_id", decision.ExerciseID))
	}
	return nil
}

// RecordPerformance appends a completed exercise. A zero PerformedAt is set to the current time.
func (s *Service) RecordPerformance(ctx context.Context, userID string, record PerformanceRecord) error {
	if record.PerformedAt.IsZero() {
		record.PerformedAt = s.now()
	}
	if err := s.stores.History.Append(ctx, userID, record); err != nil {
		return errors.Wrap(err, "append performance",
			slog.String("user_id", userID), slog.String("exercise_id", record.ExerciseID))
	}
	return nil
}

// RecordSession stores a completed session summary for training-load scoring.
func (s *Service) RecordSession(ctx context.Context, userID string, summary SessionSummary) error {
	if summary.CompletedAt.IsZero() {
		summary.CompletedAt = s.now()
	}
	if err := s.stores.Sessions.Record(ctx, userID, summary); err != nil {
		return errors.Wrap(err, "record session", slog.String("user_id", userID))
	}
	return nil
}

// UpdateInjuries replaces the active injuries of a user.
func (s *Service) UpdateInjuries(ctx context.Context, userID string, injuries []Injury) error {
	if err := s.stores.Profiles.UpdateInjuries(ctx, userID, injuries); err != nil {
		return errors.Wrap(err, "update injuries", slog.String("user_id", userID))
	}
	return nil
}

// UpdateEquipment replaces the available equipment of a user.
func (s *Service) UpdateEquipment(ctx context.Context, userID string, equipment []string) error {
	if err := s.stores.Profiles.UpdateEquipment(ctx, userID, equipment); err != nil {
		return errors.Wrap(err, "update equipment", slog.String("user_id", userID))
	}
	return nil
}

// StartLiveSession captures the user's current profile and catalog for adapting workout during the session.
func (s *Service) StartLiveSession(ctx context.Context, userID string, workout *GeneratedWorkout) (*LiveSession, error) {
	profile, err := s.stores.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get profile", slog.String("user_id", userID))
	}
	catalog, err := s.stores.Catalog.List(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	session, err := NewLiveSession(LiveSessionConfig{
		Workout:      workout,
		Catalog:      catalog,
		Equipment:    profile.Equipment,
		Injuries:     profile.Injuries,
		Restrictions: profile.Restrictions,
		Rules:        s.rules.Adaptation,
		Logger:       s.logger,

		RestrictedLoadFactor: s.rules.Assembly.RestrictedLoadFactor,
		PlateIncrement:       s.rules.Overload.PlateIncrement,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new live session")
	}
	return session, nil
}
