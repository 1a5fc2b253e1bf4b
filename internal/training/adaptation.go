package training

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/traincore/internal/errors"
)

// ErrNoWorkout is returned when a live session is started without a workout.
var ErrNoWorkout = errors.NewSentinel("live session needs a workout")

// TriggerKind is the kind of live feedback event.
type TriggerKind string

const (
	TriggerRPEFeedback          TriggerKind = "rpe_feedback"
	TriggerPainSignal           TriggerKind = "pain_signal"
	TriggerFormBreakdown        TriggerKind = "form_breakdown"
	TriggerFatigue              TriggerKind = "fatigue"
	TriggerEquipmentUnavailable TriggerKind = "equipment_unavailable"
)

// Severity grades a trigger.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Trigger is one live feedback event. Detail carries the equipment tag for equipment_unavailable.
type Trigger struct {
	Kind      TriggerKind `json:"kind"`
	Value     float64     `json:"value"`
	Detail    string      `json:"detail,omitempty"`
	Severity  Severity    `json:"severity,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AdaptationType is the kind of modification applied to the live workout.
type AdaptationType string

const (
	AdaptLoadReduction    AdaptationType = "load_reduction"
	AdaptExerciseSwap     AdaptationType = "exercise_swap"
	AdaptRestIncrease     AdaptationType = "rest_increase"
	AdaptFormModification AdaptationType = "form_modification"
)

// Adaptation records one modification. AdaptedExerciseID is empty when the exercise was removed.
type Adaptation struct {
	ID                 string         `json:"id"`
	TriggerKind        TriggerKind    `json:"trigger_kind"`
	OriginalExerciseID string         `json:"original_exercise_id"`
	AdaptedExerciseID  string         `json:"adapted_exercise_id"`
	Type               AdaptationType `json:"type"`
	Reason             string         `json:"reason"`
	Confidence         float64        `json:"confidence"`
	Severity           Severity       `json:"severity"`
	CreatedAt          time.Time      `json:"created_at"`
}

// SetContext is the exercise and set currently being performed.
type SetContext struct {
	ExerciseID   string  `json:"exercise_id"`
	SetNumber    int     `json:"set_number"`
	TargetReps   int     `json:"target_reps"`
	TargetWeight float64 `json:"target_weight"`
	TargetRPE    float64 `json:"target_rpe"`
}

// LiveSessionConfig is the state captured when a live session starts.
type LiveSessionConfig struct {
	Workout      *GeneratedWorkout
	Catalog      []Exercise
	Equipment    []string
	Injuries     []Injury
	Restrictions []MovementRestriction
	Rules        AdaptationRules
	// RestrictedLoadFactor scales swapped-in exercises under a reduce_load or limit_range restriction.
	// Zero uses the default rules.
	RestrictedLoadFactor float64
	// PlateIncrement is the weight grid of restricted loads. Zero uses the default rules.
	PlateIncrement float64
	Logger         *slog.Logger
}

// LiveSession applies adaptations to one in-progress workout. Handle calls are serialised so that no two
// triggers are in flight at once.
type LiveSession struct {
	mu           sync.Mutex
	workout      *GeneratedWorkout
	catalog      []Exercise
	equipment    []string
	injuries     []Injury
	restrictions []MovementRestriction
	rules        AdaptationRules
	restricted   float64
	increment    float64
	logger       *slog.Logger
	current      *SetContext
	history      []Adaptation
}

// NewLiveSession creates a session that mutates cfg.Workout in place.
func NewLiveSession(cfg LiveSessionConfig) (*LiveSession, error) {
	if cfg.Workout == nil {
		return nil, ErrNoWorkout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	defaults := DefaultRules()
	return &LiveSession{
		mu:           sync.Mutex{},
		workout:      cfg.Workout,
		catalog:      slices.Clone(cfg.Catalog),
		equipment:    slices.Clone(cfg.Equipment),
		injuries:     slices.Clone(cfg.Injuries),
		restrictions: slices.Clone(cfg.Restrictions),
		rules:        cfg.Rules,
		restricted:   cmp.Or(cfg.RestrictedLoadFactor, defaults.Assembly.RestrictedLoadFactor),
		increment:    cmp.Or(cfg.PlateIncrement, defaults.Overload.PlateIncrement),
		logger:       logger,
		current:      nil,
		history:      nil,
	}, nil
}

// SetCurrent records the exercise and set the user is performing.
func (s *LiveSession) SetCurrent(sc SetContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &sc
}

// Current returns the active set context.
func (s *LiveSession) Current() (SetContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return SetContext{}, false
	}
	return *s.current, true
}

// History returns the adaptations applied so far, oldest first.
func (s *LiveSession) History() []Adaptation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Equipment returns the equipment still available in this session.
func (s *LiveSession) Equipment() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.equipment)
}

// Handle processes one trigger to completion and returns the adaptation it produced, if any. Unknown trigger
// kinds and triggers that arrive before a set context exists are ignored.
func (s *LiveSession) Handle(ctx context.Context, trig Trigger) (Adaptation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "trigger without set context ignored",
			slog.String("trigger", string(trig.Kind)))
		return Adaptation{}, false
	}
	exercise, ok := s.lookup(s.current.ExerciseID)
	if !ok {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "current exercise not in catalog",
			slog.String("exercise_id", s.current.ExerciseID))
		return Adaptation{}, false
	}

	var (
		a       Adaptation
		applied bool
	)
	switch trig.Kind {
	case TriggerRPEFeedback:
		a, applied = s.handleRPE(exercise, trig)
	case TriggerPainSignal:
		a, applied = s.handlePain(exercise, trig)
	case TriggerFatigue:
		a, applied = s.handleFatigue(exercise, trig)
	case TriggerFormBreakdown:
		a, applied = s.handleFormBreakdown(exercise, trig)
	case TriggerEquipmentUnavailable:
		a, applied = s.handleEquipment(exercise, trig)
	default:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "unknown trigger ignored", slog.String("trigger", string(trig.Kind)))
		return Adaptation{}, false
	}
	if !applied {
		return Adaptation{}, false
	}

	a.ID = uuid.NewString()
	a.TriggerKind = trig.Kind
	a.OriginalExerciseID = exercise.ID
	a.CreatedAt = trig.Timestamp
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.history = append(s.history, a)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "adaptation applied",
		slog.String("adaptation_id", a.ID),
		slog.String("trigger", string(trig.Kind)),
		slog.String("type", string(a.Type)),
		slog.String("original", a.OriginalExerciseID),
		slog.String("adapted", a.AdaptedExerciseID),
		slog.Float64("confidence", a.Confidence))
	return a, true
}

func (s *LiveSession) handleRPE(ex Exercise, trig Trigger) (Adaptation, bool) {
	target := s.current.TargetRPE
	if inst := s.instance(ex.ID); target == 0 && inst != nil {
		target = inst.TargetRPE
	}
	if trig.Value <= target+s.rules.RPETolerance {
		return Adaptation{}, false
	}

	weight := s.current.TargetWeight * (1 - s.rules.LoadReductionFactor)
	s.current.TargetWeight = weight
	if inst := s.instance(ex.ID); inst != nil {
		inst.Weight = weight
	}
	return Adaptation{
		AdaptedExerciseID: ex.ID,
		Type:              AdaptLoadReduction,
		Reason: fmt.Sprintf("RPE %.1f above target %.1f; reducing load by %.0f%% to %g",
			trig.Value, target, s.rules.LoadReductionFactor*100, weight), //nolint:mnd // percent
		Confidence: s.rules.Confidence.LoadReduction,
		Severity:   cmp.Or(trig.Severity, SeverityMedium),
	}, true
}

func (s *LiveSession) handlePain(ex Exercise, trig Trigger) (Adaptation, bool) {
	if trig.Value <= s.rules.PainSwapThreshold {
		return Adaptation{}, false
	}
	severity := cmp.Or(trig.Severity, SeverityMedium)
	if trig.Value > s.rules.PainHighThreshold {
		severity = SeverityHigh
	}

	a := Adaptation{
		Type:       AdaptExerciseSwap,
		Confidence: s.rules.Confidence.ExerciseSwap,
		Severity:   severity,
	}
	if alt, ok := s.eligibleByID(s.rules.SafeAlternatives[ex.MovementPattern], ex.ID); ok {
		s.swap(ex, alt, s.rules.FormResetLoadFactor)
		a.AdaptedExerciseID = alt.ID
		a.Reason = fmt.Sprintf("pain %.0f/10 during %s; switching to the safe %s alternative %s",
			trig.Value, ex.Name, ex.MovementPattern, alt.Name)
		return a, true
	}
	if alt, ok := FindEquipmentSubstitute(ex, s.unplaced(), s.equipment, s.injuries, s.restrictions); ok {
		s.swap(ex, alt, s.rules.FormResetLoadFactor)
		a.AdaptedExerciseID = alt.ID
		a.Reason = fmt.Sprintf("pain %.0f/10 during %s; switching to %s", trig.Value, ex.Name, alt.Name)
		return a, true
	}
	s.remove(ex.ID)
	a.Reason = fmt.Sprintf("pain %.0f/10 during %s and no safe alternative; exercise removed", trig.Value, ex.Name)
	return a, true
}

func (s *LiveSession) handleFatigue(ex Exercise, trig Trigger) (Adaptation, bool) {
	rest := s.rules.FatigueRestSeconds
	if inst := s.instance(ex.ID); inst != nil {
		rest = max(rest, inst.RestSeconds)
		inst.RestSeconds = rest
	}
	return Adaptation{
		AdaptedExerciseID: ex.ID,
		Type:              AdaptRestIncrease,
		Reason:            fmt.Sprintf("fatigue reported; resting %d seconds between sets", rest),
		Confidence:        s.rules.Confidence.RestIncrease,
		Severity:          cmp.Or(trig.Severity, SeverityMedium),
	}, true
}

func (s *LiveSession) handleFormBreakdown(ex Exercise, trig Trigger) (Adaptation, bool) {
	a := Adaptation{
		Type:       AdaptFormModification,
		Confidence: s.rules.Confidence.FormModification,
		Severity:   cmp.Or(trig.Severity, SeverityMedium),
	}

	alt, ok := s.eligibleByID(s.rules.FormResets[ex.MovementPattern], ex.ID)
	if !ok {
		alt, ok = s.easierVariant(ex)
	}
	if ok {
		s.swap(ex, alt, s.rules.FormResetLoadFactor)
		a.AdaptedExerciseID = alt.ID
		a.Reason = fmt.Sprintf("form broke down on %s; resetting with %s", ex.Name, alt.Name)
		return a, true
	}

	weight := s.current.TargetWeight * s.rules.FormResetLoadFactor
	s.current.TargetWeight = weight
	if inst := s.instance(ex.ID); inst != nil {
		inst.Weight = weight
	}
	a.AdaptedExerciseID = ex.ID
	a.Reason = fmt.Sprintf("form broke down on %s; no simpler variant, continuing at %g", ex.Name, weight)
	return a, true
}

func (s *LiveSession) handleEquipment(ex Exercise, trig Trigger) (Adaptation, bool) {
	s.equipment = slices.DeleteFunc(s.equipment, func(tag string) bool { return tag == trig.Detail })
	if equipmentEligible(ex, s.equipment) {
		return Adaptation{}, false
	}
	alt, ok := FindEquipmentSubstitute(ex, s.unplaced(), s.equipment, s.injuries, s.restrictions)
	if !ok {
		return Adaptation{}, false
	}
	s.swap(ex, alt, 1)
	return Adaptation{
		AdaptedExerciseID: alt.ID,
		Type:              AdaptExerciseSwap,
		Reason:            fmt.Sprintf("%s is unavailable; switching %s to %s", trig.Detail, ex.Name, alt.Name),
		Confidence:        s.rules.Confidence.EquipmentSwap,
		Severity:          cmp.Or(trig.Severity, SeverityLow),
	}, true
}

// eligibleByID returns the catalog exercise id if it differs from current, is not already in the workout and
// passes the filter.
func (s *LiveSession) eligibleByID(id, current string) (Exercise, bool) {
	if id == "" || id == current || s.instance(id) != nil {
		return Exercise{}, false
	}
	ex, ok := s.lookup(id)
	if !ok || !isEligible(ex, s.equipment, s.injuries, s.restrictions) {
		return Exercise{}, false
	}
	return ex, true
}

// easierVariant returns the easiest eligible exercise with the same movement pattern and a lower difficulty.
func (s *LiveSession) easierVariant(ex Exercise) (Exercise, bool) {
	var candidates []Exercise
	for _, c := range s.catalog {
		if c.ID == ex.ID || c.MovementPattern != ex.MovementPattern || c.Difficulty >= ex.Difficulty ||
			s.instance(c.ID) != nil {
			continue
		}
		if isEligible(c, s.equipment, s.injuries, s.restrictions) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Exercise{}, false
	}
	slices.SortStableFunc(candidates, func(a, b Exercise) int { return cmp.Compare(a.Difficulty, b.Difficulty) })
	return candidates[0], true
}

// unplaced returns the catalog without the exercises already in the workout.
func (s *LiveSession) unplaced() []Exercise {
	return slices.DeleteFunc(slices.Clone(s.catalog), func(e Exercise) bool { return s.instance(e.ID) != nil })
}

func (s *LiveSession) lookup(id string) (Exercise, bool) {
	idx := slices.IndexFunc(s.catalog, func(e Exercise) bool { return e.ID == id })
	if idx < 0 {
		return Exercise{}, false
	}
	return s.catalog[idx], true
}

// instance returns the workout entry for id, or nil.
func (s *LiveSession) instance(id string) *ExerciseInstance {
	for bi := range s.workout.Blocks {
		for ei := range s.workout.Blocks[bi].Exercises {
			if s.workout.Blocks[bi].Exercises[ei].ExerciseID == id {
				return &s.workout.Blocks[bi].Exercises[ei]
			}
		}
	}
	return nil
}

// swap replaces from with to in the workout and moves the set context along. Loaded replacements keep the
// weight scaled by loadFactor, measured from the unrestricted load of from, and take the restriction cut of to.
func (s *LiveSession) swap(from, to Exercise, loadFactor float64) {
	next := ExerciseInstance{Weight: s.current.TargetWeight} //nolint:exhaustruct // only the load is carried.
	inst := s.instance(from.ID)
	if inst != nil {
		next.Weight = inst.Weight
		if inst.LoadNote != "" {
			next.Weight /= s.restricted
		}
	}
	next.Weight *= loadFactor
	if to.Bodyweight {
		next.Weight = 0
	}
	restrictLoad(&next, restrictionFor(to.ID, s.restrictions), s.restricted, s.increment)

	if inst != nil {
		inst.ExerciseID = to.ID
		inst.Name = to.Name
		inst.MovementPattern = to.MovementPattern
		inst.Weight = next.Weight
		inst.LoadNote = next.LoadNote
		inst.Decision = nil
	}
	s.current.ExerciseID = to.ID
	s.current.TargetWeight = next.Weight
}

func (s *LiveSession) remove(id string) {
	for bi := range s.workout.Blocks {
		s.workout.Blocks[bi].Exercises = slices.DeleteFunc(s.workout.Blocks[bi].Exercises,
			func(e ExerciseInstance) bool { return e.ExerciseID == id })
	}
	s.current = nil
}
