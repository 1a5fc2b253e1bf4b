package training

import (
	"math"
	"time"

	"github.com/myrjola/traincore/internal/ptr"
)

// ReadinessTier is the suggested training intensity for the day.
type ReadinessTier string

const (
	TierHigh         ReadinessTier = "high"
	TierModerateHigh ReadinessTier = "moderate-high"
	TierModerate     ReadinessTier = "moderate"
	TierLowModerate  ReadinessTier = "low-moderate"
	TierRecovery     ReadinessTier = "recovery"
)

// Sub-score bands.
const (
	sleepIdealMinHours = 7
	sleepIdealMaxHours = 9
	sleepOkMinHours    = 6
	sleepOkMaxHours    = 10
	sleepIdealScore    = 85
	sleepOkScore       = 70
	sleepPoorScore     = 40

	restingHRExcellent = 60
	restingHRGood      = 70
	restingHRFair      = 80

	loadManySessions     = 5
	loadSeveralSessions  = 3
	loadHighVolume       = 10_000
	loadElevatedVolume   = 5_000
	loadHighRPE          = 8
	loadElevatedRPE      = 6
	loadMinScore         = 20
	highSorenessLevel    = 7
	lowMotivationLevel   = 3
	scaleToPercentFactor = 10
)

// ReadinessInput is today's check-in. Any field may be nil. Sessions is the 7-day window of completed sessions.
type ReadinessInput struct {
	SleepHours     *float64
	SleepQuality   *int
	RestingHR      *int
	StressLevel    *int
	EnergyLevel    *int
	Mood           *int
	Soreness       *int
	Motivation     *int
	HRVScore       *float64
	NutritionScore *float64
	Sessions       []SessionSummary
}

// SubScores are the independent 0-100 components of readiness.
type SubScores struct {
	Sleep        float64 `json:"sleep"`
	Recovery     float64 `json:"recovery"`
	TrainingLoad float64 `json:"training_load"`
	Nutrition    float64 `json:"nutrition"`
	Stress       float64 `json:"stress"`
	HRV          float64 `json:"hrv"`
}

// ReadinessScore is the daily readiness result. Date is set by the caller when persisting.
type ReadinessScore struct {
	Date           time.Time     `json:"date"`
	Overall        int           `json:"overall"`
	SubScores      SubScores     `json:"sub_scores"`
	Recommendation ReadinessTier `json:"recommendation"`
	Notes          []string      `json:"notes,omitempty"`
}

// ScoreReadiness combines the check-in into a 0-100 score. It is total over every input combination.
func ScoreReadiness(in ReadinessInput, rules ReadinessRules) ReadinessScore {
	sub := SubScores{
		Sleep:        sleepScore(in, rules.DefaultSubScore),
		Recovery:     recoveryScore(in, rules.DefaultSubScore),
		TrainingLoad: trainingLoadScore(in.Sessions, rules.NoSessionsLoadScore),
		Nutrition:    rules.DefaultNutrition,
		Stress:       stressScore(in, rules.DefaultSubScore),
		HRV:          0,
	}
	if in.NutritionScore != nil {
		sub.Nutrition = clampScore(*in.NutritionScore)
	}
	if in.HRVScore != nil {
		sub.HRV = clampScore(*in.HRVScore)
	} else {
		sub.HRV = (sub.Sleep + sub.Recovery + sub.Stress) / 3 //nolint:mnd // mean of three sub-scores
	}

	w := rules.Weights
	overall := int(math.Round(w.Sleep*sub.Sleep + w.Recovery*sub.Recovery + w.TrainingLoad*sub.TrainingLoad +
		w.Nutrition*sub.Nutrition + w.Stress*sub.Stress + w.HRV*sub.HRV))

	return ReadinessScore{
		Date:           time.Time{},
		Overall:        overall,
		SubScores:      sub,
		Recommendation: TierFor(overall),
		Notes:          readinessNotes(in, sub, rules.NoteThreshold),
	}
}

// TierFor maps an overall readiness score to an intensity tier.
func TierFor(score int) ReadinessTier {
	switch {
	case score >= 80: //nolint:mnd // tier bounds
		return TierHigh
	case score >= 65: //nolint:mnd // tier bounds
		return TierModerateHigh
	case score >= 50: //nolint:mnd // tier bounds
		return TierModerate
	case score >= 35: //nolint:mnd // tier bounds
		return TierLowModerate
	default:
		return TierRecovery
	}
}

func sleepScore(in ReadinessInput, fallback float64) float64 {
	var parts []float64
	if in.SleepHours != nil {
		h := *in.SleepHours
		switch {
		case h >= sleepIdealMinHours && h <= sleepIdealMaxHours:
			parts = append(parts, sleepIdealScore)
		case h >= sleepOkMinHours && h <= sleepOkMaxHours:
			parts = append(parts, sleepOkScore)
		default:
			parts = append(parts, sleepPoorScore)
		}
	}
	if in.SleepQuality != nil {
		parts = append(parts, scaled(*in.SleepQuality))
	}
	return averageOr(parts, fallback)
}

func recoveryScore(in ReadinessInput, fallback float64) float64 {
	var parts []float64
	if in.RestingHR != nil {
		switch hr := *in.RestingHR; {
		case hr <= restingHRExcellent:
			parts = append(parts, 90) //nolint:mnd // score band
		case hr <= restingHRGood:
			parts = append(parts, 75) //nolint:mnd // score band
		case hr <= restingHRFair:
			parts = append(parts, 60) //nolint:mnd // score band
		default:
			parts = append(parts, 40) //nolint:mnd // score band
		}
	}
	if in.EnergyLevel != nil {
		parts = append(parts, scaled(*in.EnergyLevel))
	}
	return averageOr(parts, fallback)
}

func trainingLoadScore(sessions []SessionSummary, noSessions float64) float64 {
	if len(sessions) == 0 {
		return noSessions
	}

	score := 100.0
	switch {
	case len(sessions) > loadManySessions:
		score -= 20
	case len(sessions) > loadSeveralSessions:
		score -= 10
	}

	var volume, rpe float64
	for _, s := range sessions {
		volume += s.Volume
		rpe += s.AverageRPE
	}
	switch {
	case volume > loadHighVolume:
		score -= 15
	case volume > loadElevatedVolume:
		score -= 8
	}
	switch avg := rpe / float64(len(sessions)); {
	case avg > loadHighRPE:
		score -= 15
	case avg > loadElevatedRPE:
		score -= 5
	}

	return math.Max(loadMinScore, math.Min(100, score)) //nolint:mnd // clamp to [20,100]
}

func stressScore(in ReadinessInput, fallback float64) float64 {
	var parts []float64
	if in.StressLevel != nil {
		parts = append(parts, clampScore(100-scaled(*in.StressLevel))) //nolint:mnd // inverted scale
	}
	if in.Mood != nil {
		parts = append(parts, scaled(*in.Mood))
	}
	return averageOr(parts, fallback)
}

func readinessNotes(in ReadinessInput, sub SubScores, threshold float64) []string {
	var notes []string
	if sub.Sleep < threshold {
		notes = append(notes, "Sleep was short or poor; keep the intensity conservative today.")
	}
	if sub.Stress < threshold {
		notes = append(notes, "Stress is elevated; focus on technique rather than load.")
	}
	if sub.Recovery < threshold {
		notes = append(notes, "Recovery markers are low; take longer rests between sets.")
	}
	if ptr.Deref(in.Soreness, 0) >= highSorenessLevel {
		notes = append(notes, "Muscle soreness is high; warm up thoroughly before loading.")
	}
	if ptr.Deref(in.Motivation, lowMotivationLevel+1) <= lowMotivationLevel {
		notes = append(notes, "Motivation is low; a shorter session still counts.")
	}
	return notes
}

// scaled converts a 1-10 rating to 0-100.
func scaled(v int) float64 {
	return clampScore(float64(v * scaleToPercentFactor))
}

func averageOr(parts []float64, fallback float64) float64 {
	if len(parts) == 0 {
		return fallback
	}
	var sum float64
	for _, p := range parts {
		sum += p
	}
	return sum / float64(len(parts))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v)) //nolint:mnd // score range
}
