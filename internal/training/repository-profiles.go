package training

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/myrjola/traincore/internal/errors"
)

type sqliteProfileRepository struct {
	baseRepository
}

func (r *sqliteProfileRepository) Get(ctx context.Context, userID string) (UserTrainingProfile, error) {
	var (
		p                                                  UserTrainingProfile
		equipment, injuries, restrictions, oneRepMaxColumn string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT user_id, goal, level, equipment, injuries, restrictions, one_rep_max,
		       preferred_duration_minutes, readiness_score, training_age_months
		FROM profiles
		WHERE user_id = ?`, userID).Scan(
		&p.UserID, &p.Goal, &p.Level, &equipment, &injuries, &restrictions, &oneRepMaxColumn,
		&p.PreferredDurationMinutes, &p.ReadinessScore, &p.TrainingAgeMonths,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UserTrainingProfile{}, ErrNotFound
	}
	if err != nil {
		return UserTrainingProfile{}, fmt.Errorf("query profile: %w", err)
	}

	if err = scanJSON(equipment, &p.Equipment); err != nil {
		return UserTrainingProfile{}, fmt.Errorf("equipment: %w", err)
	}
	if err = scanJSON(injuries, &p.Injuries); err != nil {
		return UserTrainingProfile{}, fmt.Errorf("injuries: %w", err)
	}
	if err = scanJSON(restrictions, &p.Restrictions); err != nil {
		return UserTrainingProfile{}, fmt.Errorf("restrictions: %w", err)
	}
	if err = scanJSON(oneRepMaxColumn, &p.OneRepMax); err != nil {
		return UserTrainingProfile{}, fmt.Errorf("one rep max: %w", err)
	}
	return p, nil
}

// Save inserts the profile or supersedes the stored one.
func (r *sqliteProfileRepository) Save(ctx context.Context, p UserTrainingProfile) error {
	equipment, err := jsonColumn(p.Equipment)
	if err != nil {
		return fmt.Errorf("equipment: %w", err)
	}
	injuries, err := jsonColumn(p.Injuries)
	if err != nil {
		return fmt.Errorf("injuries: %w", err)
	}
	restrictions, err := jsonColumn(p.Restrictions)
	if err != nil {
		return fmt.Errorf("restrictions: %w", err)
	}
	oneRM := p.OneRepMax
	if oneRM == nil {
		oneRM = map[string]float64{}
	}
	oneRepMaxColumn, err := jsonColumn(oneRM)
	if err != nil {
		return fmt.Errorf("one rep max: %w", err)
	}

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO profiles (user_id, goal, level, equipment, injuries, restrictions, one_rep_max,
		                      preferred_duration_minutes, readiness_score, training_age_months, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			goal = excluded.goal,
			level = excluded.level,
			equipment = excluded.equipment,
			injuries = excluded.injuries,
			restrictions = excluded.restrictions,
			one_rep_max = excluded.one_rep_max,
			preferred_duration_minutes = excluded.preferred_duration_minutes,
			readiness_score = excluded.readiness_score,
			training_age_months = excluded.training_age_months,
			updated_at = excluded.updated_at`,
		p.UserID, p.Goal, p.Level, equipment, injuries, restrictions, oneRepMaxColumn,
		p.PreferredDurationMinutes, p.ReadinessScore, p.TrainingAgeMonths, formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepository) UpdateInjuries(ctx context.Context, userID string, injuries []Injury) error {
	column, err := jsonColumn(injuries)
	if err != nil {
		return fmt.Errorf("injuries: %w", err)
	}
	return r.updateColumn(ctx, userID, "injuries", column)
}

func (r *sqliteProfileRepository) UpdateEquipment(ctx context.Context, userID string, equipment []string) error {
	column, err := jsonColumn(equipment)
	if err != nil {
		return fmt.Errorf("equipment: %w", err)
	}
	return r.updateColumn(ctx, userID, "equipment", column)
}

// updateColumn sets one JSON column. column is always a literal from this file.
func (r *sqliteProfileRepository) updateColumn(ctx context.Context, userID, column, value string) error {
	res, err := r.db.ReadWrite.ExecContext(ctx,
		fmt.Sprintf("UPDATE profiles SET %s = ?, updated_at = ? WHERE user_id = ?", column), //nolint:gosec // column is a literal.
		value, formatTimestamp(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return checkAffected(res)
}
