package training

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/myrjola/traincore/internal/errors"
)

type sqliteReadinessRepository struct {
	baseRepository
}

func (r *sqliteReadinessRepository) Get(ctx context.Context, userID string, date time.Time) (ReadinessScore, error) {
	var (
		score            ReadinessScore
		dateStr          string
		subScores, notes string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT score_date, overall, sub_scores, recommendation, notes
		FROM readiness_scores
		WHERE user_id = ? AND score_date = ?`, userID, date.Format(dateFormat)).Scan(
		&dateStr, &score.Overall, &subScores, &score.Recommendation, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return ReadinessScore{}, ErrNotFound
	}
	if err != nil {
		return ReadinessScore{}, fmt.Errorf("query readiness score: %w", err)
	}
	if score.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return ReadinessScore{}, fmt.Errorf("parse score date: %w", err)
	}
	if err = scanJSON(subScores, &score.SubScores); err != nil {
		return ReadinessScore{}, fmt.Errorf("sub scores: %w", err)
	}
	if err = scanJSON(notes, &score.Notes); err != nil {
		return ReadinessScore{}, fmt.Errorf("notes: %w", err)
	}
	return score, nil
}

// Save replaces the score stored for the same user and date.
func (r *sqliteReadinessRepository) Save(ctx context.Context, userID string, score ReadinessScore) error {
	subScores, err := jsonColumn(score.SubScores)
	if err != nil {
		return fmt.Errorf("sub scores: %w", err)
	}
	notes, err := jsonColumn(score.Notes)
	if err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO readiness_scores (user_id, score_date, overall, sub_scores, recommendation, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, score_date) DO UPDATE SET
			overall = excluded.overall,
			sub_scores = excluded.sub_scores,
			recommendation = excluded.recommendation,
			notes = excluded.notes`,
		userID, score.Date.Format(dateFormat), score.Overall, subScores, score.Recommendation, notes)
	if err != nil {
		return fmt.Errorf("upsert readiness score: %w", err)
	}
	return nil
}
