package training

import (
	"context"
	"fmt"

	"github.com/myrjola/traincore/internal/errors"
)

type sqliteHistoryRepository struct {
	baseRepository
}

func (r *sqliteHistoryRepository) List(
	ctx context.Context,
	userID, exerciseID string,
	limit int,
) (_ []PerformanceRecord, err error) {
	if limit <= 0 {
		limit = -1 // SQLite reads a negative LIMIT as unbounded.
	}
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_id, performed_at, weight, reps, sets, rpe
		FROM performance_records
		WHERE user_id = ? AND exercise_id = ?
		ORDER BY performed_at DESC, id DESC
		LIMIT ?`, userID, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var records []PerformanceRecord
	for rows.Next() {
		var (
			rec         PerformanceRecord
			performedAt string
		)
		if err = rows.Scan(&rec.ExerciseID, &performedAt, &rec.Weight, &rec.Reps, &rec.Sets, &rec.RPE); err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		if rec.PerformedAt, err = parseTimestamp(performedAt); err != nil {
			return nil, fmt.Errorf("performed_at: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

func (r *sqliteHistoryRepository) Append(ctx context.Context, userID string, rec PerformanceRecord) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO performance_records (user_id, exercise_id, performed_at, weight, reps, sets, rpe)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, rec.ExerciseID, formatTimestamp(rec.PerformedAt), rec.Weight, rec.Reps, rec.Sets, rec.RPE)
	if err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	return nil
}

func (r *sqliteHistoryRepository) AppendProgression(ctx context.Context, userID string, e ProgressionLogEntry) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO progression_log (user_id, exercise_id, decision, weight_before, weight_after,
		                             reps_before, reps_after, percent, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, e.ExerciseID, e.Decision, e.WeightBefore, e.WeightAfter, e.RepsBefore, e.RepsAfter, e.Percent,
		formatTimestamp(e.LoggedAt))
	if err != nil {
		return fmt.Errorf("insert progression log entry: %w", err)
	}
	return nil
}
