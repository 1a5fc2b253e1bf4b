package training

import (
	"context"
	"fmt"
	"time"

	"github.com/myrjola/traincore/internal/errors"
)

type sqliteSessionRepository struct {
	baseRepository
}

// ListCompleted returns sessions completed at or after since, oldest first.
func (r *sqliteSessionRepository) ListCompleted(
	ctx context.Context,
	userID string,
	since time.Time,
) (_ []SessionSummary, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT completed_at, duration_minutes, volume, average_rpe
		FROM sessions
		WHERE user_id = ? AND completed_at >= ?
		ORDER BY completed_at`, userID, formatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			s           SessionSummary
			completedAt string
		)
		if err = rows.Scan(&completedAt, &s.DurationMinutes, &s.Volume, &s.AverageRPE); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.CompletedAt, err = parseTimestamp(completedAt); err != nil {
			return nil, fmt.Errorf("completed_at: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sessions, nil
}

func (r *sqliteSessionRepository) Record(ctx context.Context, userID string, s SessionSummary) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO sessions (user_id, completed_at, duration_minutes, volume, average_rpe)
		VALUES (?, ?, ?, ?, ?)`,
		userID, formatTimestamp(s.CompletedAt), s.DurationMinutes, s.Volume, s.AverageRPE)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}
