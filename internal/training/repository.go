package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/sqlite"
)

// ErrNotFound is returned by the stores when a requested row does not exist.
var ErrNotFound = errors.NewSentinel("not found")

const timestampFormat = "2006-01-02T15:04:05.000Z"
const dateFormat = time.DateOnly

// ProfileStore reads and supersedes user training profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (UserTrainingProfile, error)
	Save(ctx context.Context, profile UserTrainingProfile) error
	UpdateInjuries(ctx context.Context, userID string, injuries []Injury) error
	UpdateEquipment(ctx context.Context, userID string, equipment []string) error
}

// CatalogStore reads exercise reference data.
type CatalogStore interface {
	List(ctx context.Context, approvedOnly bool) ([]Exercise, error)
}

// HistoryStore reads performance history and appends performance records and progression log entries.
type HistoryStore interface {
	// List returns at most limit records for the exercise, most recent first. A limit of zero means no limit.
	List(ctx context.Context, userID, exerciseID string, limit int) ([]PerformanceRecord, error)
	Append(ctx context.Context, userID string, record PerformanceRecord) error
	AppendProgression(ctx context.Context, userID string, entry ProgressionLogEntry) error
}

// ReadinessStore keeps one readiness score per user and date.
type ReadinessStore interface {
	Get(ctx context.Context, userID string, date time.Time) (ReadinessScore, error)
	Save(ctx context.Context, userID string, score ReadinessScore) error
}

// SessionStore reads and records completed session summaries.
type SessionStore interface {
	ListCompleted(ctx context.Context, userID string, since time.Time) ([]SessionSummary, error)
	Record(ctx context.Context, userID string, summary SessionSummary) error
}

// Stores groups the collaborators the Service depends on.
type Stores struct {
	Profiles  ProfileStore
	Catalog   CatalogStore
	History   HistoryStore
	Readiness ReadinessStore
	Sessions  SessionStore
}

// NewSQLiteStores creates stores backed by db.
func NewSQLiteStores(db *sqlite.Database, logger *slog.Logger) Stores {
	base := baseRepository{db: db, logger: logger}
	return Stores{
		Profiles:  &sqliteProfileRepository{baseRepository: base},
		Catalog:   &sqliteExerciseRepository{baseRepository: base},
		History:   &sqliteHistoryRepository{baseRepository: base},
		Readiness: &sqliteReadinessRepository{baseRepository: base},
		Sessions:  &sqliteSessionRepository{baseRepository: base},
	}
}

type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// jsonColumn encodes v for a JSON text column. Nil slices and maps are stored as empty containers.
func jsonColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func scanJSON(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}

// checkAffected returns ErrNotFound when res touched no rows.
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
