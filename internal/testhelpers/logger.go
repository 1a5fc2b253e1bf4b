// Package testhelpers has shared test utilities.
package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/traincore/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink, such as the one returned by NewWriter.
func NewLogger(logSink io.Writer) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})))
}
