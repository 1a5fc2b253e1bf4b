package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/myrjola/traincore/internal/envstruct"
	"github.com/myrjola/traincore/internal/errors"
	"github.com/myrjola/traincore/internal/logging"
	"github.com/myrjola/traincore/internal/sqlite"
	"github.com/myrjola/traincore/internal/training"
)

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"TRAINER_SQLITE_URL" envDefault:"./trainer.sqlite3"`
	// RulesPath is an optional YAML file overlaying the default rule tables.
	RulesPath string `env:"TRAINER_RULES_PATH" envDefault:""`
	// OpenAIAPIKey enables generated coaching text. Templates are used when empty.
	OpenAIAPIKey string `env:"TRAINER_OPENAI_API_KEY" envDefault:""`
	// DefaultDurationMinutes is used for profiles without a preferred session length.
	DefaultDurationMinutes int `env:"TRAINER_DEFAULT_DURATION_MINUTES" envDefault:"45"`
	// HistoryLimit is how many recent sessions per exercise the overload engine sees.
	HistoryLimit int `env:"TRAINER_HISTORY_LIMIT" envDefault:"5"`
}

func loadRules(cfg config) (training.Rules, error) {
	rules := training.DefaultRules()
	if cfg.RulesPath != "" {
		var err error
		if rules, err = training.LoadRules(cfg.RulesPath); err != nil {
			return training.Rules{}, errors.Wrap(err, "load rules", slog.String("path", cfg.RulesPath))
		}
	}
	rules.Assembly.DefaultDurationMinutes = cfg.DefaultDurationMinutes
	if err := rules.Validate(); err != nil {
		return training.Rules{}, errors.Wrap(err, "validate rules")
	}
	return rules, nil
}

func run(
	ctx context.Context,
	logger *slog.Logger,
	lookupEnv func(string) (string, bool),
	args []string,
	stdout io.Writer,
) (err error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, errors.DecoratePanic(r))
		}
	}()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errors.Wrap(errUsage, "unknown command", slog.String("command", args[0]))
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if optErr := db.Optimize(context.WithoutCancel(ctx)); optErr != nil {
			err = errors.Join(err, errors.Wrap(optErr, "optimize db"))
		}
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close db"))
		}
	}()

	opts := []training.Option{training.WithRules(rules), training.WithHistoryLimit(cfg.HistoryLimit)}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, training.WithCoach(training.NewOpenAICoach(cfg.OpenAIAPIKey)))
	}
	svc := training.NewService(training.NewSQLiteStores(db, logger), logger, opts...)

	ctx = logging.WithAttrs(ctx, slog.String("command", args[0]))
	if err = cmd(ctx, svc, args[1:], stdout); err != nil {
		return errors.Wrap(err, "run command", slog.String("command", args[0]))
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv, os.Args[1:], os.Stdout); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "trainer failed", errors.SlogError(err))
		os.Exit(1)
	}
}
