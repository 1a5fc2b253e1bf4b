package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition.
//
// The target schema is created in a scratch in-memory database that is attached as schemaTarget, and the two
// sqlite_schema tables are diffed:
//
//   - tables missing from the target are dropped and new tables are created,
//   - columns missing from a live table are added with ALTER TABLE,
//   - indexes are dropped, created or recreated to match.
//
// Changes that ALTER TABLE cannot express, such as a new primary key, are reported as errors.
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) error {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer db.rollback(ctx, tx)

	if err = db.migrateTables(ctx, tx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	if err = db.migrateIndexes(ctx, tx); err != nil {
		return fmt.Errorf("migrate indexes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelDebug, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open schema target: %w", err)
	}
	// The attachment keeps the in-memory database alive after this handle closes.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target", slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create schema target: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target", slog.Any("error", detachErr))
		}
	}, nil
}

func (db *Database) rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		db.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction", slog.Any("error", err))
	}
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	dropped, err := queryStrings(ctx, tx, `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table'
  AND target.type IS NULL
  AND live.name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("query dropped tables: %w", err)
	}
	for _, table := range dropped {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE "%s"`, table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = 'table'
  AND live.type IS NULL
  AND target.name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("query new tables: %w", err)
	}
	for _, stmt := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", stmt))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return db.addMissingColumns(ctx, tx)
}

type missingColumn struct {
	table      string
	name       string
	typ        string
	notNull    bool
	defaultSQL sql.NullString
	primaryKey int
}

func (c missingColumn) definition() string {
	def := fmt.Sprintf(`"%s" %s`, c.name, c.typ)
	if c.notNull {
		def += " NOT NULL"
	}
	if c.defaultSQL.Valid {
		def += " DEFAULT " + c.defaultSQL.String
	}
	return def
}

func (db *Database) addMissingColumns(ctx context.Context, tx *sql.Tx) (err error) {
	rows, err := tx.QueryContext(ctx, `SELECT t.name, target.name, target.type, target."notnull", target.dflt_value,
       target.pk
FROM schemaTarget.sqlite_schema AS t
         JOIN pragma_table_info(t.name, 'schemaTarget') AS target
WHERE t.type = 'table'
  AND t.name NOT LIKE 'sqlite_%'
  AND NOT EXISTS (SELECT 1 FROM pragma_table_info(t.name, 'main') AS live WHERE live.name = target.name)`)
	if err != nil {
		return fmt.Errorf("query missing columns: %w", err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	var missing []missingColumn
	for rows.Next() {
		var c missingColumn
		if err = rows.Scan(&c.table, &c.name, &c.typ, &c.notNull, &c.defaultSQL, &c.primaryKey); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		missing = append(missing, c)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}

	for _, c := range missing {
		if c.primaryKey > 0 || (c.notNull && !c.defaultSQL.Valid) {
			return fmt.Errorf("column %s.%s cannot be added without rebuilding the table", c.table, c.name)
		}
		stmt := fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN %s`, c.table, c.definition())
		db.logger.LogAttrs(ctx, slog.LevelInfo, "adding column", slog.String("query", stmt))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.name, err)
		}
	}
	return nil
}

func (db *Database) migrateIndexes(ctx context.Context, tx *sql.Tx) error {
	// Changed indexes are dropped here and recreated below.
	stale, err := queryStrings(ctx, tx, `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'index'
  AND live.sql IS NOT NULL
  AND (target.type IS NULL OR live.sql <> target.sql)`)
	if err != nil {
		return fmt.Errorf("query stale indexes: %w", err)
	}
	for _, name := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping index", slog.String("index", name))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP INDEX "%s"`, name)); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = 'index'
  AND target.sql IS NOT NULL
  AND live.type IS NULL`)
	if err != nil {
		return fmt.Errorf("query new indexes: %w", err)
	}
	for _, stmt := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating index", slog.String("query", stmt))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// queryStrings returns the single string column selected by query.
func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()
	var results []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}
