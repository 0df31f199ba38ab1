package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-planner-api/pkg/config"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS timetables (
		id              UUID PRIMARY KEY,
		learner_id      TEXT NOT NULL,
		title           TEXT NOT NULL,
		reference_date  VARCHAR(10) NOT NULL,
		horizon_end     VARCHAR(10) NOT NULL,
		total_tasks     INTEGER NOT NULL DEFAULT 0,
		scheduled_tasks INTEGER NOT NULL DEFAULT 0,
		warning_count   INTEGER NOT NULL DEFAULT 0,
		request         TEXT NOT NULL,
		output          TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetables_learner ON timetables (learner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS timetable_export_jobs (
		id            UUID PRIMARY KEY,
		timetable_id  UUID NOT NULL REFERENCES timetables(id) ON DELETE CASCADE,
		format        VARCHAR(8) NOT NULL,
		status        VARCHAR(16) NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		result_url    TEXT,
		created_by    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at   TIMESTAMPTZ,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON timetable_export_jobs (status, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS timetables (
		id              TEXT PRIMARY KEY,
		learner_id      TEXT NOT NULL,
		title           TEXT NOT NULL,
		reference_date  TEXT NOT NULL,
		horizon_end     TEXT NOT NULL,
		total_tasks     INTEGER NOT NULL DEFAULT 0,
		scheduled_tasks INTEGER NOT NULL DEFAULT 0,
		warning_count   INTEGER NOT NULL DEFAULT 0,
		request         TEXT NOT NULL,
		output          TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetables_learner ON timetables (learner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS timetable_export_jobs (
		id            TEXT PRIMARY KEY,
		timetable_id  TEXT NOT NULL REFERENCES timetables(id) ON DELETE CASCADE,
		format        TEXT NOT NULL,
		status        TEXT NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		result_url    TEXT,
		created_by    TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL,
		finished_at   TIMESTAMP,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON timetable_export_jobs (status, created_at)`,
}

// Migrate creates the planner tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	statements := postgresSchema
	if driver == config.DriverSQLite {
		statements = sqliteSchema
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Open connects to the configured driver and bootstraps the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres, "":
		db, err = NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
