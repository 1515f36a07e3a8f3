package db

import (
	"fmt"

	"gorm.io/gorm"
)

// The service owns reports and report_jobs. Vehicles, trip summaries
// and trip events belong to the ingestion side and are only read here.
var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS reports (
		report_uuid UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		user_uuid UUID NOT NULL,
		vehicles JSONB NOT NULL,
		from_date TIMESTAMPTZ NOT NULL,
		to_date TIMESTAMPTZ NOT NULL,
		contact_uuid UUID NOT NULL,
		report_status SMALLINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reports_user_uuid ON reports (user_uuid, created_at DESC);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'report_job_status') THEN
			CREATE TYPE report_job_status AS ENUM ('PENDING', 'RUNNING', 'COMPLETED', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS report_jobs (
		job_uuid UUID PRIMARY KEY,
		report_uuid UUID NOT NULL,
		user_uuid UUID NOT NULL,
		filter JSONB NOT NULL,
		run_at TIMESTAMPTZ NOT NULL,
		status report_job_status NOT NULL DEFAULT 'PENDING',
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS idx_report_jobs_due ON report_jobs (run_at) WHERE status = 'PENDING';`,
	`CREATE INDEX IF NOT EXISTS idx_report_jobs_user ON report_jobs (user_uuid, created_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
