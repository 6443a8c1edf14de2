package postgres

import (
	"database/sql"
	"log"
)

// RunMigrations creates the shared key-value store schema. Every service runs
// this on startup; the statements are idempotent.
func RunMigrations(db *sql.DB, service string) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			key VARCHAR(512) PRIMARY KEY,
			doc JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			key VARCHAR(512) PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_employee_id
			ON records ((doc->>'employee_id'))`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Printf("Migrations completed for service: %s", service)
	return nil
}
