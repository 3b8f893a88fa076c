package db

import (
	"github.com/jmoiron/sqlx"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMP NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ops_payment_intents (
			payment_intent_id VARCHAR(255) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS ops_payment_intents_status_idx ON ops_payment_intents (status);
	`)
	return err
}
