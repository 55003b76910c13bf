package store

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "decks: scheduler parameters per deck",
		SQL: `
CREATE TABLE decks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    parameters  TEXT NOT NULL,           -- JSON-encoded fsrs.Parameters
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX idx_decks_name ON decks(name);
`,
	},
	{
		Version:     2,
		Description: "cards: content plus scheduling state",
		SQL: `
CREATE TABLE cards (
    id              TEXT PRIMARY KEY,
    deck_id         TEXT NOT NULL,
    front           TEXT NOT NULL DEFAULT '',
    back            TEXT NOT NULL DEFAULT '',

    -- Scheduling state, only written from a graded review or forget/reset
    state           INTEGER NOT NULL DEFAULT 0 CHECK (state BETWEEN 0 AND 3),
    stability       REAL NOT NULL DEFAULT 0,
    difficulty      REAL NOT NULL DEFAULT 0,
    elapsed_days    REAL NOT NULL DEFAULT 0,
    scheduled_days  REAL NOT NULL DEFAULT 0,
    reps            INTEGER NOT NULL DEFAULT 0,
    lapses          INTEGER NOT NULL DEFAULT 0,
    due             INTEGER NOT NULL,
    last_review     INTEGER,

    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,

    FOREIGN KEY (deck_id) REFERENCES decks(id) ON DELETE CASCADE
);

CREATE INDEX idx_cards_deck_state_due ON cards(deck_id, state, due);
`,
	},
	{
		Version:     3,
		Description: "review_logs: append-only grading history",
		SQL: `
CREATE TABLE review_logs (
    id              TEXT PRIMARY KEY,
    card_id         TEXT NOT NULL,
    deck_id         TEXT NOT NULL,
    user_id         TEXT NOT NULL DEFAULT '',
    rating          INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 4),
    previous_state  INTEGER NOT NULL,
    state           INTEGER NOT NULL,
    scheduled_days  REAL NOT NULL,
    elapsed_days    REAL NOT NULL,
    stability       REAL NOT NULL,
    difficulty      REAL NOT NULL,
    due             INTEGER NOT NULL,
    reviewed_at     INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_logs_deck_reviewed ON review_logs(deck_id, reviewed_at);
CREATE INDEX idx_logs_reviewed_id   ON review_logs(reviewed_at, id);
CREATE INDEX idx_logs_card          ON review_logs(card_id, reviewed_at);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		err = db.withTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
				m.Version, m.Description,
			); err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
