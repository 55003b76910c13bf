package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/cadence/internal/fsrs"
)

// Deck is a named collection of cards sharing one set of scheduler
// parameters.
type Deck struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters fsrs.Parameters `json:"parameters"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// CreateDeck inserts a deck. The parameters are validated first.
func (db *DB) CreateDeck(ctx context.Context, name string, params fsrs.Parameters) (*Deck, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	now := time.Now().UnixMilli()
	d := &Deck{
		ID:         uuid.NewString(),
		Name:       name,
		Parameters: params.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO decks (id, name, parameters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.Name, string(raw), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert deck: %w", err)
	}
	return d, nil
}

// GetDeck returns a deck by id, or nil if it does not exist.
func (db *DB) GetDeck(ctx context.Context, id string) (*Deck, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, parameters, created_at, updated_at
		FROM decks WHERE id = ?
	`, id)
	d, err := scanDeck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return d, nil
}

// ListDecks returns every deck ordered by name.
func (db *DB) ListDecks(ctx context.Context) ([]Deck, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, parameters, created_at, updated_at
		FROM decks ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		decks = append(decks, *d)
	}
	return decks, rows.Err()
}

// UpdateDeckParameters replaces a deck's parameters. Sessions already
// running keep the copy they started with.
func (db *DB) UpdateDeckParameters(ctx context.Context, id string, params fsrs.Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	result, err := db.ExecContext(ctx, `
		UPDATE decks SET parameters = ?, updated_at = ? WHERE id = ?
	`, string(raw), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update deck parameters: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("deck %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDeck removes a deck and, by cascade, its cards. Review logs stay.
func (db *DB) DeleteDeck(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("deck %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetSchedulerParameters returns a deck's parameters.
func (db *DB) GetSchedulerParameters(ctx context.Context, deckID string) (fsrs.Parameters, error) {
	var raw string
	err := db.QueryRowContext(ctx, "SELECT parameters FROM decks WHERE id = ?", deckID).Scan(&raw)
	if err == sql.ErrNoRows {
		return fsrs.Parameters{}, fmt.Errorf("deck %s: %w", deckID, ErrNotFound)
	}
	if err != nil {
		return fsrs.Parameters{}, fmt.Errorf("get scheduler parameters: %w", err)
	}
	return decodeParameters(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeck(row rowScanner) (*Deck, error) {
	var d Deck
	var raw string
	if err := row.Scan(&d.ID, &d.Name, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decodeParameters(raw)
	if err != nil {
		return nil, err
	}
	d.Parameters = p
	return &d, nil
}

// decodeParameters starts from the defaults so fields added after a deck
// was saved still get sensible values.
func decodeParameters(raw string) (fsrs.Parameters, error) {
	p := fsrs.DefaultParameters()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fsrs.Parameters{}, fmt.Errorf("decode parameters: %w", err)
	}
	return p, nil
}
