package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/cadence/internal/fsrs"
)

// CardRecord is a card's scheduling state plus its content. The scheduler
// only reads the embedded fsrs.Card; Front and Back pass through untouched.
type CardRecord struct {
	fsrs.Card
	Front     string `json:"front"`
	Back      string `json:"back"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// CardFilter narrows FetchCardsForDeck. Zero values match everything.
type CardFilter struct {
	States    []fsrs.State
	DueBefore time.Time // due <= DueBefore
	Limit     int
}

const cardColumns = `id, deck_id, front, back, state, stability, difficulty, elapsed_days,
	scheduled_days, reps, lapses, due, last_review, created_at, updated_at`

// CreateCard inserts a New card due at now.
func (db *DB) CreateCard(ctx context.Context, deckID, front, back string, now time.Time) (*CardRecord, error) {
	rec := &CardRecord{
		Card:      fsrs.NewCard(uuid.NewString(), deckID, now),
		Front:     front,
		Back:      back,
		CreatedAt: now.UnixMilli(),
		UpdatedAt: now.UnixMilli(),
	}
	c := rec.Card
	_, err := db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.DeckID, front, back, int(c.State), c.Stability, c.Difficulty, c.ElapsedDays,
		c.ScheduledDays, c.Reps, c.Lapses, c.Due.UnixMilli(), nullMillis(c.LastReview),
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	// Round-trip the timestamp so callers see what a later read returns.
	rec.Due = time.UnixMilli(c.Due.UnixMilli()).UTC()
	return rec, nil
}

// GetCard returns a card by id, or nil if it does not exist.
func (db *DB) GetCard(ctx context.Context, id string) (*CardRecord, error) {
	row := db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id)
	rec, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return rec, nil
}

// ListCards returns a deck's cards with content, ordered by due time.
func (db *DB) ListCards(ctx context.Context, deckID string, f CardFilter) ([]CardRecord, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE deck_id = ?"
	args := []any{deckID}

	if len(f.States) > 0 {
		marks := make([]string, len(f.States))
		for i, s := range f.States {
			marks[i] = "?"
			args = append(args, int(s))
		}
		query += " AND state IN (" + strings.Join(marks, ", ") + ")"
	}
	if !f.DueBefore.IsZero() {
		query += " AND due <= ?"
		args = append(args, f.DueBefore.UnixMilli())
	}
	query += " ORDER BY due, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []CardRecord
	for rows.Next() {
		rec, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *rec)
	}
	return cards, rows.Err()
}

// FetchCardsForDeck returns the scheduling state of a deck's cards.
func (db *DB) FetchCardsForDeck(ctx context.Context, deckID string, f CardFilter) ([]fsrs.Card, error) {
	recs, err := db.ListCards(ctx, deckID, f)
	if err != nil {
		return nil, err
	}
	cards := make([]fsrs.Card, len(recs))
	for i, r := range recs {
		cards[i] = r.Card
	}
	return cards, nil
}

// PersistCardUpdate writes a card's scheduling fields. Content is left
// alone. Writes are last-write-wins per card id.
func (db *DB) PersistCardUpdate(ctx context.Context, c fsrs.Card) error {
	return updateCard(ctx, db, c)
}

func updateCard(ctx context.Context, ex execer, c fsrs.Card) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE cards SET
			state = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
			reps = ?, lapses = ?, due = ?, last_review = ?, updated_at = ?
		WHERE id = ?
	`, int(c.State), c.Stability, c.Difficulty, c.ElapsedDays, c.ScheduledDays,
		c.Reps, c.Lapses, c.Due.UnixMilli(), nullMillis(c.LastReview), time.Now().UnixMilli(),
		c.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("card %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// DeleteCard removes a card. Its review logs are kept.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountCardsByState returns how many cards of a deck are in each state.
// Learning and review counts include only cards due by now.
func (db *DB) CountCardsByState(ctx context.Context, deckID string, now time.Time) (map[fsrs.State]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM cards
		WHERE deck_id = ? AND (state = 0 OR due <= ?)
		GROUP BY state
	`, deckID, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("count cards: %w", err)
	}
	defer rows.Close()

	counts := make(map[fsrs.State]int, 4)
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan card count: %w", err)
		}
		counts[fsrs.State(state)] = n
	}
	return counts, rows.Err()
}

func scanCard(row rowScanner) (*CardRecord, error) {
	var rec CardRecord
	var state int
	var due int64
	var lastReview sql.NullInt64
	err := row.Scan(&rec.ID, &rec.DeckID, &rec.Front, &rec.Back, &state, &rec.Stability, &rec.Difficulty,
		&rec.ElapsedDays, &rec.ScheduledDays, &rec.Reps, &rec.Lapses, &due, &lastReview,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.State = fsrs.State(state)
	rec.Due = time.UnixMilli(due).UTC()
	if lastReview.Valid {
		t := time.UnixMilli(lastReview.Int64).UTC()
		rec.LastReview = &t
	}
	return &rec, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
