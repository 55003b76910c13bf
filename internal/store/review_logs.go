package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/selector"
	"github.com/lazypower/cadence/internal/stats"
)

const logColumns = `id, card_id, deck_id, user_id, rating, previous_state, state, scheduled_days,
	elapsed_days, stability, difficulty, due, reviewed_at, duration_ms`

// PersistReview writes a graded card and its log in one transaction.
// Either both rows land or neither does, so quota counts taken from the
// log always match the cards that left New. Log ids are deterministic,
// so writing the same review again is a no-op and retries are safe.
func (db *DB) PersistReview(ctx context.Context, c fsrs.Card, l fsrs.ReviewLog) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateCard(ctx, tx, c); err != nil {
			return err
		}
		return insertLog(ctx, tx, l)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertLog ignores only a repeated id. Any other constraint failure is
// an error.
func insertLog(ctx context.Context, ex execer, l fsrs.ReviewLog) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO review_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, l.ID, l.CardID, l.DeckID, l.UserID, int(l.Rating), int(l.PreviousState), int(l.State),
		l.ScheduledDays, l.ElapsedDays, l.Stability, l.Difficulty,
		l.Due.UnixMilli(), l.ReviewedAt.UnixMilli(), l.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert review log: %w", err)
	}
	return nil
}

// CountTodayActivity counts the gradings in a deck since dayStart that
// consumed quota: cards that were New count against the new-card limit,
// cards that were in Review against the review limit. An empty userID
// counts every user.
func (db *DB) CountTodayActivity(ctx context.Context, deckID, userID string, dayStart time.Time) (selector.Quota, error) {
	var q selector.Quota
	err := db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN previous_state = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN previous_state = ? THEN 1 ELSE 0 END), 0)
		FROM review_logs
		WHERE deck_id = ? AND (? = '' OR user_id = ?) AND reviewed_at >= ?
	`, int(fsrs.New), int(fsrs.Review), deckID, userID, userID, dayStart.UnixMilli()).Scan(&q.NewCards, &q.Reviews)
	if err != nil {
		return selector.Quota{}, fmt.Errorf("count today activity: %w", err)
	}
	return q, nil
}

// ListReviewLogs returns one page of logs ordered by (reviewed_at, id).
func (db *DB) ListReviewLogs(ctx context.Context, q stats.LogQuery) ([]fsrs.ReviewLog, error) {
	query := "SELECT " + logColumns + " FROM review_logs WHERE reviewed_at >= ?"
	args := []any{q.From.UnixMilli()}

	if !q.To.IsZero() {
		query += " AND reviewed_at < ?"
		args = append(args, q.To.UnixMilli())
	}
	if q.DeckID != "" {
		query += " AND deck_id = ?"
		args = append(args, q.DeckID)
	}
	if q.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, q.UserID)
	}
	if q.After != nil {
		at := q.After.ReviewedAt.UnixMilli()
		query += " AND (reviewed_at > ? OR (reviewed_at = ? AND id > ?))"
		args = append(args, at, at, q.After.ID)
	}
	query += " ORDER BY reviewed_at, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return db.queryLogs(ctx, query, args...)
}

// ListCardLogs returns every log of one card, oldest first.
func (db *DB) ListCardLogs(ctx context.Context, cardID string) ([]fsrs.ReviewLog, error) {
	return db.queryLogs(ctx,
		"SELECT "+logColumns+" FROM review_logs WHERE card_id = ? ORDER BY reviewed_at, id", cardID)
}

func (db *DB) queryLogs(ctx context.Context, query string, args ...any) ([]fsrs.ReviewLog, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	defer rows.Close()

	var logs []fsrs.ReviewLog
	for rows.Next() {
		var l fsrs.ReviewLog
		var rating, prev, state int
		var due, reviewedAt, durationMs int64
		err := rows.Scan(&l.ID, &l.CardID, &l.DeckID, &l.UserID, &rating, &prev, &state,
			&l.ScheduledDays, &l.ElapsedDays, &l.Stability, &l.Difficulty, &due, &reviewedAt, &durationMs)
		if err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		l.Rating = fsrs.Rating(rating)
		l.PreviousState = fsrs.State(prev)
		l.State = fsrs.State(state)
		l.Due = time.UnixMilli(due).UTC()
		l.ReviewedAt = time.UnixMilli(reviewedAt).UTC()
		l.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
