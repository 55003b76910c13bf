// Package stats computes read-only rollups over review-log history.
package stats

import (
	"context"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
)

// DefaultPageSize is how many logs the Aggregator asks for per page.
const DefaultPageSize = 500

// Cursor marks the last log of a page. Logs are ordered by
// (ReviewedAt, ID), so the pair is a stable keyset position.
type Cursor struct {
	ReviewedAt time.Time
	ID         string
}

// LogQuery selects a range of review logs. Empty DeckID or UserID match
// everything. The range is [From, To); a zero To means no upper bound.
type LogQuery struct {
	DeckID string
	UserID string
	From   time.Time
	To     time.Time
	After  *Cursor
	Limit  int
}

// LogSource is the paged review-log read the Aggregator needs.
type LogSource interface {
	ListReviewLogs(ctx context.Context, q LogQuery) ([]fsrs.ReviewLog, error)
}

// Filter narrows the logs an aggregate is computed over.
type Filter struct {
	DeckID string    `json:"deck_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// Year returns a filter covering the calendar year in loc.
func Year(year int, loc *time.Location) Filter {
	if loc == nil {
		loc = time.UTC
	}
	return Filter{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		To:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc),
	}
}
