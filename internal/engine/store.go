package engine

import (
	"context"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/selector"
	"github.com/lazypower/cadence/internal/stats"
	"github.com/lazypower/cadence/internal/store"
)

// CardStore reads and writes card scheduling state.
type CardStore interface {
	FetchCardsForDeck(ctx context.Context, deckID string, f store.CardFilter) ([]fsrs.Card, error)
	GetCard(ctx context.Context, id string) (*store.CardRecord, error)
	PersistCardUpdate(ctx context.Context, c fsrs.Card) error
	CountCardsByState(ctx context.Context, deckID string, now time.Time) (map[fsrs.State]int, error)
}

// LogStore writes graded reviews and reads review logs.
type LogStore interface {
	// PersistReview writes the card and its log atomically.
	PersistReview(ctx context.Context, c fsrs.Card, l fsrs.ReviewLog) error
	CountTodayActivity(ctx context.Context, deckID, userID string, dayStart time.Time) (selector.Quota, error)
	ListCardLogs(ctx context.Context, cardID string) ([]fsrs.ReviewLog, error)
	stats.LogSource
}

// ParameterStore reads a deck's scheduler parameters.
type ParameterStore interface {
	GetSchedulerParameters(ctx context.Context, deckID string) (fsrs.Parameters, error)
}

// Store is everything the engine needs from persistence. *store.DB
// implements it.
type Store interface {
	CardStore
	LogStore
	ParameterStore
}

var _ Store = (*store.DB)(nil)
