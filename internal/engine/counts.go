package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/store"
)

// DeckCounts is what a deck overview shows: how much is waiting and how
// much of today's quota is left.
type DeckCounts struct {
	New                int `json:"new_count"`
	NewStudiedToday    int `json:"new_studied_today"`
	DueLearning        int `json:"due_learning_count"`
	DueReview          int `json:"due_review_count"`
	ReviewsDoneToday   int `json:"review_studied_today"`
	AvailableNew       int `json:"available_new"`
	AvailableReview    int `json:"available_review"`
	DailyNewCardsLimit int `json:"daily_new_cards_limit"`
	DailyReviewLimit   int `json:"daily_review_limit"`
}

// DeckCounts computes the deck overview for userID as of now.
func (e *Engine) DeckCounts(ctx context.Context, deckID, userID string) (DeckCounts, error) {
	ctx, span := tracer().Start(ctx, spanDeckCounts)
	defer span.End()
	span.SetAttributes(attribute.String("deck.id", deckID))

	params, err := e.Parameters(ctx, deckID)
	if err != nil {
		return DeckCounts{}, err
	}
	now := e.now()
	byState, err := e.Store.CountCardsByState(ctx, deckID, now)
	if err != nil {
		return DeckCounts{}, err
	}
	used, err := e.Store.CountTodayActivity(ctx, deckID, userID, e.boundary.Start(now))
	if err != nil {
		return DeckCounts{}, fmt.Errorf("count today activity: %w", err)
	}

	dc := DeckCounts{
		New:                byState[fsrs.New],
		NewStudiedToday:    used.NewCards,
		DueLearning:        byState[fsrs.Learning] + byState[fsrs.Relearning],
		DueReview:          byState[fsrs.Review],
		ReviewsDoneToday:   used.Reviews,
		DailyNewCardsLimit: params.DailyNewCardsLimit,
		DailyReviewLimit:   params.DailyReviewLimit,
	}
	dc.AvailableNew = clampAvailable(dc.New, params.DailyNewCardsLimit-used.NewCards)
	if !params.EnableFSRS {
		dc.AvailableNew = dc.New
	}
	dc.AvailableReview = clampAvailable(dc.DueReview, params.DailyReviewLimit-used.Reviews)
	return dc, nil
}

func clampAvailable(have, room int) int {
	return max(0, min(have, room))
}

// DeckLister is the store read StartDueGauge needs.
type DeckLister interface {
	ListDecks(ctx context.Context) ([]store.Deck, error)
}

// StartDueGauge publishes every deck's due counts now and then on each
// tick until Stop is called.
func (e *Engine) StartDueGauge(decks DeckLister, interval time.Duration) {
	e.refreshDueGauge(decks)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.refreshDueGauge(decks)
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) refreshDueGauge(decks DeckLister) {
	if !e.metrics.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := decks.ListDecks(ctx)
	if err != nil {
		e.log.Warn("due gauge: list decks", "error", err)
		return
	}
	for _, d := range list {
		dc, err := e.DeckCounts(ctx, d.ID, "")
		if err != nil {
			e.log.Warn("due gauge: deck counts", "deck_id", d.ID, "error", err)
			continue
		}
		e.metrics.SetCardsDue(d.ID, fsrs.New.String(), dc.AvailableNew)
		e.metrics.SetCardsDue(d.ID, fsrs.Learning.String(), dc.DueLearning)
		e.metrics.SetCardsDue(d.ID, fsrs.Review.String(), dc.DueReview)
	}
	e.log.Debug("due gauge refreshed", slog.Int("decks", len(list)))
}
