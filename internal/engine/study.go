package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/selector"
	"github.com/lazypower/cadence/internal/session"
	"github.com/lazypower/cadence/internal/store"
)

// Study is a started study session: the queue plus what it was built from.
// Like session.Session it is owned by one caller at a time.
type Study struct {
	ID        string           `json:"id"`
	DeckID    string           `json:"deck_id"`
	UserID    string           `json:"user_id"`
	StartedAt time.Time        `json:"started_at"`
	Params    fsrs.Parameters  `json:"-"`
	Quota     selector.Quota   `json:"quota"`
	Queue     *session.Session `json:"-"`

	shownAt time.Time
}

// StartSession selects the deck's due cards under today's quota and mixes
// them into a new session. The deck's parameters are copied into the
// session and never re-read.
func (e *Engine) StartSession(ctx context.Context, deckID, userID string) (*Study, error) {
	ctx, span := tracer().Start(ctx, spanStartSession)
	defer span.End()
	span.SetAttributes(attribute.String("deck.id", deckID))

	params, err := e.Parameters(ctx, deckID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := e.now()
	cards, err := e.Store.FetchCardsForDeck(ctx, deckID, store.CardFilter{})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch cards: %w", err)
	}
	used, err := e.Store.CountTodayActivity(ctx, deckID, userID, e.boundary.Start(now))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("count today activity: %w", err)
	}

	cand := selector.SelectDue(cards, params, used, now)
	st := &Study{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		UserID:    userID,
		StartedAt: now,
		Params:    params,
		Quota:     used,
		Queue:     session.Build(cand.New, cand.Learning, cand.Review, session.Options{Rand: e.newRand()}),
		shownAt:   now,
	}

	span.SetAttributes(
		attribute.Int("candidates.new", len(cand.New)),
		attribute.Int("candidates.learning", len(cand.Learning)),
		attribute.Int("candidates.review", len(cand.Review)),
	)
	e.metrics.SessionStarted()
	e.log.InfoContext(ctx, "session started",
		"session_id", st.ID, "deck_id", deckID,
		"new", len(cand.New), "learning", len(cand.Learning), "review", len(cand.Review))
	return st, nil
}

// Next returns the session's current card and starts its review timer.
func (e *Engine) Next(st *Study) (fsrs.Card, bool) {
	c, ok := st.Queue.Next()
	if ok {
		st.shownAt = e.now()
	}
	return c, ok
}

// Grade grades the session's current card, writes the new card state and
// its review log, and only then advances the session.
//
// cardID must be the card Next returned. If the write fails the session
// does not move and the error is a *PersistenceError carrying the computed
// result; pass it to RetryPersist instead of grading again.
func (e *Engine) Grade(ctx context.Context, st *Study, cardID string, rating fsrs.Rating) (fsrs.Result, error) {
	ctx, span := tracer().Start(ctx, spanGrade)
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", st.ID),
		attribute.String("card.id", cardID),
		attribute.String("rating", rating.String()),
	)

	current, ok := st.Queue.Next()
	if !ok || current.ID != cardID {
		err := fmt.Errorf("%w: %s", session.ErrOutOfTurn, cardID)
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Result{}, err
	}

	now := e.now()
	res, err := fsrs.ApplyReview(current, rating, st.Params, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Result{}, err
	}
	res.Log.UserID = st.UserID
	res.Log.Duration = max(0, now.Sub(st.shownAt))

	if err := e.persist(ctx, res); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	if err := st.Queue.Advance(current, res.Card); err != nil {
		return res, err
	}
	st.shownAt = now

	e.metrics.RecordReview(rating.String(), res.Card.State.String())
	e.log.InfoContext(ctx, "card graded",
		"session_id", st.ID, "deck_id", st.DeckID, "card_id", cardID,
		"rating", rating.String(), "from", res.Log.PreviousState.String(), "to", res.Card.State.String(),
		"scheduled_days", res.Card.ScheduledDays)
	return res, nil
}

// RetryPersist writes a result that failed to persist. When st is not nil
// and the result's card is still current, the session advances too.
func (e *Engine) RetryPersist(ctx context.Context, st *Study, res fsrs.Result) error {
	if err := e.persist(ctx, res); err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	current, ok := st.Queue.Next()
	if !ok || current.ID != res.Card.ID {
		return nil
	}
	if err := st.Queue.Advance(current, res.Card); err != nil {
		return err
	}
	st.shownAt = e.now()
	e.metrics.RecordReview(res.Log.Rating.String(), res.Card.State.String())
	return nil
}

// persist writes the card and its log together. A failed write leaves
// neither behind, so a card never leaves New without the log that counts
// it against today's quota. The write is idempotent and safe to retry.
func (e *Engine) persist(ctx context.Context, res fsrs.Result) error {
	ctx, span := tracer().Start(ctx, spanPersist)
	defer span.End()

	if err := e.Store.PersistReview(ctx, res.Card, res.Log); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return e.persistFailed(ctx, OpPersistReview, res, err)
	}
	return nil
}

func (e *Engine) persistFailed(ctx context.Context, op string, res fsrs.Result, err error) error {
	e.metrics.RecordPersistenceError(op)
	e.log.ErrorContext(ctx, "persist review failed", "op", op, "card_id", res.Card.ID, "error", err)
	if errors.Is(err, store.ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrCardNotFound, err)
	}
	return &PersistenceError{Op: op, Result: res, Err: err}
}
