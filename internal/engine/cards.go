package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lazypower/cadence/internal/fsrs"
)

// Preview shows what each rating would do to a card right now, without
// writing anything.
func (e *Engine) Preview(ctx context.Context, cardID string) (map[fsrs.Rating]fsrs.Result, error) {
	ctx, span := tracer().Start(ctx, spanPreview)
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	card, params, err := e.loadCard(ctx, cardID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return fsrs.Preview(card, params, e.now())
}

// Retrievability is the card's current probability of recall.
func (e *Engine) Retrievability(ctx context.Context, cardID string) (float64, error) {
	card, params, err := e.loadCard(ctx, cardID)
	if err != nil {
		return 0, err
	}
	return fsrs.CardRetrievability(card, params, e.now()), nil
}

// Forget sends a card back to New. With reset the card also loses its
// rep and lapse counts, as if it had just been created. Review logs are
// kept either way.
func (e *Engine) Forget(ctx context.Context, cardID string, reset bool) (fsrs.Card, error) {
	ctx, span := tracer().Start(ctx, spanForget)
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID), attribute.Bool("reset", reset))

	card, _, err := e.loadCard(ctx, cardID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, err
	}

	now := e.now()
	var next fsrs.Card
	if reset {
		next = fsrs.Reset(card, now)
	} else {
		next = fsrs.Forget(card, now)
	}
	if err := e.Store.PersistCardUpdate(ctx, next); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, fmt.Errorf("persist forgotten card: %w", err)
	}
	e.log.InfoContext(ctx, "card forgotten", "card_id", cardID, "deck_id", card.DeckID, "reset", reset)
	return next, nil
}

// Reschedule rebuilds a card's state from its review logs under the deck's
// current parameters and persists it.
func (e *Engine) Reschedule(ctx context.Context, cardID string) (fsrs.Card, error) {
	ctx, span := tracer().Start(ctx, spanReschedule)
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	card, params, err := e.loadCard(ctx, cardID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, err
	}
	logs, err := e.Store.ListCardLogs(ctx, cardID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, fmt.Errorf("list card logs: %w", err)
	}
	if len(logs) == 0 {
		return card, nil
	}

	next, err := fsrs.Reschedule(card, logs, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, err
	}
	if err := e.Store.PersistCardUpdate(ctx, next); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fsrs.Card{}, fmt.Errorf("persist rescheduled card: %w", err)
	}
	return next, nil
}

func (e *Engine) loadCard(ctx context.Context, cardID string) (fsrs.Card, fsrs.Parameters, error) {
	rec, err := e.Store.GetCard(ctx, cardID)
	if err != nil {
		return fsrs.Card{}, fsrs.Parameters{}, fmt.Errorf("get card: %w", err)
	}
	if rec == nil {
		return fsrs.Card{}, fsrs.Parameters{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	params, err := e.Parameters(ctx, rec.DeckID)
	if err != nil {
		return fsrs.Card{}, fsrs.Parameters{}, err
	}
	return rec.Card, params, nil
}
