package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/metrics"
	"github.com/lazypower/cadence/internal/selector"
	"github.com/lazypower/cadence/internal/session"
	"github.com/lazypower/cadence/internal/store"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// flakyStore wraps a real store. failCard and failLog corrupt the next
// review's card or log row so the real write fails inside its transaction.
type flakyStore struct {
	*store.DB
	failCard   bool
	failLog    bool
	paramReads int
}

func (f *flakyStore) PersistReview(ctx context.Context, c fsrs.Card, l fsrs.ReviewLog) error {
	if f.failCard {
		f.failCard = false
		c.State = fsrs.State(9)
	}
	if f.failLog {
		f.failLog = false
		l.Rating = fsrs.Rating(0)
	}
	return f.DB.PersistReview(ctx, c, l)
}

func (f *flakyStore) GetSchedulerParameters(ctx context.Context, deckID string) (fsrs.Parameters, error) {
	f.paramReads++
	return f.DB.GetSchedulerParameters(ctx, deckID)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	eng   *Engine
	store *flakyStore
	clock *clock
	deck  *store.Deck
	cards []string
}

func newFixture(t *testing.T, params fsrs.Parameters, nCards int) *fixture {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	deck, err := db.CreateDeck(ctx, "spanish", params)
	require.NoError(t, err)

	var ids []string
	for range nCards {
		c, err := db.CreateCard(ctx, deck.ID, "front", "back", t0)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	fs := &flakyStore{DB: db}
	clk := &clock{now: t0}
	eng, err := New(fs, Options{
		Metrics:     metrics.NewManager(metrics.DefaultConfig()),
		DayBoundary: selector.UTCMidnight,
		Now:         clk.Now,
		NewRand:     func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	require.NoError(t, err)
	t.Cleanup(eng.Stop)

	return &fixture{eng: eng, store: fs, clock: clk, deck: deck, cards: ids}
}

func (f *fixture) card(t *testing.T, id string) fsrs.Card {
	t.Helper()
	rec, err := f.store.GetCard(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.Card
}

func TestGradeWritesThrough(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 3)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Queue.Stats().Total)

	first, ok := f.eng.Next(st)
	require.True(t, ok)

	f.clock.Advance(8 * time.Second)
	res, err := f.eng.Grade(ctx, st, first.ID, fsrs.Good)
	require.NoError(t, err)
	assert.Equal(t, fsrs.Learning, res.Card.State)
	assert.Equal(t, "u1", res.Log.UserID)
	assert.Equal(t, 8*time.Second, res.Log.Duration)

	stored := f.card(t, first.ID)
	assert.Equal(t, fsrs.Learning, stored.State)
	assert.True(t, stored.Due.Equal(res.Card.Due))

	logs, err := f.store.ListCardLogs(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, res.Log.ID, logs[0].ID)
	assert.Equal(t, fsrs.New, logs[0].PreviousState)

	next, ok := f.eng.Next(st)
	require.True(t, ok)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestGradeOutOfTurn(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 2)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	cur, _ := f.eng.Next(st)

	other := f.cards[0]
	if other == cur.ID {
		other = f.cards[1]
	}
	_, err = f.eng.Grade(ctx, st, other, fsrs.Good)
	assert.ErrorIs(t, err, session.ErrOutOfTurn)
	assert.Equal(t, fsrs.New, f.card(t, other).State)
}

func TestGradeInvalidRating(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 1)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	cur, _ := f.eng.Next(st)

	_, err = f.eng.Grade(ctx, st, cur.ID, fsrs.Rating(0))
	assert.ErrorIs(t, err, fsrs.ErrInvalidInput)

	again, ok := f.eng.Next(st)
	require.True(t, ok)
	assert.Equal(t, cur.ID, again.ID)
}

func TestPersistenceErrorLeavesSessionInPlace(t *testing.T) {
	for _, row := range []string{"card", "log"} {
		t.Run(row, func(t *testing.T) {
			f := newFixture(t, fsrs.DefaultParameters(), 3)
			ctx := context.Background()

			st, err := f.eng.StartSession(ctx, f.deck.ID, "")
			require.NoError(t, err)
			cur, _ := f.eng.Next(st)

			if row == "card" {
				f.store.failCard = true
			} else {
				f.store.failLog = true
			}

			_, err = f.eng.Grade(ctx, st, cur.ID, fsrs.Good)
			var pe *PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, OpPersistReview, pe.Op)
			assert.Equal(t, fsrs.Learning, pe.Result.Card.State)

			// Nothing was written.
			assert.Equal(t, fsrs.New, f.card(t, cur.ID).State)
			logs, err := f.store.ListCardLogs(ctx, cur.ID)
			require.NoError(t, err)
			assert.Empty(t, logs)

			still, ok := f.eng.Next(st)
			require.True(t, ok)
			assert.Equal(t, cur.ID, still.ID)
			assert.Equal(t, 0, st.Queue.Stats().Completed)

			require.NoError(t, f.eng.RetryPersist(ctx, st, pe.Result))
			assert.Equal(t, fsrs.Learning, f.card(t, cur.ID).State)
			assert.Equal(t, 1, st.Queue.Stats().Completed)

			logs, err = f.store.ListCardLogs(ctx, cur.ID)
			require.NoError(t, err)
			assert.Len(t, logs, 1)

			next, ok := f.eng.Next(st)
			require.True(t, ok)
			assert.NotEqual(t, cur.ID, next.ID)
		})
	}
}

func TestAbandonedFailedGradeKeepsNewQuota(t *testing.T) {
	p := fsrs.DefaultParameters()
	p.DailyNewCardsLimit = 1
	f := newFixture(t, p, 3)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	cur, _ := f.eng.Next(st)
	f.store.failLog = true
	_, err = f.eng.Grade(ctx, st, cur.ID, fsrs.Good)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)

	// The first session is dropped without a retry.
	f.clock.Advance(time.Minute)
	st, err = f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.Equal(t, selector.Quota{}, st.Quota)
	assert.Equal(t, 1, st.Queue.Stats().Total)

	c, ok := f.eng.Next(st)
	require.True(t, ok)
	_, err = f.eng.Grade(ctx, st, c.ID, fsrs.Good)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	st, err = f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.Equal(t, selector.Quota{NewCards: 1}, st.Quota)

	introduced := 0
	for _, id := range f.cards {
		if f.card(t, id).State != fsrs.New {
			introduced++
		}
	}
	assert.Equal(t, 1, introduced, "new cards introduced today")
}

func TestPersistenceErrorMissingCard(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 1)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	cur, _ := f.eng.Next(st)
	require.NoError(t, f.store.DeleteCard(ctx, cur.ID))

	_, err = f.eng.Grade(ctx, st, cur.ID, fsrs.Good)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDailyQuotaAcrossSessions(t *testing.T) {
	p := fsrs.DefaultParameters()
	p.DailyNewCardsLimit = 2
	f := newFixture(t, p, 5)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Queue.Stats().Total)
	for {
		c, ok := f.eng.Next(st)
		if !ok {
			break
		}
		_, err := f.eng.Grade(ctx, st, c.ID, fsrs.Easy)
		require.NoError(t, err)
	}

	f.clock.Advance(time.Hour)
	st, err = f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.True(t, st.Queue.Done(), "new quota is spent for today")
	assert.Equal(t, selector.Quota{NewCards: 2}, st.Quota)

	f.clock.Advance(24 * time.Hour)
	st, err = f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Queue.Stats().Total)
	assert.Equal(t, selector.Quota{}, st.Quota)
}

func TestParameterCache(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 0)
	ctx := context.Background()

	p, err := f.eng.Parameters(ctx, f.deck.ID)
	require.NoError(t, err)
	p.Weights[0] = 42
	p.LearningSteps[0] = time.Hour

	p2, err := f.eng.Parameters(ctx, f.deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.paramReads)
	assert.Equal(t, 0.4, p2.Weights[0])
	assert.Equal(t, time.Minute, p2.LearningSteps[0])

	f.clock.Advance(2 * defaultParamCacheTTL)
	_, err = f.eng.Parameters(ctx, f.deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.paramReads)

	f.eng.InvalidateParameters(f.deck.ID)
	_, err = f.eng.Parameters(ctx, f.deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.paramReads)
}

func TestSessionKeepsParametersFromStart(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 2)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)

	edited := fsrs.DefaultParameters()
	edited.LearningSteps = []time.Duration{time.Hour}
	require.NoError(t, f.store.UpdateDeckParameters(ctx, f.deck.ID, edited))
	f.eng.InvalidateParameters(f.deck.ID)

	cur, _ := f.eng.Next(st)
	res, err := f.eng.Grade(ctx, st, cur.ID, fsrs.Again)
	require.NoError(t, err)
	assert.True(t, res.Card.Due.Equal(t0.Add(time.Minute)))
}

func TestPreviewForgetReschedule(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 1)
	ctx := context.Background()
	id := f.cards[0]

	_, err := f.eng.Preview(ctx, "missing")
	assert.ErrorIs(t, err, ErrCardNotFound)

	preview, err := f.eng.Preview(ctx, id)
	require.NoError(t, err)
	require.Len(t, preview, 4)
	assert.Equal(t, fsrs.Review, preview[fsrs.Easy].Card.State)
	assert.Equal(t, fsrs.New, f.card(t, id).State, "preview writes nothing")

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	graded, err := f.eng.Grade(ctx, st, id, fsrs.Good)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	forgotten, err := f.eng.Forget(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, fsrs.New, forgotten.State)
	assert.Equal(t, 1, forgotten.Reps)
	assert.Equal(t, fsrs.New, f.card(t, id).State)

	rebuilt, err := f.eng.Reschedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, graded.Card.State, rebuilt.State)
	assert.InDelta(t, graded.Card.Stability, rebuilt.Stability, 1e-9)
	assert.True(t, rebuilt.Due.Equal(graded.Card.Due))

	reset, err := f.eng.Forget(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.Reps)
	logs, err := f.store.ListCardLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "logs survive a reset")
}

func TestDeckCounts(t *testing.T) {
	p := fsrs.DefaultParameters()
	p.DailyNewCardsLimit = 3
	f := newFixture(t, p, 5)
	ctx := context.Background()

	st, err := f.eng.StartSession(ctx, f.deck.ID, "")
	require.NoError(t, err)
	cur, _ := f.eng.Next(st)
	_, err = f.eng.Grade(ctx, st, cur.ID, fsrs.Again)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	dc, err := f.eng.DeckCounts(ctx, f.deck.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4, dc.New)
	assert.Equal(t, 1, dc.NewStudiedToday)
	assert.Equal(t, 1, dc.DueLearning)
	assert.Equal(t, 0, dc.DueReview)
	assert.Equal(t, 2, dc.AvailableNew)
	assert.Equal(t, 0, dc.AvailableReview)
	assert.Equal(t, 3, dc.DailyNewCardsLimit)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t, fsrs.DefaultParameters(), 0)
	f.eng.StartDueGauge(f.store, time.Hour)
	f.eng.Stop()
	f.eng.Stop()
}
