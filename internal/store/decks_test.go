package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/fsrs"
)

func TestCreateAndGetDeck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := fsrs.DefaultParameters()
	p.DailyNewCardsLimit = 5
	p.LearningSteps = []time.Duration{30 * time.Second}

	d, err := db.CreateDeck(ctx, "spanish", p)
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)

	got, err := db.GetDeck(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "spanish", got.Name)
	assert.Equal(t, 5, got.Parameters.DailyNewCardsLimit)
	assert.Equal(t, []time.Duration{30 * time.Second}, got.Parameters.LearningSteps)
	assert.Equal(t, fsrs.DefaultWeights, got.Parameters.Weights)
}

func TestCreateDeckRejectsInvalidParameters(t *testing.T) {
	db := openTestDB(t)

	p := fsrs.DefaultParameters()
	p.RequestRetention = 1.5
	_, err := db.CreateDeck(context.Background(), "bad", p)
	assert.ErrorIs(t, err, fsrs.ErrInvalidParameters)
}

func TestGetDeckNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d, err := db.GetDeck(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = db.GetSchedulerParameters(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDeckParameters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d, err := db.CreateDeck(ctx, "kanji", fsrs.DefaultParameters())
	require.NoError(t, err)

	p := fsrs.DefaultParameters()
	p.RequestRetention = 0.85
	p.EnableFSRS = false
	require.NoError(t, db.UpdateDeckParameters(ctx, d.ID, p))

	got, err := db.GetSchedulerParameters(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.85, got.RequestRetention)
	assert.False(t, got.EnableFSRS)

	assert.ErrorIs(t, db.UpdateDeckParameters(ctx, "missing", p), ErrNotFound)
}

func TestListAndDeleteDecks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	b, err := db.CreateDeck(ctx, "b", fsrs.DefaultParameters())
	require.NoError(t, err)
	_, err = db.CreateDeck(ctx, "a", fsrs.DefaultParameters())
	require.NoError(t, err)
	_, err = db.CreateCard(ctx, b.ID, "front", "back", testNow)
	require.NoError(t, err)

	decks, err := db.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, "a", decks[0].Name)

	require.NoError(t, db.DeleteDeck(ctx, b.ID))
	cards, err := db.ListCards(ctx, b.ID, CardFilter{})
	require.NoError(t, err)
	assert.Empty(t, cards, "cards go with their deck")

	assert.ErrorIs(t, db.DeleteDeck(ctx, b.ID), ErrNotFound)
}
