package selector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/fsrs"
)

var now = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

func card(id string, state fsrs.State, due time.Time) fsrs.Card {
	c := fsrs.NewCard(id, "deck", due)
	c.State = state
	if state != fsrs.New {
		lr := due.Add(-time.Hour)
		c.LastReview = &lr
		c.Stability = 3
		c.Difficulty = 5
	}
	return c
}

func ids(cards []fsrs.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestSelectDueGroups(t *testing.T) {
	cards := []fsrs.Card{
		card("review-late", fsrs.Review, now.Add(-time.Hour)),
		card("review-future", fsrs.Review, now.Add(time.Hour)),
		card("review-early", fsrs.Review, now.Add(-48*time.Hour)),
		card("learning-due", fsrs.Learning, now.Add(-time.Minute)),
		card("learning-future", fsrs.Learning, now.Add(time.Minute)),
		card("relearning-due", fsrs.Relearning, now.Add(-2*time.Minute)),
		card("new-b", fsrs.New, now.Add(-time.Hour)),
		card("new-a", fsrs.New, now.Add(-time.Hour)),
	}

	got := SelectDue(cards, fsrs.DefaultParameters(), Quota{}, now)
	assert.Equal(t, []string{"new-a", "new-b"}, ids(got.New))
	assert.Equal(t, []string{"relearning-due", "learning-due"}, ids(got.Learning))
	assert.Equal(t, []string{"review-early", "review-late"}, ids(got.Review))
	assert.Equal(t, 6, got.Len())
}

func TestSelectDueQuota(t *testing.T) {
	var cards []fsrs.Card
	for i := 0; i < 5; i++ {
		cards = append(cards, card(fmt.Sprintf("new-%d", i), fsrs.New, now))
		cards = append(cards, card(fmt.Sprintf("review-%d", i), fsrs.Review, now.Add(-time.Duration(i)*time.Hour)))
	}
	cards = append(cards, card("learning", fsrs.Learning, now))

	p := fsrs.DefaultParameters()
	p.DailyNewCardsLimit = 3
	p.DailyReviewLimit = 4

	t.Run("new quota used up", func(t *testing.T) {
		got := SelectDue(cards, p, Quota{NewCards: 3}, now)
		assert.Empty(t, got.New)
		assert.Len(t, got.Review, 4)
		assert.Len(t, got.Learning, 1)
	})

	t.Run("over quota is not an error", func(t *testing.T) {
		got := SelectDue(cards, p, Quota{NewCards: 10, Reviews: 10}, now)
		assert.Empty(t, got.New)
		assert.Empty(t, got.Review)
		assert.Len(t, got.Learning, 1, "learning ignores quotas")
	})

	t.Run("truncated to remaining room", func(t *testing.T) {
		got := SelectDue(cards, p, Quota{NewCards: 1, Reviews: 2}, now)
		assert.Len(t, got.New, 2)
		require.Len(t, got.Review, 2)
		assert.Equal(t, []string{"review-4", "review-3"}, ids(got.Review), "most overdue first")
	})

	t.Run("fsrs disabled ignores new quota", func(t *testing.T) {
		p := p
		p.EnableFSRS = false
		got := SelectDue(cards, p, Quota{NewCards: 3}, now)
		assert.Len(t, got.New, 5)
	})
}

func TestDayBoundary(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	cases := []struct {
		name  string
		b     DayBoundary
		now   time.Time
		start time.Time
	}{
		{"utc midnight", UTCMidnight, now, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"zero value is utc", DayBoundary{}, now, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"before start hour", DayBoundary{Location: time.UTC, StartHour: 4}, time.Date(2026, 5, 2, 2, 0, 0, 0, time.UTC), time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)},
		{"after start hour", DayBoundary{Location: time.UTC, StartHour: 4}, now, time.Date(2026, 5, 2, 4, 0, 0, 0, time.UTC)},
		// 20:00 UTC is 05:00 the next day in Tokyo.
		{"user timezone", DayBoundary{Location: tokyo}, time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC), time.Date(2026, 5, 3, 0, 0, 0, 0, tokyo)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.b.Start(tc.now)
			assert.True(t, tc.start.Equal(got), "Start = %v, want %v", got, tc.start)
			assert.True(t, tc.b.End(tc.now).Equal(tc.start.Add(24*time.Hour)))
		})
	}

	assert.Equal(t, "2026-05-03", DayBoundary{Location: tokyo}.Day(time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC)))
}
