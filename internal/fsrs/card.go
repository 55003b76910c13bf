package fsrs

import (
	"fmt"
	"math"
	"time"
)

// Card is the scheduling state persisted for every flashcard.
type Card struct {
	ID            string     `json:"id"`
	DeckID        string     `json:"deck_id"`
	State         State      `json:"state"`
	Stability     float64    `json:"stability"`  // 0 until first graded.
	Difficulty    float64    `json:"difficulty"` // 0 until first graded.
	ElapsedDays   float64    `json:"elapsed_days"`
	ScheduledDays float64    `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review,omitempty"` // nil before first review.
}

// NewCard returns a card in the New state, due immediately.
func NewCard(id, deckID string, now time.Time) Card {
	return Card{
		ID:     id,
		DeckID: deckID,
		State:  New,
		Due:    now,
	}
}

// clone returns a deep copy of the card.
func (c Card) clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

// validate rejects malformed cards before any field is touched.
func (c Card) validate(now time.Time) error {
	if c.ID == "" {
		return fmt.Errorf("%w: card id is empty", ErrInvalidInput)
	}
	if !c.State.IsValid() {
		return fmt.Errorf("%w: card %s has state %d", ErrInvalidInput, c.ID, int(c.State))
	}
	if c.Reps < 0 || c.Lapses < 0 {
		return fmt.Errorf("%w: card %s has negative counters", ErrInvalidInput, c.ID)
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"stability", c.Stability},
		{"difficulty", c.Difficulty},
		{"elapsed_days", c.ElapsedDays},
		{"scheduled_days", c.ScheduledDays},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: card %s has %s = %v", ErrInvalidInput, c.ID, f.name, f.v)
		}
	}
	if c.State != New {
		if c.LastReview == nil {
			return fmt.Errorf("%w: card %s is %s but was never reviewed", ErrInvalidInput, c.ID, c.State)
		}
		if c.Due.IsZero() {
			return fmt.Errorf("%w: card %s has no due time", ErrInvalidInput, c.ID)
		}
	}
	if c.LastReview != nil && now.Before(*c.LastReview) {
		return fmt.Errorf("%w: card %s reviewed at %s, before its last review %s",
			ErrInvalidInput, c.ID, now.Format(time.RFC3339), c.LastReview.Format(time.RFC3339))
	}
	return nil
}

// IsDue reports whether the card may be shown at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}

// daysBetween returns the fractional number of days from a to b.
func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24.0
}

// daysToDuration converts fractional days back to a duration.
func daysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days * float64(24*time.Hour)))
}

// stepDays converts a learning step to fractional days.
func stepDays(d time.Duration) float64 {
	return d.Hours() / 24.0
}
