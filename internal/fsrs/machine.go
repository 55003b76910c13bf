package fsrs

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Result is the outcome of grading one card: the card's new scheduling
// state and the log entry describing the grading.
type Result struct {
	Card Card      `json:"card"`
	Log  ReviewLog `json:"log"`
}

// ApplyReview grades card at now and returns its next state.
//
// Transitions:
//
//	New        Again/Hard/Good -> Learning, Easy -> Review (GraduateOnEasy)
//	Learning   Again -> Learning, Hard/Good/Easy -> Review
//	Relearning Again -> Relearning, Hard/Good/Easy -> Review
//	Review     Again -> Relearning (lapse), Hard/Good/Easy -> Review
//
// The input card is not modified. On error nothing is returned but the error.
func ApplyReview(card Card, rating Rating, p Parameters, now time.Time) (Result, error) {
	if !rating.IsValid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if err := card.validate(now); err != nil {
		return Result{}, err
	}

	c := card.clone()
	prev := c.State

	var elapsed float64
	if c.LastReview != nil {
		elapsed = daysBetween(*c.LastReview, now)
	}

	if p.EnableFSRS {
		updateMemory(&c, rating, elapsed, p)
	}

	interval := transition(&c, rating, p, card.ScheduledDays)

	if !p.EnableFSRS {
		// Without the model, stability just tracks the chosen interval.
		c.Stability = clampStability(interval, p.MaximumStability)
		c.Difficulty = clampDifficulty(c.Difficulty)
	}

	c.ScheduledDays = interval
	c.ElapsedDays = elapsed
	c.Reps++
	reviewed := now
	c.LastReview = &reviewed
	c.Due = now.Add(daysToDuration(interval))

	log := ReviewLog{
		ID:            logID(c.ID, c.Reps, now),
		CardID:        c.ID,
		DeckID:        c.DeckID,
		Rating:        rating,
		PreviousState: prev,
		State:         c.State,
		ScheduledDays: c.ScheduledDays,
		ElapsedDays:   c.ElapsedDays,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		Due:           c.Due,
		ReviewedAt:    now,
	}
	return Result{Card: c, Log: log}, nil
}

// Preview grades a copy of card with every rating.
func Preview(card Card, p Parameters, now time.Time) (map[Rating]Result, error) {
	out := make(map[Rating]Result, len(Ratings))
	for _, r := range Ratings {
		res, err := ApplyReview(card, r, p, now)
		if err != nil {
			return nil, err
		}
		out[r] = res
	}
	return out, nil
}

// Forget sends a card back to New, keeping its review history counters.
func Forget(card Card, now time.Time) Card {
	c := card.clone()
	c.State = New
	c.Stability = 0
	c.Difficulty = 0
	c.ElapsedDays = 0
	c.ScheduledDays = 0
	c.Due = now
	return c
}

// Reset returns a card as if it had just been created.
func Reset(card Card, now time.Time) Card {
	return NewCard(card.ID, card.DeckID, now)
}

// Reschedule rebuilds a card's state by replaying its logs, oldest first,
// against p. Use it after a deck's parameters change.
func Reschedule(card Card, logs []ReviewLog, p Parameters) (Card, error) {
	ordered := slices.Clone(logs)
	slices.SortStableFunc(ordered, func(a, b ReviewLog) int {
		return a.ReviewedAt.Compare(b.ReviewedAt)
	})

	start := card.Due
	if len(ordered) > 0 {
		start = ordered[0].ReviewedAt
	}
	c := Reset(card, start)
	for _, l := range ordered {
		if l.CardID != c.ID {
			return Card{}, fmt.Errorf("%w: log %s belongs to card %s, not %s", ErrInvalidInput, l.ID, l.CardID, c.ID)
		}
		res, err := ApplyReview(c, l.Rating, p, l.ReviewedAt)
		if err != nil {
			return Card{}, fmt.Errorf("replay log %s: %w", l.ID, err)
		}
		c = res.Card
	}
	return c, nil
}

// CardRetrievability is the card's current probability of recall.
func CardRetrievability(card Card, p Parameters, now time.Time) float64 {
	if card.LastReview == nil || card.Stability <= 0 {
		return 0
	}
	return Retrievability(card.Stability, math.Max(0, daysBetween(*card.LastReview, now)), p.RequestRetention)
}

// updateMemory computes the new stability and difficulty.
func updateMemory(c *Card, rating Rating, elapsed float64, p Parameters) {
	if c.Stability <= 0 {
		c.Stability = InitialStability(rating, p)
		c.Difficulty = InitialDifficulty(rating, p.Weights)
		return
	}
	r := Retrievability(c.Stability, elapsed, p.RequestRetention)
	oldD := clampDifficulty(c.Difficulty)
	c.Stability = NextStability(c.Stability, oldD, r, rating, p)
	c.Difficulty = NextDifficulty(oldD, rating, p.Weights)
}

// transition moves c to its next state and returns the interval in days.
func transition(c *Card, rating Rating, p Parameters, prevInterval float64) float64 {
	switch c.State {
	case New:
		return transitionNew(c, rating, p, prevInterval)
	case Learning, Relearning:
		if rating == Again {
			if c.State == Learning {
				return firstStep(p.LearningSteps)
			}
			return firstStep(p.RelearningSteps)
		}
		c.State = Review
		return reviewInterval(c, rating, p, prevInterval)
	default:
		if rating == Again {
			c.State = Relearning
			c.Lapses++
			return firstStep(p.RelearningSteps)
		}
		return reviewInterval(c, rating, p, prevInterval)
	}
}

func transitionNew(c *Card, rating Rating, p Parameters, prevInterval float64) float64 {
	steps := p.LearningSteps
	graduate := (rating == Easy && p.GraduateOnEasy) || (len(steps) == 0 && rating != Again)
	if graduate {
		c.State = Review
		return reviewInterval(c, rating, p, prevInterval)
	}

	c.State = Learning
	if len(steps) == 0 {
		return 0
	}
	switch rating {
	case Again:
		return stepDays(steps[0])
	case Hard:
		if len(steps) == 1 {
			return stepDays(steps[0]) * 1.5
		}
		return stepDays((steps[0] + steps[1]) / 2)
	case Good:
		if len(steps) == 1 {
			return stepDays(steps[0])
		}
		return stepDays(steps[1])
	default:
		return stepDays(steps[len(steps)-1])
	}
}

// reviewInterval picks the interval for a card that is (or stays) in Review.
func reviewInterval(c *Card, rating Rating, p Parameters, prevInterval float64) float64 {
	if p.EnableFSRS {
		return ScheduledInterval(c.Stability, rating, p)
	}
	return fixedInterval(prevInterval, rating, p)
}

// fixedInterval grows the previous interval by a constant factor per
// rating. Used when a deck has memory modelling turned off.
func fixedInterval(prev float64, rating Rating, p Parameters) float64 {
	base := math.Max(prev, 1)
	maxIvl := math.Max(1, math.Floor(p.MaximumStability))
	good := math.Max(1, math.Round(base*2.5))
	var ivl float64
	switch rating {
	case Hard:
		ivl = math.Max(1, math.Round(base*1.2))
	case Easy:
		ivl = math.Max(good+1, math.Round(base*2.5*p.EasyBonus))
	default:
		ivl = good
	}
	return math.Min(ivl, maxIvl)
}

func firstStep(steps []time.Duration) float64 {
	if len(steps) == 0 {
		return 0
	}
	return stepDays(steps[0])
}
