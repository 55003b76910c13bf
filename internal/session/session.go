// Package session turns candidate cards into an ordered study queue.
//
// A Session is owned by one consumer and is not safe for concurrent use.
// Abandoning one needs no cleanup: every grading has already been
// persisted by the time Advance is called.
package session

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
)

// ErrOutOfTurn is returned by Advance when the graded card is not the one
// at the cursor, or the session has no card left.
var ErrOutOfTurn = errors.New("session: graded card is not the current card")

// Minimum number of other cards shown before a requeued card comes back.
const minRequeueGap = 4

// Options configure Build.
type Options struct {
	// Rand drives requeue placement. Nil seeds a fresh source from the clock.
	Rand *rand.Rand
}

// Session is the queue for one sitting.
type Session struct {
	queue     []fsrs.Card
	cursor    int
	completed []fsrs.Card
	rng       *rand.Rand
}

// Build mixes new cards into the due learning and review cards.
//
// Learning and review cards are merged by due time, learning first on ties.
// New cards go at every interval-th slot where
// interval = ceil(total / (len(newCards)+1)), so they are spread out rather
// than clustered. With any filler at all the interval is at least 2, so two
// new cards only meet once the filler runs out. The leftovers go at the end.
func Build(newCards, learning, review []fsrs.Card, opts Options) *Session {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	filler := mergeByDue(learning, review)
	total := len(filler) + len(newCards)
	interval := max(1, int(math.Ceil(float64(total)/float64(len(newCards)+1))))
	if len(filler) > 0 {
		interval = max(2, interval)
	}

	queue := make([]fsrs.Card, 0, total)
	ni, fi := 0, 0
	for pos := 0; fi < len(filler); pos++ {
		if ni < len(newCards) && pos%interval == 0 {
			queue = append(queue, newCards[ni])
			ni++
			continue
		}
		queue = append(queue, filler[fi])
		fi++
	}
	queue = append(queue, newCards[ni:]...)

	return &Session{queue: queue, rng: rng}
}

func mergeByDue(learning, review []fsrs.Card) []fsrs.Card {
	out := make([]fsrs.Card, 0, len(learning)+len(review))
	li, ri := 0, 0
	for li < len(learning) && ri < len(review) {
		if !review[ri].Due.Before(learning[li].Due) {
			out = append(out, learning[li])
			li++
		} else {
			out = append(out, review[ri])
			ri++
		}
	}
	out = append(out, learning[li:]...)
	return append(out, review[ri:]...)
}

// Next returns the card at the cursor. ok is false once the session is
// exhausted. Next does not move the cursor.
func (s *Session) Next() (card fsrs.Card, ok bool) {
	if s.cursor >= len(s.queue) {
		return fsrs.Card{}, false
	}
	return s.queue[s.cursor], true
}

// Done reports whether every card has been shown.
func (s *Session) Done() bool {
	return s.cursor >= len(s.queue)
}

// Advance records that graded (the card returned by Next) was graded into
// outcome and moves past it. A card whose outcome is still in Learning or
// Relearning goes back into the queue at a random position no sooner than
// minRequeueGap cards ahead; shorter steps come back sooner.
func (s *Session) Advance(graded, outcome fsrs.Card) error {
	cur, ok := s.Next()
	if !ok || cur.ID != graded.ID {
		return fmt.Errorf("%w: %s", ErrOutOfTurn, graded.ID)
	}
	s.completed = append(s.completed, graded)
	s.cursor++

	if outcome.State.IsLearning() {
		s.requeue(outcome)
	}
	return nil
}

func (s *Session) requeue(c fsrs.Card) {
	remaining := len(s.queue) - s.cursor
	gap := int(float64(remaining) * requeuePercent(c.ScheduledDays))
	if gap < minRequeueGap {
		gap = minRequeueGap
	}
	lo := min(s.cursor+gap, len(s.queue))
	pos := lo + s.rng.Intn(len(s.queue)-lo+1)
	s.queue = slices.Insert(s.queue, pos, c)
}

// requeuePercent is the share of the remaining queue a relearned card must
// wait behind, by its next step.
func requeuePercent(scheduledDays float64) float64 {
	step := time.Duration(scheduledDays * float64(24*time.Hour))
	switch {
	case step <= time.Minute:
		return 0.15
	case step <= 10*time.Minute:
		return 0.25
	default:
		return 0.30
	}
}

// Stats summarizes progress through a session.
type Stats struct {
	Total           int `json:"total"`
	Completed       int `json:"completed"`
	Remaining       int `json:"remaining"`
	UniqueCompleted int `json:"unique_completed"`
	UniqueNew       int `json:"unique_new"`
	UniqueReview    int `json:"unique_review"`
}

// Stats reports queue counts. Requeued cards count once in the unique
// figures; a card is "new" if it was New the first time it was graded here.
func (s *Session) Stats() Stats {
	st := Stats{
		Total:     len(s.queue),
		Completed: len(s.completed),
		Remaining: len(s.queue) - s.cursor,
	}
	seen := make(map[string]bool, len(s.completed))
	for _, c := range s.completed {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		st.UniqueCompleted++
		if c.State == fsrs.New {
			st.UniqueNew++
		} else {
			st.UniqueReview++
		}
	}
	return st
}

// Completed returns the graded cards in grading order.
func (s *Session) Completed() []fsrs.Card {
	return slices.Clone(s.completed)
}
