// Package selector decides which cards of a deck may be studied right now.
package selector

import (
	"slices"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
)

// Quota is the activity already consumed on the current study day.
type Quota struct {
	NewCards int `json:"new_cards"`
	Reviews  int `json:"reviews"`
}

// Candidates are the cards eligible at a point in time, each group ordered
// by ascending due time.
type Candidates struct {
	New      []fsrs.Card `json:"new"`
	Learning []fsrs.Card `json:"learning"`
	Review   []fsrs.Card `json:"review"`
}

// Len is the total number of candidates.
func (c Candidates) Len() int {
	return len(c.New) + len(c.Learning) + len(c.Review)
}

// SelectDue filters cards into candidate groups.
//
// New cards are eligible while the new-card quota has room. Learning and
// Relearning cards are eligible whenever they are due, regardless of quota.
// Review cards need to be due and need room in the review quota. The New and
// Review groups are also cut to the remaining quota, so a session built from
// them cannot overshoot the daily limits.
//
// With EnableFSRS off, New cards ignore the quota entirely.
func SelectDue(cards []fsrs.Card, p fsrs.Parameters, used Quota, now time.Time) Candidates {
	var out Candidates
	newRoom := p.DailyNewCardsLimit - used.NewCards
	reviewRoom := p.DailyReviewLimit - used.Reviews

	for _, c := range cards {
		switch c.State {
		case fsrs.New:
			if !p.EnableFSRS || newRoom > 0 {
				out.New = append(out.New, c)
			}
		case fsrs.Learning, fsrs.Relearning:
			if c.IsDue(now) {
				out.Learning = append(out.Learning, c)
			}
		case fsrs.Review:
			if c.IsDue(now) && reviewRoom > 0 {
				out.Review = append(out.Review, c)
			}
		}
	}

	sortByDue(out.New)
	sortByDue(out.Learning)
	sortByDue(out.Review)

	if p.EnableFSRS {
		out.New = truncate(out.New, newRoom)
	}
	out.Review = truncate(out.Review, reviewRoom)
	return out
}

// sortByDue orders cards by due time, breaking ties by id so the result
// does not depend on storage order.
func sortByDue(cards []fsrs.Card) {
	slices.SortStableFunc(cards, func(a, b fsrs.Card) int {
		if c := a.Due.Compare(b.Due); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func truncate(cards []fsrs.Card, n int) []fsrs.Card {
	if n <= 0 {
		return nil
	}
	if len(cards) > n {
		return cards[:n]
	}
	return cards
}
