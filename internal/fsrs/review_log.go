package fsrs

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ReviewLog records one grading event. Logs are append-only.
type ReviewLog struct {
	ID            string        `json:"id"`
	CardID        string        `json:"card_id"`
	DeckID        string        `json:"deck_id"`
	UserID        string        `json:"user_id"`
	Rating        Rating        `json:"rating"`
	PreviousState State         `json:"previous_state"`
	State         State         `json:"state"`
	ScheduledDays float64       `json:"scheduled_days"`
	ElapsedDays   float64       `json:"elapsed_days"`
	Stability     float64       `json:"stability"`
	Difficulty    float64       `json:"difficulty"`
	Due           time.Time     `json:"due"`
	ReviewedAt    time.Time     `json:"reviewed_at"`
	Duration      time.Duration `json:"duration"`
}

// WasNew reports whether this grading introduced a New card. It counts
// against the daily new-card quota; every other grading of a card in
// Review counts against the review quota.
func (l ReviewLog) WasNew() bool {
	return l.PreviousState == New
}

// WasReview reports whether the card was in long-term review when graded.
func (l ReviewLog) WasReview() bool {
	return l.PreviousState == Review
}

var logNamespace = uuid.MustParse("6f1c1c2e-5d7a-4c1b-9a57-2f1b8c0d9e31")

// logID is derived from the card, its rep count and the review time, so
// recomputing the same review yields the same id and a retried append can
// be deduplicated.
func logID(cardID string, reps int, at time.Time) string {
	key := cardID + ":" + strconv.Itoa(reps) + ":" + strconv.FormatInt(at.UnixNano(), 10)
	return uuid.NewSHA1(logNamespace, []byte(key)).String()
}
