package engine

import (
	"errors"
	"fmt"

	"github.com/lazypower/cadence/internal/fsrs"
)

// OpPersistReview names the card-plus-log write in PersistenceError.Op.
const OpPersistReview = "persist_review"

// ErrCardNotFound is returned when a card id does not exist.
var ErrCardNotFound = errors.New("engine: card not found")

// PersistenceError means a review was computed but could not be written.
// Result holds the computed outcome so the write can be retried with
// RetryPersist without grading again.
type PersistenceError struct {
	Op     string
	Result fsrs.Result
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("engine: %s for card %s: %v", e.Op, e.Result.Card.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
