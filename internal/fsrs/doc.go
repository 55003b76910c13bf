// Package fsrs holds the card memory model and the review state machine.
//
// Everything here is pure: no I/O, no clocks, no package-level state.
// Callers pass the current time and the deck's Parameters into every call,
// so grading the same card twice with the same inputs always produces the
// same card and the same review log.
//
//	p := fsrs.DefaultParameters()
//	card := fsrs.NewCard(id, deckID, now)
//	res, err := fsrs.ApplyReview(card, fsrs.Good, p, now)
package fsrs
