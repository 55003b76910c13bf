package fsrs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fsrs package.
// Use errors.Is to check: errors.Is(err, fsrs.ErrInvalidInput)
var (
	ErrInvalidInput      = errors.New("fsrs: invalid input")
	ErrInvalidParameters = errors.New("fsrs: invalid parameters")

	// ErrInvalidRating also matches ErrInvalidInput.
	ErrInvalidRating = fmt.Errorf("%w: rating", ErrInvalidInput)
)
