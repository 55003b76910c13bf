package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Rating is the user's assessment of how well a card was recalled.
type Rating int

const (
	Again Rating = iota + 1 // Forgot.
	Hard                    // Recalled with serious difficulty.
	Good                    // Recalled with some effort.
	Easy                    // Recalled effortlessly.
)

// Ratings lists every valid rating in ascending order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

var (
	ratingNames  = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}
	ratingByName = map[string]Rating{
		"again": Again,
		"hard":  Hard,
		"good":  Good,
		"easy":  Easy,
	}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ json.Marshaler           = Rating(0)
	_ json.Unmarshaler         = (*Rating)(nil)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// IsValid reports whether r is one of Again, Hard, Good, Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts the lowercase names used in review logs ("again", "good", ...).
func ParseRating(s string) (Rating, error) {
	r, ok := ratingByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalJSON encodes the rating as a JSON string.
func (r Rating) MarshalJSON() ([]byte, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON expects a JSON string.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	return r.UnmarshalText([]byte(s))
}
