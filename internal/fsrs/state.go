package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// State is the scheduling phase of a card. The integer values are the ones
// persisted in the cards table.
type State int

const (
	New        State = iota // Never graded.
	Learning                // Working through the learning steps.
	Review                  // Long-term review cycle.
	Relearning              // Lapsed out of Review, back on short steps.
)

var (
	stateNames  = [...]string{New: "new", Learning: "learning", Review: "review", Relearning: "relearning"}
	stateByName = map[string]State{
		"new":        New,
		"learning":   Learning,
		"review":     Review,
		"relearning": Relearning,
	}
)

var (
	_ fmt.Stringer             = State(0)
	_ json.Marshaler           = State(0)
	_ json.Unmarshaler         = (*State)(nil)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

// IsLearning reports whether s is one of the short-step phases.
func (s State) IsLearning() bool {
	return s == Learning || s == Relearning
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState accepts "new", "learning", "review" or "relearning".
func ParseState(str string) (State, error) {
	v, ok := stateByName[str]
	if !ok {
		return 0, fmt.Errorf("%w: state %q", ErrInvalidInput, str)
	}
	return v, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: state %d", ErrInvalidInput, int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalJSON encodes the state as a JSON string.
func (s State) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON expects a JSON string.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: state %s", ErrInvalidInput, data)
	}
	return s.UnmarshalText([]byte(str))
}
