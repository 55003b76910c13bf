package fsrs

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// NumWeights is the length of the FSRS-4.5 weight vector.
const NumWeights = 17

// Weights parameterizes the memory model.
//
//	w[0..3]   initial stability per rating
//	w[4..7]   difficulty: initial mean, rating slope, update step, mean reversion
//	w[8..10]  stability after recall
//	w[11..14] stability after a lapse
//	w[15]     hard penalty
//	w[16]     easy bonus
type Weights [NumWeights]float64

// DefaultWeights are the FSRS-4.5 defaults.
var DefaultWeights = Weights{
	0.4, 0.6, 2.4, 5.8,
	4.93, 0.94, 0.86, 0.01,
	1.49, 0.14, 0.94,
	2.18, 0.05, 0.34, 1.26,
	0.29, 2.61,
}

// Parameters are a deck's scheduler settings. They are treated as an
// immutable value: a study session copies them at start and never sees
// later edits.
type Parameters struct {
	RequestRetention   float64         `json:"request_retention" validate:"gt=0,lt=1"`
	MaximumStability   float64         `json:"maximum_stability" validate:"gte=1,lte=36500"`
	Weights            Weights         `json:"weights"`
	LearningSteps      []time.Duration `json:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps    []time.Duration `json:"relearning_steps" validate:"dive,gt=0"`
	EnableFSRS         bool            `json:"enable_fsrs"`
	DailyNewCardsLimit int             `json:"daily_new_cards_limit" validate:"gte=0"`
	DailyReviewLimit   int             `json:"daily_review_limit" validate:"gte=0"`
	EasyBonus          float64         `json:"easy_bonus" validate:"gte=1,lte=10"`
	// GraduateOnEasy sends a New card graded Easy straight to Review
	// instead of through the learning steps.
	GraduateOnEasy bool `json:"graduate_on_easy"`
}

// DefaultParameters returns the settings a new deck starts with.
func DefaultParameters() Parameters {
	return Parameters{
		RequestRetention:   0.9,
		MaximumStability:   36500,
		Weights:            DefaultWeights,
		LearningSteps:      []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:    []time.Duration{10 * time.Minute},
		EnableFSRS:         true,
		DailyNewCardsLimit: 20,
		DailyReviewLimit:   100,
		EasyBonus:          1.3,
		GraduateOnEasy:     true,
	}
}

var validate = validator.New()

// Validate checks every field against its allowed range.
func (p Parameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: w[%d] = %v", ErrInvalidParameters, i, w)
		}
	}
	for i := 0; i < 4; i++ {
		if p.Weights[i] <= 0 {
			return fmt.Errorf("%w: initial stability w[%d] must be positive", ErrInvalidParameters, i)
		}
	}
	return nil
}

// Clone returns a copy whose step slices do not alias p's.
func (p Parameters) Clone() Parameters {
	out := p
	out.LearningSteps = slices.Clone(p.LearningSteps)
	out.RelearningSteps = slices.Clone(p.RelearningSteps)
	return out
}
