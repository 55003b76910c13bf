package fsrs

import "math"

// Bounds enforced on every model output.
const (
	MinStability  = 0.1
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// Retrievability is the forgetting curve:
//
//	R(t, S) = exp(ln(retention) * t / S)
//
// so R falls to the requested retention exactly when t == S. A card with no
// stability has never been learned and its retrievability is 0.
func Retrievability(stability, elapsedDays, requestRetention float64) float64 {
	if stability <= 0 {
		return 0
	}
	r := math.Exp(math.Log(requestRetention) * elapsedDays / stability)
	return math.Min(math.Max(r, 0), 1)
}

// InitialStability is the stability a card gets on its first grading:
// S0(G) = w[G-1].
func InitialStability(rating Rating, p Parameters) float64 {
	return clampStability(p.Weights[rating-1], p.MaximumStability)
}

// InitialDifficulty is D0(G) = w4 - (G-3)*w5.
func InitialDifficulty(rating Rating, w Weights) float64 {
	return clampDifficulty(w[4] - (float64(rating)-3)*w[5])
}

// NextDifficulty moves D by -w6*(G-3), then reverts toward the initial mean w4:
//
//	D' = w7*w4 + (1-w7)*(D - w6*(G-3))
func NextDifficulty(difficulty float64, rating Rating, w Weights) float64 {
	d := difficulty - w[6]*(float64(rating)-3)
	return clampDifficulty(w[7]*w[4] + (1-w[7])*d)
}

// NextStability updates stability after a graded review at retrievability r.
// A stability of 0 means the card was never graded and gets S0 instead.
func NextStability(stability, difficulty, r float64, rating Rating, p Parameters) float64 {
	if stability <= 0 {
		return InitialStability(rating, p)
	}
	d := clampDifficulty(difficulty)
	var next float64
	if rating == Again {
		next = forgetStability(stability, d, r, p.Weights)
	} else {
		next = recallStability(stability, d, r, rating, p.Weights)
	}
	return clampStability(next, p.MaximumStability)
}

// recallStability: S' = S * (1 + e^w8 * (11-D) * S^-w9 * (e^((1-R)*w10) - 1) * hard * easy)
func recallStability(s, d, r float64, rating Rating, w Weights) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = w[16]
	}
	return s * (1 + math.Exp(w[8])*
		(11-d)*
		math.Pow(s, -w[9])*
		(math.Exp((1-r)*w[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability: S' = w11 * D^-w12 * ((S+1)^w13 - 1) * e^((1-R)*w14),
// never above the stability the card had before the lapse.
func forgetStability(s, d, r float64, w Weights) float64 {
	long := w[11] *
		math.Pow(d, -w[12]) *
		(math.Pow(s+1, w[13]) - 1) *
		math.Exp((1-r)*w[14])
	return math.Min(long, s)
}

// ScheduledInterval turns a stability into whole days until the next review.
// Again schedules nothing (0, the learning steps decide the same-day gap).
// Easy is always at least one day longer than Good would have been.
func ScheduledInterval(stability float64, rating Rating, p Parameters) float64 {
	if rating == Again {
		return 0
	}
	maxIvl := math.Max(1, math.Floor(p.MaximumStability))
	ivl := math.Max(1, math.Round(stability))
	if rating == Easy {
		ivl = math.Max(ivl+1, math.Round(stability*p.EasyBonus))
	}
	return math.Min(ivl, maxIvl)
}

func clampStability(s, maxStability float64) float64 {
	return math.Min(math.Max(s, MinStability), math.Max(maxStability, MinStability))
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}
