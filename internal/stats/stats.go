package stats

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/selector"
)

// Aggregator walks review logs page by page and never holds more than one
// page plus the per-day buckets in memory.
type Aggregator struct {
	src      LogSource
	boundary selector.DayBoundary
	pageSize int
}

// New returns an Aggregator that buckets logs into study days using b.
func New(src LogSource, b selector.DayBoundary) *Aggregator {
	return &Aggregator{src: src, boundary: b, pageSize: DefaultPageSize}
}

// WithPageSize overrides the page size.
func (a *Aggregator) WithPageSize(n int) *Aggregator {
	if n > 0 {
		a.pageSize = n
	}
	return a
}

// Day is one study day's activity.
type Day struct {
	Date     string        `json:"date"` // YYYY-MM-DD
	Reviews  int           `json:"reviews"`
	New      int           `json:"new"`
	Again    int           `json:"again"`
	Duration time.Duration `json:"duration"`

	// Graded while in Review, and how many of those were recalled.
	Matured  int `json:"matured"`
	Recalled int `json:"recalled"`
}

// Retention is the share of Review-state gradings recalled that day, or
// -1 when there were none.
func (d Day) Retention() float64 {
	if d.Matured == 0 {
		return -1
	}
	return float64(d.Recalled) / float64(d.Matured)
}

// walk feeds every log matching f to fn in (ReviewedAt, ID) order.
func (a *Aggregator) walk(ctx context.Context, f Filter, fn func(fsrs.ReviewLog)) error {
	q := LogQuery{DeckID: f.DeckID, UserID: f.UserID, From: f.From, To: f.To, Limit: a.pageSize}
	for {
		page, err := a.src.ListReviewLogs(ctx, q)
		if err != nil {
			return fmt.Errorf("list review logs: %w", err)
		}
		for _, l := range page {
			fn(l)
		}
		if len(page) < q.Limit {
			return nil
		}
		last := page[len(page)-1]
		q.After = &Cursor{ReviewedAt: last.ReviewedAt, ID: last.ID}
	}
}

// ReviewsPerDay returns one entry per day with at least one review,
// oldest first.
func (a *Aggregator) ReviewsPerDay(ctx context.Context, f Filter) ([]Day, error) {
	return a.collect(ctx, f, nil)
}

// collect buckets logs into days. each, if set, also sees every log.
func (a *Aggregator) collect(ctx context.Context, f Filter, each func(fsrs.ReviewLog)) ([]Day, error) {
	byDate := make(map[string]*Day)
	err := a.walk(ctx, f, func(l fsrs.ReviewLog) {
		if each != nil {
			each(l)
		}
		key := a.boundary.Day(l.ReviewedAt)
		d, ok := byDate[key]
		if !ok {
			d = &Day{Date: key}
			byDate[key] = d
		}
		d.Reviews++
		d.Duration += l.Duration
		if l.WasNew() {
			d.New++
		}
		if l.Rating == fsrs.Again {
			d.Again++
		}
		if l.WasReview() {
			d.Matured++
			if l.Rating != fsrs.Again {
				d.Recalled++
			}
		}
	})
	if err != nil {
		return nil, err
	}

	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	slices.SortFunc(days, func(x, y Day) int {
		return strings.Compare(x.Date, y.Date)
	})
	return days, nil
}

// TotalReviews counts every log in the range.
func (a *Aggregator) TotalReviews(ctx context.Context, f Filter) (int, error) {
	n := 0
	if err := a.walk(ctx, f, func(fsrs.ReviewLog) { n++ }); err != nil {
		return 0, err
	}
	return n, nil
}

// AverageReviewsPerActiveDay is total reviews over days with any review.
func (a *Aggregator) AverageReviewsPerActiveDay(ctx context.Context, f Filter) (float64, error) {
	days, err := a.ReviewsPerDay(ctx, f)
	if err != nil {
		return 0, err
	}
	return meanReviews(days), nil
}

// RetentionByDay lists the daily retention of mature cards, skipping days
// with no Review-state gradings.
func (a *Aggregator) RetentionByDay(ctx context.Context, f Filter) ([]DayRetention, error) {
	days, err := a.ReviewsPerDay(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []DayRetention
	for _, d := range days {
		if d.Matured == 0 {
			continue
		}
		out = append(out, DayRetention{Date: d.Date, Retention: d.Retention(), Reviews: d.Matured})
	}
	return out, nil
}

// DayRetention is one point of the retention curve.
type DayRetention struct {
	Date      string  `json:"date"`
	Retention float64 `json:"retention"`
	Reviews   int     `json:"reviews"`
}

// RatingBreakdown counts logs per rating.
func (a *Aggregator) RatingBreakdown(ctx context.Context, f Filter) (map[fsrs.Rating]int, error) {
	out := make(map[fsrs.Rating]int, len(fsrs.Ratings))
	err := a.walk(ctx, f, func(l fsrs.ReviewLog) {
		out[l.Rating]++
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Streak is a run of consecutive study days.
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// Streak computes the current and longest runs of active days. The current
// streak is still alive if the last active day was yesterday.
func (a *Aggregator) Streak(ctx context.Context, f Filter, now time.Time) (Streak, error) {
	days, err := a.ReviewsPerDay(ctx, f)
	if err != nil {
		return Streak{}, err
	}
	return streak(days, a.boundary.Day(now)), nil
}

func streak(days []Day, today string) Streak {
	var s Streak
	run := 0
	var prev time.Time
	for i, d := range days {
		t, err := time.Parse(time.DateOnly, d.Date)
		if err != nil {
			continue
		}
		if i > 0 && t.Equal(prev.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		s.Longest = max(s.Longest, run)
		prev = t
	}

	if len(days) == 0 {
		return s
	}
	todayT, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return s
	}
	if prev.Equal(todayT) || prev.Equal(todayT.AddDate(0, 0, -1)) {
		s.Current = run
	}
	return s
}

// Summary is every rollup for a range in one pass over the logs.
type Summary struct {
	TotalReviews   int                 `json:"total_reviews"`
	ActiveDays     int                 `json:"active_days"`
	AveragePerDay  float64             `json:"average_per_active_day"`
	StdDevPerDay   float64             `json:"stddev_per_active_day"`
	Retention      float64             `json:"retention"`
	TimeSpent      time.Duration       `json:"time_spent"`
	Streak         Streak              `json:"streak"`
	Ratings        map[fsrs.Rating]int `json:"ratings"`
	NewCardsSeen   int                 `json:"new_cards_seen"`
	RetentionCurve []DayRetention      `json:"retention_curve"`
}

// Summary computes the full rollup for f as of now.
func (a *Aggregator) Summary(ctx context.Context, f Filter, now time.Time) (Summary, error) {
	ratings := make(map[fsrs.Rating]int, len(fsrs.Ratings))
	days, err := a.collect(ctx, f, func(l fsrs.ReviewLog) {
		ratings[l.Rating]++
	})
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		ActiveDays: len(days),
		Ratings:    ratings,
		Streak:     streak(days, a.boundary.Day(now)),
		Retention:  -1,
	}
	var matured, recalled int
	for _, d := range days {
		s.TotalReviews += d.Reviews
		s.TimeSpent += d.Duration
		s.NewCardsSeen += d.New
		matured += d.Matured
		recalled += d.Recalled
		if d.Matured > 0 {
			s.RetentionCurve = append(s.RetentionCurve, DayRetention{Date: d.Date, Retention: d.Retention(), Reviews: d.Matured})
		}
	}
	if matured > 0 {
		s.Retention = float64(recalled) / float64(matured)
	}
	if len(days) > 0 {
		s.AveragePerDay, s.StdDevPerDay = stat.MeanStdDev(reviewCounts(days), nil)
		if len(days) == 1 {
			s.StdDevPerDay = 0
		}
	}
	return s, nil
}

func reviewCounts(days []Day) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = float64(d.Reviews)
	}
	return out
}

func meanReviews(days []Day) float64 {
	if len(days) == 0 {
		return 0
	}
	return stat.Mean(reviewCounts(days), nil)
}
