// Package engine runs study sessions against a store: selection, grading
// and write-through persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/logging"
	"github.com/lazypower/cadence/internal/metrics"
	"github.com/lazypower/cadence/internal/selector"
	"github.com/lazypower/cadence/internal/stats"
)

const (
	defaultParamCacheSize = 256
	defaultParamCacheTTL  = time.Minute
)

// Options configure an Engine. Zero values fall back to defaults.
type Options struct {
	Logger      *slog.Logger
	Metrics     *metrics.Manager
	DayBoundary selector.DayBoundary

	// Deck parameters are cached for ParamCacheTTL. Sessions always copy
	// the parameters at start, so a stale entry only delays when a new
	// session picks up an edit.
	ParamCacheSize int
	ParamCacheTTL  time.Duration

	// Now and NewRand are injectable for tests.
	Now     func() time.Time
	NewRand func() *rand.Rand
}

type cachedParams struct {
	params   fsrs.Parameters
	storedAt time.Time
}

// Engine orchestrates the scheduler core around a Store: it selects due
// cards, builds sessions, grades and writes through every review.
type Engine struct {
	Store    Store
	log      *slog.Logger
	metrics  *metrics.Manager
	boundary selector.DayBoundary
	params   *lru.Cache[string, cachedParams]
	paramTTL time.Duration
	now      func() time.Time
	newRand  func() *rand.Rand
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Engine.
func New(s Store, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpManager()
	}
	if opts.ParamCacheSize <= 0 {
		opts.ParamCacheSize = defaultParamCacheSize
	}
	if opts.ParamCacheTTL <= 0 {
		opts.ParamCacheTTL = defaultParamCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}

	cache, err := lru.New[string, cachedParams](opts.ParamCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create parameter cache: %w", err)
	}
	return &Engine{
		Store:    s,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		boundary: opts.DayBoundary,
		params:   cache,
		paramTTL: opts.ParamCacheTTL,
		now:      opts.Now,
		newRand:  opts.NewRand,
		stopCh:   make(chan struct{}),
	}, nil
}

// DayBoundary is the boundary daily quotas reset at.
func (e *Engine) DayBoundary() selector.DayBoundary {
	return e.boundary
}

// Parameters returns a deck's scheduler parameters, from cache when fresh.
// The result is a copy the caller may keep.
func (e *Engine) Parameters(ctx context.Context, deckID string) (fsrs.Parameters, error) {
	if entry, ok := e.params.Get(deckID); ok && e.now().Sub(entry.storedAt) < e.paramTTL {
		e.metrics.RecordParamCache(true)
		return entry.params.Clone(), nil
	}
	e.metrics.RecordParamCache(false)

	p, err := e.Store.GetSchedulerParameters(ctx, deckID)
	if err != nil {
		return fsrs.Parameters{}, fmt.Errorf("get parameters for deck %s: %w", deckID, err)
	}
	e.params.Add(deckID, cachedParams{params: p.Clone(), storedAt: e.now()})
	return p, nil
}

// InvalidateParameters drops a deck's cached parameters. Call it after
// editing them so the next session sees the change.
func (e *Engine) InvalidateParameters(deckID string) {
	e.params.Remove(deckID)
}

// Stats returns an aggregator over the store's review logs.
func (e *Engine) Stats() *stats.Aggregator {
	return stats.New(e.Store, e.boundary)
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}
