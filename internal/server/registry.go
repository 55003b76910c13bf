package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/metrics"
)

const defaultSessionTTL = 2 * time.Hour

// liveSession is one study session held for an HTTP client. A session
// belongs to one consumer, so every handler holds mu while it works.
type liveSession struct {
	mu       sync.Mutex
	study    *engine.Study
	pending  *fsrs.Result // computed but not yet persisted
	lastUsed time.Time
}

// registry holds live sessions until they are ended or sit idle past ttl.
// A session holding a result that failed to persist is never expired, so
// the client can still retry it.
type registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*liveSession
	metrics  *metrics.Manager
	now      func() time.Time
}

func newRegistry(ttl time.Duration, m *metrics.Manager) *registry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &registry{
		ttl:      ttl,
		sessions: make(map[string]*liveSession),
		metrics:  m,
		now:      time.Now,
	}
}

func (g *registry) add(st *engine.Study) string {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	g.sessions[st.ID] = &liveSession{study: st, lastUsed: g.now()}
	g.metrics.SetActiveSessions(len(g.sessions))
	return st.ID
}

// get returns the session with its lock held. Callers must unlock it.
func (g *registry) get(id string) (*liveSession, bool) {
	g.mu.Lock()
	g.sweepLocked()
	ls, ok := g.sessions[id]
	if ok {
		ls.lastUsed = g.now()
	}
	g.mu.Unlock()

	if !ok {
		return nil, false
	}
	ls.mu.Lock()
	return ls, true
}

func (g *registry) remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sessions[id]
	delete(g.sessions, id)
	g.metrics.SetActiveSessions(len(g.sessions))
	return ok
}

func (g *registry) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *registry) sweepLocked() {
	now := g.now()
	for id, ls := range g.sessions {
		if now.Sub(ls.lastUsed) <= g.ttl {
			continue
		}
		// A locked session is in use by a handler right now.
		if !ls.mu.TryLock() {
			continue
		}
		pending := ls.pending != nil
		ls.mu.Unlock()
		if !pending {
			delete(g.sessions, id)
		}
	}
	g.metrics.SetActiveSessions(len(g.sessions))
}
