package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// ErrUnknownSession is returned for any operation that references a session
// code with no registry entry.
var ErrUnknownSession = errors.New("unknown session")

// DefaultSessionName is used when a board is provisioned without a name.
const DefaultSessionName = "My Whiteboard"

var (
	roomAdjectives = []string{"swift", "quick", "smart", "bold", "clear", "sharp", "bright"}
	roomNouns      = []string{"star", "moon", "sun", "wave", "tree", "cloud", "river"}
)

// generateRoomCode composes adjective-noun-NNNN. Collisions are statistically
// negligible and not reserved against.
func generateRoomCode() string {
	adjective := roomAdjectives[rand.Intn(len(roomAdjectives))]
	noun := roomNouns[rand.Intn(len(roomNouns))]
	return fmt.Sprintf("%s-%s-%04d", adjective, noun, rand.Intn(10000))
}

// HistoryChecker reports whether a session has durable history in the
// external persistence collaborator. Sessions with history are never
// auto-evicted; tearing them down requires the explicit delete API.
type HistoryChecker interface {
	HasHistory(ctx context.Context, code string) (bool, error)
}

// Registry owns the session map. It is the single injected lookup service
// every other component goes through; per-session state is guarded by each
// session's own synchronization, so sessions never contend with each other.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	grace   time.Duration
	history HistoryChecker
	metrics *Metrics
}

// NewRegistry builds an empty registry. grace is how long an empty session
// survives before the janitor may evict it; zero disables eviction. history
// may be nil when the server runs memory-only.
func NewRegistry(grace time.Duration, history HistoryChecker, metrics *Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		grace:    grace,
		history:  history,
		metrics:  metrics,
	}
}

// CreateSession provisions a new board under a freshly generated code.
func (r *Registry) CreateSession(displayName string) *Session {
	if displayName == "" {
		displayName = DefaultSessionName
	}
	s := r.EnsureParticipantSet(generateRoomCode(), displayName)
	r.metrics.IncSessionCreated()
	return s
}

// GetSession looks up a live session by code.
func (r *Registry) GetSession(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// EnsureParticipantSet idempotently creates the session record (and with it
// the presence-tracking structure) for a code provisioned out-of-band, e.g.
// a board row restored from the store before any socket has connected.
func (r *Registry) EnsureParticipantSet(code, displayName string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[code]; ok {
		return s
	}
	if displayName == "" {
		displayName = DefaultSessionName
	}
	s := newSession(code, displayName, time.Now())
	r.sessions[code] = s
	return s
}

// Delete is the explicit teardown path. It removes the session regardless of
// persisted history; callers are expected to have confirmed the destruction.
func (r *Registry) Delete(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[code]
	if !ok {
		return ErrUnknownSession
	}
	delete(r.sessions, code)
	s.closeLoop()
	return nil
}

// Count reports live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RunJanitor periodically evicts sessions that have been empty beyond the
// grace period. Blocks until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.grace <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(ctx, now)
		}
	}
}

func (r *Registry) sweep(ctx context.Context, now time.Time) {
	r.mu.RLock()
	candidates := make([]string, 0)
	for code, s := range r.sessions {
		if s.EmptyFor(now) > r.grace {
			candidates = append(candidates, code)
		}
	}
	r.mu.RUnlock()

	for _, code := range candidates {
		if r.history != nil {
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			has, err := r.history.HasHistory(checkCtx, code)
			cancel()
			if err != nil {
				log.Printf("janitor: history check for %s: %v", code, err)
				continue
			}
			if has {
				// Durable history means only the explicit delete API may
				// destroy this session.
				continue
			}
		}
		r.mu.Lock()
		s, ok := r.sessions[code]
		if ok && s.EmptyFor(now) > r.grace {
			delete(r.sessions, code)
			s.closeLoop()
			r.metrics.IncSessionEvicted()
			log.Printf("janitor: evicted idle session %s", code)
		}
		r.mu.Unlock()
	}
}
