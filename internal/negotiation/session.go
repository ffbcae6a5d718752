package negotiation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/wallet-bridge/internal/gateway"
)

// State is the position of a session in the negotiation lifecycle.
type State string

const (
	StateIdle        State = "IDLE"
	StateReadyCheck  State = "READY_CHECK"
	StateButtonShown State = "BUTTON_SHOWN"
	StateSheetOpen   State = "SHEET_OPEN"
	StateAuthorizing State = "AUTHORIZING"
	StateSucceeded   State = "SUCCEEDED"
	StateFailed      State = "FAILED"
)

// Surface is the checkout region a session is bound to. Exactly one surface
// is bound at initialization and never changes afterwards.
type Surface string

const (
	SurfaceProduct  Surface = "product"
	SurfaceCart     Surface = "cart"
	SurfaceCheckout Surface = "checkout"
)

// ErrUnknownSurface marks page regions that carry no checkout form; no
// negotiation happens there.
var ErrUnknownSurface = errors.New("negotiation: no checkout surface detected")

// ErrInvalidTransition rejects lifecycle moves the state machine does not
// allow.
var ErrInvalidTransition = errors.New("negotiation: invalid state transition")

// ErrSessionNotFound marks callbacks referencing an unknown or expired
// session.
var ErrSessionNotFound = errors.New("negotiation: session not found")

// ParseSurface validates a page-supplied surface name.
func ParseSurface(raw string) (Surface, error) {
	switch Surface(raw) {
	case SurfaceProduct, SurfaceCart, SurfaceCheckout:
		return Surface(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSurface, raw)
	}
}

// transitions is the allowed lifecycle graph. Shipping round trips do not
// move the state: they happen entirely inside SHEET_OPEN.
var transitions = map[State][]State{
	StateIdle:        {StateReadyCheck},
	StateReadyCheck:  {StateButtonShown, StateIdle},
	StateButtonShown: {StateSheetOpen, StateFailed},
	StateSheetOpen:   {StateAuthorizing, StateButtonShown},
	StateAuthorizing: {StateSucceeded, StateFailed},
}

// OutcomeStatus is the terminal result of one button-click session.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeError   OutcomeStatus = "ERROR"
)

// Outcome records the terminal state of a session. It is set only by the
// authorization path (or the initial fetch failure) and discarded with the
// session.
type Outcome struct {
	Status   OutcomeStatus
	Redirect string
}

// Session is the explicit per-page-load negotiation context threaded through
// every continuation. The mutex serializes intents: a callback holds it for
// its whole round trip, so no two backend round trips are ever in flight for
// one session.
type Session struct {
	ID        string
	Surface   Surface
	ProductID string
	Call      gateway.CallContext
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	outcome *Outcome
}

// State returns the current lifecycle state. It waits for any in-flight
// round trip to settle first.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the terminal outcome, if any.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// advance moves the session along the lifecycle graph. Callers hold s.mu.
func (s *Session) advance(to State) error {
	if slices.Contains(transitions[s.state], to) {
		s.state = to
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// Registry tracks live sessions for one bridge process. Sessions are
// ephemeral: they die with the page load or with the TTL sweep.
type Registry struct {
	TTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs a registry with the given session TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{TTL: ttl, sessions: make(map[string]*Session)}
}

// Create binds a new session to a surface.
func (r *Registry) Create(surface Surface, productID string, call gateway.CallContext) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Surface:   surface,
		ProductID: productID,
		Call:      call,
		CreatedAt: time.Now(),
		state:     StateIdle,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

// Get looks up a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete discards a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep removes sessions older than the TTL and returns how many were
// discarded. Abandoned sheets (shopper navigated away) end up here.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.CreatedAt) > r.TTL {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a ticker until the context is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}
