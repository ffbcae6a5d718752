package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/storekit/wallet-bridge/internal/present"
	"github.com/storekit/wallet-bridge/internal/wallet"
)

const defaultReadinessTimeout = 10 * time.Second

// Relay is the server-side stand-in for the provider's client runtime. The
// real payment UI lives in the shopper's browser; the relay turns provider
// calls into queued page commands and feeds the page's answers back. The
// readiness probe is the only blocking call: it waits for the page to report
// the probe result or gives up after a timeout.
type Relay struct {
	queue            *present.Queue
	readinessTimeout time.Duration

	mu      sync.Mutex
	handler wallet.CallbackHandler
	pending map[string]chan bool
}

// NewRelay constructs a relay bound to the page command queue.
func NewRelay(queue *present.Queue, readinessTimeout time.Duration) *Relay {
	if readinessTimeout <= 0 {
		readinessTimeout = defaultReadinessTimeout
	}
	return &Relay{
		queue:            queue,
		readinessTimeout: readinessTimeout,
		pending:          make(map[string]chan bool),
	}
}

var _ wallet.ProviderClient = (*Relay)(nil)

// IsReadyToPay enqueues the probe for the page and blocks until the page
// posts the result. A timeout counts as not ready; the shopper just never
// sees a button.
func (r *Relay) IsReadyToPay(ctx context.Context, sessionID string, req wallet.ReadinessRequest) (bool, error) {
	ch := make(chan bool, 1)
	r.mu.Lock()
	r.pending[sessionID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, sessionID)
		r.mu.Unlock()
	}()

	r.queue.PushRequest(sessionID, present.CmdReadyCheck, req)

	ctx, cancel := context.WithTimeout(ctx, r.readinessTimeout)
	defer cancel()
	select {
	case ready := <-ch:
		return ready, nil
	case <-ctx.Done():
		return false, nil
	}
}

// ResolveReadiness delivers the page's probe answer. It reports whether a
// probe was actually waiting.
func (r *Relay) ResolveReadiness(sessionID string, ready bool) bool {
	r.mu.Lock()
	ch, ok := r.pending[sessionID]
	delete(r.pending, sessionID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- ready
	return true
}

// CreateButton tells the page to render the payment button.
func (r *Relay) CreateButton(_ context.Context, sessionID string) error {
	r.queue.Push(sessionID, present.Command{Type: present.CmdShowButton})
	return nil
}

// LoadPaymentData tells the page to open the hosted sheet with the full
// transaction request. The sheet's outcome arrives later through the
// callback endpoints.
func (r *Relay) LoadPaymentData(_ context.Context, sessionID string, req wallet.PaymentDataRequest) error {
	r.queue.PushRequest(sessionID, present.CmdOpenSheet, req)
	return nil
}

// RegisterHandlers binds the callback target the HTTP layer forwards to.
func (r *Relay) RegisterHandlers(h wallet.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// Handler returns the registered callback target.
func (r *Relay) Handler() wallet.CallbackHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler
}
