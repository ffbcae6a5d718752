package present

import (
	"encoding/json"
	"sync"
	"time"
)

const defaultScrollDuration = 500 * time.Millisecond

// Queue is the command-relay Presenter: UI commands accumulate per session
// and the page script drains them in order. It also carries the relay
// commands (ready check, button, sheet) pushed by the provider relay.
type Queue struct {
	ScrollDuration time.Duration

	mu       sync.Mutex
	commands map[string][]Command
	busy     map[string]bool
}

// NewQueue constructs an empty command queue.
func NewQueue(scrollDuration time.Duration) *Queue {
	if scrollDuration <= 0 {
		scrollDuration = defaultScrollDuration
	}
	return &Queue{
		ScrollDuration: scrollDuration,
		commands:       make(map[string][]Command),
		busy:           make(map[string]bool),
	}
}

// Push appends a command to the session's queue.
func (q *Queue) Push(sessionID string, cmd Command) {
	if q == nil || sessionID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands[sessionID] = append(q.commands[sessionID], cmd)
}

// PushRequest marshals a payload and appends it as a command. Marshal
// failures drop the command; callers only enqueue types they control.
func (q *Queue) PushRequest(sessionID string, kind CommandType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	q.Push(sessionID, Command{Type: kind, Request: data})
}

// Drain returns and clears all pending commands for the session, preserving
// enqueue order.
func (q *Queue) Drain(sessionID string) []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.commands[sessionID]
	delete(q.commands, sessionID)
	return pending
}

// Forget discards a session's pending commands and busy flag.
func (q *Queue) Forget(sessionID string) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.commands, sessionID)
	delete(q.busy, sessionID)
}

// SetBusy engages the blocked visual state once; repeated calls are no-ops
// until the state is released.
func (q *Queue) SetBusy(sessionID string) {
	if q == nil || sessionID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy[sessionID] {
		return
	}
	q.busy[sessionID] = true
	q.commands[sessionID] = append(q.commands[sessionID], Command{Type: CmdSetBusy})
}

// ClearBusy releases the blocked visual state once.
func (q *Queue) ClearBusy(sessionID string) {
	if q == nil || sessionID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.busy[sessionID] {
		return
	}
	delete(q.busy, sessionID)
	q.commands[sessionID] = append(q.commands[sessionID], Command{Type: CmdClearBusy})
}

// RenderErrors replaces any prior banners with the given messages, releases
// the busy state and scrolls the bound region into view.
func (q *Queue) RenderErrors(sessionID string, messages []string) {
	if q == nil || sessionID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.busy, sessionID)
	q.commands[sessionID] = append(q.commands[sessionID], Command{
		Type:             CmdRenderErrors,
		Messages:         messages,
		ScrollDurationMS: int(q.ScrollDuration / time.Millisecond),
	})
}

// Navigate enqueues the post-payment redirect. It does not touch the busy
// flag; the caller decides whether to release it first.
func (q *Queue) Navigate(sessionID string, target string) {
	if q == nil || sessionID == "" {
		return
	}
	q.Push(sessionID, Command{Type: CmdNavigate, Target: target})
}

var _ Presenter = (*Queue)(nil)
