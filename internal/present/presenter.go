package present

import "encoding/json"

// CommandType enumerates the UI instructions the page script executes.
type CommandType string

const (
	CmdHandlerLoaded CommandType = "handler_loaded"
	CmdReadyCheck    CommandType = "ready_check"
	CmdShowButton    CommandType = "show_button"
	CmdOpenSheet     CommandType = "open_sheet"
	CmdSetBusy       CommandType = "set_busy"
	CmdClearBusy     CommandType = "clear_busy"
	CmdRenderErrors  CommandType = "render_errors"
	CmdNavigate      CommandType = "navigate"
)

// Command is one UI instruction for the bound checkout region. Commands are
// delivered to the page in enqueue order.
type Command struct {
	Type             CommandType     `json:"type"`
	Messages         []string        `json:"messages,omitempty"`
	ScrollDurationMS int             `json:"scrollDurationMs,omitempty"`
	Target           string          `json:"target,omitempty"`
	Request          json.RawMessage `json:"request,omitempty"`
}

// Presenter renders side effects into the session's bound checkout region.
// Calls are fire-and-forget: the orchestrator never blocks on them and never
// depends on a return value.
type Presenter interface {
	// SetBusy engages the blocked visual state. Idempotent.
	SetBusy(sessionID string)
	// ClearBusy releases the blocked visual state. Idempotent.
	ClearBusy(sessionID string)
	// RenderErrors clears prior banners, renders the messages, releases the
	// busy state and scrolls the region into view.
	RenderErrors(sessionID string, messages []string)
	// Navigate sends the shopper to the post-payment target.
	Navigate(sessionID string, target string)
}
