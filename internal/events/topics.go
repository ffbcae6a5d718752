package events

// Topics emitted by the negotiation core.
const (
	// TopicHandlerLoaded fires once a session's initialization has finished,
	// whether or not a button was rendered.
	TopicHandlerLoaded = "wallet.handler.loaded"
	// TopicOutcome fires when a session reaches a terminal state.
	TopicOutcome = "wallet.session.outcome"
	// TopicSheetClosed fires when the shopper dismisses the sheet.
	TopicSheetClosed = "wallet.sheet.closed"
)
