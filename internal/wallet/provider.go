package wallet

import "context"

// ProviderClient is the capability surface of the wallet provider's
// client-side runtime. The orchestrator drives it; implementations relay the
// calls to the hosted payment UI. Sheet outcomes are never returned from
// LoadPaymentData — they arrive through the registered CallbackHandler.
type ProviderClient interface {
	// IsReadyToPay reports whether the viewer can pay at all. A false result
	// is not an error: the integration simply stays idle.
	IsReadyToPay(ctx context.Context, sessionID string, req ReadinessRequest) (bool, error)

	// CreateButton surfaces the payment button for the session.
	CreateButton(ctx context.Context, sessionID string) error

	// LoadPaymentData opens the hosted payment sheet with the given request.
	LoadPaymentData(ctx context.Context, sessionID string, req PaymentDataRequest) error

	// RegisterHandlers binds the callback target. Called exactly once, at
	// orchestrator construction.
	RegisterHandlers(h CallbackHandler)
}

// CallbackHandler is the fixed set of named handler slots the orchestrator
// implements. Each callback settles exactly once: the returned value is the
// resolution handed back to the provider. A non-nil error is the "nothing
// sensible to communicate" path and is treated like an authorization failure
// by the caller.
type CallbackHandler interface {
	// OnButtonActivated reacts to the shopper pressing the payment button.
	OnButtonActivated(ctx context.Context, sessionID string) error

	// OnPaymentDataChanged handles shipping address/option intents and
	// resolves them with an update or a structured error.
	OnPaymentDataChanged(ctx context.Context, sessionID string, data IntermediatePaymentData) (DataResolution, error)

	// OnPaymentAuthorized handles the final authorization intent.
	OnPaymentAuthorized(ctx context.Context, sessionID string, data PaymentData) (AuthorizationResult, error)

	// OnSheetClosed reacts to the shopper dismissing the sheet without
	// completing payment.
	OnSheetClosed(ctx context.Context, sessionID string) error
}
