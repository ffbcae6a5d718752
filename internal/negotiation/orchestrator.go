package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storekit/wallet-bridge/internal/events"
	"github.com/storekit/wallet-bridge/internal/gateway"
	"github.com/storekit/wallet-bridge/internal/obs"
	"github.com/storekit/wallet-bridge/internal/present"
	"github.com/storekit/wallet-bridge/internal/wallet"
)

// Gateway is the slice of the merchant-backend client the orchestrator
// consumes.
type Gateway interface {
	FetchTransactionInfo(ctx context.Context, call gateway.CallContext) (wallet.TransactionInfo, error)
	RecalculateTotals(ctx context.Context, call gateway.CallContext, addr *wallet.ShippingAddress, shippingMethodID string) (gateway.Totals, error)
	AuthorizePayment(ctx context.Context, call gateway.CallContext, data wallet.PaymentData) (string, error)
}

// InfoCache receives freshly fetched transaction info to warm the prefetch
// path. Optional.
type InfoCache interface {
	Store(ctx context.Context, surface, productID string, info wallet.TransactionInfo) error
}

const (
	defaultFailureMessage       = "Your payment could not be processed. Please try again."
	defaultUnserviceableMessage = "We cannot ship to this address. Please choose a different address."
)

// Config wires an Orchestrator.
type Config struct {
	Provider  wallet.ProviderClient
	Gateway   Gateway
	Presenter present.Presenter
	Builder   wallet.DescriptorBuilder
	Sessions  *Registry
	Events    *events.Bus
	Cache     InfoCache
	Logger    zerolog.Logger

	// FailureMessage is the only text shown to the shopper for any backend
	// or authorization failure. Raw detail never reaches the page.
	FailureMessage       string
	UnserviceableMessage string
}

// Orchestrator is the negotiation state machine. It drives the provider
// client, round-trips to the merchant backend and resolves every provider
// callback exactly once. It registers itself as the callback target at
// construction and is the only writer of session state.
type Orchestrator struct {
	provider  wallet.ProviderClient
	gateway   Gateway
	presenter present.Presenter
	builder   wallet.DescriptorBuilder
	sessions  *Registry
	events    *events.Bus
	cache     InfoCache
	logger    zerolog.Logger

	failureMsg       string
	unserviceableMsg string
}

// New constructs the orchestrator and registers it as the provider's
// callback handler.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		provider:         cfg.Provider,
		gateway:          cfg.Gateway,
		presenter:        cfg.Presenter,
		builder:          cfg.Builder,
		sessions:         cfg.Sessions,
		events:           cfg.Events,
		cache:            cfg.Cache,
		logger:           cfg.Logger,
		failureMsg:       cfg.FailureMessage,
		unserviceableMsg: cfg.UnserviceableMessage,
	}
	if o.failureMsg == "" {
		o.failureMsg = defaultFailureMessage
	}
	if o.unserviceableMsg == "" {
		o.unserviceableMsg = defaultUnserviceableMessage
	}
	if o.provider != nil {
		o.provider.RegisterHandlers(o)
	}
	return o
}

var _ wallet.CallbackHandler = (*Orchestrator)(nil)

// Initialize runs the readiness probe for a freshly bound session. A
// negative or failed probe halts the machine in IDLE: no button, no error —
// absence of capability is not a failure. The handler-loaded signal fires on
// every path once initialization has finished.
func (o *Orchestrator) Initialize(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if err := s.advance(StateReadyCheck); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if obs.SessionsStartedTotal != nil {
		obs.SessionsStartedTotal.WithLabelValues(string(s.Surface)).Inc()
	}

	// The probe blocks until the page answers; it must run outside the
	// session lock so the command poll can read state while it waits.
	ready, probeErr := o.provider.IsReadyToPay(ctx, s.ID, o.builder.ReadinessRequest())

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		o.events.Emit(events.TopicHandlerLoaded, s.ID, map[string]any{"state": string(s.state)})
	}()

	if probeErr != nil {
		o.logger.Warn().Err(probeErr).Str("session_id", s.ID).Msg("readiness probe failed")
		o.countReadiness("error")
		return s.advance(StateIdle)
	}
	if !ready {
		o.countReadiness("not_ready")
		return s.advance(StateIdle)
	}

	if err := s.advance(StateButtonShown); err != nil {
		return err
	}
	o.countReadiness("ready")
	if err := o.provider.CreateButton(ctx, s.ID); err != nil {
		o.logger.Warn().Err(err).Str("session_id", s.ID).Msg("create button")
	}
	return nil
}

// OnButtonActivated launches the payment sheet: engage the busy state, fetch
// fresh transaction info, build the full request, hand it to the provider.
// A fetch failure is terminal — the sheet never opens on stale data.
func (o *Orchestrator) OnButtonActivated(ctx context.Context, sessionID string) error {
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateButtonShown {
		return fmt.Errorf("%w: click in state %s", ErrInvalidTransition, s.state)
	}
	o.presenter.SetBusy(s.ID)

	info, err := o.gateway.FetchTransactionInfo(ctx, s.Call)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", s.ID).Msg("transaction info fetch failed")
		o.fail(s)
		return nil
	}
	if o.cache != nil {
		if err := o.cache.Store(ctx, string(s.Surface), s.ProductID, info); err != nil {
			o.logger.Debug().Err(err).Msg("warm prefetch cache")
		}
	}

	if err := s.advance(StateSheetOpen); err != nil {
		return err
	}
	if err := o.provider.LoadPaymentData(ctx, s.ID, o.builder.TransactionRequest(info)); err != nil {
		o.logger.Error().Err(err).Str("session_id", s.ID).Msg("open payment sheet")
		_ = s.advance(StateButtonShown)
		o.presenter.RenderErrors(s.ID, []string{o.failureMsg})
	}
	return nil
}

// OnPaymentDataChanged handles one shipping round trip. The resolution is
// always resolved, never rejected: a backend failure or an unserviceable
// address goes back into the sheet as a structured error and the session
// stays open for the shopper to retry.
func (o *Orchestrator) OnPaymentDataChanged(ctx context.Context, sessionID string, data wallet.IntermediatePaymentData) (res wallet.DataResolution, err error) {
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return wallet.DataResolution{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	intent := data.CallbackTrigger
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("session_id", s.ID).Any("panic", r).Msg("data callback panicked")
			res = wallet.DataResolution{Error: o.dataError(wallet.ReasonOtherError, intent)}
			err = nil
		}
	}()

	if s.state != StateSheetOpen {
		return wallet.DataResolution{}, fmt.Errorf("%w: data callback in state %s", ErrInvalidTransition, s.state)
	}
	if intent != wallet.IntentShippingAddressChanged && intent != wallet.IntentShippingOptionChanged {
		o.logger.Error().Str("session_id", s.ID).Str("intent", string(intent)).Msg("unexpected callback trigger")
		return wallet.DataResolution{Error: o.dataError(wallet.ReasonOtherError, intent)}, nil
	}

	shippingMethodID := ""
	if data.ShippingOptionData != nil {
		shippingMethodID = data.ShippingOptionData.ID
	}

	start := time.Now()
	totals, gwErr := o.gateway.RecalculateTotals(ctx, s.Call, data.ShippingAddress, shippingMethodID)
	o.observeRoundTrip(intent, start, gwErr)
	if gwErr != nil {
		o.logger.Error().Err(gwErr).Str("session_id", s.ID).Str("intent", string(intent)).Msg("recalculation failed")
		return wallet.DataResolution{Error: o.dataError(wallet.ReasonOtherError, intent)}, nil
	}
	if len(totals.ShippingOptions) == 0 {
		return wallet.DataResolution{Error: &wallet.DataError{
			Reason:  wallet.ReasonShippingAddressUnserviceable,
			Message: o.unserviceableMsg,
			Intent:  intent,
		}}, nil
	}

	defaultID := totals.DefaultOptionID
	if defaultID == "" {
		defaultID = totals.ShippingOptions[0].ID
	}
	info := totals.Info
	return wallet.DataResolution{Update: &wallet.PaymentDataUpdate{
		NewTransactionInfo: &info,
		NewShippingOptionParameters: &wallet.ShippingOptionParameters{
			DefaultSelectedOptionID: defaultID,
			ShippingOptions:         totals.ShippingOptions,
		},
	}}, nil
}

// OnPaymentAuthorized finalizes the session. Success releases the busy scope
// exactly once and navigates to the backend's redirect target; failure
// renders exactly one generic banner and is terminal.
func (o *Orchestrator) OnPaymentAuthorized(ctx context.Context, sessionID string, data wallet.PaymentData) (res wallet.AuthorizationResult, err error) {
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return wallet.AuthorizationResult{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("session_id", s.ID).Any("panic", r).Msg("authorization callback panicked")
			res = o.authorizationFailure(s)
			err = nil
		}
	}()

	if err := s.advance(StateAuthorizing); err != nil {
		return wallet.AuthorizationResult{}, err
	}

	start := time.Now()
	redirect, gwErr := o.gateway.AuthorizePayment(ctx, s.Call, data)
	o.observeRoundTrip(wallet.IntentPaymentAuthorized, start, gwErr)
	if gwErr != nil {
		o.logger.Error().Err(gwErr).Str("session_id", s.ID).Msg("authorization failed")
		return o.authorizationFailure(s), nil
	}

	_ = s.advance(StateSucceeded)
	s.outcome = &Outcome{Status: OutcomeSuccess, Redirect: redirect}
	o.presenter.ClearBusy(s.ID)
	o.presenter.Navigate(s.ID, redirect)
	o.countOutcome(string(OutcomeSuccess))
	o.events.Emit(events.TopicOutcome, s.ID, map[string]any{"status": string(OutcomeSuccess), "redirect": redirect})
	return wallet.AuthorizationResult{TransactionState: wallet.TxStateSuccess}, nil
}

// OnSheetClosed reacts to the shopper dismissing the sheet without paying:
// release the busy state and return to BUTTON_SHOWN so a second click can
// start over.
func (o *Orchestrator) OnSheetClosed(ctx context.Context, sessionID string) error {
	_ = ctx
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSheetOpen {
		return nil
	}
	if err := s.advance(StateButtonShown); err != nil {
		return err
	}
	o.presenter.ClearBusy(s.ID)
	o.events.Emit(events.TopicSheetClosed, s.ID, nil)
	return nil
}

// fail marks a session terminally failed and renders the generic banner.
// Callers hold s.mu.
func (o *Orchestrator) fail(s *Session) {
	_ = s.advance(StateFailed)
	s.outcome = &Outcome{Status: OutcomeError}
	o.presenter.RenderErrors(s.ID, []string{o.failureMsg})
	o.countOutcome(string(OutcomeError))
	o.events.Emit(events.TopicOutcome, s.ID, map[string]any{"status": string(OutcomeError)})
}

func (o *Orchestrator) authorizationFailure(s *Session) wallet.AuthorizationResult {
	o.fail(s)
	return wallet.AuthorizationResult{
		TransactionState: wallet.TxStateError,
		Error: &wallet.DataError{
			Reason:  wallet.ReasonPaymentDataInvalid,
			Message: o.failureMsg,
			Intent:  wallet.IntentPaymentAuthorized,
		},
	}
}

func (o *Orchestrator) dataError(reason wallet.ErrorReason, intent wallet.CallbackIntent) *wallet.DataError {
	return &wallet.DataError{Reason: reason, Message: o.failureMsg, Intent: intent}
}

func (o *Orchestrator) countReadiness(result string) {
	if obs.ReadinessTotal != nil {
		obs.ReadinessTotal.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) countOutcome(status string) {
	if obs.OutcomeTotal != nil {
		obs.OutcomeTotal.WithLabelValues(status).Inc()
	}
}

func (o *Orchestrator) observeRoundTrip(intent wallet.CallbackIntent, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.RoundTripTotal != nil {
		obs.RoundTripTotal.WithLabelValues(string(intent), result).Inc()
	}
	if obs.RoundTripLatency != nil {
		obs.RoundTripLatency.WithLabelValues(string(intent)).Observe(obs.DurationMillis(time.Since(start)))
	}
}
