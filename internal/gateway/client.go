package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storekit/wallet-bridge/internal/wallet"
)

// Backend action identifiers. Each round trip posts one action with its
// per-action anti-replay token.
const (
	ActionTransactionInfo = "wallet_get_transaction_info"
	ActionRecalculate     = "wallet_recalculate_totals"
	ActionProcessPayment  = "wallet_process_payment"
)

// CallContext carries the per-session identifiers a backend round trip needs:
// the optional product (product-detail-page checkout) and the anti-replay
// token minted by the storefront for each action.
type CallContext struct {
	ProductID string
	Nonces    map[string]string
}

// BackendError is the single failure category for backend round trips.
// Application-level failures and transport failures are deliberately
// collapsed: the caller's recovery action is the same for both.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend: %s", e.Message)
}

// Totals is the successful result of a recalculation round trip. The
// shipping-options list may be empty; the caller decides what that means.
type Totals struct {
	Info            wallet.TransactionInfo
	ShippingOptions []wallet.ShippingOption
	DefaultOptionID string
}

// Client issues the merchant-backend round trips the negotiation needs. It
// parses the transport envelope and nothing more: no UI, no business
// interpretation of payloads.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewClient constructs a backend client with a traced transport.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Timeout: timeout,
		Logger:  logger,
	}
}

// FetchTransactionInfo requests current cart/product pricing. The returned
// info always carries a FINAL price status.
func (c *Client) FetchTransactionInfo(ctx context.Context, call CallContext) (wallet.TransactionInfo, error) {
	var data struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := c.post(ctx, ActionTransactionInfo, call, nil, &data); err != nil {
		return wallet.TransactionInfo{}, err
	}
	return wallet.TransactionInfo{
		TotalPrice:       data.Amount,
		CurrencyCode:     data.Currency,
		TotalPriceStatus: wallet.PriceFinal,
	}, nil
}

// RecalculateTotals reprices the cart for a candidate shipping address and,
// optionally, a chosen shipping method. Success always includes the
// shipping-options list, possibly empty.
func (c *Client) RecalculateTotals(ctx context.Context, call CallContext, addr *wallet.ShippingAddress, shippingMethodID string) (Totals, error) {
	params := url.Values{}
	if addr != nil {
		params.Set("country", addr.CountryCode)
		params.Set("postcode", addr.PostalCode)
		params.Set("city", addr.Locality)
		params.Set("state", addr.AdministrativeArea)
	}
	if shippingMethodID != "" {
		params.Set("shipping_method", shippingMethodID)
	}

	var data struct {
		Amount          string                  `json:"amount"`
		Currency        string                  `json:"currency"`
		ShippingOptions []wallet.ShippingOption `json:"shippingOptions"`
		DefaultOptionID string                  `json:"defaultShippingOptionId"`
	}
	if err := c.post(ctx, ActionRecalculate, call, params, &data); err != nil {
		return Totals{}, err
	}
	return Totals{
		Info: wallet.TransactionInfo{
			TotalPrice:       data.Amount,
			CurrencyCode:     data.Currency,
			TotalPriceStatus: wallet.PriceFinal,
		},
		ShippingOptions: data.ShippingOptions,
		DefaultOptionID: data.DefaultOptionID,
	}, nil
}

// AuthorizePayment submits the opaque payment payload for final
// authorization. Success returns the post-payment redirect target; the
// caller performs the navigation.
func (c *Client) AuthorizePayment(ctx context.Context, call CallContext, data wallet.PaymentData) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		c.Logger.Error().Err(err).Msg("encode payment data")
		return "", &BackendError{Message: "invalid payment payload"}
	}
	params := url.Values{}
	params.Set("payment_data", string(encoded))

	var payload struct {
		Redirect string `json:"redirect"`
	}
	if err := c.post(ctx, ActionProcessPayment, call, params, &payload); err != nil {
		return "", err
	}
	return payload.Redirect, nil
}

// post issues one form-encoded request and decodes the {success, data}
// envelope. One attempt per round trip: transport errors, non-2xx statuses,
// malformed bodies and success=false all normalise to *BackendError. Raw
// detail goes to the log only, never to the shopper.
func (c *Client) post(ctx context.Context, action string, call CallContext, params url.Values, out any) error {
	if c == nil || c.HTTP == nil || c.BaseURL == "" {
		return &BackendError{Message: "gateway not configured"}
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)
	if token := call.Nonces[action]; token != "" {
		params.Set("nonce", token)
	}
	if call.ProductID != "" {
		params.Set("product_id", call.ProductID)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.BaseURL, strings.NewReader(params.Encode()))
	if err != nil {
		c.Logger.Error().Err(err).Str("action", action).Msg("build backend request")
		return &BackendError{Message: "request could not be built"}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error().Err(err).Str("action", action).Msg("backend transport failure")
		return &BackendError{Message: "backend unreachable"}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.Logger.Error().Err(err).Str("action", action).Msg("read backend response")
		return &BackendError{Message: "backend response unreadable"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Logger.Error().Str("action", action).Int("status", resp.StatusCode).Msg("backend status failure")
		return &BackendError{Message: resp.Status}
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.Logger.Error().Err(err).Str("action", action).Msg("decode backend envelope")
		return &BackendError{Message: "malformed backend response"}
	}
	if !envelope.Success {
		message := failureMessage(envelope.Data)
		c.Logger.Warn().Str("action", action).Str("detail", message).Msg("backend reported failure")
		return &BackendError{Message: message}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			c.Logger.Error().Err(err).Str("action", action).Msg("decode backend payload")
			return &BackendError{Message: "malformed backend payload"}
		}
	}
	return nil
}

func failureMessage(data json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
			return payload.Message
		}
	}
	return "request failed"
}

// IsBackendError reports whether err belongs to the gateway failure category.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
