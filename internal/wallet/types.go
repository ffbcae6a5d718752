package wallet

import "encoding/json"

// CallbackIntent identifies a provider-issued callback the integration
// subscribes to when opening the payment sheet.
type CallbackIntent string

const (
	IntentShippingAddressChanged CallbackIntent = "SHIPPING_ADDRESS_CHANGED"
	IntentShippingOptionChanged  CallbackIntent = "SHIPPING_OPTION_CHANGED"
	IntentPaymentAuthorized      CallbackIntent = "PAYMENT_AUTHORIZED"
)

// ErrorReason is a provider-recognised reason code attached to a structured
// callback error.
type ErrorReason string

const (
	// ReasonShippingAddressUnserviceable tells the sheet to prompt the shopper
	// for a different address without ending the session.
	ReasonShippingAddressUnserviceable ErrorReason = "SHIPPING_ADDRESS_UNSERVICEABLE"
	ReasonPaymentDataInvalid           ErrorReason = "PAYMENT_DATA_INVALID"
	ReasonOtherError                   ErrorReason = "OTHER_ERROR"
)

// PriceStatus tags a transaction amount as final or as a stale estimate used
// only to warm the sheet before real pricing is known.
type PriceStatus string

const (
	PriceFinal     PriceStatus = "FINAL"
	PriceEstimated PriceStatus = "ESTIMATED"
)

// TransactionInfo carries the amount the sheet displays. Amounts are decimal
// strings exactly as returned by the merchant backend.
type TransactionInfo struct {
	TotalPrice       string      `json:"totalPrice"`
	CurrencyCode     string      `json:"currencyCode"`
	TotalPriceStatus PriceStatus `json:"totalPriceStatus"`
}

// CardParameters enumerate the authentication methods and card networks the
// merchant accepts.
type CardParameters struct {
	AllowedAuthMethods  []string `json:"allowedAuthMethods"`
	AllowedCardNetworks []string `json:"allowedCardNetworks"`
}

// TokenizationSpecification routes the payment token to the merchant's
// gateway. Only present on the full payment-method descriptor.
type TokenizationSpecification struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

// PaymentMethod is the accepted payment-method descriptor. The minimal
// variant (readiness probe) omits the tokenization specification; the full
// variant (payment request) includes it.
type PaymentMethod struct {
	Type                      string                     `json:"type"`
	Parameters                CardParameters             `json:"parameters"`
	TokenizationSpecification *TokenizationSpecification `json:"tokenizationSpecification,omitempty"`
}

// MerchantInfo identifies the merchant on the payment sheet.
type MerchantInfo struct {
	MerchantID   string `json:"merchantId,omitempty"`
	MerchantName string `json:"merchantName,omitempty"`
}

// ReadinessRequest asks the provider whether the viewer can pay at all. It
// never carries transaction amounts.
type ReadinessRequest struct {
	APIVersion            int             `json:"apiVersion"`
	APIVersionMinor       int             `json:"apiVersionMinor"`
	AllowedPaymentMethods []PaymentMethod `json:"allowedPaymentMethods"`
}

// ShippingAddressParameters constrain the addresses the sheet accepts.
type ShippingAddressParameters struct {
	AllowedCountryCodes []string `json:"allowedCountryCodes,omitempty"`
	PhoneNumberRequired bool     `json:"phoneNumberRequired"`
}

// PaymentDataRequest is the full transaction request handed to the provider
// when the sheet opens.
type PaymentDataRequest struct {
	APIVersion                int                        `json:"apiVersion"`
	APIVersionMinor           int                        `json:"apiVersionMinor"`
	AllowedPaymentMethods     []PaymentMethod            `json:"allowedPaymentMethods"`
	TransactionInfo           TransactionInfo            `json:"transactionInfo"`
	MerchantInfo              MerchantInfo               `json:"merchantInfo"`
	CallbackIntents           []CallbackIntent           `json:"callbackIntents,omitempty"`
	ShippingAddressRequired   bool                       `json:"shippingAddressRequired"`
	ShippingAddressParameters *ShippingAddressParameters `json:"shippingAddressParameters,omitempty"`
	ShippingOptionRequired    bool                       `json:"shippingOptionRequired"`
	EmailRequired             bool                       `json:"emailRequired"`
}

// ShippingAddress is a shopper address. Intermediate callbacks deliver a
// redacted subset (country, postal code, locality); the authorized payment
// carries the full address.
type ShippingAddress struct {
	CountryCode        string `json:"countryCode"`
	PostalCode         string `json:"postalCode,omitempty"`
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrativeArea,omitempty"`
	Address1           string `json:"address1,omitempty"`
	Address2           string `json:"address2,omitempty"`
	RecipientName      string `json:"name,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
}

// SelectionData names the shipping option the shopper picked in the sheet.
type SelectionData struct {
	ID string `json:"id"`
}

// IntermediatePaymentData is the payload of a shipping callback.
type IntermediatePaymentData struct {
	CallbackTrigger    CallbackIntent   `json:"callbackTrigger"`
	ShippingAddress    *ShippingAddress `json:"shippingAddress,omitempty"`
	ShippingOptionData *SelectionData   `json:"shippingOptionData,omitempty"`
}

// ShippingOption is one selectable delivery method shown in the sheet.
type ShippingOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ShippingOptionParameters replace the sheet's shipping option list.
type ShippingOptionParameters struct {
	DefaultSelectedOptionID string           `json:"defaultSelectedOptionId,omitempty"`
	ShippingOptions         []ShippingOption `json:"shippingOptions"`
}

// PaymentDataUpdate carries recalculated totals and shipping options back
// into the open sheet.
type PaymentDataUpdate struct {
	NewTransactionInfo          *TransactionInfo          `json:"newTransactionInfo,omitempty"`
	NewShippingOptionParameters *ShippingOptionParameters `json:"newShippingOptionParameters,omitempty"`
}

// DataError is the structured resolution of a callback that cannot produce an
// update. Reason and intent are fixed tags the provider understands; the
// message is shopper-facing.
type DataError struct {
	Reason  ErrorReason    `json:"reason"`
	Message string         `json:"message"`
	Intent  CallbackIntent `json:"intent"`
}

// DataResolution settles one data-changed intent. Exactly one of Update or
// Error is set; every intent produces exactly one resolution.
type DataResolution struct {
	Update *PaymentDataUpdate `json:"update,omitempty"`
	Error  *DataError         `json:"error,omitempty"`
}

// PaymentData is the final payload delivered by the authorization callback.
// The payment-method data (including the tokenized card) is opaque to the
// bridge and forwarded to the merchant backend verbatim.
type PaymentData struct {
	PaymentMethodData json.RawMessage  `json:"paymentMethodData"`
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty"`
	Email             string           `json:"email,omitempty"`
}

// TransactionState is the provider-facing terminal status of an
// authorization callback.
type TransactionState string

const (
	TxStateSuccess TransactionState = "SUCCESS"
	TxStateError   TransactionState = "ERROR"
)

// AuthorizationResult resolves the authorization callback.
type AuthorizationResult struct {
	TransactionState TransactionState `json:"transactionState"`
	Error            *DataError       `json:"error,omitempty"`
}
