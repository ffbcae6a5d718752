package wallet

import "slices"

const (
	apiVersion      = 2
	apiVersionMinor = 0

	methodTypeCard           = "CARD"
	tokenizationTypeGateway  = "PAYMENT_GATEWAY"
	tokenizationParamGateway = "gateway"
	tokenizationParamGwMerch = "gatewayMerchantId"
)

// DescriptorBuilder assembles the provider-facing descriptors from static
// merchant configuration. All methods are pure: identical inputs yield
// structurally identical output.
type DescriptorBuilder struct {
	MerchantID        string
	MerchantName      string
	GatewayID         string
	GatewayMerchantID string
	CardNetworks      []string
	AuthMethods       []string
	ShippingCountries []string
	PhoneRequired     bool
	EmailRequired     bool
}

// basePaymentMethod is the minimal descriptor shared by the readiness probe
// and the payment request. The full form must never diverge from it on the
// shared fields, so both are derived from here.
func (b DescriptorBuilder) basePaymentMethod() PaymentMethod {
	return PaymentMethod{
		Type: methodTypeCard,
		Parameters: CardParameters{
			AllowedAuthMethods:  slices.Clone(b.AuthMethods),
			AllowedCardNetworks: slices.Clone(b.CardNetworks),
		},
	}
}

func (b DescriptorBuilder) fullPaymentMethod() PaymentMethod {
	method := b.basePaymentMethod()
	method.TokenizationSpecification = &TokenizationSpecification{
		Type: tokenizationTypeGateway,
		Parameters: map[string]string{
			tokenizationParamGateway: b.GatewayID,
			tokenizationParamGwMerch: b.GatewayMerchantID,
		},
	}
	return method
}

// ReadinessRequest builds the capability probe. It carries no amounts and no
// tokenization specification.
func (b DescriptorBuilder) ReadinessRequest() ReadinessRequest {
	return ReadinessRequest{
		APIVersion:            apiVersion,
		APIVersionMinor:       apiVersionMinor,
		AllowedPaymentMethods: []PaymentMethod{b.basePaymentMethod()},
	}
}

// TransactionRequest builds the full payment request for freshly fetched
// transaction info. Callers resolve transaction info first; the builder never
// fetches anything itself.
func (b DescriptorBuilder) TransactionRequest(info TransactionInfo) PaymentDataRequest {
	return PaymentDataRequest{
		APIVersion:            apiVersion,
		APIVersionMinor:       apiVersionMinor,
		AllowedPaymentMethods: []PaymentMethod{b.fullPaymentMethod()},
		TransactionInfo:       info,
		MerchantInfo: MerchantInfo{
			MerchantID:   b.MerchantID,
			MerchantName: b.MerchantName,
		},
		CallbackIntents: []CallbackIntent{
			IntentShippingAddressChanged,
			IntentShippingOptionChanged,
			IntentPaymentAuthorized,
		},
		ShippingAddressRequired: true,
		ShippingAddressParameters: &ShippingAddressParameters{
			AllowedCountryCodes: slices.Clone(b.ShippingCountries),
			PhoneNumberRequired: b.PhoneRequired,
		},
		ShippingOptionRequired: true,
		EmailRequired:          b.EmailRequired,
	}
}

// PrefetchRequest builds a cache-warming request from intentionally stale
// transaction info. The price status is forced to ESTIMATED so the sheet
// never presents a stale amount as final.
func (b DescriptorBuilder) PrefetchRequest(info TransactionInfo) PaymentDataRequest {
	info.TotalPriceStatus = PriceEstimated
	return b.TransactionRequest(info)
}
