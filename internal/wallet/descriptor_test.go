package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storekit/wallet-bridge/internal/wallet"
)

func testBuilder() wallet.DescriptorBuilder {
	return wallet.DescriptorBuilder{
		MerchantID:        "merchant-123",
		MerchantName:      "Demo Store",
		GatewayID:         "examplegateway",
		GatewayMerchantID: "gw-merchant-9",
		CardNetworks:      []string{"VISA", "MASTERCARD"},
		AuthMethods:       []string{"PAN_ONLY", "CRYPTOGRAM_3DS"},
		ShippingCountries: []string{"DE", "AT"},
		PhoneRequired:     true,
	}
}

func TestReadinessRequestOmitsTokenizationAndAmounts(t *testing.T) {
	t.Parallel()

	req := testBuilder().ReadinessRequest()
	require.Equal(t, 2, req.APIVersion)
	require.Len(t, req.AllowedPaymentMethods, 1)

	method := req.AllowedPaymentMethods[0]
	require.Equal(t, "CARD", method.Type)
	require.Nil(t, method.TokenizationSpecification)
	require.Equal(t, []string{"VISA", "MASTERCARD"}, method.Parameters.AllowedCardNetworks)
}

func TestTransactionRequestDerivesFromMinimalDescriptor(t *testing.T) {
	t.Parallel()

	b := testBuilder()
	info := wallet.TransactionInfo{TotalPrice: "42.00", CurrencyCode: "EUR", TotalPriceStatus: wallet.PriceFinal}
	req := b.TransactionRequest(info)

	require.Len(t, req.AllowedPaymentMethods, 1)
	full := req.AllowedPaymentMethods[0]
	minimal := b.ReadinessRequest().AllowedPaymentMethods[0]

	// Full and minimal forms must never diverge on the shared fields.
	require.Equal(t, minimal.Type, full.Type)
	require.Equal(t, minimal.Parameters, full.Parameters)
	require.NotNil(t, full.TokenizationSpecification)
	require.Equal(t, "examplegateway", full.TokenizationSpecification.Parameters["gateway"])
	require.Equal(t, "gw-merchant-9", full.TokenizationSpecification.Parameters["gatewayMerchantId"])

	require.Equal(t, "42.00", req.TransactionInfo.TotalPrice)
	require.Equal(t, wallet.PriceFinal, req.TransactionInfo.TotalPriceStatus)
	require.True(t, req.ShippingAddressRequired)
	require.True(t, req.ShippingOptionRequired)
	require.Equal(t, []wallet.CallbackIntent{
		wallet.IntentShippingAddressChanged,
		wallet.IntentShippingOptionChanged,
		wallet.IntentPaymentAuthorized,
	}, req.CallbackIntents)
	require.NotNil(t, req.ShippingAddressParameters)
	require.Equal(t, []string{"DE", "AT"}, req.ShippingAddressParameters.AllowedCountryCodes)
	require.True(t, req.ShippingAddressParameters.PhoneNumberRequired)
	require.Equal(t, "merchant-123", req.MerchantInfo.MerchantID)
}

func TestBuilderIsDeterministic(t *testing.T) {
	t.Parallel()

	b := testBuilder()
	info := wallet.TransactionInfo{TotalPrice: "9.99", CurrencyCode: "EUR", TotalPriceStatus: wallet.PriceFinal}
	require.Equal(t, b.TransactionRequest(info), b.TransactionRequest(info))
	require.Equal(t, b.ReadinessRequest(), b.ReadinessRequest())
}

func TestPrefetchRequestForcesEstimatedStatus(t *testing.T) {
	t.Parallel()

	info := wallet.TransactionInfo{TotalPrice: "42.00", CurrencyCode: "EUR", TotalPriceStatus: wallet.PriceFinal}
	req := testBuilder().PrefetchRequest(info)
	require.Equal(t, wallet.PriceEstimated, req.TransactionInfo.TotalPriceStatus)
	require.Equal(t, "42.00", req.TransactionInfo.TotalPrice)
}
