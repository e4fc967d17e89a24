package gateway

import (
	"net/http"
	"testing"

	"amana-be/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() *config.Config {
	return &config.Config{
		AppURL: "https://app.example.com",
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: "whsec_test",
		},
		Paypal: config.PaypalConfig{
			ClientID:     "pp-client",
			ClientSecret: "pp-secret",
			WebhookID:    "wh-1",
			Mode:         "sandbox",
		},
		Flutterwave: config.FlutterwaveConfig{
			SecretKey:     "flw-secret",
			WebhookSecret: "flw-hash-secret",
		},
		Xendit: config.XenditConfig{
			SecretKey:     "xnd-secret",
			CallbackToken: "xnd-token",
		},
	}
}

func TestParseProvider(t *testing.T) {
	for _, tag := range []string{"stripe", "paypal", "flutterwave", "xendit"} {
		p, err := ParseProvider(tag)
		require.NoError(t, err)
		assert.Equal(t, Provider(tag), p)
	}

	_, err := ParseProvider("venmo")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = ParseProvider("")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestRegistry(t *testing.T) {
	cfg := testConfig()
	registry := NewRegistry(
		NewStripeAdapter(cfg),
		NewPaypalAdapter(cfg),
		NewFlutterwaveAdapter(cfg),
		NewXenditAdapter(cfg),
	)

	t.Run("ResolvesEveryProvider", func(t *testing.T) {
		for _, p := range []Provider{ProviderStripe, ProviderPaypal, ProviderFlutterwave, ProviderXendit} {
			a, err := registry.Get(p)
			require.NoError(t, err)
			assert.Equal(t, p, a.Provider())
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := registry.Get(Provider("venmo"))
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}

func TestDefaultCurrencies(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, "usd", NewStripeAdapter(cfg).DefaultCurrency())
	assert.Equal(t, "USD", NewPaypalAdapter(cfg).DefaultCurrency())
	assert.Equal(t, "NGN", NewFlutterwaveAdapter(cfg).DefaultCurrency())
	assert.Equal(t, "IDR", NewXenditAdapter(cfg).DefaultCurrency())
}

func TestUnsupportedOperationError(t *testing.T) {
	err := errUnsupported(ProviderXendit, "subscriptions")
	assert.True(t, IsUnsupportedOperation(err))
	assert.Contains(t, err.Error(), "xendit")
	assert.Contains(t, err.Error(), "subscriptions")

	assert.False(t, IsUnsupportedOperation(ErrUnsupportedProvider))
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{
		Provider:   ProviderFlutterwave,
		Endpoint:   "/payments",
		StatusCode: 502,
		Message:    "upstream exploded",
		Raw:        []byte(`{"secret":"should not surface"}`),
	}

	// The error string carries routing context but never the raw body.
	assert.Contains(t, err.Error(), "flutterwave")
	assert.Contains(t, err.Error(), "502")
	assert.NotContains(t, err.Error(), "should not surface")

	pe, ok := AsProviderError(err)
	assert.True(t, ok)
	assert.Equal(t, 502, pe.StatusCode)
}
