package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"testing"

	"amana-be/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flwSign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestFlutterwaveAdapter_CreatePayment(t *testing.T) {
	gw := NewFlutterwaveAdapter(testConfig()).(*flutterwaveAdapter)

	amount, err := money.Parse("10.00")
	require.NoError(t, err)

	req := &ChargeRequest{
		Reference:   "tx_1700000000_abc",
		Amount:      amount,
		Currency:    "NGN",
		PayerEmail:  "donor@example.com",
		PayerName:   "Donor",
		Description: "Donation",
	}

	t.Run("Success", func(t *testing.T) {
		respBody := `{
			"status": "success",
			"message": "Hosted Link",
			"data": {"link": "https://checkout.flutterwave.com/v3/hosted/pay/abc"}
		}`

		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "https://api.flutterwave.com/v3/payments", r.URL.String())
			assert.Equal(t, "Bearer flw-secret", r.Header.Get("Authorization"))

			body, _ := io.ReadAll(r.Body)
			// Flutterwave gets decimal major units.
			assert.Contains(t, string(body), `"amount":10`)
			assert.Contains(t, string(body), `"tx_ref":"tx_1700000000_abc"`)

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(respBody)),
				Header:     make(http.Header),
			}
		})

		charge, err := gw.CreatePayment(context.Background(), req)
		require.NoError(t, err)
		// The donation correlates by our tx_ref, not a provider-generated id.
		assert.Equal(t, "tx_1700000000_abc", charge.ProviderRef)
		assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/abc", charge.ContinuationToken)
	})

	t.Run("ErrorEnvelope", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"status":"error","message":"Invalid currency"}`)),
				Header:     make(http.Header),
			}
		})

		_, err := gw.CreatePayment(context.Background(), req)
		require.Error(t, err)

		pe, ok := AsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid currency", pe.Message)
	})
}

func TestFlutterwaveAdapter_VerifyPayment(t *testing.T) {
	gw := NewFlutterwaveAdapter(testConfig()).(*flutterwaveAdapter)

	gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
		assert.Equal(t, "https://api.flutterwave.com/v3/transactions/12345/verify", r.URL.String())
		return &http.Response{
			StatusCode: http.StatusOK,
			Body: io.NopCloser(bytes.NewBufferString(
				`{"status":"success","data":{"id":12345,"tx_ref":"tx_1","status":"successful"}}`,
			)),
			Header: make(http.Header),
		}
	})

	result, err := gw.VerifyPayment(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, "successful", result.Status)
}

func TestFlutterwaveAdapter_GetOrCreateCustomer(t *testing.T) {
	gw := NewFlutterwaveAdapter(testConfig()).(*flutterwaveAdapter)

	t.Run("ExistingCustomerIsReturned", func(t *testing.T) {
		var createCalled bool
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			if r.Method == http.MethodGet {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body: io.NopCloser(bytes.NewBufferString(
						`{"status":"success","data":[{"id":881,"email":"donor@example.com","full_name":"Donor"}]}`,
					)),
					Header: make(http.Header),
				}
			}
			createCalled = true
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"status":"success","data":{}}`)),
				Header:     make(http.Header),
			}
		})

		customer, err := gw.GetOrCreateCustomer(context.Background(), "donor@example.com", "Donor")
		require.NoError(t, err)
		assert.Equal(t, "881", customer.ID)
		assert.False(t, createCalled, "must not create a duplicate customer")

		// Second call with the same email resolves to the same customer.
		again, err := gw.GetOrCreateCustomer(context.Background(), "donor@example.com", "Donor")
		require.NoError(t, err)
		assert.Equal(t, customer.ID, again.ID)
	})

	t.Run("MissCreates", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			if r.Method == http.MethodGet {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`{"status":"success","data":[]}`)),
					Header:     make(http.Header),
				}
			}
			assert.Equal(t, "https://api.flutterwave.com/v3/customers", r.URL.String())
			return &http.Response{
				StatusCode: http.StatusOK,
				Body: io.NopCloser(bytes.NewBufferString(
					`{"status":"success","data":{"id":992,"email":"new@example.com","full_name":"New Donor"}}`,
				)),
				Header: make(http.Header),
			}
		})

		customer, err := gw.GetOrCreateCustomer(context.Background(), "new@example.com", "New Donor")
		require.NoError(t, err)
		assert.Equal(t, "992", customer.ID)
	})
}

func TestFlutterwaveAdapter_VerifyWebhook(t *testing.T) {
	gw := NewFlutterwaveAdapter(testConfig()).(*flutterwaveAdapter)
	payload := []byte(`{"event":"charge.completed","data":{"id":12345,"tx_ref":"tx_1700000000_abc","status":"successful"}}`)

	t.Run("ValidSignature", func(t *testing.T) {
		header := http.Header{}
		header.Set("verif-hash", flwSign("flw-hash-secret", payload))

		event, err := gw.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentSucceeded, event.Kind)
		assert.Equal(t, "tx_1700000000_abc", event.Reference)
		assert.Equal(t, "charge.completed", event.Type)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		header := http.Header{}
		header.Set("verif-hash", flwSign("flw-hash-secret", payload))

		tampered := bytes.Replace(payload, []byte("successful"), []byte("failed    "), 1)
		_, err := gw.VerifyWebhook(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		header := http.Header{}
		header.Set("verif-hash", flwSign("not-the-secret", payload))

		_, err := gw.VerifyWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		_, err := gw.VerifyWebhook(payload, http.Header{})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("FailedChargeMapsToFailed", func(t *testing.T) {
		failed := []byte(`{"event":"charge.completed","data":{"id":1,"tx_ref":"tx_2","status":"failed"}}`)
		header := http.Header{}
		header.Set("verif-hash", flwSign("flw-hash-secret", failed))

		event, err := gw.VerifyWebhook(failed, header)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, event.Kind)
	})

	t.Run("UnrecognizedEventIgnored", func(t *testing.T) {
		other := []byte(`{"event":"transfer.completed","data":{"id":1,"tx_ref":"tx_3","status":"successful"}}`)
		header := http.Header{}
		header.Set("verif-hash", flwSign("flw-hash-secret", other))

		event, err := gw.VerifyWebhook(other, header)
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, event.Kind)
	})
}
