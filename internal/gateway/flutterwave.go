package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"amana-be/internal/config"
	"amana-be/internal/logger"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// flutterwaveAdapter drives the Flutterwave v3 API. Amounts are decimal
// major units; the payment reference is our tx_ref, echoed back by both the
// verify endpoint and webhooks.
type flutterwaveAdapter struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	callbackURL   string
	httpClient    *http.Client
}

func NewFlutterwaveAdapter(cfg *config.Config) Adapter {
	if cfg.Flutterwave.SecretKey == "" {
		logger.L().Warn("Flutterwave secret key is empty")
	}

	return &flutterwaveAdapter{
		secretKey:     cfg.Flutterwave.SecretKey,
		webhookSecret: cfg.Flutterwave.WebhookSecret,
		baseURL:       flutterwaveBaseURL,
		callbackURL:   cfg.AppURL + "/api/payments/flutterwave/callback",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (f *flutterwaveAdapter) Provider() Provider      { return ProviderFlutterwave }
func (f *flutterwaveAdapter) DefaultCurrency() string { return "NGN" }

// flutterwaveEnvelope is the common {status, message, data} response wrapper.
type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *flutterwaveAdapter) CreatePayment(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", "flutterwave"),
		zap.String("tx_ref", req.Reference),
	)

	body := map[string]interface{}{
		"tx_ref":       req.Reference,
		"amount":       req.Amount.MajorFloat(),
		"currency":     req.Currency,
		"redirect_url": f.callbackURL,
		"customer": map[string]string{
			"email": req.PayerEmail,
			"name":  req.PayerName,
		},
		"customizations": map[string]string{
			"title":       "Donation",
			"description": req.Description,
		},
	}
	if len(req.Metadata) > 0 {
		body["meta"] = req.Metadata
	}

	raw, err := f.do(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		log.Error("flutterwave payment creation failed", zap.Error(err))
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave payment: %w", err)
	}

	log.Info("flutterwave payment created", zap.String("status", raw.Status))

	return &Charge{
		ProviderRef:       req.Reference,
		ContinuationToken: data.Link,
		Status:            raw.Status,
		Raw:               raw.Data,
	}, nil
}

func (f *flutterwaveAdapter) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	raw, err := f.do(ctx, http.MethodGet, "/transactions/"+reference+"/verify", nil)
	if err != nil {
		logger.FromCtx(ctx).Error("flutterwave verification failed",
			zap.String("transaction_id", reference),
			zap.Error(err),
		)
		return nil, err
	}

	var data struct {
		Status    string     `json:"status"`
		CreatedAt *time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave transaction: %w", err)
	}

	return &VerificationResult{
		Status: data.Status,
		Paid:   raw.Status == "success" && data.Status == "successful",
		PaidAt: data.CreatedAt,
		Raw:    raw.Data,
	}, nil
}

// GetOrCreateCustomer looks the customer up by email first. Flutterwave has
// no native dedup on customer creation, so create only on a confirmed miss.
func (f *flutterwaveAdapter) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	raw, err := f.do(ctx, http.MethodGet, "/customers?email="+url.QueryEscape(email), nil)
	if err == nil {
		var existing []struct {
			ID    json.Number `json:"id"`
			Email string      `json:"email"`
			Name  string      `json:"full_name"`
		}
		if jsonErr := json.Unmarshal(raw.Data, &existing); jsonErr == nil && len(existing) > 0 {
			return &Customer{
				ID:    existing[0].ID.String(),
				Email: existing[0].Email,
				Name:  existing[0].Name,
				Raw:   raw.Data,
			}, nil
		}
	}

	body := map[string]string{
		"email": email,
		"name":  name,
	}
	created, err := f.do(ctx, http.MethodPost, "/customers", body)
	if err != nil {
		return nil, err
	}

	var customer struct {
		ID    json.Number `json:"id"`
		Email string      `json:"email"`
		Name  string      `json:"full_name"`
	}
	if err := json.Unmarshal(created.Data, &customer); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave customer: %w", err)
	}

	return &Customer{
		ID:    customer.ID.String(),
		Email: customer.Email,
		Name:  customer.Name,
		Raw:   created.Data,
	}, nil
}

func (f *flutterwaveAdapter) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	return nil, errUnsupported(ProviderFlutterwave, "setup intents")
}

func (f *flutterwaveAdapter) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	return nil, errUnsupported(ProviderFlutterwave, "saved payment method listing")
}

func (f *flutterwaveAdapter) ChargeSavedPaymentMethod(ctx context.Context, req *SavedChargeRequest) (*Charge, error) {
	reference := fmt.Sprintf("tx_saved_%d", time.Now().UnixNano())
	body := map[string]interface{}{
		"tx_ref":     reference,
		"amount":     req.Amount.MajorFloat(),
		"currency":   req.Currency,
		"email":      req.PayerEmail,
		"card_token": req.PaymentMethodID,
		"customer": map[string]string{
			"email": req.PayerEmail,
		},
	}

	raw, err := f.do(ctx, http.MethodPost, "/charges?type=card", body)
	if err != nil {
		logger.FromCtx(ctx).Error("flutterwave saved-card charge failed", zap.Error(err))
		return nil, err
	}

	var data struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(raw.Data, &data)

	return &Charge{
		ProviderRef: reference,
		Status:      data.Status,
		Raw:         raw.Data,
	}, nil
}

func (f *flutterwaveAdapter) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	body := map[string]interface{}{
		"amount": req.Amount.MajorFloat(),
		"plan":   req.PlanID,
		"customer": map[string]string{
			"email": req.CustomerEmail,
			"name":  req.CustomerName,
		},
		"interval": req.Interval,
		"currency": req.Currency,
	}

	raw, err := f.do(ctx, http.MethodPost, "/subscriptions", body)
	if err != nil {
		logger.FromCtx(ctx).Error("flutterwave subscription creation failed", zap.Error(err))
		return nil, err
	}

	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave subscription: %w", err)
	}

	return &Subscription{
		ID:     data.ID.String(),
		Status: data.Status,
		Raw:    raw.Data,
	}, nil
}

func (f *flutterwaveAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := f.do(ctx, http.MethodPut, "/subscriptions/"+subscriptionID+"/cancel", nil)
	return err
}

// VerifyWebhook compares the verif-hash header against an HMAC-SHA256 of the
// raw payload keyed with the configured webhook secret, in constant time.
func (f *flutterwaveAdapter) VerifyWebhook(payload []byte, header http.Header) (*VerifiedEvent, error) {
	signature := header.Get("verif-hash")
	if f.webhookSecret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(f.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			ID     json.Number `json:"id"`
			TxRef  string      `json:"tx_ref"`
			Status string      `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave webhook: %w", err)
	}

	kind := EventIgnored
	if event.Event == "charge.completed" {
		switch event.Data.Status {
		case "successful":
			kind = EventPaymentSucceeded
		case "failed":
			kind = EventPaymentFailed
		}
	}

	return &VerifiedEvent{
		ID:        event.Data.ID.String(),
		Type:      event.Event,
		Kind:      kind,
		Reference: event.Data.TxRef,
		Raw:       payload,
	}, nil
}

func (f *flutterwaveAdapter) do(ctx context.Context, method, endpoint string, body interface{}) (*flutterwaveEnvelope, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderFlutterwave, Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read flutterwave response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.L().Error("flutterwave returned non-success status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return nil, &ProviderError{
			Provider:   ProviderFlutterwave,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "flutterwave request failed",
			Raw:        raw,
		}
	}

	var envelope flutterwaveEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed decoding flutterwave response: %w", err)
	}
	if envelope.Status == "error" {
		return nil, &ProviderError{
			Provider:   ProviderFlutterwave,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    envelope.Message,
			Raw:        raw,
		}
	}

	return &envelope, nil
}
