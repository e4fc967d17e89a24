package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"time"

	"amana-be/internal/config"
	"amana-be/internal/logger"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const xenditBaseURL = "https://api.xendit.co"

// xenditAdapter drives the Xendit invoice API. Invoices are hosted checkout
// pages, so the continuation token is the invoice URL. Amounts are whole
// major units (IDR has no minor unit in practice).
type xenditAdapter struct {
	apiKey        string
	callbackToken string
	baseURL       string
	successURL    string
	failureURL    string
	httpClient    *http.Client
}

func NewXenditAdapter(cfg *config.Config) Adapter {
	if cfg.Xendit.SecretKey == "" {
		logger.L().Warn("Xendit API key is empty")
	}

	return &xenditAdapter{
		apiKey:        cfg.Xendit.SecretKey,
		callbackToken: cfg.Xendit.CallbackToken,
		baseURL:       xenditBaseURL,
		successURL:    cfg.AppURL + "/payment/success",
		failureURL:    cfg.AppURL + "/payment/cancel",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (x *xenditAdapter) Provider() Provider      { return ProviderXendit }
func (x *xenditAdapter) DefaultCurrency() string { return "IDR" }

type xenditInvoice struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoice_url"`
	PaidAt     string `json:"paid_at,omitempty"`
}

func (x *xenditAdapter) CreatePayment(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", "xendit"),
		zap.String("reference", req.Reference),
	)

	body := map[string]interface{}{
		"external_id":          req.Reference,
		"amount":               req.Amount.MajorUnits(),
		"payer_email":          req.PayerEmail,
		"description":          req.Description,
		"currency":             req.Currency,
		"success_redirect_url": x.successURL,
		"failure_redirect_url": x.failureURL,
	}

	raw, err := x.do(ctx, http.MethodPost, "/v2/invoices", body)
	if err != nil {
		log.Error("xendit invoice creation failed", zap.Error(err))
		return nil, err
	}

	var inv xenditInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed decoding xendit invoice: %w", err)
	}

	log.Info("xendit invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("status", inv.Status),
	)

	return &Charge{
		ProviderRef:       inv.ID,
		ContinuationToken: inv.InvoiceURL,
		Status:            inv.Status,
		Raw:               raw,
	}, nil
}

func (x *xenditAdapter) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	raw, err := x.do(ctx, http.MethodGet, "/v2/invoices/"+reference, nil)
	if err != nil {
		logger.FromCtx(ctx).Error("xendit invoice lookup failed",
			zap.String("invoice_id", reference),
			zap.Error(err),
		)
		return nil, err
	}

	var inv struct {
		Status string     `json:"status"`
		PaidAt *time.Time `json:"paid_at"`
	}
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed decoding xendit invoice: %w", err)
	}

	return &VerificationResult{
		Status: inv.Status,
		Paid:   inv.Status == "PAID" || inv.Status == "SETTLED",
		PaidAt: inv.PaidAt,
		Raw:    raw,
	}, nil
}

func (x *xenditAdapter) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	return nil, errUnsupported(ProviderXendit, "customer management")
}

func (x *xenditAdapter) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	return nil, errUnsupported(ProviderXendit, "setup intents")
}

func (x *xenditAdapter) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	return nil, errUnsupported(ProviderXendit, "saved payment methods")
}

func (x *xenditAdapter) ChargeSavedPaymentMethod(ctx context.Context, req *SavedChargeRequest) (*Charge, error) {
	return nil, errUnsupported(ProviderXendit, "saved payment methods")
}

func (x *xenditAdapter) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	return nil, errUnsupported(ProviderXendit, "subscriptions")
}

func (x *xenditAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return errUnsupported(ProviderXendit, "subscriptions")
}

// VerifyWebhook checks the x-callback-token header against the configured
// token using a constant-time comparison.
func (x *xenditAdapter) VerifyWebhook(payload []byte, header http.Header) (*VerifiedEvent, error) {
	token := header.Get("x-callback-token")
	if x.callbackToken == "" || token == "" {
		return nil, ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(x.callbackToken), []byte(token)) != 1 {
		return nil, ErrInvalidSignature
	}

	var event xenditInvoice
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed decoding xendit webhook: %w", err)
	}

	kind := EventIgnored
	switch event.Status {
	case "PAID", "SETTLED":
		kind = EventPaymentSucceeded
	case "EXPIRED":
		kind = EventPaymentFailed
	}

	return &VerifiedEvent{
		ID:        event.ID,
		Type:      event.Status,
		Kind:      kind,
		Reference: event.ID,
		Raw:       payload,
	}, nil
}

func (x *xenditAdapter) do(ctx context.Context, method, endpoint string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(x.apiKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderXendit, Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read xendit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		logger.L().Error("xendit returned non-success status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return nil, &ProviderError{
			Provider:   ProviderXendit,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "xendit request failed",
			Raw:        raw,
		}
	}

	return raw, nil
}
