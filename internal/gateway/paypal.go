package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"amana-be/internal/config"
	"amana-be/internal/logger"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

// OrderCapturer is the extra capability the PayPal flow needs: orders are
// approved client-side and captured server-side afterwards.
type OrderCapturer interface {
	CaptureOrder(ctx context.Context, orderID string) (*Charge, error)
}

// paypalAdapter drives the PayPal Orders v2 API. Amounts are major-unit
// decimal strings formatted from the stored minor units. Webhook signatures
// are verified through PayPal's verify-webhook-signature endpoint, which
// validates transmission id, timestamp, cert URL, algorithm and signature
// together against the provider's certificate chain.
type paypalAdapter struct {
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPaypalAdapter(cfg *config.Config) Adapter {
	if cfg.Paypal.ClientID == "" || cfg.Paypal.ClientSecret == "" {
		logger.L().Warn("PayPal credentials are not configured")
	}

	baseURL := paypalSandboxURL
	if cfg.Paypal.Mode == "live" {
		baseURL = paypalLiveURL
	}

	return &paypalAdapter{
		clientID:     cfg.Paypal.ClientID,
		clientSecret: cfg.Paypal.ClientSecret,
		webhookID:    cfg.Paypal.WebhookID,
		baseURL:      baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (p *paypalAdapter) Provider() Provider      { return ProviderPaypal }
func (p *paypalAdapter) DefaultCurrency() string { return "USD" }

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (o *paypalOrder) approveLink() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func (p *paypalAdapter) CreatePayment(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", "paypal"),
		zap.String("reference", req.Reference),
	)

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         req.Amount.String(),
			},
			"custom_id":   req.Reference,
			"description": req.Description,
		}},
	}

	raw, err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		log.Error("paypal order creation failed", zap.Error(err))
		return nil, err
	}

	var order paypalOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed decoding paypal order: %w", err)
	}

	log.Info("paypal order created",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status),
	)

	return &Charge{
		ProviderRef:       order.ID,
		ContinuationToken: order.approveLink(),
		Status:            order.Status,
		Raw:               raw,
	}, nil
}

// CaptureOrder captures an approved order. The buyer approves through the
// continuation URL first; capture settles the payment.
func (p *paypalAdapter) CaptureOrder(ctx context.Context, orderID string) (*Charge, error) {
	raw, err := p.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", struct{}{})
	if err != nil {
		logger.FromCtx(ctx).Error("paypal capture failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}

	var order paypalOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed decoding paypal capture: %w", err)
	}

	return &Charge{
		ProviderRef: order.ID,
		Status:      order.Status,
		Raw:         raw,
	}, nil
}

func (p *paypalAdapter) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	raw, err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var order paypalOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed decoding paypal order: %w", err)
	}

	return &VerificationResult{
		Status: order.Status,
		Paid:   order.Status == "COMPLETED",
		Raw:    raw,
	}, nil
}

func (p *paypalAdapter) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	return nil, errUnsupported(ProviderPaypal, "customer management")
}

func (p *paypalAdapter) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	return nil, errUnsupported(ProviderPaypal, "setup intents")
}

func (p *paypalAdapter) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	return nil, errUnsupported(ProviderPaypal, "saved payment methods")
}

func (p *paypalAdapter) ChargeSavedPaymentMethod(ctx context.Context, req *SavedChargeRequest) (*Charge, error) {
	return nil, errUnsupported(ProviderPaypal, "saved payment methods")
}

func (p *paypalAdapter) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	return nil, errUnsupported(ProviderPaypal, "subscriptions")
}

func (p *paypalAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return errUnsupported(ProviderPaypal, "subscriptions")
}

// VerifyWebhook delegates to PayPal's verify-webhook-signature endpoint.
// All five transmission headers must be present.
func (p *paypalAdapter) VerifyWebhook(payload []byte, header http.Header) (*VerifiedEvent, error) {
	transmissionID := header.Get("Paypal-Transmission-Id")
	transmissionTime := header.Get("Paypal-Transmission-Time")
	transmissionSig := header.Get("Paypal-Transmission-Sig")
	certURL := header.Get("Paypal-Cert-Url")
	authAlgo := header.Get("Paypal-Auth-Algo")

	if transmissionID == "" || transmissionTime == "" || transmissionSig == "" || certURL == "" || authAlgo == "" {
		return nil, ErrInvalidSignature
	}

	body := map[string]interface{}{
		"transmission_id":   transmissionID,
		"transmission_time": transmissionTime,
		"cert_url":          certURL,
		"auth_algo":         authAlgo,
		"transmission_sig":  transmissionSig,
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	raw, err := p.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body)
	if err != nil {
		return nil, err
	}

	var verification struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(raw, &verification); err != nil {
		return nil, fmt.Errorf("failed decoding paypal verification: %w", err)
	}
	if verification.VerificationStatus != "SUCCESS" {
		return nil, ErrInvalidSignature
	}

	var event struct {
		ID           string `json:"id"`
		EventType    string `json:"event_type"`
		Resource     struct {
			ID                string `json:"id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed decoding paypal webhook: %w", err)
	}

	kind := EventIgnored
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		kind = EventPaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		kind = EventPaymentFailed
	}

	// Captures correlate to the order id the donation was created with.
	reference := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if reference == "" {
		reference = event.Resource.ID
	}

	return &VerifiedEvent{
		ID:        event.ID,
		Type:      event.EventType,
		Kind:      kind,
		Reference: reference,
		Raw:       payload,
	}, nil
}

// token returns a cached OAuth2 access token, refreshing it when expired.
func (p *paypalAdapter) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: ProviderPaypal, Endpoint: "/v1/oauth2/token", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read paypal token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.L().Error("paypal token request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return "", &ProviderError{
			Provider:   ProviderPaypal,
			Endpoint:   "/v1/oauth2/token",
			StatusCode: resp.StatusCode,
			Message:    "paypal authentication failed",
			Raw:        raw,
		}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("failed decoding paypal token: %w", err)
	}

	p.accessToken = token.AccessToken
	// Refresh a minute early to avoid using a token mid-expiry.
	p.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)

	return p.accessToken, nil
}

func (p *paypalAdapter) do(ctx context.Context, method, endpoint string, body interface{}) (json.RawMessage, error) {
	accessToken, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderPaypal, Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paypal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.L().Error("paypal returned non-success status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return nil, &ProviderError{
			Provider:   ProviderPaypal,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "paypal request failed",
			Raw:        raw,
		}
	}

	return raw, nil
}
