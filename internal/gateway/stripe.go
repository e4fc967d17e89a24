package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"amana-be/internal/config"
	"amana-be/internal/logger"

	json "github.com/goccy/go-json"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

// stripeAdapter drives Stripe through the official SDK. Amounts are integer
// minor units. The continuation token is the payment intent client secret.
type stripeAdapter struct {
	sc            *client.API
	webhookSecret string
}

func NewStripeAdapter(cfg *config.Config) Adapter {
	if cfg.Stripe.SecretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	sc := &client.API{}
	sc.Init(cfg.Stripe.SecretKey, stripe.NewBackends(&http.Client{
		Timeout: 15 * time.Second,
	}))

	return &stripeAdapter{
		sc:            sc,
		webhookSecret: cfg.Stripe.WebhookSecret,
	}
}

func (s *stripeAdapter) Provider() Provider      { return ProviderStripe }
func (s *stripeAdapter) DefaultCurrency() string { return "usd" }

func (s *stripeAdapter) CreatePayment(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", "stripe"),
		zap.String("reference", req.Reference),
	)

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(req.Amount.MinorUnits()),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Description),
	}
	params.AddMetadata("reference", req.Reference)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		log.Error("stripe payment intent creation failed", zap.Error(err))
		return nil, s.wrapErr("payment_intents", err)
	}

	log.Info("stripe payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)

	return &Charge{
		ProviderRef:       intent.ID,
		ContinuationToken: intent.ClientSecret,
		Status:            string(intent.Status),
		Raw:               rawOf(intent.LastResponse, intent),
	}, nil
}

func (s *stripeAdapter) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	intent, err := s.sc.PaymentIntents.Get(reference, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		logger.FromCtx(ctx).Error("stripe payment intent lookup failed",
			zap.String("payment_intent_id", reference),
			zap.Error(err),
		)
		return nil, s.wrapErr("payment_intents", err)
	}

	var paidAt *time.Time
	if intent.Status == stripe.PaymentIntentStatusSucceeded && intent.Created > 0 {
		t := time.Unix(intent.Created, 0).UTC()
		paidAt = &t
	}

	return &VerificationResult{
		Status: string(intent.Status),
		Paid:   intent.Status == stripe.PaymentIntentStatusSucceeded,
		PaidAt: paidAt,
		Raw:    rawOf(intent.LastResponse, intent),
	}, nil
}

// GetOrCreateCustomer relies on Stripe's customer listing by email for
// dedup: an existing customer is returned as-is.
func (s *stripeAdapter) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := s.sc.Customers.List(listParams)
	for iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email, Name: c.Name, Raw: rawOf(c.LastResponse, c)}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, s.wrapErr("customers", err)
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}

	c, err := s.sc.Customers.New(params)
	if err != nil {
		logger.FromCtx(ctx).Error("stripe customer creation failed", zap.Error(err))
		return nil, s.wrapErr("customers", err)
	}

	return &Customer{ID: c.ID, Email: c.Email, Name: c.Name, Raw: rawOf(c.LastResponse, c)}, nil
}

func (s *stripeAdapter) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	intent, err := s.sc.SetupIntents.New(&stripe.SetupIntentParams{
		Params:             stripe.Params{Context: ctx},
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	})
	if err != nil {
		logger.FromCtx(ctx).Error("stripe setup intent creation failed", zap.Error(err))
		return nil, s.wrapErr("setup_intents", err)
	}

	return &SetupIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Raw:          rawOf(intent.LastResponse, intent),
	}, nil
}

func (s *stripeAdapter) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}
	params.Context = ctx

	var methods []PaymentMethod
	iter := s.sc.PaymentMethods.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		m := PaymentMethod{ID: pm.ID}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
			m.ExpMonth = pm.Card.ExpMonth
			m.ExpYear = pm.Card.ExpYear
		}
		methods = append(methods, m)
	}
	if err := iter.Err(); err != nil {
		return nil, s.wrapErr("payment_methods", err)
	}

	return methods, nil
}

func (s *stripeAdapter) ChargeSavedPaymentMethod(ctx context.Context, req *SavedChargeRequest) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.Amount.MinorUnits()),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		logger.FromCtx(ctx).Error("stripe off-session charge failed", zap.Error(err))
		return nil, s.wrapErr("payment_intents", err)
	}

	return &Charge{
		ProviderRef:       intent.ID,
		ContinuationToken: intent.ClientSecret,
		Status:            string(intent.Status),
		Raw:               rawOf(intent.LastResponse, intent),
	}, nil
}

func (s *stripeAdapter) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	if req.PaymentMethodID != "" {
		_, err := s.sc.PaymentMethods.Attach(req.PaymentMethodID, &stripe.PaymentMethodAttachParams{
			Params:   stripe.Params{Context: ctx},
			Customer: stripe.String(req.CustomerID),
		})
		if err != nil {
			return nil, s.wrapErr("payment_methods", err)
		}

		_, err = s.sc.Customers.Update(req.CustomerID, &stripe.CustomerParams{
			Params: stripe.Params{Context: ctx},
			InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(req.PaymentMethodID),
			},
		})
		if err != nil {
			return nil, s.wrapErr("customers", err)
		}
	}

	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PlanID)},
		},
	}
	params.AddExpand("latest_invoice.payment_intent")
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := s.sc.Subscriptions.New(params)
	if err != nil {
		logger.FromCtx(ctx).Error("stripe subscription creation failed", zap.Error(err))
		return nil, s.wrapErr("subscriptions", err)
	}

	return &Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
		Raw:    rawOf(sub.LastResponse, sub),
	}, nil
}

func (s *stripeAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := s.sc.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return s.wrapErr("subscriptions", err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header with the SDK, which
// enforces the signing secret and the default timestamp tolerance window.
func (s *stripeAdapter) VerifyWebhook(payload []byte, header http.Header) (*VerifiedEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err.Error())
	}

	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("failed decoding stripe event object: %w", err)
	}

	kind := EventIgnored
	switch event.Type {
	case "payment_intent.succeeded":
		kind = EventPaymentSucceeded
	case "payment_intent.payment_failed":
		kind = EventPaymentFailed
	}

	return &VerifiedEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Kind:      kind,
		Reference: object.ID,
		Raw:       payload,
	}, nil
}

// wrapErr converts SDK errors into the structured boundary error so no
// stripe-go type leaks into orchestrator logic.
func (s *stripeAdapter) wrapErr(endpoint string, err error) error {
	pe := &ProviderError{Provider: ProviderStripe, Endpoint: endpoint, Message: err.Error()}
	if stripeErr, ok := err.(*stripe.Error); ok {
		pe.StatusCode = stripeErr.HTTPStatusCode
		pe.Message = stripeErr.Msg
	}
	return pe
}

// rawOf prefers the SDK-captured response body, falling back to
// re-marshalling the typed object.
func rawOf(lr *stripe.APIResponse, v interface{}) json.RawMessage {
	if lr != nil && len(lr.RawJSON) > 0 {
		return json.RawMessage(lr.RawJSON)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
