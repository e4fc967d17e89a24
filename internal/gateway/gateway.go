package gateway

import (
	"context"
	"net/http"
)

// Provider identifies an external payment processor.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderPaypal      Provider = "paypal"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderXendit      Provider = "xendit"
)

// ParseProvider validates a provider tag coming from a request or URL.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderStripe, ProviderPaypal, ProviderFlutterwave, ProviderXendit:
		return Provider(s), nil
	}
	return "", ErrUnsupportedProvider
}

// Adapter is the capability contract every provider implementation binds to.
// Providers that lack a capability return an *UnsupportedOperationError
// instead of guessing at semantics.
type Adapter interface {
	Provider() Provider

	// DefaultCurrency is used when the caller does not specify one.
	DefaultCurrency() string

	CreatePayment(ctx context.Context, req *ChargeRequest) (*Charge, error)
	VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error)

	// GetOrCreateCustomer is idempotent: repeated calls with the same email
	// return the same customer and never create a duplicate.
	GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error)

	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	ChargeSavedPaymentMethod(ctx context.Context, req *SavedChargeRequest) (*Charge, error)
	CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// VerifyWebhook authenticates a raw inbound payload. A non-nil error
	// means the payload must not be trusted or processed.
	VerifyWebhook(payload []byte, header http.Header) (*VerifiedEvent, error)
}

// Registry resolves provider tags to adapters at the orchestrator boundary.
type Registry struct {
	adapters map[Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

func (r *Registry) Get(p Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return a, nil
}
