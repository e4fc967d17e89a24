package gateway

import (
	"time"

	"amana-be/internal/money"

	json "github.com/goccy/go-json"
)

// ChargeRequest is the normalized input to CreatePayment. Amount is always
// in minor units; each adapter converts to its provider's unit convention.
type ChargeRequest struct {
	Reference   string // our external reference for the payment
	Amount      money.Amount
	Currency    string
	PayerEmail  string
	PayerName   string
	Description string
	Metadata    map[string]string
}

// Charge is the normalized result of a successful CreatePayment call.
type Charge struct {
	// ProviderRef is the provider-side id the donation is correlated by.
	ProviderRef string
	// ContinuationToken is the client-facing value needed to complete the
	// payment: a Stripe client secret, a PayPal approval URL, a Flutterwave
	// checkout link or a Xendit invoice URL.
	ContinuationToken string
	Status            string
	Raw               json.RawMessage
}

type VerificationResult struct {
	Status string
	Paid   bool
	PaidAt *time.Time
	Raw    json.RawMessage
}

type Customer struct {
	ID    string
	Email string
	Name  string
	Raw   json.RawMessage
}

type SetupIntent struct {
	ID           string
	ClientSecret string
	Raw          json.RawMessage
}

type PaymentMethod struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

type SavedChargeRequest struct {
	Amount          money.Amount
	Currency        string
	CustomerID      string
	PaymentMethodID string
	PayerEmail      string
	Metadata        map[string]string
}

type SubscriptionRequest struct {
	CustomerID      string
	CustomerEmail   string
	CustomerName    string
	PlanID          string
	PaymentMethodID string
	Amount          money.Amount
	Currency        string
	Interval        string
	Metadata        map[string]string
}

type Subscription struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// EventKind is the normalized classification of a verified webhook event.
type EventKind int

const (
	// EventIgnored is acknowledged but drives no state transition.
	EventIgnored EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
)

// VerifiedEvent is a webhook payload that passed signature verification.
type VerifiedEvent struct {
	ID        string
	Type      string // provider-native event type
	Kind      EventKind
	Reference string // provider payment reference, matches Donation.ProviderRef
	Raw       json.RawMessage
}
