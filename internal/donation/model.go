package donation

import (
	"time"

	"amana-be/internal/gateway"
	"amana-be/internal/money"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Frequency string

const (
	FrequencyOneTime Frequency = "one_time"
	FrequencyMonthly Frequency = "monthly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyOneTime, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", ErrInvalidFrequency
}

type Donation struct {
	ID              uint              `json:"id"`
	UserID          uint              `json:"user_id"`
	Amount          money.Amount      `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentType     gateway.Provider  `json:"payment_type"`
	Frequency       Frequency         `json:"payment_frequency"`
	ProviderRef     *string           `json:"payment_provider_id,omitempty"`
	SubscriptionID  *string           `json:"subscription_id,omitempty"`
	Status          Status            `json:"status"`
	Description     string            `json:"description,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	PaymentDate     *time.Time        `json:"payment_date,omitempty"`
	NextPaymentDate *time.Time        `json:"next_payment_date,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WebhookEvent is a received provider event, persisted before processing so
// redelivered events are recognized and dropped.
type WebhookEvent struct {
	ID        uint
	Provider  gateway.Provider
	EventID   string
	EventType string
	Payload   []byte
	Status    string
	CreatedAt time.Time
}
