package donation

import (
	"context"
	"fmt"
	"time"

	"amana-be/internal/gateway"
	"amana-be/internal/logger"
	"amana-be/internal/metrics"
	"amana-be/internal/money"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

type InitiateInput struct {
	Amount      money.Amount
	Provider    string
	Frequency   Frequency
	Currency    string
	Description string
	Metadata    map[string]string
	PayerEmail  string
	PayerName   string
}

// InitiateResult is the normalized shape returned for every provider: the
// caller finishes the payment with the continuation token regardless of
// whether it is a client secret, an approval URL or an invoice link.
type InitiateResult struct {
	DonationID         uint             `json:"donation_id"`
	PaymentType        gateway.Provider `json:"payment_type"`
	Status             Status           `json:"status"`
	ContinuationToken  string           `json:"continuation_token,omitempty"`
	RawProviderPayload json.RawMessage  `json:"raw_provider_payload,omitempty"`
}

type Service interface {
	Initiate(ctx context.Context, userID uint, in InitiateInput) (*InitiateResult, error)
	History(ctx context.Context, userID uint) ([]Donation, error)
	CancelMonthly(ctx context.Context, userID, donationID uint) (*Donation, error)
}

type service struct {
	repo     Repository
	registry *gateway.Registry
}

func NewService(repo Repository, registry *gateway.Registry) Service {
	return &service{repo: repo, registry: registry}
}

func (s *service) Initiate(ctx context.Context, userID uint, in InitiateInput) (*InitiateResult, error) {
	log := logger.FromCtx(ctx)

	provider, err := gateway.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = adapter.DefaultCurrency()
	}

	// The pending row is written before the provider is contacted so a
	// provider-side failure still leaves a traceable record.
	d := &Donation{
		UserID:      userID,
		Amount:      in.Amount,
		Currency:    currency,
		PaymentType: provider,
		Frequency:   in.Frequency,
		Status:      StatusPending,
		Description: in.Description,
		Metadata:    in.Metadata,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	reference := fmt.Sprintf("donation_%d_%d", d.ID, time.Now().Unix())

	charge, err := adapter.CreatePayment(ctx, &gateway.ChargeRequest{
		Reference:   reference,
		Amount:      in.Amount,
		Currency:    currency,
		PayerEmail:  in.PayerEmail,
		PayerName:   in.PayerName,
		Description: in.Description,
		Metadata:    in.Metadata,
	})
	if err != nil {
		metrics.GatewayFailures.Inc()
		log.Error("payment creation failed, donation left pending",
			zap.Uint("donation_id", d.ID),
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		return nil, err
	}

	providerRef := charge.ProviderRef
	if providerRef == "" {
		providerRef = reference
	}
	if err := s.repo.SetProviderRef(ctx, d.ID, providerRef); err != nil {
		return nil, fmt.Errorf("failed to record provider reference: %w", err)
	}

	log.Info("donation initiated",
		zap.Uint("donation_id", d.ID),
		zap.String("provider", string(provider)),
		zap.String("provider_ref", providerRef),
		zap.String("frequency", string(in.Frequency)),
	)

	return &InitiateResult{
		DonationID:         d.ID,
		PaymentType:        provider,
		Status:             StatusPending,
		ContinuationToken:  charge.ContinuationToken,
		RawProviderPayload: charge.Raw,
	}, nil
}

func (s *service) History(ctx context.Context, userID uint) ([]Donation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// CancelMonthly cancels a recurring donation. Upstream cancellation is best
// effort: a provider failure is logged and the local transition proceeds,
// which leaves a documented inconsistency window rather than a stuck record.
func (s *service) CancelMonthly(ctx context.Context, userID, donationID uint) (*Donation, error) {
	log := logger.FromCtx(ctx)

	d, err := s.repo.GetByUserAndID(ctx, userID, donationID)
	if err != nil {
		return nil, err
	}
	if d.Frequency != FrequencyMonthly {
		return nil, ErrNotFound
	}

	if d.SubscriptionID != nil && *d.SubscriptionID != "" {
		adapter, err := s.registry.Get(d.PaymentType)
		if err == nil {
			cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = adapter.CancelSubscription(cancelCtx, *d.SubscriptionID)
			cancel()
		}
		switch {
		case err == nil:
		case gateway.IsUnsupportedOperation(err):
			log.Info("provider has no upstream cancellation, cancelling locally only",
				zap.Uint("donation_id", d.ID),
				zap.String("provider", string(d.PaymentType)),
			)
		default:
			log.Warn("upstream subscription cancellation failed, cancelling locally anyway",
				zap.Uint("donation_id", d.ID),
				zap.String("provider", string(d.PaymentType)),
				zap.Error(err),
			)
		}
	}

	if err := s.repo.Transition(ctx, d.ID, StatusPending, StatusCancelled); err != nil {
		if err == ErrConflictingTransition {
			log.Warn("cancellation refused, donation already in a terminal status",
				zap.Uint("donation_id", d.ID),
				zap.String("status", string(d.Status)),
			)
		}
		return nil, err
	}

	d.Status = StatusCancelled
	return d, nil
}
