package donation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"amana-be/internal/gateway"
	"amana-be/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created     *Donation
	providerRef string
	transitions []string

	getByUserAndID   func(userID, id uint) (*Donation, error)
	getByProviderRef func(provider gateway.Provider, ref string) (*Donation, error)
	transitionErr    error
	markCompletedErr error
	listResult       []Donation

	insertedEvents map[string]bool
	eventStatuses  map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		insertedEvents: make(map[string]bool),
		eventStatuses:  make(map[string]string),
	}
}

func (f *fakeRepo) Create(ctx context.Context, d *Donation) error {
	d.ID = 42
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	copied := *d
	f.created = &copied
	return nil
}

func (f *fakeRepo) GetByUserAndID(ctx context.Context, userID, id uint) (*Donation, error) {
	if f.getByUserAndID != nil {
		return f.getByUserAndID(userID, id)
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByProviderRef(ctx context.Context, provider gateway.Provider, ref string) (*Donation, error) {
	if f.getByProviderRef != nil {
		return f.getByProviderRef(provider, ref)
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) SetProviderRef(ctx context.Context, id uint, ref string) error {
	f.providerRef = ref
	return nil
}

func (f *fakeRepo) SetSubscriptionRef(ctx context.Context, id uint, subscriptionID string) error {
	return nil
}

func (f *fakeRepo) MarkCompleted(ctx context.Context, id uint, paidAt time.Time) error {
	if f.markCompletedErr != nil {
		return f.markCompletedErr
	}
	f.transitions = append(f.transitions, "completed")
	return nil
}

func (f *fakeRepo) Transition(ctx context.Context, id uint, from, to Status) error {
	if f.transitionErr != nil {
		return f.transitionErr
	}
	f.transitions = append(f.transitions, string(to))
	return nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID uint) ([]Donation, error) {
	return f.listResult, nil
}

func (f *fakeRepo) InsertWebhookEvent(ctx context.Context, provider gateway.Provider, eventID, eventType string, payload []byte) (bool, error) {
	if f.insertedEvents[eventID] {
		return false, nil
	}
	f.insertedEvents[eventID] = true
	return true, nil
}

func (f *fakeRepo) SetWebhookEventStatus(ctx context.Context, provider gateway.Provider, eventID, status string) error {
	f.eventStatuses[eventID] = status
	return nil
}

type fakeAdapter struct {
	provider gateway.Provider
	currency string

	createFn        func(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error)
	cancelFn        func(ctx context.Context, subscriptionID string) error
	verifyWebhookFn func(payload []byte, header http.Header) (*gateway.VerifiedEvent, error)
}

func (f *fakeAdapter) Provider() gateway.Provider { return f.provider }
func (f *fakeAdapter) DefaultCurrency() string    { return f.currency }

func (f *fakeAdapter) CreatePayment(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &gateway.Charge{ProviderRef: "ref-1"}, nil
}

func (f *fakeAdapter) VerifyPayment(ctx context.Context, reference string) (*gateway.VerificationResult, error) {
	return &gateway.VerificationResult{}, nil
}

func (f *fakeAdapter) GetOrCreateCustomer(ctx context.Context, email, name string) (*gateway.Customer, error) {
	return nil, &gateway.UnsupportedOperationError{Provider: f.provider, Op: "customers"}
}

func (f *fakeAdapter) CreateSetupIntent(ctx context.Context, customerID string) (*gateway.SetupIntent, error) {
	return nil, &gateway.UnsupportedOperationError{Provider: f.provider, Op: "setup intents"}
}

func (f *fakeAdapter) ListPaymentMethods(ctx context.Context, customerID string) ([]gateway.PaymentMethod, error) {
	return nil, &gateway.UnsupportedOperationError{Provider: f.provider, Op: "payment methods"}
}

func (f *fakeAdapter) ChargeSavedPaymentMethod(ctx context.Context, req *gateway.SavedChargeRequest) (*gateway.Charge, error) {
	return nil, &gateway.UnsupportedOperationError{Provider: f.provider, Op: "saved charges"}
}

func (f *fakeAdapter) CreateSubscription(ctx context.Context, req *gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	return nil, &gateway.UnsupportedOperationError{Provider: f.provider, Op: "subscriptions"}
}

func (f *fakeAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, subscriptionID)
	}
	return nil
}

func (f *fakeAdapter) VerifyWebhook(payload []byte, header http.Header) (*gateway.VerifiedEvent, error) {
	if f.verifyWebhookFn != nil {
		return f.verifyWebhookFn(payload, header)
	}
	return nil, gateway.ErrInvalidSignature
}

func TestService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("PendingRowBeforeProviderCall", func(t *testing.T) {
		repo := newFakeRepo()

		adapter := &fakeAdapter{provider: gateway.ProviderStripe, currency: "usd"}
		adapter.createFn = func(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error) {
			// The pending donation must already exist when the provider is
			// contacted.
			require.NotNil(t, repo.created)
			assert.Equal(t, StatusPending, repo.created.Status)

			assert.Equal(t, int64(1000), req.Amount.MinorUnits())
			assert.Equal(t, "usd", req.Currency)
			assert.Equal(t, "donor@example.com", req.PayerEmail)
			return &gateway.Charge{ProviderRef: "pi_123", ContinuationToken: "secret_abc"}, nil
		}

		svc := NewService(repo, gateway.NewRegistry(adapter))

		amount, err := money.Parse("10.00")
		require.NoError(t, err)

		result, err := svc.Initiate(ctx, 1, InitiateInput{
			Amount:     amount,
			Provider:   "stripe",
			Frequency:  FrequencyOneTime,
			PayerEmail: "donor@example.com",
		})
		require.NoError(t, err)

		assert.Equal(t, uint(42), result.DonationID)
		assert.Equal(t, gateway.ProviderStripe, result.PaymentType)
		assert.Equal(t, StatusPending, result.Status)
		assert.Equal(t, "secret_abc", result.ContinuationToken)
		assert.Equal(t, "pi_123", repo.providerRef)

		// Currency defaulted to the provider's house currency.
		assert.Equal(t, "usd", repo.created.Currency)
		assert.Equal(t, money.FromMinorUnits(1000), repo.created.Amount)
	})

	t.Run("ExplicitCurrencyKept", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo, gateway.NewRegistry(&fakeAdapter{provider: gateway.ProviderXendit, currency: "IDR"}))

		_, err := svc.Initiate(ctx, 1, InitiateInput{
			Amount:    money.FromMinorUnits(500000),
			Provider:  "xendit",
			Frequency: FrequencyOneTime,
			Currency:  "PHP",
		})
		require.NoError(t, err)
		assert.Equal(t, "PHP", repo.created.Currency)
	})

	t.Run("AdapterFailureLeavesDonationPending", func(t *testing.T) {
		repo := newFakeRepo()
		adapter := &fakeAdapter{provider: gateway.ProviderFlutterwave, currency: "NGN"}
		adapter.createFn = func(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error) {
			return nil, &gateway.ProviderError{Provider: gateway.ProviderFlutterwave, StatusCode: 502}
		}
		svc := NewService(repo, gateway.NewRegistry(adapter))

		_, err := svc.Initiate(ctx, 1, InitiateInput{
			Amount:    money.FromMinorUnits(1000),
			Provider:  "flutterwave",
			Frequency: FrequencyOneTime,
		})
		require.Error(t, err)

		_, isProviderErr := gateway.AsProviderError(err)
		assert.True(t, isProviderErr)

		// The record exists for tracing but was never promoted or demoted.
		require.NotNil(t, repo.created)
		assert.Equal(t, StatusPending, repo.created.Status)
		assert.Empty(t, repo.transitions)
		assert.Empty(t, repo.providerRef)
	})

	t.Run("UnsupportedProvider", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo, gateway.NewRegistry(&fakeAdapter{provider: gateway.ProviderStripe, currency: "usd"}))

		_, err := svc.Initiate(ctx, 1, InitiateInput{
			Amount:    money.FromMinorUnits(1000),
			Provider:  "venmo",
			Frequency: FrequencyOneTime,
		})
		assert.ErrorIs(t, err, gateway.ErrUnsupportedProvider)
		assert.Nil(t, repo.created, "no donation row for an unsupported provider")
	})

	t.Run("ReferenceFallbackWhenProviderRefEmpty", func(t *testing.T) {
		repo := newFakeRepo()
		adapter := &fakeAdapter{provider: gateway.ProviderFlutterwave, currency: "NGN"}
		adapter.createFn = func(ctx context.Context, req *gateway.ChargeRequest) (*gateway.Charge, error) {
			return &gateway.Charge{ProviderRef: req.Reference, ContinuationToken: "https://checkout"}, nil
		}
		svc := NewService(repo, gateway.NewRegistry(adapter))

		_, err := svc.Initiate(ctx, 1, InitiateInput{
			Amount:    money.FromMinorUnits(1000),
			Provider:  "flutterwave",
			Frequency: FrequencyMonthly,
		})
		require.NoError(t, err)
		assert.Contains(t, repo.providerRef, "donation_42_")
	})
}

func TestService_CancelMonthly(t *testing.T) {
	ctx := context.Background()

	monthly := func(subscriptionID *string) *Donation {
		return &Donation{
			ID:             42,
			UserID:         1,
			PaymentType:    gateway.ProviderStripe,
			Frequency:      FrequencyMonthly,
			Status:         StatusPending,
			SubscriptionID: subscriptionID,
		}
	}

	t.Run("NotFound", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo, gateway.NewRegistry())

		_, err := svc.CancelMonthly(ctx, 1, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OneTimeDonationRejected", func(t *testing.T) {
		repo := newFakeRepo()
		repo.getByUserAndID = func(userID, id uint) (*Donation, error) {
			return &Donation{ID: id, UserID: userID, Frequency: FrequencyOneTime, Status: StatusPending}, nil
		}
		svc := NewService(repo, gateway.NewRegistry())

		_, err := svc.CancelMonthly(ctx, 1, 42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, repo.transitions)
	})

	t.Run("CancelsUpstreamAndLocally", func(t *testing.T) {
		subID := "sub_1"
		repo := newFakeRepo()
		repo.getByUserAndID = func(userID, id uint) (*Donation, error) { return monthly(&subID), nil }

		var cancelled string
		adapter := &fakeAdapter{provider: gateway.ProviderStripe, currency: "usd"}
		adapter.cancelFn = func(ctx context.Context, subscriptionID string) error {
			cancelled = subscriptionID
			return nil
		}
		svc := NewService(repo, gateway.NewRegistry(adapter))

		d, err := svc.CancelMonthly(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, "sub_1", cancelled)
		assert.Equal(t, StatusCancelled, d.Status)
		assert.Equal(t, []string{"cancelled"}, repo.transitions)
	})

	t.Run("UpstreamFailureStillCancelsLocally", func(t *testing.T) {
		subID := "sub_1"
		repo := newFakeRepo()
		repo.getByUserAndID = func(userID, id uint) (*Donation, error) { return monthly(&subID), nil }

		adapter := &fakeAdapter{provider: gateway.ProviderStripe, currency: "usd"}
		adapter.cancelFn = func(ctx context.Context, subscriptionID string) error {
			return errors.New("provider unreachable")
		}
		svc := NewService(repo, gateway.NewRegistry(adapter))

		d, err := svc.CancelMonthly(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, d.Status)
	})

	t.Run("UnsupportedUpstreamCancellationIsBestEffort", func(t *testing.T) {
		subID := "sub_1"
		repo := newFakeRepo()
		repo.getByUserAndID = func(userID, id uint) (*Donation, error) {
			d := monthly(&subID)
			d.PaymentType = gateway.ProviderXendit
			return d, nil
		}

		adapter := &fakeAdapter{provider: gateway.ProviderXendit, currency: "IDR"}
		adapter.cancelFn = func(ctx context.Context, subscriptionID string) error {
			return &gateway.UnsupportedOperationError{Provider: gateway.ProviderXendit, Op: "subscriptions"}
		}
		svc := NewService(repo, gateway.NewRegistry(adapter))

		d, err := svc.CancelMonthly(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, d.Status)
	})

	t.Run("TerminalDonationRefused", func(t *testing.T) {
		repo := newFakeRepo()
		repo.getByUserAndID = func(userID, id uint) (*Donation, error) {
			d := monthly(nil)
			d.Status = StatusCompleted
			return d, nil
		}
		repo.transitionErr = ErrConflictingTransition
		svc := NewService(repo, gateway.NewRegistry(&fakeAdapter{provider: gateway.ProviderStripe, currency: "usd"}))

		_, err := svc.CancelMonthly(ctx, 1, 42)
		assert.ErrorIs(t, err, ErrConflictingTransition)
	})
}

func TestService_History(t *testing.T) {
	repo := newFakeRepo()
	repo.listResult = []Donation{{ID: 3}, {ID: 2}, {ID: 1}}
	svc := NewService(repo, gateway.NewRegistry())

	donations, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, donations, 3)
	assert.Equal(t, uint(3), donations[0].ID)
}
