package donation

import (
	"context"
	"net/http"
	"time"

	"amana-be/internal/gateway"
	"amana-be/internal/logger"
	"amana-be/internal/metrics"

	"go.uber.org/zap"
)

const (
	webhookStatusProcessed = "processed"
	webhookStatusIgnored   = "ignored"
	webhookStatusOrphaned  = "orphaned"
)

// Dispatcher routes an inbound provider event to the matching verifier and,
// once trusted, applies the donation transition it implies. Verification
// failure rejects the payload before anything is touched.
type Dispatcher struct {
	registry *gateway.Registry
	repo     Repository
}

func NewDispatcher(registry *gateway.Registry, repo Repository) *Dispatcher {
	return &Dispatcher{registry: registry, repo: repo}
}

// Handle verifies and processes one webhook delivery. A non-nil error means
// reject; nil means the delivery is acknowledged, including the cases where
// the event is unrecognized, redelivered or matches no donation. Providers
// retry non-2xx responses indefinitely, so only verification failures reject.
func (d *Dispatcher) Handle(ctx context.Context, provider gateway.Provider, payload []byte, header http.Header) error {
	log := logger.FromCtx(ctx).With(zap.String("provider", string(provider)))

	adapter, err := d.registry.Get(provider)
	if err != nil {
		metrics.WebhooksRejected.Inc()
		return err
	}

	event, err := adapter.VerifyWebhook(payload, header)
	if err != nil {
		metrics.WebhooksRejected.Inc()
		log.Warn("webhook signature verification failed", zap.Error(err))
		return err
	}

	log = log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	if event.ID != "" {
		inserted, err := d.repo.InsertWebhookEvent(ctx, provider, event.ID, event.Type, payload)
		if err != nil {
			return err
		}
		if !inserted {
			metrics.WebhooksDuplicate.Inc()
			log.Info("duplicate webhook delivery dropped")
			return nil
		}
	}

	status, err := d.process(ctx, log, provider, event)
	if err != nil {
		return err
	}

	if event.ID != "" {
		if err := d.repo.SetWebhookEventStatus(ctx, provider, event.ID, status); err != nil {
			log.Error("failed updating webhook event status", zap.Error(err))
		}
	}

	metrics.WebhooksAccepted.Inc()
	return nil
}

func (d *Dispatcher) process(ctx context.Context, log *zap.Logger, provider gateway.Provider, event *gateway.VerifiedEvent) (string, error) {
	if event.Kind == gateway.EventIgnored {
		log.Debug("unrecognized webhook event type acknowledged")
		return webhookStatusIgnored, nil
	}

	if event.Reference == "" {
		log.Warn("webhook event carries no correlation reference")
		return webhookStatusOrphaned, nil
	}

	donation, err := d.repo.GetByProviderRef(ctx, provider, event.Reference)
	if err == ErrNotFound {
		// Acknowledged anyway: a lookup miss must not make the provider
		// retry forever.
		log.Warn("webhook matches no donation", zap.String("reference", event.Reference))
		return webhookStatusOrphaned, nil
	}
	if err != nil {
		return "", err
	}

	switch event.Kind {
	case gateway.EventPaymentSucceeded:
		err = d.repo.MarkCompleted(ctx, donation.ID, time.Now().UTC())
	case gateway.EventPaymentFailed:
		err = d.repo.Transition(ctx, donation.ID, StatusPending, StatusFailed)
	}

	if err == ErrConflictingTransition {
		metrics.WebhookConflicts.Inc()
		log.Warn("webhook transition dropped, donation already terminal",
			zap.Uint("donation_id", donation.ID),
			zap.String("status", string(donation.Status)),
		)
		return webhookStatusProcessed, nil
	}
	if err != nil {
		return "", err
	}

	log.Info("donation transitioned from webhook",
		zap.Uint("donation_id", donation.ID),
		zap.String("event_kind", eventKindName(event.Kind)),
	)
	return webhookStatusProcessed, nil
}

func eventKindName(k gateway.EventKind) string {
	switch k {
	case gateway.EventPaymentSucceeded:
		return "payment_succeeded"
	case gateway.EventPaymentFailed:
		return "payment_failed"
	default:
		return "ignored"
	}
}
