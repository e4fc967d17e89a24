package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"amana-be/internal/donation"
	"amana-be/internal/gateway"
	"amana-be/internal/logger"
	"amana-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// directReference tags charges created outside the donation orchestrator.
func directReference() string {
	return "direct_" + uuid.NewString()
}

func userIDFrom(r *http.Request) (uint, bool) {
	return utils.GetUserIDFromContext(r.Context())
}

// completeMatchedDonation marks the donation correlated with a confirmed
// provider payment as completed. A miss means the payment was a direct charge
// with no donation row; a transition conflict means the webhook got there
// first. Neither is an error for the caller.
func (h *Handler) completeMatchedDonation(ctx context.Context, provider gateway.Provider, ref string) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", string(provider)),
		zap.String("provider_ref", ref),
	)

	d, err := h.donations.GetByProviderRef(ctx, provider, ref)
	if err != nil {
		if errors.Is(err, donation.ErrNotFound) {
			log.Debug("confirmed payment has no donation row")
			return
		}
		log.Error("donation lookup failed", zap.Error(err))
		return
	}

	if err := h.donations.MarkCompleted(ctx, d.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, donation.ErrConflictingTransition) {
			log.Info("donation already settled", zap.Uint("donation_id", d.ID))
			return
		}
		log.Error("failed to complete donation", zap.Uint("donation_id", d.ID), zap.Error(err))
	}
}

// recordSubscriptionRef links a provider subscription to the monthly donation
// it funds. The subscription already exists upstream at this point, so a
// recording failure is logged instead of failing the request.
func (h *Handler) recordSubscriptionRef(ctx context.Context, userID, donationID uint, subscriptionID string) {
	log := logger.FromCtx(ctx).With(
		zap.Uint("donation_id", donationID),
		zap.String("subscription_id", subscriptionID),
	)

	d, err := h.donations.GetByUserAndID(ctx, userID, donationID)
	if err != nil {
		log.Warn("subscription donation lookup failed", zap.Error(err))
		return
	}
	if d.Frequency != donation.FrequencyMonthly {
		log.Warn("subscription reference refused, donation is not monthly")
		return
	}

	if err := h.donations.SetSubscriptionRef(ctx, d.ID, subscriptionID); err != nil {
		log.Error("failed to record subscription reference", zap.Error(err))
	}
}
