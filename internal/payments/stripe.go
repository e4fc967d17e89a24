package payments

import (
	"context"
	"net/http"

	"amana-be/internal/gateway"
	"amana-be/internal/httpx"
	"amana-be/internal/logger"
	"amana-be/internal/money"
	"amana-be/internal/user"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

func (h *Handler) StripeCreateIntent(w http.ResponseWriter, r *http.Request) {
	req, adapter, ok := h.bindCharge(w, r, gateway.ProviderStripe)
	if !ok {
		return
	}

	charge, err := adapter.CreatePayment(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "Payment intent created", map[string]interface{}{
		"payment_intent_id": charge.ProviderRef,
		"client_secret":     charge.ContinuationToken,
		"status":            charge.Status,
	})
}

func (h *Handler) StripeEnsureCustomer(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	customerID, err := h.ensureStripeCustomer(r.Context(), u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Customer ready", map[string]string{"customer_id": customerID})
}

func (h *Handler) StripeCreateSetupIntent(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	customerID, err := h.ensureStripeCustomer(r.Context(), u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderStripe)
	if err != nil {
		respondError(w, r, err)
		return
	}

	intent, err := adapter.CreateSetupIntent(r.Context(), customerID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "Setup intent created", map[string]string{
		"setup_intent_id": intent.ID,
		"client_secret":   intent.ClientSecret,
	})
}

func (h *Handler) StripePaymentMethods(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		httpx.Success(w, http.StatusOK, "Payment methods", []gateway.PaymentMethod{})
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderStripe)
	if err != nil {
		respondError(w, r, err)
		return
	}

	methods, err := adapter.ListPaymentMethods(r.Context(), *u.StripeCustomerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if methods == nil {
		methods = []gateway.PaymentMethod{}
	}

	httpx.Success(w, http.StatusOK, "Payment methods", methods)
}

type chargeSavedRequest struct {
	Amount          json.Number       `json:"amount" validate:"required"`
	Currency        string            `json:"currency" validate:"omitempty,len=3"`
	PaymentMethodID string            `json:"payment_method_id" validate:"required"`
	Metadata        map[string]string `json:"metadata"`
}

func (h *Handler) StripeChargeSaved(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req chargeSavedRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	amount, err := money.Parse(req.Amount.String())
	if err != nil {
		httpx.ValidationFailed(w, map[string]string{"amount": "The amount must be a positive decimal number."})
		return
	}

	customerID, err := h.ensureStripeCustomer(r.Context(), u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderStripe)
	if err != nil {
		respondError(w, r, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = adapter.DefaultCurrency()
	}

	charge, err := adapter.ChargeSavedPaymentMethod(r.Context(), &gateway.SavedChargeRequest{
		Amount:          amount,
		Currency:        currency,
		CustomerID:      customerID,
		PaymentMethodID: req.PaymentMethodID,
		PayerEmail:      u.Email,
		Metadata:        req.Metadata,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Charge created", map[string]interface{}{
		"payment_intent_id": charge.ProviderRef,
		"status":            charge.Status,
	})
}

type subscribeRequest struct {
	PlanID          string            `json:"plan_id" validate:"required"`
	PaymentMethodID string            `json:"payment_method_id"`
	DonationID      uint              `json:"donation_id"`
	Metadata        map[string]string `json:"metadata"`
}

func (h *Handler) StripeSubscribe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	customerID, err := h.ensureStripeCustomer(r.Context(), u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderStripe)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sub, err := adapter.CreateSubscription(r.Context(), &gateway.SubscriptionRequest{
		CustomerID:      customerID,
		CustomerEmail:   u.Email,
		CustomerName:    u.Name,
		PlanID:          req.PlanID,
		PaymentMethodID: req.PaymentMethodID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if req.DonationID != 0 {
		h.recordSubscriptionRef(r.Context(), uint(u.ID), req.DonationID, sub.ID)
	}

	httpx.Success(w, http.StatusCreated, "Subscription created", map[string]string{
		"subscription_id": sub.ID,
		"status":          sub.Status,
	})
}

// ensureStripeCustomer resolves the user's Stripe customer, creating and
// recording one on first use. GetOrCreateCustomer dedups by email, so a
// racing second call resolves to the same customer.
func (h *Handler) ensureStripeCustomer(ctx context.Context, u user.User) (string, error) {
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		return *u.StripeCustomerID, nil
	}

	adapter, err := h.registry.Get(gateway.ProviderStripe)
	if err != nil {
		return "", err
	}

	customer, err := adapter.GetOrCreateCustomer(ctx, u.Email, u.Name)
	if err != nil {
		return "", err
	}

	if err := h.users.SaveStripeCustomerID(ctx, uint(u.ID), customer.ID); err != nil {
		logger.FromCtx(ctx).Error("failed to record stripe customer id",
			zap.Int("user_id", u.ID),
			zap.Error(err),
		)
	}

	return customer.ID, nil
}
