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

func (h *Handler) FlutterwaveCreatePayment(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	req, adapter, ok := h.bindCharge(w, r, gateway.ProviderFlutterwave)
	if !ok {
		return
	}
	req.PayerEmail = u.Email
	req.PayerName = u.Name

	// Record the provider-side customer on first use so later dashboard
	// lookups correlate, without blocking the charge if it fails.
	if _, err := h.ensureFlutterwaveCustomer(r.Context(), u); err != nil {
		logger.FromCtx(r.Context()).Warn("flutterwave customer provisioning failed",
			zap.Int("user_id", u.ID),
			zap.Error(err),
		)
	}

	charge, err := adapter.CreatePayment(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "Payment created", map[string]string{
		"tx_ref":       charge.ProviderRef,
		"checkout_url": charge.ContinuationToken,
		"status":       charge.Status,
	})
}

func (h *Handler) FlutterwaveEnsureCustomer(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	customerID, err := h.ensureFlutterwaveCustomer(r.Context(), u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Customer ready", map[string]string{"customer_id": customerID})
}

// FlutterwaveChargeSaved charges a card token obtained from an earlier hosted
// checkout. Raw card details are never accepted here.
func (h *Handler) FlutterwaveChargeSaved(w http.ResponseWriter, r *http.Request) {
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

	adapter, err := h.registry.Get(gateway.ProviderFlutterwave)
	if err != nil {
		respondError(w, r, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = adapter.DefaultCurrency()
	}

	customerID := ""
	if u.FlutterwaveCustomerID != nil {
		customerID = *u.FlutterwaveCustomerID
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

	httpx.Success(w, http.StatusOK, "Charge created", map[string]string{
		"tx_ref": charge.ProviderRef,
		"status": charge.Status,
	})
}

type flutterwaveSubscribeRequest struct {
	Amount     json.Number       `json:"amount" validate:"required"`
	PlanID     string            `json:"plan_id" validate:"required"`
	Interval   string            `json:"interval" validate:"required,oneof=weekly monthly yearly"`
	Currency   string            `json:"currency" validate:"omitempty,len=3"`
	DonationID uint              `json:"donation_id"`
	Metadata   map[string]string `json:"metadata"`
}

func (h *Handler) FlutterwaveSubscribe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req flutterwaveSubscribeRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	amount, err := money.Parse(req.Amount.String())
	if err != nil {
		httpx.ValidationFailed(w, map[string]string{"amount": "The amount must be a positive decimal number."})
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderFlutterwave)
	if err != nil {
		respondError(w, r, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = adapter.DefaultCurrency()
	}

	sub, err := adapter.CreateSubscription(r.Context(), &gateway.SubscriptionRequest{
		CustomerEmail: u.Email,
		CustomerName:  u.Name,
		PlanID:        req.PlanID,
		Amount:        amount,
		Currency:      currency,
		Interval:      req.Interval,
		Metadata:      req.Metadata,
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

// ensureFlutterwaveCustomer resolves the user's Flutterwave customer, creating
// and recording one on first use.
func (h *Handler) ensureFlutterwaveCustomer(ctx context.Context, u user.User) (string, error) {
	if u.FlutterwaveCustomerID != nil && *u.FlutterwaveCustomerID != "" {
		return *u.FlutterwaveCustomerID, nil
	}

	adapter, err := h.registry.Get(gateway.ProviderFlutterwave)
	if err != nil {
		return "", err
	}

	customer, err := adapter.GetOrCreateCustomer(ctx, u.Email, u.Name)
	if err != nil {
		return "", err
	}

	if err := h.users.SaveFlutterwaveCustomerID(ctx, uint(u.ID), customer.ID); err != nil {
		logger.FromCtx(ctx).Warn("failed to record flutterwave customer id",
			zap.Int("user_id", u.ID),
			zap.Error(err),
		)
	}

	return customer.ID, nil
}

func (h *Handler) FlutterwaveVerifyPayment(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transaction_id")
	if transactionID == "" {
		httpx.Error(w, http.StatusBadRequest, "Missing transaction_id")
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderFlutterwave)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := adapter.VerifyPayment(r.Context(), transactionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Payment verified", map[string]interface{}{
		"status": result.Status,
		"paid":   result.Paid,
	})
}

// FlutterwaveCallback is the browser redirect target after hosted checkout.
// Query parameters are attacker-controlled, so the transaction is re-verified
// against the Flutterwave API before any donation is completed.
func (h *Handler) FlutterwaveCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	txRef := query.Get("tx_ref")
	transactionID := query.Get("transaction_id")

	log := logger.FromCtx(r.Context()).With(
		zap.String("provider", "flutterwave"),
		zap.String("tx_ref", txRef),
	)

	if query.Get("status") != "successful" || transactionID == "" {
		httpx.Success(w, http.StatusOK, "Payment not completed", map[string]string{
			"status": query.Get("status"),
		})
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderFlutterwave)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := adapter.VerifyPayment(r.Context(), transactionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Correlate on the verified tx_ref, never the query parameter.
	var verified struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.Unmarshal(result.Raw, &verified); err != nil || verified.TxRef == "" {
		log.Warn("verified transaction carries no tx_ref")
		httpx.Error(w, http.StatusBadGateway, "Payment provider request failed")
		return
	}

	if result.Paid {
		h.completeMatchedDonation(r.Context(), gateway.ProviderFlutterwave, verified.TxRef)
	} else {
		log.Info("callback transaction not paid", zap.String("status", result.Status))
	}

	httpx.Success(w, http.StatusOK, "Payment verified", map[string]interface{}{
		"tx_ref": verified.TxRef,
		"status": result.Status,
		"paid":   result.Paid,
	})
}
