package payments

import (
	"net/http"

	"amana-be/internal/gateway"
	"amana-be/internal/httpx"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) PaypalCreateOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	req, adapter, ok := h.bindCharge(w, r, gateway.ProviderPaypal)
	if !ok {
		return
	}
	req.PayerEmail = u.Email
	req.PayerName = u.Name

	charge, err := adapter.CreatePayment(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "Order created", map[string]string{
		"order_id":    charge.ProviderRef,
		"approve_url": charge.ContinuationToken,
		"status":      charge.Status,
	})
}

// PaypalCapture captures an approved order. Captures are the authoritative
// completion signal for redirect flows, so a matched donation is completed
// here without waiting for the webhook.
func (h *Handler) PaypalCapture(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		httpx.Error(w, http.StatusBadRequest, "Missing order id")
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderPaypal)
	if err != nil {
		respondError(w, r, err)
		return
	}

	capturer, ok := adapter.(gateway.OrderCapturer)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "Operation not supported by this payment provider")
		return
	}

	charge, err := capturer.CaptureOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if charge.Status == "COMPLETED" {
		h.completeMatchedDonation(r.Context(), gateway.ProviderPaypal, orderID)
	}

	httpx.Success(w, http.StatusOK, "Order captured", map[string]string{
		"order_id": orderID,
		"status":   charge.Status,
	})
}
