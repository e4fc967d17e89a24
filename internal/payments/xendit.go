package payments

import (
	"net/http"

	"amana-be/internal/gateway"
	"amana-be/internal/httpx"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) XenditCreateInvoice(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	req, adapter, ok := h.bindCharge(w, r, gateway.ProviderXendit)
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

	httpx.Success(w, http.StatusCreated, "Invoice created", map[string]string{
		"invoice_id":  charge.ProviderRef,
		"invoice_url": charge.ContinuationToken,
		"status":      charge.Status,
	})
}

func (h *Handler) XenditInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	if invoiceID == "" {
		httpx.Error(w, http.StatusBadRequest, "Missing invoice id")
		return
	}

	adapter, err := h.registry.Get(gateway.ProviderXendit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := adapter.VerifyPayment(r.Context(), invoiceID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Invoice retrieved", map[string]interface{}{
		"invoice_id": invoiceID,
		"status":     result.Status,
		"paid":       result.Paid,
	})
}
