package payments

import (
	"errors"
	"io"
	"net/http"

	"amana-be/internal/donation"
	"amana-be/internal/gateway"
	"amana-be/internal/httpx"
	"amana-be/internal/logger"
	"amana-be/internal/middleware"
	"amana-be/internal/money"
	"amana-be/internal/user"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// maxWebhookBody caps inbound webhook payload reads.
const maxWebhookBody = 1 << 20

// Handler exposes the provider-specific payment endpoints that bypass the
// donation orchestrator, plus the shared webhook entrypoint.
type Handler struct {
	registry   *gateway.Registry
	dispatcher *donation.Dispatcher
	donations  donation.Repository
	users      user.Service
}

func NewHandler(registry *gateway.Registry, dispatcher *donation.Dispatcher, donations donation.Repository, users user.Service) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		donations:  donations,
		users:      users,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Signature-verified, not session-authenticated.
	r.Post("/{provider}/webhook", h.Webhook)
	r.Get("/flutterwave/callback", h.FlutterwaveCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/stripe/create-intent", h.StripeCreateIntent)
		r.Post("/stripe/ensure-customer", h.StripeEnsureCustomer)
		r.Post("/stripe/create-setup-intent", h.StripeCreateSetupIntent)
		r.Get("/stripe/payment-methods", h.StripePaymentMethods)
		r.Post("/stripe/charge-saved", h.StripeChargeSaved)
		r.Post("/stripe/subscribe", h.StripeSubscribe)

		r.Post("/paypal/create-order", h.PaypalCreateOrder)
		r.Post("/paypal/capture/{orderID}", h.PaypalCapture)

		r.Post("/flutterwave/create-payment", h.FlutterwaveCreatePayment)
		r.Post("/flutterwave/ensure-customer", h.FlutterwaveEnsureCustomer)
		r.Post("/flutterwave/charge-saved", h.FlutterwaveChargeSaved)
		r.Post("/flutterwave/subscribe", h.FlutterwaveSubscribe)
		r.Get("/flutterwave/verify-payment", h.FlutterwaveVerifyPayment)

		r.Post("/xendit/create-invoice", h.XenditCreateInvoice)
		r.Get("/xendit/invoice/{invoiceID}", h.XenditInvoice)
	})

	return r
}

// Webhook verifies and dispatches one provider event. Responses are plain
// text: providers only care about the status code.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider, err := gateway.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		http.Error(w, "Unknown provider", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Unable to read payload", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Handle(r.Context(), provider, payload, r.Header); err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		logger.FromCtx(r.Context()).Error("webhook processing failed",
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type chargeRequest struct {
	Amount      json.Number       `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

// bindCharge decodes and validates the common create-payment body. A false
// return means the response was already written.
func (h *Handler) bindCharge(w http.ResponseWriter, r *http.Request, provider gateway.Provider) (*gateway.ChargeRequest, gateway.Adapter, bool) {
	var req chargeRequest
	if !httpx.Bind(w, r, &req) {
		return nil, nil, false
	}

	amount, err := money.Parse(req.Amount.String())
	if err != nil {
		httpx.ValidationFailed(w, map[string]string{"amount": "The amount must be a positive decimal number."})
		return nil, nil, false
	}

	adapter, err := h.registry.Get(provider)
	if err != nil {
		respondError(w, r, err)
		return nil, nil, false
	}

	currency := req.Currency
	if currency == "" {
		currency = adapter.DefaultCurrency()
	}

	return &gateway.ChargeRequest{
		Reference:   directReference(),
		Amount:      amount,
		Currency:    currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	}, adapter, true
}

// currentUser loads the full user row for the authenticated request.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	userID, ok := userIDFrom(r)
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthenticated")
		return user.User{}, false
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return user.User{}, false
	}
	return u, true
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnsupportedProvider):
		httpx.Error(w, http.StatusBadRequest, "Unsupported payment provider")
	case gateway.IsUnsupportedOperation(err):
		httpx.Error(w, http.StatusBadRequest, "Operation not supported by this payment provider")
	case errors.Is(err, user.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "User not found")
	default:
		if pe, ok := gateway.AsProviderError(err); ok {
			logger.FromCtx(r.Context()).Error("provider request failed",
				zap.String("provider", string(pe.Provider)),
				zap.String("endpoint", pe.Endpoint),
				zap.Int("status", pe.StatusCode),
			)
			httpx.Error(w, http.StatusBadGateway, "Payment provider request failed")
			return
		}
		logger.FromCtx(r.Context()).Error("payment request failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Something went wrong")
	}
}
