package donation

import (
	"context"
	"errors"
	"net/http"

	"amana-be/internal/gateway"
	"amana-be/internal/httpx"
	"amana-be/internal/logger"
	"amana-be/internal/money"
	"amana-be/internal/user"
	"amana-be/internal/utils"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// PayerSource resolves the stored profile behind an authenticated request.
// Providers want the donor's real name and email, and the token only carries
// the email.
type PayerSource interface {
	GetByID(ctx context.Context, id uint) (user.User, error)
}

type Handler struct {
	service Service
	users   PayerSource
}

func NewHandler(service Service, users PayerSource) *Handler {
	return &Handler{service: service, users: users}
}

// Routes returns the authenticated donation surface. Auth middleware is
// applied by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/initiate", h.Initiate)
	r.Post("/one-time", h.OneTime)
	r.Post("/monthly", h.Monthly)
	r.Get("/history", h.History)
	r.Post("/cancel-monthly", h.CancelMonthly)
	return r
}

type initiateRequest struct {
	Amount           json.Number       `json:"amount" validate:"required"`
	PaymentType      string            `json:"payment_type" validate:"required"`
	PaymentFrequency string            `json:"payment_frequency" validate:"required,oneof=one_time monthly"`
	Currency         string            `json:"currency" validate:"omitempty,len=3"`
	Description      string            `json:"description"`
	Metadata         map[string]string `json:"metadata"`
}

type fixedFrequencyRequest struct {
	Amount      json.Number       `json:"amount" validate:"required"`
	PaymentType string            `json:"payment_type" validate:"required"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type cancelMonthlyRequest struct {
	DonationID uint `json:"donation_id" validate:"required"`
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	h.initiate(w, r, req.Amount, req.PaymentType, Frequency(req.PaymentFrequency), req.Currency, req.Description, req.Metadata)
}

func (h *Handler) OneTime(w http.ResponseWriter, r *http.Request) {
	var req fixedFrequencyRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	h.initiate(w, r, req.Amount, req.PaymentType, FrequencyOneTime, req.Currency, req.Description, req.Metadata)
}

func (h *Handler) Monthly(w http.ResponseWriter, r *http.Request) {
	var req fixedFrequencyRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	h.initiate(w, r, req.Amount, req.PaymentType, FrequencyMonthly, req.Currency, req.Description, req.Metadata)
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request, rawAmount json.Number, paymentType string, frequency Frequency, currency, description string, metadata map[string]string) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	amount, err := money.Parse(rawAmount.String())
	if err != nil {
		httpx.ValidationFailed(w, map[string]string{"amount": amountMessage(err)})
		return
	}

	payerEmail := utils.GetUserEmailFromContext(r.Context())
	payerName := ""
	if u, err := h.users.GetByID(r.Context(), userID); err == nil {
		payerEmail = u.Email
		payerName = u.Name
	} else {
		logger.FromCtx(r.Context()).Warn("payer profile lookup failed, falling back to token identity",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	}

	result, err := h.service.Initiate(r.Context(), userID, InitiateInput{
		Amount:      amount,
		Provider:    paymentType,
		Frequency:   frequency,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
		PayerEmail:  payerEmail,
		PayerName:   payerName,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusCreated, "Donation initiated", result)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	donations, err := h.service.History(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if donations == nil {
		donations = []Donation{}
	}

	httpx.Success(w, http.StatusOK, "Donation history", donations)
}

func (h *Handler) CancelMonthly(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req cancelMonthlyRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	d, err := h.service.CancelMonthly(r.Context(), userID, req.DonationID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	httpx.Success(w, http.StatusOK, "Monthly donation cancelled", d)
}

func amountMessage(err error) string {
	switch err {
	case money.ErrNonPositive:
		return "The amount must be greater than zero."
	case money.ErrTooManyDecimal:
		return "The amount supports at most 2 decimal places."
	default:
		return "The amount must be a valid decimal number."
	}
}

// respondError maps domain errors onto the response envelope. Provider
// internals never reach the caller; they are logged server-side instead.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnsupportedProvider):
		httpx.Error(w, http.StatusBadRequest, "Unsupported payment provider")
	case gateway.IsUnsupportedOperation(err):
		httpx.Error(w, http.StatusBadRequest, "Operation not supported by this payment provider")
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "Donation not found")
	case errors.Is(err, ErrConflictingTransition):
		httpx.Error(w, http.StatusConflict, "Donation is no longer in a cancellable state")
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
		logger.FromCtx(r.Context()).Error("donation request failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Something went wrong")
	}
}
