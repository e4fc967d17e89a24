package user

import (
	"errors"
	"net/http"

	"amana-be/internal/httpx"
	"amana-be/internal/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	return r
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	token, u, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			httpx.Error(w, http.StatusConflict, "Email already registered")
			return
		}
		logger.FromCtx(r.Context()).Error("registration failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	httpx.Success(w, http.StatusCreated, "Registered", authResponse{Token: token, User: u})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.Bind(w, r, &req) {
		return
	}

	token, u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		logger.FromCtx(r.Context()).Error("login failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	httpx.Success(w, http.StatusOK, "Logged in", authResponse{Token: token, User: u})
}
