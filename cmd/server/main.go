package main

import (
	"database/sql"
	"net/http"

	"amana-be/internal/config"
	"amana-be/internal/db"
	"amana-be/internal/donation"
	"amana-be/internal/gateway"
	"amana-be/internal/logger"
	"amana-be/internal/middleware"
	"amana-be/internal/payments"
	"amana-be/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Seams for tests.
var (
	initDBFunc      = db.InitDB
	startServerFunc = http.ListenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	router := newServer(cfg, database)

	addr := ":" + cfg.AppPort
	logger.L().Info("server listening", zap.String("addr", addr))
	return startServerFunc(addr, router)
}

func newServer(cfg *config.Config, database *sql.DB) chi.Router {
	registry := gateway.NewRegistry(
		gateway.NewStripeAdapter(cfg),
		gateway.NewPaypalAdapter(cfg),
		gateway.NewFlutterwaveAdapter(cfg),
		gateway.NewXenditAdapter(cfg),
	)

	userRepo := user.NewRepository(database)
	userSvc := user.NewService(userRepo)

	donationRepo := donation.NewRepository(database)
	donationSvc := donation.NewService(donationRepo, registry)
	dispatcher := donation.NewDispatcher(registry, donationRepo)

	userHandler := user.NewHandler(userSvc)
	donationHandler := donation.NewHandler(donationSvc, userSvc)
	paymentsHandler := payments.NewHandler(registry, dispatcher, donationRepo, userSvc)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AppURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.AuthMiddleware)
	r.Use(middleware.RateLimitMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Mount("/api/auth", userHandler.Routes())
	r.Route("/api/donations", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Mount("/", donationHandler.Routes())
	})
	r.Mount("/api/payments", paymentsHandler.Routes())

	return r
}
