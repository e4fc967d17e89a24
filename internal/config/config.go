package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppURL     string
	AppEnv     string
	JWTSecret  string

	Stripe      StripeConfig
	Paypal      PaypalConfig
	Flutterwave FlutterwaveConfig
	Xendit      XenditConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type PaypalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	Mode         string // "sandbox" or "live"
}

type FlutterwaveConfig struct {
	SecretKey     string
	WebhookSecret string
}

type XenditConfig struct {
	SecretKey     string
	CallbackToken string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppURL:     os.Getenv("APP_URL"),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Paypal: PaypalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			Mode:         os.Getenv("PAYPAL_MODE"),
		},
		Flutterwave: FlutterwaveConfig{
			SecretKey:     os.Getenv("FLUTTERWAVE_SECRET_KEY"),
			WebhookSecret: os.Getenv("FLUTTERWAVE_WEBHOOK_SECRET"),
		},
		Xendit: XenditConfig{
			SecretKey:     os.Getenv("XENDIT_APIKEY"),
			CallbackToken: os.Getenv("XENDIT_CALLBACK_TOKEN"),
		},
	}

	if cfg.Paypal.Mode == "" {
		cfg.Paypal.Mode = "sandbox"
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}
