package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

const DefaultAddr = ":4242"

type Config struct {
	Stripe StripeConfig
	Server ServerConfig
	NATS   NATSConfig

	env *viper.Viper
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

type ServerConfig struct {
	Addr      string
	StaticDir string
}

type NATSConfig struct {
	URL string
}

func ProvideApplicationConfig() (*Config, error) {

	// Optional .env file for local development, same as the hosted samples.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ADDR", DefaultAddr)
	v.SetDefault("STATIC_DIR", "./public")

	config := &Config{
		Stripe: StripeConfig{
			SecretKey:      v.GetString("STRIPE_SECRET_KEY"),
			PublishableKey: v.GetString("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  v.GetString("STRIPE_WEBHOOK_SECRET"),
		},
		Server: ServerConfig{
			Addr:      v.GetString("ADDR"),
			StaticDir: v.GetString("STATIC_DIR"),
		},
		NATS: NATSConfig{
			URL: v.GetString("NATS_URL"),
		},
		env: v,
	}

	if config.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}

	return config, nil
}

// PriceID resolves a client-supplied price lookup key through the
// environment: lookup key "premium" reads $PREMIUM. Returns the empty
// string when no matching variable is set.
func (c *Config) PriceID(lookupKey string) string {
	return c.env.GetString(strings.ToUpper(lookupKey))
}

// ProvideStripeClient constructs the single Stripe client handle shared by
// every component. It is read-only after construction.
func ProvideStripeClient(config *Config) *client.API {
	return client.New(config.Stripe.SecretKey, nil)
}

func NewLogger() *zap.Logger {

	logger, _ := zap.NewProduction()
	return logger
}
