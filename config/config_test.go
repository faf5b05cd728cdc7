package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideApplicationConfigRequiresSecretKey(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := ProvideApplicationConfig()
	assert.Error(t, err)
}

func TestProvideApplicationConfigDefaults(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_PUBLISHABLE_KEY", "pk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	cfg, err := ProvideApplicationConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, "pk_test_123", cfg.Stripe.PublishableKey)
	assert.Empty(t, cfg.Stripe.WebhookSecret)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
}

func TestPriceIDLookup(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("PREMIUM", "price_premium")

	cfg, err := ProvideApplicationConfig()
	require.NoError(t, err)

	assert.Equal(t, "price_premium", cfg.PriceID("premium"))
	assert.Equal(t, "price_premium", cfg.PriceID("PREMIUM"))
	assert.Empty(t, cfg.PriceID("no-such-plan"))
}
