package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DOWNLOAD_LINK_EXPIRY_HOURS", "")
	t.Setenv("PURCHASE_EMAIL_LINK_EXPIRY_HOURS", "")
	t.Setenv("APP_URL", "https://shop.example.com/")
	t.Setenv("CURRENCY", "USD")

	env, err := Get()
	assert.NoError(t, err)
	assert.Equal(t, 8080, env.PORT)
	assert.Equal(t, 24, env.DOWNLOAD_LINK_EXPIRY_HOURS)
	assert.Equal(t, 168, env.PURCHASE_EMAIL_LINK_EXPIRY_HOURS)
	assert.Equal(t, "https://shop.example.com", env.APP_URL)
	assert.Equal(t, "usd", env.CURRENCY)
}

func TestUnverifiedWebhooksNeverAllowedInProduction(t *testing.T) {
	t.Setenv("ALLOW_UNVERIFIED_WEBHOOKS", "true")

	t.Setenv("GO_ENV", "development")
	env, _ := Get()
	assert.True(t, env.ALLOW_UNVERIFIED_WEBHOOKS)

	t.Setenv("GO_ENV", "production")
	env, _ = Get()
	assert.False(t, env.ALLOW_UNVERIFIED_WEBHOOKS)
	assert.True(t, env.IsProduction())
}
