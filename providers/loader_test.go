package providers_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcelsud/webhook-hub/providers"
	"github.com/marcelsud/webhook-hub/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("success - valid providers file", func(t *testing.T) {
		path := writeFile(t, `
providers:
  - provider: Shopify
    secret: shpss_123
    rate_limit: 50
    ip_whitelist: ["10.0.0.0/8", "192.168.1.10"]
    events: ["orders/*", "customers/create"]
    high_priority_events: ["orders/create"]
  - provider: github
    secret: gh-secret
`)

		loader := providers.NewLoader()
		require.NoError(t, loader.Load(path))

		all := loader.List()
		require.Len(t, all, 2)
		assert.Equal(t, "github", all[0].Provider)

		shopify, err := loader.Config(context.Background(), "shopify")
		require.NoError(t, err)
		assert.Equal(t, 50, shopify.RateLimit)
		assert.Equal(t, queue.DefaultMaxRetries, shopify.MaxRetries)

		github, ok := loader.Get("github")
		require.True(t, ok)
		assert.Equal(t, providers.DefaultRateLimit, github.RateLimit)
	})

	t.Run("error - missing file", func(t *testing.T) {
		err := providers.NewLoader().Load("/nonexistent/providers.yaml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading providers file")
	})

	t.Run("error - invalid yaml", func(t *testing.T) {
		err := providers.NewLoader().Load(writeFile(t, "providers: [\n"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing providers YAML")
	})

	t.Run("error - missing secret", func(t *testing.T) {
		err := providers.NewLoader().Load(writeFile(t, `
providers:
  - provider: hubspot
`))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret cannot be empty")
	})

	t.Run("error - bad whitelist entry", func(t *testing.T) {
		err := providers.NewLoader().Load(writeFile(t, `
providers:
  - provider: hubspot
    secret: x
    ip_whitelist: ["not-an-ip"]
`))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid ip_whitelist entry")
	})
}

func TestLoader_Config(t *testing.T) {
	inactive := false
	loader := providers.NewLoader()
	require.NoError(t, loader.Add(providers.Config{Provider: "paused", Secret: "s", Active: &inactive}))

	_, err := loader.Config(context.Background(), "paused")
	assert.ErrorIs(t, err, providers.ErrNotFound)

	_, err = loader.Config(context.Background(), "missing")
	assert.ErrorIs(t, err, providers.ErrNotFound)
}

func TestConfig_AllowsIP(t *testing.T) {
	c := providers.Config{IPWhitelist: []string{"10.0.0.0/8", "192.168.1.10"}}

	assert.True(t, c.AllowsIP("10.2.3.4"))
	assert.True(t, c.AllowsIP("192.168.1.10"))
	assert.False(t, c.AllowsIP("192.168.1.11"))
	assert.False(t, c.AllowsIP("garbage"))
	assert.True(t, providers.Config{}.AllowsIP("8.8.8.8"))
}

func TestConfig_PriorityFor(t *testing.T) {
	c := providers.Config{
		HighPriorityEvents: []string{"orders/create", "deal.propertyChange"},
		LowPriorityEvents:  []string{"products/*"},
	}

	assert.Equal(t, queue.High, c.PriorityFor("orders/create"))
	assert.Equal(t, queue.High, c.PriorityFor("deal.propertyChange"))
	assert.Equal(t, queue.Low, c.PriorityFor("products/update"))
	assert.Equal(t, queue.Medium, c.PriorityFor("customers/create"))
	assert.Equal(t, queue.Medium, providers.Config{}.PriorityFor("anything"))
}

func TestConfig_Subscribes(t *testing.T) {
	c := providers.Config{Events: []string{"orders/*"}}

	assert.True(t, c.Subscribes("orders/paid"))
	assert.False(t, c.Subscribes("customers/create"))
	assert.True(t, providers.Config{}.Subscribes("anything"))
}
