package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "memory")

		cfg, err := Load(viper.New(), t.TempDir())

		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "/ws", cfg.WSPath)
		assert.Equal(t, "redis", cfg.QueueDriver)
		assert.Equal(t, "memory", cfg.RateLimitDriver)
	})

	t.Run("file values with env override", func(t *testing.T) {
		dir := t.TempDir()
		content := `PORT = "9000"
STORE_DRIVER = "postgres"
POSTGRES_URL = "postgres://hub@localhost/webhooks"
QUEUE_DRIVER = "memory"
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
		t.Setenv("PORT", "9100")

		cfg, err := Load(viper.New(), dir)

		require.NoError(t, err)
		assert.Equal(t, "9100", cfg.Port)
		assert.Equal(t, "memory", cfg.QueueDriver)
		assert.Equal(t, "postgres://hub@localhost/webhooks", cfg.PostgresURL)
	})

	t.Run("postgres requires a url", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("POSTGRES_URL", "")

		_, err := Load(viper.New(), t.TempDir())

		assert.ErrorContains(t, err, "POSTGRES_URL")
	})

	t.Run("unknown queue driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("QUEUE_DRIVER", "kafka")

		_, err := Load(viper.New(), t.TempDir())

		assert.ErrorContains(t, err, "QUEUE_DRIVER")
	})
}

func TestConfig_AlertRecipients(t *testing.T) {
	c := Config{AlertEmailTo: "ops@example.com, oncall@example.com,,"}
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, c.AlertRecipients())
}
