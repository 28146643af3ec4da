package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

/* Process configuration read from an optional .env TOML file and the environment
 * Environment variables win over the file
 */

type Config struct {
	Port     string `mapstructure:"PORT"`
	WSPath   string `mapstructure:"WS_PATH"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text
	LogFormat string `mapstructure:"LOG_FORMAT"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// QueueDriver is redis or memory
	QueueDriver string `mapstructure:"QUEUE_DRIVER"`
	// StoreDriver is postgres or memory
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	// RateLimitDriver is memory or redis
	RateLimitDriver string `mapstructure:"RATE_LIMIT_DRIVER"`

	ProvidersFile string `mapstructure:"PROVIDERS_FILE"`

	SendGridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	AlertEmailFrom  string `mapstructure:"ALERT_EMAIL_FROM"`
	AlertEmailTo    string `mapstructure:"ALERT_EMAIL_TO"`
	SlackWebhookURL string `mapstructure:"SLACK_WEBHOOK_URL"`
	AlertWebhookURL string `mapstructure:"ALERT_WEBHOOK_URL"`
}

var defaults = map[string]any{
	"PORT":              "8080",
	"WS_PATH":           "/ws",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "json",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"QUEUE_DRIVER":      "redis",
	"STORE_DRIVER":      "postgres",
	"POSTGRES_URL":      "",
	"RATE_LIMIT_DRIVER": "memory",
	"PROVIDERS_FILE":    "providers.yaml",
	"SENDGRID_API_KEY":  "",
	"ALERT_EMAIL_FROM":  "",
	"ALERT_EMAIL_TO":    "",
	"SLACK_WEBHOOK_URL": "",
	"ALERT_WEBHOOK_URL": "",
}

// GetConfig loads configuration from ./.env (if present) and the environment
func GetConfig() (*Config, error) {
	return Load(viper.New(), ".")
}

// Load reads configuration into v, searching path for the .env file
func Load(v *viper.Viper, path string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks driver choices and their required settings
func (c *Config) Validate() error {
	switch c.QueueDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid QUEUE_DRIVER %q", c.QueueDriver)
	}
	switch c.StoreDriver {
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when STORE_DRIVER is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.RateLimitDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_DRIVER %q", c.RateLimitDriver)
	}
	return nil
}

// AlertRecipients splits ALERT_EMAIL_TO on commas
func (c *Config) AlertRecipients() []string {
	var out []string
	for _, addr := range strings.Split(c.AlertEmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
