package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// ClockifyConfig holds workspace-level Clockify API settings. The workspace
// key is used for the read-only listing endpoints; entry mutations always use
// the per-user key collected during registration.
type ClockifyConfig struct {
	APIKey      string `yaml:"api_key" envconfig:"CLOCKIFY_API_KEY"`
	WorkspaceID string `yaml:"workspace_id" envconfig:"CLOCKIFY_WORKSPACE_ID"`
	BaseURL     string `yaml:"base_url" envconfig:"CLOCKIFY_BASE_URL"`
	// Timezone names the zone used to stamp "now" for the start/end commands.
	// The dated flow stamps user-entered wall-clock text as UTC instead; see
	// the entry service.
	Timezone string `yaml:"timezone" envconfig:"CLOCKIFY_TIMEZONE"`
}

// DatabaseConfig holds Postgres connection settings. It mirrors the fields of
// database.Config; keeping the YAML section here lets packages below config
// (logger, database) avoid importing it back.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// SessionConfig controls conversation session eviction.
type SessionConfig struct {
	// TTLMinutes evicts sessions idle longer than this. Values < 0 are
	// rejected; 0 selects the default.
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	defaultBaseURL        = "https://api.clockify.me/api/v1"
	defaultTimezone       = "Europe/Moscow"
	defaultSessionTTLMins = 30
)

// RateLimitConfig holds settings for rate limiting.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Clockify  ClockifyConfig  `yaml:"clockify"`
	Session   SessionConfig   `yaml:"session"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Clockify.APIKey) == "" {
		return fmt.Errorf("clockify.api_key is required")
	}
	if strings.TrimSpace(cfg.Clockify.WorkspaceID) == "" {
		return fmt.Errorf("clockify.workspace_id is required")
	}
	if strings.TrimSpace(cfg.Clockify.BaseURL) == "" {
		cfg.Clockify.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Clockify.Timezone) == "" {
		cfg.Clockify.Timezone = defaultTimezone
	}
	if _, err := time.LoadLocation(cfg.Clockify.Timezone); err != nil {
		return fmt.Errorf("invalid clockify.timezone %q: %w", cfg.Clockify.Timezone, err)
	}

	if cfg.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = defaultSessionTTLMins
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if key != UpdateMessage {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// SessionTTL returns the configured session idle timeout.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// Location resolves the configured Clockify timezone. Normalize has already
// verified the name loads; UTC covers the remaining error path.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Clockify.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
