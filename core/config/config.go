package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
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
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// DiscordConfig describes how the bot talks to the Discord REST API.
type DiscordConfig struct {
	BaseURL      string `yaml:"base_url" envconfig:"DISCORD_BASE_URL"`
	ParsingToken string `yaml:"parsing_token" envconfig:"PARSING_TOKEN"`
	// MessagesLimit is the page size used when scraping a channel (1..100).
	MessagesLimit int `yaml:"messages_limit" envconfig:"MESSAGES_COUNT"`
	// RequestTimeoutSeconds bounds a single Discord call; 0 disables the bound.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" envconfig:"DISCORD_REQUEST_TIMEOUT_SECONDS"`
}

// FilesConfig lists the flat files the bot reads and appends to.
type FilesConfig struct {
	Vocabulary string `yaml:"vocabulary" envconfig:"VOCABULARY_PATH_FILE"`
	Parsed     string `yaml:"parsed" envconfig:"PARSED_PATH_FILE"`
	Tokens     string `yaml:"tokens" envconfig:"TOKENS_PATH_FILE"`
	// Proxies may be empty, in which case Discord is called directly.
	Proxies string `yaml:"proxies" envconfig:"PROXIES_PATH_FILE"`
}

// PauseConfig holds default delay bounds in seconds between two sends.
type PauseConfig struct {
	Min int `yaml:"min" envconfig:"MIN_PAUSE"`
	Max int `yaml:"max" envconfig:"MAX_PAUSE"`
}

// VocabularyConfig tunes phrase selection.
type VocabularyConfig struct {
	Shuffle   bool `yaml:"shuffle" envconfig:"VOCABULARY_SHUFFLE"`
	MaxLength int  `yaml:"max_length" envconfig:"VOCABULARY_MAX_LENGTH"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `yaml:"dsn" envconfig:"SENTRY_DSN"`
	Environment string `yaml:"environment" envconfig:"SENTRY_ENVIRONMENT"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	// DefaultDiscordBaseURL is the versioned Discord REST root.
	DefaultDiscordBaseURL = "https://discord.com/api/v9"
	// MaxMessagesLimit is the largest page Discord returns for a message list.
	MaxMessagesLimit = 100
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Discord    DiscordConfig    `yaml:"discord"`
	Files      FilesConfig      `yaml:"files"`
	Pause      PauseConfig      `yaml:"pause"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Sentry     SentryConfig     `yaml:"sentry"`
}

// Defaults returns the configuration used when neither file nor environment override a value.
func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{RunMode: RunModeLongpoll},
		Discord: DiscordConfig{
			BaseURL:               DefaultDiscordBaseURL,
			MessagesLimit:         MaxMessagesLimit,
			RequestTimeoutSeconds: 30,
		},
		Files: FilesConfig{
			Vocabulary: "vocabulary.txt",
			Parsed:     "parsed.txt",
			Tokens:     "tokens.txt",
		},
		Pause:      PauseConfig{Min: 120, Max: 280},
		Vocabulary: VocabularyConfig{Shuffle: true, MaxLength: 60},
	}
}

// Load reads configuration from an optional .env file, an optional YAML file and environment variables.
// An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
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

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	return normalizeDomain(cfg)
}

func normalizeDomain(cfg *Config) error {
	cfg.Discord.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Discord.BaseURL), "/")
	if cfg.Discord.BaseURL == "" {
		cfg.Discord.BaseURL = DefaultDiscordBaseURL
	}
	if cfg.Discord.MessagesLimit < 1 || cfg.Discord.MessagesLimit > MaxMessagesLimit {
		cfg.Discord.MessagesLimit = MaxMessagesLimit
	}
	if cfg.Discord.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("discord.request_timeout_seconds must be >= 0")
	}

	if strings.TrimSpace(cfg.Files.Vocabulary) == "" {
		return fmt.Errorf("files.vocabulary is required")
	}
	if strings.TrimSpace(cfg.Files.Parsed) == "" {
		return fmt.Errorf("files.parsed is required")
	}
	if strings.TrimSpace(cfg.Files.Tokens) == "" {
		return fmt.Errorf("files.tokens is required")
	}

	if cfg.Pause.Min <= 0 || cfg.Pause.Max <= 0 {
		return fmt.Errorf("pause.min and pause.max must be > 0")
	}
	if cfg.Pause.Min > cfg.Pause.Max {
		return fmt.Errorf("pause.min (%d) must not exceed pause.max (%d)", cfg.Pause.Min, cfg.Pause.Max)
	}

	if cfg.Vocabulary.MaxLength <= 0 {
		cfg.Vocabulary.MaxLength = 60
	}
	return nil
}
