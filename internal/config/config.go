package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	HistoryBackendMemory   = "memory"
	HistoryBackendRedis    = "redis"
	HistoryBackendPostgres = "postgres"
)

type Config struct {
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	HistoryBackend     string `env:"HISTORY_BACKEND,default=memory"`
	DatabaseDSN        string `env:"DATABASE_DSN"`
	RedisURL           string `env:"REDIS_URL"`
	RabbitMQURL        string `env:"RABBITMQ_URL"`
	RateLimitPerSec    int    `env:"RATE_LIMIT_PER_SEC,default=0"`
	RateLimitOverrides string `env:"RATE_LIMIT_OVERRIDES"`
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY,default=4"`
	DeliveryTimeoutMS  int    `env:"DELIVERY_TIMEOUT_MS,default=10000"`
	DefaultAuthor      string `env:"BROADCAST_AUTHOR,default=anonymous"`
	TelegramAPIBaseURL string `env:"TELEGRAM_API_BASE_URL,default=https://api.telegram.org"`
	Channels           Channels
}

// Channels holds the resolved per-platform settings. Empty means not configured.
type Channels struct {
	SlackWebhookURL    string `env:"SLACK_WEBHOOK_URL"`
	DiscordWebhookURL  string `env:"DISCORD_WEBHOOK_URL"`
	TelegramBotToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID     string `env:"TELEGRAM_CHAT_ID"`
	WhatsAppInviteCode string `env:"WHATSAPP_INVITE_CODE"`
	CustomWebhookURL   string `env:"CUSTOM_WEBHOOK_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.HistoryBackend = strings.ToLower(strings.TrimSpace(cfg.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = HistoryBackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every infrastructure dependency the selected options need is set.
func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case HistoryBackendMemory:
	case HistoryBackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required for history backend %q", c.HistoryBackend)
		}
	case HistoryBackendPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("DATABASE_DSN is required for history backend %q", c.HistoryBackend)
		}
	default:
		return fmt.Errorf("unsupported history backend %q", c.HistoryBackend)
	}

	if c.RateLimitPerSec > 0 && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_PER_SEC is set")
	}
	if _, err := c.ChannelRateLimits(); err != nil {
		return err
	}
	if c.DeliveryTimeoutMS <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT_MS must be positive")
	}

	return nil
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutMS) * time.Millisecond
}

// ChannelRateLimits parses RATE_LIMIT_OVERRIDES, a comma separated list of
// channel=perSecond pairs such as "discord=5,telegram=20".
func (c *Config) ChannelRateLimits() (map[string]int, error) {
	limits := map[string]int{}
	for _, pair := range strings.Split(c.RateLimitOverrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		channel, value, ok := strings.Cut(pair, "=")
		channel = strings.ToLower(strings.TrimSpace(channel))
		if !ok || channel == "" {
			return nil, fmt.Errorf("invalid RATE_LIMIT_OVERRIDES entry %q", pair)
		}
		perSec, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || perSec <= 0 {
			return nil, fmt.Errorf("invalid rate limit for channel %q: %q", channel, value)
		}
		limits[channel] = perSec
	}
	return limits, nil
}
