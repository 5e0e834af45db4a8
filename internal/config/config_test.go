package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.HistoryBackend != HistoryBackendMemory {
		t.Errorf("HistoryBackend = %s, want %s", cfg.HistoryBackend, HistoryBackendMemory)
	}
	if cfg.DeliveryTimeout() != 10*time.Second {
		t.Errorf("DeliveryTimeout = %v, want 10s", cfg.DeliveryTimeout())
	}
	if cfg.DefaultAuthor != "anonymous" {
		t.Errorf("DefaultAuthor = %s, want anonymous", cfg.DefaultAuthor)
	}
	if cfg.TelegramAPIBaseURL != "https://api.telegram.org" {
		t.Errorf("TelegramAPIBaseURL = %s", cfg.TelegramAPIBaseURL)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HISTORY_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_PER_SEC", "5")
	t.Setenv("DELIVERY_TIMEOUT_MS", "2500")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T0/B0/x")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.HistoryBackend != HistoryBackendRedis {
		t.Errorf("HistoryBackend = %s, want %s", cfg.HistoryBackend, HistoryBackendRedis)
	}
	if cfg.RateLimitPerSec != 5 {
		t.Errorf("RateLimitPerSec = %d, want 5", cfg.RateLimitPerSec)
	}
	if cfg.DeliveryTimeout() != 2500*time.Millisecond {
		t.Errorf("DeliveryTimeout = %v, want 2.5s", cfg.DeliveryTimeout())
	}
	if cfg.Channels.SlackWebhookURL == "" {
		t.Error("Channels.SlackWebhookURL should be loaded")
	}
	if cfg.Channels.TelegramChatID != "-1001" {
		t.Errorf("Channels.TelegramChatID = %s, want -1001", cfg.Channels.TelegramChatID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{HistoryBackend: HistoryBackendMemory, DeliveryTimeoutMS: 1}},
		{name: "redis without url", cfg: Config{HistoryBackend: HistoryBackendRedis, DeliveryTimeoutMS: 1}, wantErr: true},
		{name: "postgres without dsn", cfg: Config{HistoryBackend: HistoryBackendPostgres, DeliveryTimeoutMS: 1}, wantErr: true},
		{name: "postgres with dsn", cfg: Config{HistoryBackend: HistoryBackendPostgres, DatabaseDSN: "host=localhost", DeliveryTimeoutMS: 1}},
		{name: "unknown backend", cfg: Config{HistoryBackend: "sqlite", DeliveryTimeoutMS: 1}, wantErr: true},
		{name: "rate limit without redis", cfg: Config{HistoryBackend: HistoryBackendMemory, RateLimitPerSec: 3, DeliveryTimeoutMS: 1}, wantErr: true},
		{name: "zero timeout", cfg: Config{HistoryBackend: HistoryBackendMemory}, wantErr: true},
		{name: "malformed override", cfg: Config{HistoryBackend: HistoryBackendMemory, RateLimitOverrides: "discord", DeliveryTimeoutMS: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "cassandra")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unsupported history backend, got nil")
	}
}

func TestChannelRateLimits(t *testing.T) {
	tests := []struct {
		name      string
		overrides string
		want      map[string]int
		wantErr   bool
	}{
		{name: "empty", overrides: "", want: map[string]int{}},
		{name: "pairs", overrides: " Discord=5, telegram=20 ,", want: map[string]int{"discord": 5, "telegram": 20}},
		{name: "missing value", overrides: "discord=", wantErr: true},
		{name: "zero limit", overrides: "slack=0", wantErr: true},
		{name: "missing channel", overrides: "=3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{RateLimitOverrides: tt.overrides}
			got, err := cfg.ChannelRateLimits()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("limits = %v, want %v", got, tt.want)
			}
			for channel, limit := range tt.want {
				if got[channel] != limit {
					t.Fatalf("limit[%s] = %d, want %d", channel, got[channel], limit)
				}
			}
		})
	}
}
