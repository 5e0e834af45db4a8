package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultWebhookTimeout  = 10 * time.Second
	DefaultTelegramBaseURL = "https://api.telegram.org"
	discordUsername        = "Options Desk"
	maxDiscordContent      = 2000
	maxTelegramText        = 4096
)

type slackPayload struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

type telegramPayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type customPayload struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
}

var _ Adapter = (*WebhookAdapter)(nil)

// WebhookAdapter posts messages to chat-platform webhooks. One attempt per call.
type WebhookAdapter struct {
	client          *resty.Client
	telegramBaseURL string
	logger          *zap.Logger
}

func NewWebhookAdapter(telegramBaseURL string, logger *zap.Logger) (*WebhookAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookAdapterWithClient(client, telegramBaseURL, logger)
}

func NewWebhookAdapterWithClient(client *resty.Client, telegramBaseURL string, logger *zap.Logger) (*WebhookAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(telegramBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid telegram base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Every call must be bounded so one slow channel cannot stall a broadcast.
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookAdapter{
		client:          client,
		telegramBaseURL: baseURL,
		logger:          logger,
	}, nil
}

func (a *WebhookAdapter) Kind() domain.DeliveryKind { return domain.DeliveryKindWebhook }

// Deliver posts the platform envelope. Any HTTP response counts as delivered;
// only transport failures are returned as errors.
func (a *WebhookAdapter) Deliver(ctx context.Context, channel domain.Channel, message string) (*Delivery, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("webhook adapter is not initialized")
	}
	if channel.Kind != domain.DeliveryKindWebhook {
		return nil, fmt.Errorf("%w: channel %q is not a webhook channel", domain.ErrValidation, channel.ID)
	}
	if err := channel.Platform.ValidateOptions(channel.Options); err != nil {
		return nil, fmt.Errorf("channel %q is not configured: %w", channel.ID, err)
	}

	endpoint, body := a.envelope(channel, message)

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     redact(err, channel.Option(domain.OptionBotToken), channel.Option(domain.OptionWebhookURL)),
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		a.logger.Warn("webhook responded with non-success status",
			zap.String("channel", channel.ID),
			zap.Int("status", statusCode),
			zap.String("body", truncate(strings.TrimSpace(response.String()), 256)),
		)
	}

	return &Delivery{
		StatusCode: statusCode,
		RequestID:  providerRequestID(response),
	}, nil
}

func (a *WebhookAdapter) envelope(channel domain.Channel, message string) (string, any) {
	switch channel.Platform {
	case domain.PlatformSlack:
		return channel.Option(domain.OptionWebhookURL), slackPayload{Text: message}
	case domain.PlatformDiscord:
		return channel.Option(domain.OptionWebhookURL), discordPayload{
			Content:  truncate(message, maxDiscordContent),
			Username: discordUsername,
		}
	case domain.PlatformTelegram:
		endpoint := fmt.Sprintf("%s/bot%s/sendMessage", a.telegramBaseURL, channel.Option(domain.OptionBotToken))
		return endpoint, telegramPayload{
			ChatID:                channel.Option(domain.OptionChatID),
			Text:                  truncate(message, maxTelegramText),
			DisableWebPagePreview: true,
		}
	default:
		return channel.Option(domain.OptionWebhookURL), customPayload{
			Channel: channel.ID,
			Content: message,
		}
	}
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func providerRequestID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
