package registry

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/broadcast-engine/internal/config"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Registry is the immutable set of channels known to the process.
// It is built once at startup and shared read-only.
type Registry struct {
	channels []domain.Channel
	byID     map[string]int
}

func New(channels ...domain.Channel) (*Registry, error) {
	r := &Registry{
		channels: make([]domain.Channel, 0, len(channels)),
		byID:     make(map[string]int, len(channels)),
	}

	for _, ch := range channels {
		id := strings.TrimSpace(ch.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: channel id is required", domain.ErrValidation)
		}
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("%w: duplicate channel id %q", domain.ErrValidation, id)
		}
		if !ch.Platform.IsValid() {
			return nil, fmt.Errorf("%w: channel %q has unsupported platform %q", domain.ErrValidation, id, ch.Platform)
		}

		ch.ID = id
		if ch.Kind == "" {
			ch.Kind = ch.Platform.Kind()
		}
		if strings.TrimSpace(ch.Name) == "" {
			ch.Name = id
		}
		ch.Options = cloneOptions(ch.Options)

		r.byID[id] = len(r.channels)
		r.channels = append(r.channels, ch)
	}

	return r, nil
}

// FromConfig builds the fixed platform catalogue from resolved settings.
func FromConfig(cfg config.Channels) (*Registry, error) {
	return New(
		domain.Channel{
			ID:       "slack",
			Name:     "Slack",
			Platform: domain.PlatformSlack,
			Options:  options(domain.OptionWebhookURL, cfg.SlackWebhookURL),
		},
		domain.Channel{
			ID:       "discord",
			Name:     "Discord",
			Platform: domain.PlatformDiscord,
			Options:  options(domain.OptionWebhookURL, cfg.DiscordWebhookURL),
		},
		domain.Channel{
			ID:       "telegram",
			Name:     "Telegram",
			Platform: domain.PlatformTelegram,
			Options: options(
				domain.OptionBotToken, cfg.TelegramBotToken,
				domain.OptionChatID, cfg.TelegramChatID,
			),
		},
		domain.Channel{
			ID:       "whatsapp",
			Name:     "WhatsApp Community",
			Platform: domain.PlatformWhatsApp,
			Options:  options(domain.OptionInviteCode, cfg.WhatsAppInviteCode),
		},
		domain.Channel{
			ID:       "custom",
			Name:     "Custom Webhook",
			Platform: domain.PlatformCustom,
			Options:  options(domain.OptionWebhookURL, cfg.CustomWebhookURL),
		},
	)
}

// ListAll returns every channel in declaration order.
func (r *Registry) ListAll() []domain.Channel {
	if r == nil {
		return nil
	}
	out := make([]domain.Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// ListEnabled returns the configured channels in declaration order.
func (r *Registry) ListEnabled() []domain.Channel {
	if r == nil {
		return nil
	}
	out := make([]domain.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.Enabled() {
			out = append(out, ch)
		}
	}
	return out
}

// Find looks a channel up by identifier.
func (r *Registry) Find(id string) (domain.Channel, bool) {
	if r == nil {
		return domain.Channel{}, false
	}
	idx, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Channel{}, false
	}
	return r.channels[idx], true
}

// options pairs keys with values, dropping blank values.
func options(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if value := strings.TrimSpace(kv[i+1]); value != "" {
			out[kv[i]] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneOptions(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
