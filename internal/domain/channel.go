package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DeliveryKind is the mechanism an adapter uses to reach a channel.
type DeliveryKind string

const (
	DeliveryKindWebhook  DeliveryKind = "webhook"
	DeliveryKindDeepLink DeliveryKind = "deep-link"
)

func (k DeliveryKind) String() string { return string(k) }

func (k DeliveryKind) IsValid() bool {
	switch k {
	case DeliveryKindWebhook, DeliveryKindDeepLink:
		return true
	}
	return false
}

// Platform identifies the community platform behind a channel.
type Platform string

const (
	PlatformSlack    Platform = "slack"
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformCustom   Platform = "custom"
)

func (p Platform) String() string { return string(p) }

func (p Platform) IsValid() bool {
	switch p {
	case PlatformSlack, PlatformDiscord, PlatformTelegram, PlatformWhatsApp, PlatformCustom:
		return true
	}
	return false
}

// Kind returns the delivery mechanism used by the platform.
func (p Platform) Kind() DeliveryKind {
	if p == PlatformWhatsApp {
		return DeliveryKindDeepLink
	}
	return DeliveryKindWebhook
}

// Recognised channel option keys.
const (
	OptionWebhookURL = "webhook_url"
	OptionBotToken   = "bot_token"
	OptionChatID     = "chat_id"
	OptionInviteCode = "invite_code"
)

var (
	telegramTokenPattern  = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	telegramChatIDPattern = regexp.MustCompile(`^(-?\d+|@[A-Za-z0-9_]{5,})$`)
	inviteCodePattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)
)

// RequiredOptions returns the option keys a platform needs to be enabled.
func (p Platform) RequiredOptions() []string {
	switch p {
	case PlatformSlack, PlatformDiscord, PlatformCustom:
		return []string{OptionWebhookURL}
	case PlatformTelegram:
		return []string{OptionBotToken, OptionChatID}
	case PlatformWhatsApp:
		return []string{OptionInviteCode}
	}
	return nil
}

// ValidateOptions checks that every required option is present and well-formed.
func (p Platform) ValidateOptions(options map[string]string) error {
	required := p.RequiredOptions()
	if len(required) == 0 {
		return fmt.Errorf("%w: unsupported platform %q", ErrValidation, p)
	}

	for _, key := range required {
		if strings.TrimSpace(options[key]) == "" {
			return fmt.Errorf("%w: %s requires %s", ErrValidation, p, key)
		}
	}

	switch p {
	case PlatformSlack, PlatformDiscord, PlatformCustom:
		return validateWebhookURL(options[OptionWebhookURL])
	case PlatformTelegram:
		if !telegramTokenPattern.MatchString(strings.TrimSpace(options[OptionBotToken])) {
			return fmt.Errorf("%w: malformed telegram bot token", ErrValidation)
		}
		if !telegramChatIDPattern.MatchString(strings.TrimSpace(options[OptionChatID])) {
			return fmt.Errorf("%w: malformed telegram chat id", ErrValidation)
		}
	case PlatformWhatsApp:
		if !inviteCodePattern.MatchString(strings.TrimSpace(options[OptionInviteCode])) {
			return fmt.Errorf("%w: malformed invite code", ErrValidation)
		}
	}

	return nil
}

func validateWebhookURL(raw string) error {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: invalid webhook url: %v", ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: webhook url must use http or https", ErrValidation)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: webhook url has no host", ErrValidation)
	}
	return nil
}

// Channel is one destination platform known to the registry.
type Channel struct {
	ID       string
	Name     string
	Kind     DeliveryKind
	Platform Platform
	Options  map[string]string
}

// Enabled reports whether the channel carries a usable configuration.
func (c Channel) Enabled() bool {
	if len(c.Options) == 0 {
		return false
	}
	return c.Platform.ValidateOptions(c.Options) == nil
}

// Option returns the trimmed value of a configuration option.
func (c Channel) Option(key string) string {
	return strings.TrimSpace(c.Options[key])
}
