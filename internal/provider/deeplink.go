package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Handoff passes a deep-link target to the host environment to open.
type Handoff func(ctx context.Context, channel domain.Channel, target string) error

var _ Adapter = (*DeepLinkAdapter)(nil)

// DeepLinkAdapter builds share-intent URLs. It makes no network call, so a
// delivered outcome only means the link was handed off.
type DeepLinkAdapter struct {
	handoff Handoff
}

func NewDeepLinkAdapter(handoff Handoff) *DeepLinkAdapter {
	return &DeepLinkAdapter{handoff: handoff}
}

func (a *DeepLinkAdapter) Kind() domain.DeliveryKind { return domain.DeliveryKindDeepLink }

func (a *DeepLinkAdapter) Deliver(ctx context.Context, channel domain.Channel, message string) (*Delivery, error) {
	if channel.Kind != domain.DeliveryKindDeepLink {
		return nil, fmt.Errorf("%w: channel %q is not a deep-link channel", domain.ErrValidation, channel.ID)
	}
	if err := channel.Platform.ValidateOptions(channel.Options); err != nil {
		return nil, fmt.Errorf("channel %q is not configured: %w", channel.ID, err)
	}

	target, err := ShareURL(channel, message)
	if err != nil {
		return nil, err
	}

	if a != nil && a.handoff != nil {
		if err := a.handoff(ctx, channel, target); err != nil {
			return nil, &ProviderError{Message: "deep-link handoff failed", Cause: err}
		}
	}

	return &Delivery{HandoffURL: target}, nil
}

// ShareURL returns the encoded share-intent URL for a deep-link channel.
func ShareURL(channel domain.Channel, message string) (string, error) {
	switch channel.Platform {
	case domain.PlatformWhatsApp:
		invite := "https://chat.whatsapp.com/" + url.PathEscape(channel.Option(domain.OptionInviteCode))
		text := message + "\n\nJoin the community: " + invite
		return "https://wa.me/?" + url.Values{"text": {text}}.Encode(), nil
	}
	return "", fmt.Errorf("%w: no share link for platform %q", domain.ErrValidation, channel.Platform)
}
