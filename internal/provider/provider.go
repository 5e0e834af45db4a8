package provider

import (
	"context"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Adapter is the outbound delivery port for one channel kind.
type Adapter interface {
	Kind() domain.DeliveryKind
	Deliver(ctx context.Context, channel domain.Channel, message string) (*Delivery, error)
}

// Delivery stores adapter call metadata for the broadcast outcome.
type Delivery struct {
	StatusCode int
	// RequestID is the platform's request id header, for support tickets.
	RequestID  string
	HandoffURL string
}
