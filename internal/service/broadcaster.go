package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/formatter"
	"github.com/kursadbilgin/broadcast-engine/internal/history"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	defaultAuthor          = "anonymous"
)

// ChannelRegistry is the read-only channel catalogue the broadcaster resolves targets from.
type ChannelRegistry interface {
	ListEnabled() []domain.Channel
	Find(id string) (domain.Channel, bool)
}

// BroadcastRequest is one user-initiated share action.
type BroadcastRequest struct {
	// ID is assigned by the broadcaster when empty.
	ID         string
	Message    string
	Tag        string
	Author     string
	// ChannelIDs selects explicit targets; empty means every enabled channel.
	ChannelIDs []string
}

type Broadcaster struct {
	registry        ChannelRegistry
	adapters        map[domain.DeliveryKind]provider.Adapter
	history         history.Store
	rateLimiter     ratelimit.RateLimiter
	logger          *zap.Logger
	metrics         *observability.Metrics
	deliveryTimeout time.Duration
	defaultAuthor   string
	now             func() time.Time
	newID           func() string
	newRecordID     func() string
}

type BroadcasterOption func(*Broadcaster)

func WithRateLimiter(limiter ratelimit.RateLimiter) BroadcasterOption {
	return func(b *Broadcaster) { b.rateLimiter = limiter }
}

func WithDeliveryTimeout(timeout time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if timeout > 0 {
			b.deliveryTimeout = timeout
		}
	}
}

func WithDefaultAuthor(author string) BroadcasterOption {
	return func(b *Broadcaster) {
		if author = strings.TrimSpace(author); author != "" {
			b.defaultAuthor = author
		}
	}
}

func NewBroadcaster(
	registry ChannelRegistry,
	store history.Store,
	adapters []provider.Adapter,
	logger *zap.Logger,
	opts ...BroadcasterOption,
) (*Broadcaster, error) {
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byKind := make(map[domain.DeliveryKind]provider.Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		if _, exists := byKind[adapter.Kind()]; exists {
			return nil, fmt.Errorf("duplicate adapter for delivery kind %q", adapter.Kind())
		}
		byKind[adapter.Kind()] = adapter
	}

	b := &Broadcaster{
		registry:        registry,
		adapters:        byKind,
		history:         store,
		logger:          logger,
		deliveryTimeout: defaultDeliveryTimeout,
		defaultAuthor:   defaultAuthor,
		now:             time.Now,
		newID:           uuid.NewString,
		newRecordID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Broadcaster) SetMetrics(metrics *observability.Metrics) {
	if b == nil {
		return
	}
	b.metrics = metrics
}

// BroadcastEvent renders a trading event and shares it under the event's tag.
func (b *Broadcaster) BroadcastEvent(
	ctx context.Context,
	event domain.Event,
	author string,
	channelIDs []string,
) (*domain.BroadcastResult, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: event is required", domain.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	return b.Broadcast(ctx, BroadcastRequest{
		Message:    formatter.Format(event),
		Tag:        event.Tag(),
		Author:     author,
		ChannelIDs: channelIDs,
	})
}

// Broadcast delivers the message to every resolved channel concurrently and
// waits for all of them. Individual delivery failures are reported in the
// outcomes; only invalid input returns an error.
func (b *Broadcaster) Broadcast(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	for _, id := range req.ChannelIDs {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: channel id must not be blank", domain.ErrValidation)
		}
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = b.newID()
	}
	ctx = observability.WithBroadcastID(ctx, id)
	logger := observability.WithContextLogger(b.logger, ctx)

	channels := b.resolve(req.ChannelIDs)
	result := &domain.BroadcastResult{
		ID:        id,
		Outcomes:  make([]domain.DeliveryOutcome, len(channels)),
		Attempted: len(channels),
	}
	if len(channels) == 0 {
		logger.Info("broadcast resolved no channels",
			zap.Strings("requested", req.ChannelIDs),
		)
		return result, nil
	}

	var g errgroup.Group
	for i, channel := range channels {
		if !channel.Enabled() {
			result.Outcomes[i] = domain.DeliveryOutcome{
				ChannelID: channel.ID,
				Status:    domain.DeliveryStatusNotConfigured,
			}
			continue
		}

		g.Go(func() error {
			result.Outcomes[i] = b.deliver(ctx, logger, channel, req.Message)
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range result.Outcomes {
		b.metrics.IncDelivery(outcome.ChannelID, outcome.Status.String())
	}

	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		tag = domain.EventTagGeneral
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = b.defaultAuthor
	}

	// Broadcast ids come from callers and queue messages and may repeat, so
	// every record gets its own id.
	record := domain.HistoryRecord{
		ID:          b.newRecordID(),
		BroadcastID: result.ID,
		Channel:     originatingChannel(channels),
		Message:     req.Message,
		Author:      author,
		Type:        tag,
		Timestamp:   b.now().UTC(),
	}
	if err := b.history.Append(ctx, record); err != nil {
		b.metrics.IncHistoryAppendError()
		logger.Error("failed to append broadcast history", zap.Error(err))
	}
	b.metrics.IncBroadcast(tag)

	logger.Info("broadcast completed",
		zap.String("tag", tag),
		zap.Int("attempted", result.Attempted),
		zap.Int("delivered", result.Delivered()),
		zap.Int("failed", result.Failed()),
		zap.Int("skipped", result.Skipped()),
	)

	return result, nil
}

// History returns recent broadcasts, most recent first. The limit is clamped
// to [1, domain.HistoryCapacity].
func (b *Broadcaster) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 1 {
		limit = 1
	}
	if limit > domain.HistoryCapacity {
		limit = domain.HistoryCapacity
	}

	records, err := b.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read broadcast history: %w", err)
	}
	return records, nil
}

// resolve maps requested ids to registry channels. Unknown ids are dropped and
// duplicates keep their first position.
func (b *Broadcaster) resolve(ids []string) []domain.Channel {
	if len(ids) == 0 {
		return b.registry.ListEnabled()
	}

	seen := make(map[string]struct{}, len(ids))
	channels := make([]domain.Channel, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		channel, ok := b.registry.Find(id)
		if !ok {
			continue
		}
		channels = append(channels, channel)
	}
	return channels
}

func (b *Broadcaster) deliver(
	ctx context.Context,
	logger *zap.Logger,
	channel domain.Channel,
	message string,
) (outcome domain.DeliveryOutcome) {
	outcome.ChannelID = channel.ID

	start := b.now()
	b.metrics.IncInFlight(channel.ID)
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome.Status = domain.DeliveryStatusFailed
			outcome.Error = fmt.Sprintf("adapter panic: %v", recovered)
			b.metrics.IncDeliveryFailed(channel.ID, "panic")
		}
		outcome.Duration = b.now().Sub(start)
		b.metrics.DecInFlight(channel.ID)
		b.metrics.ObserveDeliveryDuration(channel.ID, outcome.Duration)

		if outcome.Status == domain.DeliveryStatusFailed {
			logger.Warn("channel delivery failed",
				zap.String("channel", channel.ID),
				zap.String("error", outcome.Error),
			)
		}
	}()

	adapter, ok := b.adapters[channel.Kind]
	if !ok {
		return b.fail(outcome, fmt.Errorf("no adapter registered for delivery kind %q", channel.Kind))
	}

	deliverCtx, cancel := context.WithTimeout(ctx, b.deliveryTimeout)
	defer cancel()

	if b.rateLimiter != nil && channel.Kind == domain.DeliveryKindWebhook {
		if err := b.rateLimiter.Wait(deliverCtx, channel.ID); err != nil {
			return b.fail(outcome, fmt.Errorf("rate limiter wait failed: %w", err))
		}
	}

	delivery, err := adapter.Deliver(deliverCtx, channel, message)
	if err != nil {
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) {
			outcome.StatusCode = providerErr.StatusCode
		}
		return b.fail(outcome, err)
	}

	outcome.Status = domain.DeliveryStatusDelivered
	if delivery != nil {
		outcome.StatusCode = delivery.StatusCode
		outcome.ProviderRequestID = delivery.RequestID
		outcome.HandoffURL = delivery.HandoffURL
	}
	return outcome
}

func (b *Broadcaster) fail(outcome domain.DeliveryOutcome, err error) domain.DeliveryOutcome {
	reason := "permanent"
	if provider.IsTransient(err) {
		reason = "transient"
	}
	b.metrics.IncDeliveryFailed(outcome.ChannelID, reason)

	outcome.Status = domain.DeliveryStatusFailed
	outcome.Error = err.Error()
	return outcome
}

// originatingChannel labels a history record with the first channel whose
// adapter was invoked, falling back to the first resolved channel.
func originatingChannel(channels []domain.Channel) string {
	for _, channel := range channels {
		if channel.Enabled() {
			return channel.ID
		}
	}
	return channels[0].ID
}
