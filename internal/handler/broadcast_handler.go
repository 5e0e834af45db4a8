package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/formatter"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"github.com/kursadbilgin/broadcast-engine/internal/service"
)

type BroadcastService interface {
	Broadcast(ctx context.Context, req service.BroadcastRequest) (*domain.BroadcastResult, error)
	BroadcastEvent(ctx context.Context, event domain.Event, author string, channelIDs []string) (*domain.BroadcastResult, error)
	History(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

type ChannelCatalog interface {
	ListAll() []domain.Channel
	Find(id string) (domain.Channel, bool)
}

type BroadcastHandler struct {
	service   BroadcastService
	channels  ChannelCatalog
	publisher queue.Publisher
	newID     func() string
}

// NewBroadcastHandler builds the broadcast API. A nil publisher disables the
// async endpoint.
func NewBroadcastHandler(service BroadcastService, channels ChannelCatalog, publisher queue.Publisher) (*BroadcastHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("broadcast service is required")
	}
	if channels == nil {
		return nil, fmt.Errorf("channel catalog is required")
	}
	return &BroadcastHandler{
		service:   service,
		channels:  channels,
		publisher: publisher,
		newID:     uuid.NewString,
	}, nil
}

func RegisterBroadcastRoutes(router fiber.Router, service BroadcastService, channels ChannelCatalog, publisher queue.Publisher) error {
	h, err := NewBroadcastHandler(service, channels, publisher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/broadcasts", h.CreateBroadcast)
	v1.Post("/broadcasts/async", h.EnqueueBroadcast)
	v1.Get("/broadcasts/history", h.ListHistory)
	v1.Get("/channels", h.ListChannels)
	v1.Get("/channels/:id", h.GetChannel)

	return nil
}

type broadcastRequest struct {
	Message  string          `json:"message"`
	Event    json.RawMessage `json:"event"`
	Channels []string        `json:"channels"`
	Author   string          `json:"author"`
	Tag      string          `json:"tag"`
}

type outcomeResponse struct {
	Channel           string `json:"channel"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
	StatusCode        int    `json:"statusCode,omitempty"`
	ProviderRequestID string `json:"providerRequestId,omitempty"`
	HandoffURL        string `json:"handoffUrl,omitempty"`
	DurationMS        int64  `json:"durationMs"`
}

type broadcastResponse struct {
	ID        string            `json:"id"`
	Summary   string            `json:"summary"`
	Attempted int               `json:"attempted"`
	Delivered int               `json:"delivered"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

type channelResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Platform string `json:"platform"`
	Enabled  bool   `json:"enabled"`
}

type historyResponse struct {
	Data []domain.HistoryRecord `json:"data"`
}

// parsedBroadcast is a request resolved to either a plain message or an event.
type parsedBroadcast struct {
	message string
	event   domain.Event
	tag     string
}

func (h *BroadcastHandler) CreateBroadcast(c *fiber.Ctx) error {
	req, parsed, err := parseBroadcastRequest(c)
	if err != nil {
		return toHTTPError(err)
	}

	ctx := requestContext(c)

	var result *domain.BroadcastResult
	if parsed.event != nil {
		result, err = h.service.BroadcastEvent(ctx, parsed.event, req.Author, req.Channels)
	} else {
		result, err = h.service.Broadcast(ctx, service.BroadcastRequest{
			Message:    parsed.message,
			Tag:        parsed.tag,
			Author:     req.Author,
			ChannelIDs: req.Channels,
		})
	}
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBroadcastResponse(result))
}

func (h *BroadcastHandler) EnqueueBroadcast(c *fiber.Ctx) error {
	if h.publisher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "async broadcasts are not configured")
	}

	req, parsed, err := parseBroadcastRequest(c)
	if err != nil {
		return toHTTPError(err)
	}

	msg := queue.BroadcastMessage{
		BroadcastID:   h.newID(),
		CorrelationID: requestCorrelationID(c),
		Message:       parsed.message,
		Tag:           parsed.tag,
		Author:        strings.TrimSpace(req.Author),
		ChannelIDs:    req.Channels,
	}
	if parsed.event != nil {
		msg.Message = formatter.Format(parsed.event)
		msg.Tag = parsed.event.Tag()
	}

	if err := h.publisher.Publish(requestContext(c), queue.QueueName, msg); err != nil {
		return fmt.Errorf("failed to enqueue broadcast: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     msg.BroadcastID,
		"status": "queued",
	})
}

func (h *BroadcastHandler) ListHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", domain.HistoryCapacity)

	records, err := h.service.History(requestContext(c), limit)
	if err != nil {
		return toHTTPError(err)
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}

	return c.Status(fiber.StatusOK).JSON(historyResponse{Data: records})
}

func (h *BroadcastHandler) ListChannels(c *fiber.Ctx) error {
	channels := h.channels.ListAll()
	out := make([]channelResponse, 0, len(channels))
	for _, channel := range channels {
		out = append(out, toChannelResponse(channel))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": out})
}

func (h *BroadcastHandler) GetChannel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	channel, ok := h.channels.Find(id)
	if !ok {
		return toHTTPError(fmt.Errorf("%w: channel %q", domain.ErrNotFound, id))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": toChannelResponse(channel)})
}

// toChannelResponse exposes configuration state only, never option values.
func toChannelResponse(channel domain.Channel) channelResponse {
	return channelResponse{
		ID:       channel.ID,
		Name:     channel.Name,
		Kind:     channel.Kind.String(),
		Platform: channel.Platform.String(),
		Enabled:  channel.Enabled(),
	}
}

func parseBroadcastRequest(c *fiber.Ctx) (broadcastRequest, parsedBroadcast, error) {
	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return req, parsedBroadcast{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	for _, id := range req.Channels {
		if strings.TrimSpace(id) == "" {
			return req, parsedBroadcast{}, fmt.Errorf("%w: channels must not contain blank ids", domain.ErrValidation)
		}
	}

	hasMessage := strings.TrimSpace(req.Message) != ""
	hasEvent := len(req.Event) > 0 && string(req.Event) != "null"

	switch {
	case hasMessage && hasEvent:
		return req, parsedBroadcast{}, fmt.Errorf("%w: provide either message or event, not both", domain.ErrValidation)
	case hasEvent:
		event, err := decodeEvent(req.Event)
		if err != nil {
			return req, parsedBroadcast{}, err
		}
		if err := event.Validate(); err != nil {
			return req, parsedBroadcast{}, err
		}
		return req, parsedBroadcast{event: event, tag: event.Tag()}, nil
	case hasMessage:
		return req, parsedBroadcast{message: req.Message, tag: strings.TrimSpace(req.Tag)}, nil
	default:
		return req, parsedBroadcast{}, fmt.Errorf("%w: message or event is required", domain.ErrValidation)
	}
}

func toBroadcastResponse(result *domain.BroadcastResult) broadcastResponse {
	if result == nil {
		return broadcastResponse{Outcomes: []outcomeResponse{}}
	}

	outcomes := make([]outcomeResponse, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		outcomes = append(outcomes, outcomeResponse{
			Channel:           o.ChannelID,
			Status:            o.Status.String(),
			Error:             o.Error,
			StatusCode:        o.StatusCode,
			ProviderRequestID: o.ProviderRequestID,
			HandoffURL:        o.HandoffURL,
			DurationMS:        o.Duration.Milliseconds(),
		})
	}

	return broadcastResponse{
		ID:        result.ID,
		Summary:   result.Summary(),
		Attempted: result.Attempted,
		Delivered: result.Delivered(),
		Failed:    result.Failed(),
		Skipped:   result.Skipped(),
		Outcomes:  outcomes,
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
