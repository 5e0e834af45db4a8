package observability

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncBroadcast("Alert")
	metrics.IncDelivery("slack", "delivered")
	metrics.IncDelivery("discord", "failed")
	metrics.IncDeliveryFailed("discord", "transient")
	metrics.ObserveDeliveryDuration("slack", 120*time.Millisecond)
	metrics.ObserveDeliveryDuration("slack", -time.Second)
	metrics.IncInFlight("slack")
	metrics.DecInFlight("slack")
	metrics.IncHistoryAppendError()

	if got := testutil.ToFloat64(metrics.broadcastsTotal.WithLabelValues("alert")); got != 1 {
		t.Fatalf("broadcasts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("slack", "delivered")); got != 1 {
		t.Fatalf("deliveries_total{slack,delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryFailuresTotal.WithLabelValues("discord", "transient")); got != 1 {
		t.Fatalf("delivery_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesInflight.WithLabelValues("slack")); got != 0 {
		t.Fatalf("deliveries_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.historyAppendErrors); got != 1 {
		t.Fatalf("history_append_errors_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.deliveryDuration); got != 1 {
		t.Fatalf("delivery_duration_seconds series = %d, want 1", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncBroadcast("alert")
	metrics.IncDelivery("slack", "delivered")
	metrics.IncDeliveryFailed("slack", "permanent")
	metrics.ObserveDeliveryDuration("slack", time.Second)
	metrics.IncInFlight("slack")
	metrics.DecInFlight("slack")
	metrics.IncHistoryAppendError()
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	if got := normalizeLabel("  "); got != "unknown" {
		t.Fatalf("normalizeLabel(blank) = %q, want unknown", got)
	}
	if got := normalizeLabel(" Slack "); got != "slack" {
		t.Fatalf("normalizeLabel(Slack) = %q, want slack", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareLabelsByRouteTemplate(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/v1/channels/:id", func(c *fiber.Ctx) error {
		return fmt.Errorf("lookup %s: %w", c.Params("id"), fiber.ErrNotFound)
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for _, target := range []string{"/v1/channels/myspace", "/v1/channels/bebo", "/metrics"} {
		if _, err := app.Test(httptest.NewRequest("GET", target, nil)); err != nil {
			t.Fatalf("app.Test(%s) error = %v", target, err)
		}
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/v1/channels/:id", "404")); got != 2 {
		t.Fatalf("http_requests_total{/v1/channels/:id,404} = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 1 {
		t.Fatalf("http_requests_total series = %d, want 1 (scrapes excluded)", got)
	}
}
