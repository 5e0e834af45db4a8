package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/broadcast-engine/internal/bootstrap"
	"github.com/kursadbilgin/broadcast-engine/internal/config"
	"github.com/kursadbilgin/broadcast-engine/internal/handler"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"github.com/kursadbilgin/broadcast-engine/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Close() //nolint:errcheck

	checks := make([]handler.ReadinessCheck, 0, len(app.Checks)+1)
	for _, dep := range app.Checks {
		checks = append(checks, handler.ReadinessCheck{Name: dep.Name, Check: dep.Check})
	}

	var publisher queue.Publisher
	if cfg.RabbitMQURL != "" {
		rmq, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		publisher = queue.NewRabbitMQPublisher(rmq)
		defer publisher.Close() //nolint:errcheck
		checks = append(checks, handler.ReadinessCheck{Name: "rabbitmq", Check: rmq.Ping})
	} else {
		logger.Warn("RABBITMQ_URL not set, async broadcasts disabled")
	}

	server := fiber.New(fiber.Config{
		AppName:               "broadcast-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(app.Metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(server, checks...)
	server.Get("/metrics", adaptor.HTTPHandler(app.Metrics.Handler()))

	if err := handler.RegisterBroadcastRoutes(server, app.Broadcaster, app.Registry, publisher); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()
	logger.Info("broadcast-engine api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("api server stopped", zap.Error(err))
		}
	}

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	logger.Info("broadcast-engine api stopped")
}
