// Package bootstrap wires the broadcaster and its backends from configuration.
// Both the API and the worker binaries build their dependency graph here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/broadcast-engine/internal/config"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/history"
	"github.com/kursadbilgin/broadcast-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/broadcast-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/broadcast-engine/internal/infra/redis"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/registry"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"github.com/kursadbilgin/broadcast-engine/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DependencyCheck is a named readiness check for one backing service.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type App struct {
	Config      *config.Config
	Registry    *registry.Registry
	Broadcaster *service.Broadcaster
	Metrics     *observability.Metrics
	Checks      []DependencyCheck

	closers []func() error
}

// Close releases backend connections in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{Config: cfg, Metrics: observability.NewMetrics()}

	reg, err := registry.FromConfig(cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to build channel registry: %w", err)
	}
	app.Registry = reg
	for _, channel := range reg.ListAll() {
		logger.Info("channel registered",
			zap.String("channel", channel.ID),
			zap.String("kind", channel.Kind.String()),
			zap.Bool("enabled", channel.Enabled()),
		)
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		app.Checks = append(app.Checks, DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	store, err := app.historyStore(ctx, rdb)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	webhook, err := provider.NewWebhookAdapter(cfg.TelegramAPIBaseURL, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	deepLink := provider.NewDeepLinkAdapter(func(ctx context.Context, channel domain.Channel, target string) error {
		observability.WithContextLogger(logger, ctx).Info("deep-link ready for handoff",
			zap.String("channel", channel.ID),
		)
		return nil
	})

	opts := []service.BroadcasterOption{
		service.WithDeliveryTimeout(cfg.DeliveryTimeout()),
		service.WithDefaultAuthor(cfg.DefaultAuthor),
	}
	if cfg.RateLimitPerSec > 0 {
		overrides, err := cfg.ChannelRateLimits()
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		limitOpts := make([]infraredis.RateLimitOption, 0, len(overrides))
		for channelID, perSec := range overrides {
			limitOpts = append(limitOpts, infraredis.WithChannelLimit(channelID, perSec))
		}

		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, limitOpts...)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		opts = append(opts, service.WithRateLimiter(limiter))
	}

	broadcaster, err := service.NewBroadcaster(reg, store, []provider.Adapter{webhook, deepLink}, logger, opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	broadcaster.SetMetrics(app.Metrics)
	app.Broadcaster = broadcaster

	logger.Info("broadcaster ready",
		zap.String("historyBackend", cfg.HistoryBackend),
		zap.Int("enabledChannels", len(reg.ListEnabled())),
		zap.Bool("rateLimited", cfg.RateLimitPerSec > 0),
	)

	return app, nil
}

func (a *App) historyStore(ctx context.Context, rdb *goredis.Client) (history.Store, error) {
	switch a.Config.HistoryBackend {
	case config.HistoryBackendRedis:
		store, err := infraredis.NewHistoryStore(rdb, "", domain.HistoryCapacity)
		if err != nil {
			return nil, err
		}
		a.Checks = append(a.Checks, DependencyCheck{Name: "history", Check: store.Ping})
		return store, nil

	case config.HistoryBackendPostgres:
		db, err := postgresql.NewPostgres(ctx, a.Config.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)

		if err := migrations.Migrate(db); err != nil {
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}

		repo, err := repository.NewGormHistoryRepo(db, domain.HistoryCapacity)
		if err != nil {
			return nil, err
		}
		a.Checks = append(a.Checks, DependencyCheck{Name: "history", Check: repo.Ping})
		return repo, nil

	default:
		return history.NewRing(domain.HistoryCapacity), nil
	}
}
