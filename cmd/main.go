package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/tokentracker/internal/config"
	"github.com/davidbz/tokentracker/internal/domain"
	"github.com/davidbz/tokentracker/internal/http"
	"github.com/davidbz/tokentracker/internal/http/middleware"
	"github.com/davidbz/tokentracker/internal/observability"
	"github.com/davidbz/tokentracker/internal/provider/openai"
	"github.com/davidbz/tokentracker/internal/provider/registry"
	"github.com/davidbz/tokentracker/internal/provider/static"
	"github.com/davidbz/tokentracker/internal/scheduler"
	filestore "github.com/davidbz/tokentracker/internal/store/file"
	redisstore "github.com/davidbz/tokentracker/internal/store/redis"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

func main() {
	container := buildContainer()

	// Scheduled refresh runs for the lifetime of the process.
	err := container.Invoke(func(sched *scheduler.Scheduler) error {
		return sched.Start(context.Background())
	})
	if err != nil {
		log.Fatalf("Failed to start refresh scheduler: %v", err)
	}

	err = container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Document store
	if err := container.Provide(func(pricing *config.PricingConfig, redisCfg *config.RedisConfig) (domain.DocumentStore, error) {
		switch pricing.StoreBackend {
		case "redis":
			client := goredis.NewClient(&goredis.Options{
				Addr:     redisCfg.Addr,
				Password: redisCfg.Password,
				DB:       redisCfg.DB,
			})
			return redisstore.NewStore(client, redisCfg.Key, pricing.Currency), nil
		case "file":
			return filestore.NewStore(pricing.DatabasePath, pricing.Currency), nil
		default:
			return nil, fmt.Errorf("unknown pricing store backend: %s", pricing.StoreBackend)
		}
	}); err != nil {
		log.Fatalf("Failed to provide document store: %v", err)
	}

	// Refresh provider registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// OpenAI refresh provider
	if err := container.Provide(func(cfg *config.Config) (*openai.Provider, error) {
		if cfg.OpenAI.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}
		return openai.NewProvider(cfg.OpenAI)
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI provider: %v", err)
	}

	// Register providers with registry (invoked for side effects)
	if err := container.Invoke(func(
		reg domain.ProviderRegistry,
		openaiProvider *openai.Provider,
	) error {
		ctx := context.Background()

		if err := reg.Register(ctx, static.NewProvider()); err != nil {
			return fmt.Errorf("failed to register static provider: %w", err)
		}

		if openaiProvider != nil {
			if err := reg.Register(ctx, openaiProvider); err != nil {
				return fmt.Errorf("failed to register OpenAI provider: %w", err)
			}
		}

		return nil
	}); err != nil {
		// Ignore ErrProviderNotConfigured as it's expected for optional providers
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register providers: %v", err)
		}
		// The static provider registration above never ran; redo it alone.
		if err := container.Invoke(func(reg domain.ProviderRegistry) error {
			return reg.Register(context.Background(), static.NewProvider())
		}); err != nil {
			log.Fatalf("Failed to register static provider: %v", err)
		}
	}

	// Domain services
	if err := container.Provide(func(store domain.DocumentStore) *domain.Estimator {
		return domain.NewEstimator(store, domain.DefaultFormulaConfig())
	}); err != nil {
		log.Fatalf("Failed to provide estimator: %v", err)
	}

	if err := container.Provide(func(
		store domain.DocumentStore,
		reg domain.ProviderRegistry,
		pricing *config.PricingConfig,
	) (*domain.Refresher, error) {
		ctx := context.Background()

		provider, err := reg.Get(ctx, pricing.RefreshProvider)
		if err != nil {
			// Fall back to the static provider when the configured one
			// (usually openai without an API key) is unavailable.
			provider, err = reg.Get(ctx, "static")
			if err != nil {
				return nil, fmt.Errorf("no refresh provider available: %w", err)
			}
		}

		policy := domain.NewFreshnessPolicy(
			time.Duration(pricing.RefreshTTLHours)*time.Hour, nil)

		return domain.NewRefresher(store, provider, policy, domain.RefreshConfig{
			ProviderTimeout: time.Duration(pricing.RefreshTimeout) * time.Second,
			DefaultCurrency: pricing.Currency,
		}, nil), nil
	}); err != nil {
		log.Fatalf("Failed to provide refresher: %v", err)
	}

	if err := container.Provide(func(refresher *domain.Refresher, pricing *config.PricingConfig) *scheduler.Scheduler {
		return scheduler.NewScheduler(refresher, pricing.RefreshSchedule)
	}); err != nil {
		log.Fatalf("Failed to provide scheduler: %v", err)
	}

	// HTTP layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
