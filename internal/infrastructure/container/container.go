// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"errors"
	"net/http"

	"github.com/nuggs-ai/nuggs/internal/application/entitlement"
	"github.com/nuggs-ai/nuggs/internal/application/generation"
	"github.com/nuggs-ai/nuggs/internal/application/recipes"
	appsubscription "github.com/nuggs-ai/nuggs/internal/application/subscription"
	"github.com/nuggs-ai/nuggs/internal/application/user"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/ai/gemini"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/billing/paddle"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/billing/stripe"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/config"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/apiserver"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	gormrepo "github.com/nuggs-ai/nuggs/internal/infrastructure/persistence/gorm"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	"github.com/nuggs-ai/nuggs/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides all dependency injection modules
var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	DatabaseModule,
	RepositoryModule,
	ServiceModule,
	BillingModule,
	HTTPModule,
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load("")
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// MonitoringModule provides Prometheus metrics
var MonitoringModule = fx.Provide(
	monitoring.NewMetrics,
)

// DatabaseModule provides the GORM database connection
var DatabaseModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
		db, err := gormrepo.Open(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Bool("auto_migrate", cfg.Database.AutoMigrate),
		)
		return db, nil
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	gormrepo.NewProfileRepository,
	gormrepo.NewUsageRepository,
	gormrepo.NewSavedRecipeRepository,
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	gemini.NewClient,

	func(profiles outbound.ProfileRepository, usage outbound.UsageRepository, cfg *config.Config, log *zap.Logger) *entitlement.Service {
		return entitlement.NewService(profiles, usage, entitlement.Config{
			FreeTries:          cfg.Limits.FreeTries,
			AnonymousFreeTries: cfg.Limits.AnonymousFreeTries,
		}, log)
	},

	generation.NewService,
	recipes.NewService,
	user.NewService,
	appsubscription.NewApplier,
)

// BillingModule provides the payment provider integrations
var BillingModule = fx.Provide(
	stripe.NewCheckout,

	func(cfg *config.Config, applier *appsubscription.Applier, metrics *monitoring.Metrics, log *zap.Logger) *stripe.WebhookHandler {
		return stripe.NewWebhookHandler(cfg.Billing.StripeWebhookSecret, applier, metrics, log)
	},

	func(cfg *config.Config, applier *appsubscription.Applier, metrics *monitoring.Metrics, log *zap.Logger) *paddle.WebhookHandler {
		return paddle.NewWebhookHandler(cfg.Billing.PaddleWebhookSecret, applier, metrics, log)
	},
)

// HTTPModule provides the HTTP server
var HTTPModule = fx.Provide(
	apiserver.NewServer,
)

// LifecycleModule registers application lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks starts the HTTP server on application start and
// drains it on stop
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	server *apiserver.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting application",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down application")

			if err := server.Shutdown(ctx); err != nil {
				log.Error("failed to shutdown HTTP server", zap.Error(err))
			}

			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Error("failed to close database connection", zap.Error(err))
				}
			}

			_ = log.Sync()
			return nil
		},
	})
}
