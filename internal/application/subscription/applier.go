// Package subscription applies provider-neutral subscription updates to
// profiles on behalf of the billing webhook handlers.
package subscription

import (
	"context"

	"github.com/nuggs-ai/nuggs/internal/domain/subscription"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	"go.uber.org/zap"
)

// Applier is the single write path for subscription state. Every webhook
// event from every provider funnels through Apply, so redelivered or
// out-of-order events converge on the same stored state.
type Applier struct {
	profiles outbound.ProfileRepository
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewApplier creates a new subscription applier
func NewApplier(profiles outbound.ProfileRepository, metrics *monitoring.Metrics, logger *zap.Logger) *Applier {
	return &Applier{
		profiles: profiles,
		metrics:  metrics,
		logger:   logger,
	}
}

// Apply writes the update to the profile. The write is idempotent: applying
// the same update twice leaves the profile unchanged.
func (a *Applier) Apply(ctx context.Context, provider string, update subscription.Update) error {
	err := a.profiles.UpdateSubscription(ctx, update.UserID, update.Tier, update.ExpiresAt)
	if err != nil {
		a.metrics.WebhookEvent(provider, "apply_failed")
		a.logger.Error("failed to apply subscription update",
			zap.String("provider", provider),
			zap.String("user_id", update.UserID.String()),
			zap.String("tier", string(update.Tier)),
			zap.Error(err),
		)
		return err
	}

	a.metrics.WebhookEvent(provider, "applied")
	a.logger.Info("subscription updated",
		zap.String("provider", provider),
		zap.String("user_id", update.UserID.String()),
		zap.String("tier", string(update.Tier)),
	)
	return nil
}
