// Package subscription defines the canonical subscription update applied by
// the webhook reconciler. Both payment providers map their events into this
// one value so profile mutation logic exists exactly once.
package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
)

// Update is the provider-neutral result of interpreting one webhook event.
type Update struct {
	UserID    uuid.UUID
	Tier      profile.Tier
	ExpiresAt *time.Time
}

// Premium builds an update granting premium access until expiresAt.
func Premium(userID uuid.UUID, expiresAt time.Time) Update {
	return Update{UserID: userID, Tier: profile.TierPremium, ExpiresAt: &expiresAt}
}

// Free builds an update reverting the profile to the free tier.
func Free(userID uuid.UUID) Update {
	return Update{UserID: userID, Tier: profile.TierFree}
}

// FreeAt builds a free-tier update carrying an explicit expiry timestamp,
// used for immediate terminations where access ends right now.
func FreeAt(userID uuid.UUID, at time.Time) Update {
	return Update{UserID: userID, Tier: profile.TierFree, ExpiresAt: &at}
}
