// Package outbound defines the interfaces this application depends on:
// persistence repositories and the external text-generation client.
package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
	"github.com/nuggs-ai/nuggs/internal/domain/recipe"
)

// ProfileRepository persists user profiles and their usage counters
type ProfileRepository interface {
	Create(ctx context.Context, p *profile.Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	FindByEmail(ctx context.Context, email string) (*profile.Profile, error)

	// UpdateUsage writes the daily counter state. The write is conditional on
	// the previously observed count so concurrent requests from the same user
	// cannot both land the same increment; callers treat a lost race as a
	// metering miss, not an error.
	UpdateUsage(ctx context.Context, id uuid.UUID, observedCount, newCount int, resetAt time.Time) error

	// UpdateSubscription writes tier and expiry unconditionally
	// (last-writer-wins across webhook deliveries).
	UpdateSubscription(ctx context.Context, id uuid.UUID, tier profile.Tier, expiresAt *time.Time) error
}

// UsageHistoryEntry is one row of the append-only generation audit trail
type UsageHistoryEntry struct {
	ID          uuid.UUID
	UserID      *uuid.UUID
	PromptText  string
	IsAnonymous bool
	RecipeName  *string
	CreatedAt   time.Time
}

// UsageRepository persists anonymous usage records and the audit ledger
type UsageRepository interface {
	// CountAnonymousSince counts generation attempts from ip at or after since
	CountAnonymousSince(ctx context.Context, ip string, since time.Time) (int64, error)

	// InsertAnonymous records one anonymous attempt for ip
	InsertAnonymous(ctx context.Context, ip string) error

	// AppendHistory appends an audit row and returns its ID
	AppendHistory(ctx context.Context, entry UsageHistoryEntry) (uuid.UUID, error)

	// SetHistoryRecipeName patches recipe_name on an existing audit row
	SetHistoryRecipeName(ctx context.Context, id uuid.UUID, name string) error
}

// SavedRecipeRepository persists the recipes users keep
type SavedRecipeRepository interface {
	Create(ctx context.Context, r *recipe.SavedRecipe) error
	FindByID(ctx context.Context, id uuid.UUID) (*recipe.SavedRecipe, error)
	FindByUser(ctx context.Context, userID uuid.UUID, folder string, offset, limit int) ([]*recipe.SavedRecipe, int, error)
	Update(ctx context.Context, r *recipe.SavedRecipe) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GenerationClient calls the external text-generation API
type GenerationClient interface {
	// Generate sends one prompt and returns the raw response text
	Generate(ctx context.Context, prompt string) (string, error)
}
