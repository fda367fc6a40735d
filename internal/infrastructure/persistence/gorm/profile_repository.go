package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"gorm.io/gorm"
)

// ProfileRepository implements the profile repository interface using GORM
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) outbound.ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	model := profileToModel(p)

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// FindByID finds a profile by ID
func (r *ProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	var model ProfileModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeProfileNotFound, "Profile not found", "")
		}
		return nil, result.Error
	}

	return modelToProfile(&model), nil
}

// FindByEmail finds a profile by email
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	var model ProfileModel

	result := r.db.WithContext(ctx).First(&model, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeProfileNotFound, "Profile not found", "")
		}
		return nil, result.Error
	}

	return modelToProfile(&model), nil
}

// UpdateUsage writes the daily counter conditionally on the count the caller
// observed. A concurrent request that already advanced the counter makes
// RowsAffected zero; that lost race is reported as ErrUsageConflict so the
// caller can treat it as a metering miss instead of retrying.
func (r *ProfileRepository) UpdateUsage(ctx context.Context, id uuid.UUID, observedCount, newCount int, resetAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ProfileModel{}).
		Where("id = ? AND daily_usage_count = ?", id, observedCount).
		Updates(map[string]interface{}{
			"daily_usage_count":    newCount,
			"daily_usage_reset_at": resetAt,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUsageConflict
	}

	return nil
}

// ErrUsageConflict signals a lost race on the usage counter write
var ErrUsageConflict = errors.New("usage counter changed concurrently")

// UpdateSubscription writes tier and expiry unconditionally. Webhook
// redelivery writes the same values again, which is harmless.
func (r *ProfileRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, tier profile.Tier, expiresAt *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ProfileModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subscription_tier":       string(tier),
			"subscription_expires_at": expiresAt,
			"updated_at":              time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeProfileNotFound, "Profile not found", "")
	}

	return nil
}

func profileToModel(p *profile.Profile) *ProfileModel {
	return &ProfileModel{
		ID:                    p.ID(),
		Email:                 p.Email(),
		PasswordHash:          p.PasswordHash(),
		SubscriptionTier:      string(p.SubscriptionTier()),
		SubscriptionExpiresAt: p.SubscriptionExpiresAt(),
		DailyUsageCount:       p.DailyUsageCount(),
		DailyUsageResetAt:     p.DailyUsageResetAt(),
		CreatedAt:             p.CreatedAt(),
		UpdatedAt:             p.UpdatedAt(),
	}
}

func modelToProfile(m *ProfileModel) *profile.Profile {
	return profile.Reconstitute(
		m.ID,
		m.Email,
		m.PasswordHash,
		profile.Tier(m.SubscriptionTier),
		m.SubscriptionExpiresAt,
		m.DailyUsageCount,
		m.DailyUsageResetAt,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
