package gorm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	"gorm.io/gorm"
)

// UsageRepository implements anonymous usage counting and the audit ledger
// using GORM
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *gorm.DB) outbound.UsageRepository {
	return &UsageRepository{db: db}
}

// CountAnonymousSince counts generation attempts from ip at or after since
func (r *UsageRepository) CountAnonymousSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64

	result := r.db.WithContext(ctx).
		Model(&AnonymousUsageModel{}).
		Where("ip_identifier = ? AND created_at >= ?", ip, since).
		Count(&count)

	if result.Error != nil {
		return 0, result.Error
	}

	return count, nil
}

// InsertAnonymous records one anonymous attempt for ip
func (r *UsageRepository) InsertAnonymous(ctx context.Context, ip string) error {
	model := &AnonymousUsageModel{
		IPIdentifier: ip,
		CreatedAt:    time.Now(),
	}

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// AppendHistory appends an audit row and returns its ID
func (r *UsageRepository) AppendHistory(ctx context.Context, entry outbound.UsageHistoryEntry) (uuid.UUID, error) {
	model := &UsageHistoryModel{
		ID:          entry.ID,
		UserID:      entry.UserID,
		PromptText:  entry.PromptText,
		IsAnonymous: entry.IsAnonymous,
		RecipeName:  entry.RecipeName,
		CreatedAt:   time.Now(),
	}

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}

	return model.ID, nil
}

// SetHistoryRecipeName patches recipe_name on an existing audit row
func (r *UsageRepository) SetHistoryRecipeName(ctx context.Context, id uuid.UUID, name string) error {
	result := r.db.WithContext(ctx).
		Model(&UsageHistoryModel{}).
		Where("id = ?", id).
		Update("recipe_name", name)

	if result.Error != nil {
		return result.Error
	}

	return nil
}
