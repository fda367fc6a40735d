// Package gorm provides GORM model definitions and repository
// implementations for the application
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileModel represents the GORM model for user profiles
type ProfileModel struct {
	ID                    uuid.UUID  `gorm:"type:char(36);primaryKey"`
	Email                 string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash          string     `gorm:"type:varchar(255);not null"`
	SubscriptionTier      string     `gorm:"type:varchar(20);default:'free';index"`
	SubscriptionExpiresAt *time.Time `gorm:"index"`
	DailyUsageCount       int        `gorm:"default:0"`
	DailyUsageResetAt     time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// Relationships
	SavedRecipes []SavedRecipeModel `gorm:"foreignKey:UserID"`
}

// AnonymousUsageModel represents one generation attempt by an
// unauthenticated caller, keyed by client IP
type AnonymousUsageModel struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	IPIdentifier string    `gorm:"type:varchar(45);not null;index:idx_anon_ip_created"`
	CreatedAt    time.Time `gorm:"index:idx_anon_ip_created"`
}

// UsageHistoryModel represents the append-only generation audit trail
type UsageHistoryModel struct {
	ID          uuid.UUID  `gorm:"type:char(36);primaryKey"`
	UserID      *uuid.UUID `gorm:"type:char(36);index"`
	PromptText  string     `gorm:"type:text;not null"`
	IsAnonymous bool       `gorm:"default:false"`
	RecipeName  *string    `gorm:"type:varchar(255)"`
	CreatedAt   time.Time  `gorm:"index"`
}

// SavedRecipeModel represents the GORM model for saved recipes
type SavedRecipeModel struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID     uuid.UUID `gorm:"type:char(36);not null;index"`
	RecipeName string    `gorm:"type:varchar(255);not null;index"`
	RecipeData JSONField `gorm:"type:json"`
	Folder     string    `gorm:"type:varchar(100);default:'Uncategorized';index"`
	IsFavorite bool      `gorm:"default:false;index"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time

	// Relationships
	User ProfileModel `gorm:"foreignKey:UserID"`
}

// JSONField custom type for handling JSON columns
type JSONField map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = JSONField{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONField", value)
	}
}

// Value implements the driver.Valuer interface
func (j JSONField) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return json.Marshal(j)
}

// BeforeCreate hook for ProfileModel
func (p *ProfileModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for AnonymousUsageModel
func (a *AnonymousUsageModel) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for UsageHistoryModel
func (u *UsageHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for SavedRecipeModel
func (s *SavedRecipeModel) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names
func (ProfileModel) TableName() string {
	return "profiles"
}

func (AnonymousUsageModel) TableName() string {
	return "anonymous_usage"
}

func (UsageHistoryModel) TableName() string {
	return "usage_history"
}

func (SavedRecipeModel) TableName() string {
	return "saved_recipes"
}
