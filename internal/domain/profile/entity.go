// Package profile defines the user profile domain entity, including
// subscription state and daily free-tier usage counters.
package profile

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Tier represents a profile's subscription level
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Profile represents a user profile in the system
type Profile struct {
	id                    uuid.UUID
	email                 string
	passwordHash          string
	subscriptionTier      Tier
	subscriptionExpiresAt *time.Time
	dailyUsageCount       int
	dailyUsageResetAt     time.Time
	createdAt             time.Time
	updatedAt             time.Time
}

// NewProfile creates a new free-tier profile with validation
func NewProfile(email, password string) (*Profile, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	now := time.Now()
	return &Profile{
		id:                uuid.New(),
		email:             strings.ToLower(email),
		passwordHash:      string(hashedPassword),
		subscriptionTier:  TierFree,
		dailyUsageCount:   0,
		dailyUsageResetAt: now,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// Reconstitute rebuilds a profile from persisted state. It performs no
// validation; the store is trusted to hold values that passed NewProfile.
func Reconstitute(
	id uuid.UUID,
	email string,
	passwordHash string,
	tier Tier,
	expiresAt *time.Time,
	dailyUsageCount int,
	dailyUsageResetAt time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Profile {
	return &Profile{
		id:                    id,
		email:                 email,
		passwordHash:          passwordHash,
		subscriptionTier:      tier,
		subscriptionExpiresAt: expiresAt,
		dailyUsageCount:       dailyUsageCount,
		dailyUsageResetAt:     dailyUsageResetAt,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}

// ID returns the profile's ID
func (p *Profile) ID() uuid.UUID {
	return p.id
}

// Email returns the profile's email
func (p *Profile) Email() string {
	return p.email
}

// PasswordHash returns the stored bcrypt hash
func (p *Profile) PasswordHash() string {
	return p.passwordHash
}

// CheckPassword verifies if the provided password matches
func (p *Profile) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(p.passwordHash), []byte(password))
}

// SubscriptionTier returns the stored subscription tier
func (p *Profile) SubscriptionTier() Tier {
	return p.subscriptionTier
}

// SubscriptionExpiresAt returns when the current subscription period ends
func (p *Profile) SubscriptionExpiresAt() *time.Time {
	return p.subscriptionExpiresAt
}

// DailyUsageCount returns generation calls counted in the current window
func (p *Profile) DailyUsageCount() int {
	return p.dailyUsageCount
}

// DailyUsageResetAt returns the start of the current counting window
func (p *Profile) DailyUsageResetAt() time.Time {
	return p.dailyUsageResetAt
}

// CreatedAt returns when the profile was created
func (p *Profile) CreatedAt() time.Time {
	return p.createdAt
}

// UpdatedAt returns when the profile was last updated
func (p *Profile) UpdatedAt() time.Time {
	return p.updatedAt
}

// HasActivePremium reports whether the profile is entitled to premium access
// right now. The stored tier alone is advisory: a profile can sit at premium
// after its paid-through date until the reconciler corrects it, so the expiry
// timestamp is the source of truth.
func (p *Profile) HasActivePremium(now time.Time) bool {
	if p.subscriptionTier != TierPremium {
		return false
	}
	if p.subscriptionExpiresAt == nil {
		return false
	}
	return now.Before(*p.subscriptionExpiresAt)
}

// RecordUse counts one generation attempt against the daily free-tier window
// and reports whether the attempt is allowed. The window resets once per
// calendar day (UTC date comparison, not elapsed duration): on the first use
// of a new day the count restarts at 1.
func (p *Profile) RecordUse(now time.Time, freeTries int) bool {
	if !sameCalendarDay(p.dailyUsageResetAt, now) {
		p.dailyUsageCount = 1
		p.dailyUsageResetAt = now
		p.updatedAt = now
		return true
	}

	if p.dailyUsageCount >= freeTries {
		return false
	}

	p.dailyUsageCount++
	p.updatedAt = now
	return true
}

// RemainingUses returns how many free generations are left in the current
// window. A window dated before today counts as a fresh allowance.
func (p *Profile) RemainingUses(now time.Time, freeTries int) int {
	if !sameCalendarDay(p.dailyUsageResetAt, now) {
		return freeTries
	}
	remaining := freeTries - p.dailyUsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ApplySubscription sets the subscription tier and expiry. Applying the same
// values twice leaves the profile in the same state, which is what makes
// webhook redelivery safe.
func (p *Profile) ApplySubscription(tier Tier, expiresAt *time.Time, now time.Time) {
	p.subscriptionTier = tier
	p.subscriptionExpiresAt = expiresAt
	p.updatedAt = now
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}

	if !strings.Contains(email, "@") {
		return errors.New("invalid email format")
	}

	if len(email) > 255 {
		return errors.New("email too long")
	}

	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	if len(password) > 128 {
		return errors.New("password too long")
	}

	return nil
}
