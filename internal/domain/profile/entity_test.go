package profile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testFreeTries = 5

// ProfileTestSuite provides a test suite for the Profile entity
type ProfileTestSuite struct {
	suite.Suite
}

func (suite *ProfileTestSuite) TestProfileCreation() {
	suite.Run("ValidCredentials_ShouldCreateFreeTierProfile", func() {
		// Act
		p, err := NewProfile("cook@example.com", "supersecret")

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), p)

		assert.NotEqual(suite.T(), uuid.Nil, p.ID())
		assert.Equal(suite.T(), "cook@example.com", p.Email())
		assert.Equal(suite.T(), TierFree, p.SubscriptionTier())
		assert.Nil(suite.T(), p.SubscriptionExpiresAt())
		assert.Equal(suite.T(), 0, p.DailyUsageCount())
	})

	suite.Run("UppercaseEmail_ShouldBeLowercased", func() {
		// Act
		p, err := NewProfile("Cook@Example.COM", "supersecret")

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "cook@example.com", p.Email())
	})

	suite.Run("InvalidEmail_ShouldReturnError", func() {
		// Act
		p, err := NewProfile("not-an-email", "supersecret")

		// Assert
		assert.Error(suite.T(), err)
		assert.Nil(suite.T(), p)
	})

	suite.Run("ShortPassword_ShouldReturnError", func() {
		// Act
		p, err := NewProfile("cook@example.com", "short")

		// Assert
		assert.Error(suite.T(), err)
		assert.Nil(suite.T(), p)
	})

	suite.Run("Password_ShouldVerifyWithCheckPassword", func() {
		// Arrange
		p, err := NewProfile("cook@example.com", "supersecret")
		require.NoError(suite.T(), err)

		// Assert
		assert.NoError(suite.T(), p.CheckPassword("supersecret"))
		assert.Error(suite.T(), p.CheckPassword("wrongpassword"))
	})
}

func (suite *ProfileTestSuite) TestRecordUse() {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	suite.Run("UnderLimit_ShouldAllowAndIncrement", func() {
		// Arrange
		p := freeProfile(suite.T(), 2, now.Add(-time.Hour))

		// Act
		allowed := p.RecordUse(now, testFreeTries)

		// Assert
		assert.True(suite.T(), allowed)
		assert.Equal(suite.T(), 3, p.DailyUsageCount())
	})

	suite.Run("AtLimit_ShouldDeny", func() {
		// Arrange
		p := freeProfile(suite.T(), testFreeTries, now.Add(-time.Hour))

		// Act
		allowed := p.RecordUse(now, testFreeTries)

		// Assert
		assert.False(suite.T(), allowed)
		assert.Equal(suite.T(), testFreeTries, p.DailyUsageCount())
	})

	suite.Run("NewCalendarDay_ShouldResetToOne", func() {
		// Arrange: counter exhausted yesterday
		yesterday := now.AddDate(0, 0, -1)
		p := freeProfile(suite.T(), testFreeTries, yesterday)

		// Act
		allowed := p.RecordUse(now, testFreeTries)

		// Assert
		assert.True(suite.T(), allowed)
		assert.Equal(suite.T(), 1, p.DailyUsageCount())
		assert.Equal(suite.T(), now, p.DailyUsageResetAt())
	})

	suite.Run("JustBeforeMidnight_ShouldStillCountSameDay", func() {
		// Arrange: five uses at 23:59 UTC
		lateNight := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
		p := freeProfile(suite.T(), testFreeTries, lateNight)

		// Act
		allowed := p.RecordUse(lateNight.Add(30*time.Second), testFreeTries)

		// Assert
		assert.False(suite.T(), allowed)
	})

	suite.Run("JustAfterMidnight_ShouldResetEvenThoughUnder24h", func() {
		// Arrange: reset is date-based, not a rolling 24h window
		lateNight := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
		p := freeProfile(suite.T(), testFreeTries, lateNight)

		// Act
		allowed := p.RecordUse(time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC), testFreeTries)

		// Assert
		assert.True(suite.T(), allowed)
		assert.Equal(suite.T(), 1, p.DailyUsageCount())
	})
}

func (suite *ProfileTestSuite) TestRemainingUses() {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	suite.Run("SameDay_ShouldSubtractCount", func() {
		p := freeProfile(suite.T(), 3, now.Add(-time.Hour))
		assert.Equal(suite.T(), 2, p.RemainingUses(now, testFreeTries))
	})

	suite.Run("StaleWindow_ShouldReportFullAllowance", func() {
		p := freeProfile(suite.T(), testFreeTries, now.AddDate(0, 0, -2))
		assert.Equal(suite.T(), testFreeTries, p.RemainingUses(now, testFreeTries))
	})

	suite.Run("OverLimit_ShouldClampToZero", func() {
		p := freeProfile(suite.T(), testFreeTries+2, now.Add(-time.Hour))
		assert.Equal(suite.T(), 0, p.RemainingUses(now, testFreeTries))
	})
}

func (suite *ProfileTestSuite) TestHasActivePremium() {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	suite.Run("PremiumWithFutureExpiry_ShouldBeActive", func() {
		// Arrange
		expiry := now.Add(30 * 24 * time.Hour)
		p := premiumProfile(suite.T(), &expiry)

		// Assert
		assert.True(suite.T(), p.HasActivePremium(now))
	})

	suite.Run("PremiumWithPastExpiry_ShouldNotBeActive", func() {
		// Arrange: tier still says premium but the paid period ran out
		expiry := now.Add(-time.Hour)
		p := premiumProfile(suite.T(), &expiry)

		// Assert
		assert.False(suite.T(), p.HasActivePremium(now))
	})

	suite.Run("PremiumWithoutExpiry_ShouldNotBeActive", func() {
		// Arrange
		p := premiumProfile(suite.T(), nil)

		// Assert
		assert.False(suite.T(), p.HasActivePremium(now))
	})

	suite.Run("FreeTier_ShouldNeverBeActive", func() {
		// Arrange
		expiry := now.Add(time.Hour)
		p := freeProfile(suite.T(), 0, now)
		p.ApplySubscription(TierFree, &expiry, now)

		// Assert
		assert.False(suite.T(), p.HasActivePremium(now))
	})
}

func (suite *ProfileTestSuite) TestApplySubscription() {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	suite.Run("Upgrade_ShouldSetTierAndExpiry", func() {
		// Arrange
		p := freeProfile(suite.T(), 0, now)
		expiry := now.Add(30 * 24 * time.Hour)

		// Act
		p.ApplySubscription(TierPremium, &expiry, now)

		// Assert
		assert.Equal(suite.T(), TierPremium, p.SubscriptionTier())
		require.NotNil(suite.T(), p.SubscriptionExpiresAt())
		assert.Equal(suite.T(), expiry, *p.SubscriptionExpiresAt())
	})

	suite.Run("SameUpdateTwice_ShouldBeIdempotent", func() {
		// Arrange
		p := freeProfile(suite.T(), 0, now)
		expiry := now.Add(30 * 24 * time.Hour)

		// Act
		p.ApplySubscription(TierPremium, &expiry, now)
		p.ApplySubscription(TierPremium, &expiry, now)

		// Assert
		assert.Equal(suite.T(), TierPremium, p.SubscriptionTier())
		assert.Equal(suite.T(), expiry, *p.SubscriptionExpiresAt())
	})

	suite.Run("Downgrade_ShouldClearExpiry", func() {
		// Arrange
		p := freeProfile(suite.T(), 0, now)
		expiry := now.Add(30 * 24 * time.Hour)
		p.ApplySubscription(TierPremium, &expiry, now)

		// Act
		p.ApplySubscription(TierFree, nil, now)

		// Assert
		assert.Equal(suite.T(), TierFree, p.SubscriptionTier())
		assert.Nil(suite.T(), p.SubscriptionExpiresAt())
	})
}

func TestProfileTestSuite(t *testing.T) {
	suite.Run(t, new(ProfileTestSuite))
}

func freeProfile(t *testing.T, usageCount int, resetAt time.Time) *Profile {
	t.Helper()
	now := time.Now()
	return Reconstitute(
		uuid.New(), "cook@example.com", "$2a$10$hash",
		TierFree, nil,
		usageCount, resetAt,
		now, now,
	)
}

func premiumProfile(t *testing.T, expiresAt *time.Time) *Profile {
	t.Helper()
	now := time.Now()
	return Reconstitute(
		uuid.New(), "cook@example.com", "$2a$10$hash",
		TierPremium, expiresAt,
		0, now,
		now, now,
	)
}
