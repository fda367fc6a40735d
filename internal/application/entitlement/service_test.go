package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	profile      *profile.Profile
	findErr      error
	updateErr    error
	usageUpdates int
}

func (f *fakeProfiles) Create(ctx context.Context, p *profile.Profile) error { return nil }

func (f *fakeProfiles) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.profile, nil
}

func (f *fakeProfiles) FindByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	return f.profile, f.findErr
}

func (f *fakeProfiles) UpdateUsage(ctx context.Context, id uuid.UUID, observedCount, newCount int, resetAt time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.usageUpdates++
	return nil
}

func (f *fakeProfiles) UpdateSubscription(ctx context.Context, id uuid.UUID, tier profile.Tier, expiresAt *time.Time) error {
	return nil
}

type fakeUsage struct {
	count      int64
	countErr   error
	insertErr  error
	inserted   int
	historyErr error
	history    []outbound.UsageHistoryEntry
}

func (f *fakeUsage) CountAnonymousSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	return f.count, f.countErr
}

func (f *fakeUsage) InsertAnonymous(ctx context.Context, ip string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted++
	return nil
}

func (f *fakeUsage) AppendHistory(ctx context.Context, entry outbound.UsageHistoryEntry) (uuid.UUID, error) {
	if f.historyErr != nil {
		return uuid.Nil, f.historyErr
	}
	entry.ID = uuid.New()
	f.history = append(f.history, entry)
	return entry.ID, nil
}

func (f *fakeUsage) SetHistoryRecipeName(ctx context.Context, id uuid.UUID, name string) error {
	return nil
}

func newTestService(profiles *fakeProfiles, usage *fakeUsage) *Service {
	s := NewService(profiles, usage, Config{FreeTries: 5, AnonymousFreeTries: 3}, zap.NewNop())
	s.now = func() time.Time { return testNow }
	return s
}

func freeProfile(count int, resetAt time.Time) *profile.Profile {
	return profile.Reconstitute(
		uuid.New(), "cook@example.com", "$2a$10$hash",
		profile.TierFree, nil,
		count, resetAt,
		testNow, testNow,
	)
}

func authenticated(p *profile.Profile) Identity {
	id := p.ID()
	return Identity{UserID: &id}
}

func TestCheckAuthenticated(t *testing.T) {
	t.Run("UnderLimit_ShouldAllowAndPersist", func(t *testing.T) {
		// Arrange
		profiles := &fakeProfiles{profile: freeProfile(2, testNow.Add(-time.Hour))}
		usage := &fakeUsage{}
		svc := newTestService(profiles, usage)

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.False(t, decision.Degraded)
		assert.Equal(t, 2, decision.Remaining)
		assert.Equal(t, 1, profiles.usageUpdates)
	})

	t.Run("AtLimit_ShouldDenyWithUserFacingMessage", func(t *testing.T) {
		// Arrange
		profiles := &fakeProfiles{profile: freeProfile(5, testNow.Add(-time.Hour))}
		usage := &fakeUsage{}
		svc := newTestService(profiles, usage)

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "pasta")

		// Assert
		assert.False(t, decision.Allowed)
		assert.Equal(t, 5, decision.Limit)
		assert.Equal(t, 0, decision.Remaining)
		assert.Contains(t, decision.Message, "daily limit of 5")
		assert.Zero(t, profiles.usageUpdates)
		assert.Empty(t, usage.history, "denied attempts are not ledgered")
	})

	t.Run("NewDay_ShouldResetAndAllow", func(t *testing.T) {
		// Arrange: exhausted yesterday
		profiles := &fakeProfiles{profile: freeProfile(5, testNow.AddDate(0, 0, -1))}
		svc := newTestService(profiles, &fakeUsage{})

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.Equal(t, 4, decision.Remaining)
		assert.Equal(t, 1, profiles.profile.DailyUsageCount())
	})

	t.Run("ActivePremium_ShouldBypassQuota", func(t *testing.T) {
		// Arrange
		expiry := testNow.Add(30 * 24 * time.Hour)
		p := profile.Reconstitute(
			uuid.New(), "cook@example.com", "$2a$10$hash",
			profile.TierPremium, &expiry,
			999, testNow,
			testNow, testNow,
		)
		profiles := &fakeProfiles{profile: p}
		svc := newTestService(profiles, &fakeUsage{})

		// Act
		decision := svc.Check(context.Background(), authenticated(p), "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.Equal(t, -1, decision.Remaining)
		assert.Zero(t, profiles.usageUpdates, "premium callers are not metered")
	})

	t.Run("ExpiredPremium_ShouldFallBackToFreeQuota", func(t *testing.T) {
		// Arrange
		expiry := testNow.Add(-time.Hour)
		p := profile.Reconstitute(
			uuid.New(), "cook@example.com", "$2a$10$hash",
			profile.TierPremium, &expiry,
			5, testNow.Add(-time.Hour),
			testNow, testNow,
		)
		svc := newTestService(&fakeProfiles{profile: p}, &fakeUsage{})

		// Act
		decision := svc.Check(context.Background(), authenticated(p), "pasta")

		// Assert
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Message, "daily limit of 5")
	})

	t.Run("ProfileLoadFails_ShouldAllowDegraded", func(t *testing.T) {
		// Arrange
		profiles := &fakeProfiles{findErr: errors.New("connection refused")}
		svc := newTestService(profiles, &fakeUsage{})
		userID := uuid.New()

		// Act
		decision := svc.Check(context.Background(), Identity{UserID: &userID}, "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Degraded)
		assert.Equal(t, -1, decision.Remaining)
	})

	t.Run("CounterWriteFails_ShouldAllowDegraded", func(t *testing.T) {
		// Arrange: includes the lost-race conflict from the conditional update
		profiles := &fakeProfiles{
			profile:   freeProfile(2, testNow.Add(-time.Hour)),
			updateErr: errors.New("usage counter changed concurrently"),
		}
		svc := newTestService(profiles, &fakeUsage{})

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Degraded)
	})
}

func TestCheckAnonymous(t *testing.T) {
	t.Run("UnderLimit_ShouldAllowAndRecord", func(t *testing.T) {
		// Arrange
		usage := &fakeUsage{count: 1}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		decision := svc.Check(context.Background(), Identity{IP: "203.0.113.7"}, "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.Equal(t, 1, decision.Remaining)
		assert.Equal(t, 1, usage.inserted)
	})

	t.Run("AtLimit_ShouldDenyWithGuestMessage", func(t *testing.T) {
		// Arrange
		usage := &fakeUsage{count: 3}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		decision := svc.Check(context.Background(), Identity{IP: "203.0.113.7"}, "pasta")

		// Assert
		assert.False(t, decision.Allowed)
		assert.Equal(t, 3, decision.Limit)
		assert.Contains(t, decision.Message, "daily limit of 3")
		assert.Zero(t, usage.inserted)
	})

	t.Run("MissingIP_ShouldAllowUnmetered", func(t *testing.T) {
		// Arrange
		usage := &fakeUsage{}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		decision := svc.Check(context.Background(), Identity{}, "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.Equal(t, -1, decision.Remaining)
		assert.Zero(t, usage.inserted)
	})

	t.Run("CountFails_ShouldAllowDegraded", func(t *testing.T) {
		// Arrange: covers a missing anonymous_usage table as well
		usage := &fakeUsage{countErr: errors.New("no such table: anonymous_usage")}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		decision := svc.Check(context.Background(), Identity{IP: "203.0.113.7"}, "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Degraded)
	})

	t.Run("InsertFails_ShouldAllowDegraded", func(t *testing.T) {
		// Arrange
		usage := &fakeUsage{insertErr: errors.New("disk full")}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		decision := svc.Check(context.Background(), Identity{IP: "203.0.113.7"}, "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.True(t, decision.Degraded)
	})
}

func TestAuditLedger(t *testing.T) {
	t.Run("AllowedAttempt_ShouldAppendHistory", func(t *testing.T) {
		// Arrange
		profiles := &fakeProfiles{profile: freeProfile(0, testNow)}
		usage := &fakeUsage{}
		svc := newTestService(profiles, usage)

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "vegan lasagna")

		// Assert
		require.Len(t, usage.history, 1)
		entry := usage.history[0]
		assert.Equal(t, "vegan lasagna", entry.PromptText)
		assert.False(t, entry.IsAnonymous)
		require.NotNil(t, entry.UserID)
		assert.Equal(t, profiles.profile.ID(), *entry.UserID)
		assert.NotEqual(t, uuid.Nil, decision.HistoryID)
	})

	t.Run("AnonymousAttempt_ShouldAppendAnonymousRow", func(t *testing.T) {
		// Arrange
		usage := &fakeUsage{}
		svc := newTestService(&fakeProfiles{}, usage)

		// Act
		svc.Check(context.Background(), Identity{IP: "203.0.113.7"}, "pasta")

		// Assert
		require.Len(t, usage.history, 1)
		assert.True(t, usage.history[0].IsAnonymous)
		assert.Nil(t, usage.history[0].UserID)
	})

	t.Run("HistoryWriteFails_ShouldStillAllow", func(t *testing.T) {
		// Arrange
		profiles := &fakeProfiles{profile: freeProfile(0, testNow)}
		usage := &fakeUsage{historyErr: errors.New("disk full")}
		svc := newTestService(profiles, usage)

		// Act
		decision := svc.Check(context.Background(), authenticated(profiles.profile), "pasta")

		// Assert
		assert.True(t, decision.Allowed)
		assert.Equal(t, uuid.Nil, decision.HistoryID)
	})
}
