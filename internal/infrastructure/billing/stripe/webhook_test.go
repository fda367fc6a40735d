package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	appsubscription "github.com/nuggs-ai/nuggs/internal/application/subscription"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

type recordedUpdate struct {
	tier      profile.Tier
	expiresAt *time.Time
}

type fakeProfiles struct {
	updates map[uuid.UUID][]recordedUpdate
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{updates: make(map[uuid.UUID][]recordedUpdate)}
}

func (f *fakeProfiles) Create(ctx context.Context, p *profile.Profile) error { return nil }

func (f *fakeProfiles) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	return nil, nil
}

func (f *fakeProfiles) FindByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	return nil, nil
}

func (f *fakeProfiles) UpdateUsage(ctx context.Context, id uuid.UUID, observedCount, newCount int, resetAt time.Time) error {
	return nil
}

func (f *fakeProfiles) UpdateSubscription(ctx context.Context, id uuid.UUID, tier profile.Tier, expiresAt *time.Time) error {
	f.updates[id] = append(f.updates[id], recordedUpdate{tier: tier, expiresAt: expiresAt})
	return nil
}

func (f *fakeProfiles) last(id uuid.UUID) recordedUpdate {
	updates := f.updates[id]
	return updates[len(updates)-1]
}

func newTestHandler(profiles *fakeProfiles) *WebhookHandler {
	applier := appsubscription.NewApplier(profiles, monitoring.NewMetrics(), zap.NewNop())
	return NewWebhookHandler(testSecret, applier, monitoring.NewMetrics(), zap.NewNop())
}

// signedRequest builds a request carrying a valid Stripe-Signature header:
// v1 is HMAC-SHA256 over "<timestamp>.<payload>" keyed with the endpoint
// secret.
func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(payload)))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, signature))
	return req
}

func subscriptionEvent(eventType string, userID uuid.UUID, status string, periodEnd time.Time) string {
	return fmt.Sprintf(`{
		"id": "evt_01",
		"object": "event",
		"type": %q,
		"data": {
			"object": {
				"id": "sub_01",
				"object": "subscription",
				"status": %q,
				"current_period_end": %d,
				"metadata": {"userId": %q}
			}
		}
	}`, eventType, status, periodEnd.Unix(), userID)
}

func TestStripeWebhookSignature(t *testing.T) {
	userID := uuid.New()
	periodEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ValidSignature_ShouldApplyUpdate", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, subscriptionEvent("customer.subscription.updated", userID, "active", periodEnd)))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, profiles.updates[userID], 1)
		update := profiles.last(userID)
		assert.Equal(t, profile.TierPremium, update.tier)
		require.NotNil(t, update.expiresAt)
		assert.Equal(t, periodEnd, update.expiresAt.UTC())
	})

	t.Run("InvalidSignature_ShouldRejectWithoutMutation", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)

		payload := subscriptionEvent("customer.subscription.updated", userID, "active", periodEnd)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(payload)))
		req.Header.Set("Stripe-Signature", "t=12345,v1=deadbeef")
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, profiles.updates)
	})

	t.Run("MissingSignature_ShouldReject", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)

		payload := subscriptionEvent("customer.subscription.updated", userID, "active", periodEnd)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(payload)))
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, profiles.updates)
	})
}

func TestStripeWebhookEvents(t *testing.T) {
	userID := uuid.New()
	periodEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("SubscriptionDeleted_ShouldRevertToFree", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, subscriptionEvent("customer.subscription.deleted", userID, "canceled", periodEnd)))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		update := profiles.last(userID)
		assert.Equal(t, profile.TierFree, update.tier)
		assert.Nil(t, update.expiresAt)
	})

	t.Run("PastDueStatus_ShouldRevokeEntitlement", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, subscriptionEvent("customer.subscription.updated", userID, "past_due", periodEnd)))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, profile.TierFree, profiles.last(userID).tier)
	})

	t.Run("MissingUserMetadata_ShouldRejectWithoutMutation", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		payload := `{
			"id": "evt_01",
			"object": "event",
			"type": "customer.subscription.updated",
			"data": {"object": {"id": "sub_01", "object": "subscription", "status": "active", "metadata": {}}}
		}`
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, payload))

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, profiles.updates)
	})

	t.Run("CheckoutCompleted_ShouldGrantProvisionalPremium", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		payload := fmt.Sprintf(`{
			"id": "evt_01",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {"object": {"id": "cs_01", "object": "checkout.session", "metadata": {"userId": %q}}}
		}`, userID)
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, payload))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		update := profiles.last(userID)
		assert.Equal(t, profile.TierPremium, update.tier)
		require.NotNil(t, update.expiresAt)
		assert.True(t, update.expiresAt.After(time.Now()), "provisional window must lie in the future")
	})

	t.Run("SameEventTwice_ShouldConvergeOnSameState", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		payload := subscriptionEvent("customer.subscription.updated", userID, "active", periodEnd)

		// Act
		rec1 := httptest.NewRecorder()
		handler.ServeHTTP(rec1, signedRequest(t, payload))
		rec2 := httptest.NewRecorder()
		handler.ServeHTTP(rec2, signedRequest(t, payload))

		// Assert
		assert.Equal(t, http.StatusOK, rec1.Code)
		assert.Equal(t, http.StatusOK, rec2.Code)
		require.Len(t, profiles.updates[userID], 2)
		first := profiles.updates[userID][0]
		second := profiles.updates[userID][1]
		assert.Equal(t, first.tier, second.tier)
		assert.Equal(t, first.expiresAt.UTC(), second.expiresAt.UTC())
	})

	t.Run("UnhandledEventType_ShouldAcknowledgeWithoutMutation", func(t *testing.T) {
		// Arrange
		profiles := newFakeProfiles()
		handler := newTestHandler(profiles)
		payload := `{"id":"evt_01","object":"event","type":"invoice.paid","data":{"object":{"id":"in_01"}}}`
		rec := httptest.NewRecorder()

		// Act
		handler.ServeHTTP(rec, signedRequest(t, payload))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, profiles.updates)
	})
}
