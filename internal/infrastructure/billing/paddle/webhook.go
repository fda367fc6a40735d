// Package paddle integrates Paddle Billing webhooks with the subscription
// reconciler. Paddle ships no Go SDK, so signature verification and event
// decoding live here.
package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appsubscription "github.com/nuggs-ai/nuggs/internal/application/subscription"
	"github.com/nuggs-ai/nuggs/internal/domain/subscription"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

const providerName = "paddle"

const signatureHeader = "Paddle-Signature"

const maxBodyBytes = int64(65536)

// event is the envelope Paddle posts for every notification
type event struct {
	EventType string          `json:"event_type"`
	Data      subscriptionObj `json:"data"`
}

type subscriptionObj struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	CustomData           customData     `json:"custom_data"`
	CurrentBillingPeriod *billingPeriod `json:"current_billing_period"`
	NextBilledAt         *time.Time     `json:"next_billed_at"`
	ScheduledChange      *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

type customData struct {
	UserID string `json:"user_id"`
}

type billingPeriod struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// WebhookHandler verifies and applies Paddle webhook events
type WebhookHandler struct {
	secret  string
	applier *appsubscription.Applier
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewWebhookHandler creates a new Paddle webhook handler
func NewWebhookHandler(secret string, applier *appsubscription.Applier, metrics *monitoring.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		applier: applier,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ServeHTTP handles POST /webhooks/paddle. The signature authenticates the
// delivery; anything unverifiable is rejected before any state is touched.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if h.secret == "" {
		h.logger.Error("paddle webhook secret is not configured")
		h.reject(w, http.StatusInternalServerError, "webhook not configured")
		return
	}

	if !h.verifySignature(r.Header.Get(signatureHeader), body) {
		h.metrics.WebhookEvent(providerName, "bad_signature")
		h.logger.Warn("paddle webhook signature verification failed")
		h.reject(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		h.reject(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch ev.EventType {
	case "subscription.activated", "subscription.created", "subscription.updated":
		h.handleSubscriptionChanged(w, r, ev.Data)
	case "subscription.canceled":
		h.handleSubscriptionCanceled(w, r, ev.Data)
	default:
		h.metrics.WebhookEvent(providerName, "ignored")
		h.ok(w)
	}
}

// verifySignature checks the Paddle-Signature header, which carries a unix
// timestamp and an HMAC-SHA256 of "{ts}:{rawBody}" keyed with the endpoint
// secret: "ts=1671552777;h1=eb4d0dc8...".
func (h *WebhookHandler) verifySignature(header string, body []byte) bool {
	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			h1 = value
		}
	}
	if ts == "" || h1 == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(h1))
}

func (h *WebhookHandler) handleSubscriptionChanged(w http.ResponseWriter, r *http.Request, sub subscriptionObj) {
	userID, ok := h.userID(sub)
	if !ok {
		h.reject(w, http.StatusBadRequest, "missing user id")
		return
	}

	switch sub.Status {
	case "active", "trialing":
		expiresAt, ok := periodEnd(sub)
		if !ok {
			h.metrics.WebhookEvent(providerName, "missing_period")
			h.logger.Warn("paddle subscription carries no period end",
				zap.String("subscription_id", sub.ID),
			)
			h.reject(w, http.StatusBadRequest, "missing billing period")
			return
		}
		h.apply(w, r, subscription.Premium(userID, expiresAt))
	default:
		// paused, past_due, canceled: no entitlement
		h.apply(w, r, subscription.Free(userID))
	}
}

// handleSubscriptionCanceled distinguishes a scheduled cancellation, where
// the customer keeps premium until the paid period runs out, from an
// immediate termination that revokes access right away.
func (h *WebhookHandler) handleSubscriptionCanceled(w http.ResponseWriter, r *http.Request, sub subscriptionObj) {
	userID, ok := h.userID(sub)
	if !ok {
		h.reject(w, http.StatusBadRequest, "missing user id")
		return
	}

	if sub.Status == "canceled" {
		h.apply(w, r, subscription.FreeAt(userID, h.now().UTC()))
		return
	}

	if expiresAt, ok := periodEnd(sub); ok {
		h.apply(w, r, subscription.Premium(userID, expiresAt))
		return
	}

	h.apply(w, r, subscription.Free(userID))
}

func (h *WebhookHandler) userID(sub subscriptionObj) (uuid.UUID, bool) {
	raw := sub.CustomData.UserID
	if raw == "" {
		h.metrics.WebhookEvent(providerName, "missing_user")
		h.logger.Warn("paddle event carries no user id", zap.String("subscription_id", sub.ID))
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		h.metrics.WebhookEvent(providerName, "missing_user")
		h.logger.Warn("paddle event carries malformed user id",
			zap.String("subscription_id", sub.ID),
			zap.String("user_id", raw),
		)
		return uuid.Nil, false
	}

	return userID, true
}

func periodEnd(sub subscriptionObj) (time.Time, bool) {
	if sub.CurrentBillingPeriod != nil && !sub.CurrentBillingPeriod.EndsAt.IsZero() {
		return sub.CurrentBillingPeriod.EndsAt.UTC(), true
	}
	if sub.NextBilledAt != nil && !sub.NextBilledAt.IsZero() {
		return sub.NextBilledAt.UTC(), true
	}
	return time.Time{}, false
}

func (h *WebhookHandler) apply(w http.ResponseWriter, r *http.Request, update subscription.Update) {
	_ = h.applier.Apply(r.Context(), providerName, update)
	h.ok(w)
}

func (h *WebhookHandler) ok(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *WebhookHandler) reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
