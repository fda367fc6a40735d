// Package stripe integrates Stripe Checkout and webhooks with the
// subscription reconciler
package stripe

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	appsubscription "github.com/nuggs-ai/nuggs/internal/application/subscription"
	"github.com/nuggs-ai/nuggs/internal/domain/subscription"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

const providerName = "stripe"

// maxBodyBytes bounds webhook payloads, matching Stripe's own guidance
const maxBodyBytes = int64(65536)

// provisionalPremium covers the gap between checkout.session.completed and
// the customer.subscription.created event that carries the real period end.
const provisionalPremium = 35 * 24 * time.Hour

// userIDMetadataKey is where checkout and subscription objects carry our
// profile id. Checkout session creation sets it on both objects.
const userIDMetadataKey = "userId"

// WebhookHandler verifies and applies Stripe webhook events
type WebhookHandler struct {
	secret  string
	applier *appsubscription.Applier
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewWebhookHandler creates a new Stripe webhook handler
func NewWebhookHandler(secret string, applier *appsubscription.Applier, metrics *monitoring.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		applier: applier,
		metrics: metrics,
		logger:  logger,
	}
}

// ServeHTTP handles POST /webhooks/stripe. Signature verification is the
// authentication for this endpoint; an unverifiable payload mutates nothing.
// A verified event that fails to persist still returns 200: Stripe retries
// are not the recovery path for our own storage faults.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if h.secret == "" {
		h.logger.Error("stripe webhook secret is not configured")
		h.reject(w, http.StatusInternalServerError, "webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.metrics.WebhookEvent(providerName, "bad_signature")
		h.logger.Warn("stripe webhook signature verification failed", zap.Error(err))
		h.reject(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.reject(w, http.StatusBadRequest, "invalid session payload")
			return
		}
		h.handleCheckoutCompleted(w, r, sess)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.reject(w, http.StatusBadRequest, "invalid subscription payload")
			return
		}
		h.handleSubscriptionChanged(w, r, sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.reject(w, http.StatusBadRequest, "invalid subscription payload")
			return
		}
		h.handleSubscriptionDeleted(w, r, sub)

	default:
		h.metrics.WebhookEvent(providerName, "ignored")
		h.ok(w)
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request, sess stripe.CheckoutSession) {
	userID, ok := h.userID(sess.Metadata, sess.ID)
	if !ok {
		h.reject(w, http.StatusBadRequest, "missing user id")
		return
	}

	// The checkout payload does not expand the subscription, so the real
	// period end arrives with customer.subscription.created. Grant a
	// provisional window the subscription event will overwrite.
	expiresAt := time.Now().Add(provisionalPremium)
	h.apply(w, r, subscription.Premium(userID, expiresAt))
}

func (h *WebhookHandler) handleSubscriptionChanged(w http.ResponseWriter, r *http.Request, sub stripe.Subscription) {
	userID, ok := h.userID(sub.Metadata, sub.ID)
	if !ok {
		h.reject(w, http.StatusBadRequest, "missing user id")
		return
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		expiresAt := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		h.apply(w, r, subscription.Premium(userID, expiresAt))
	default:
		// past_due, unpaid, canceled, incomplete: no entitlement
		h.apply(w, r, subscription.Free(userID))
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(w http.ResponseWriter, r *http.Request, sub stripe.Subscription) {
	userID, ok := h.userID(sub.Metadata, sub.ID)
	if !ok {
		h.reject(w, http.StatusBadRequest, "missing user id")
		return
	}

	h.apply(w, r, subscription.Free(userID))
}

// userID resolves our profile id from the event object's metadata
func (h *WebhookHandler) userID(metadata map[string]string, objectID string) (uuid.UUID, bool) {
	raw := metadata[userIDMetadataKey]
	if raw == "" {
		h.metrics.WebhookEvent(providerName, "missing_user")
		h.logger.Warn("stripe event carries no user id", zap.String("object_id", objectID))
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		h.metrics.WebhookEvent(providerName, "missing_user")
		h.logger.Warn("stripe event carries malformed user id",
			zap.String("object_id", objectID),
			zap.String("user_id", raw),
		)
		return uuid.Nil, false
	}

	return userID, true
}

func (h *WebhookHandler) apply(w http.ResponseWriter, r *http.Request, update subscription.Update) {
	// Apply already logged and counted the failure; the delivery is still
	// acknowledged so Stripe does not retry against a broken store.
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
