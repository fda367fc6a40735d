package handlers

import (
	"net/http"

	"github.com/nuggs-ai/nuggs/internal/infrastructure/billing/stripe"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/middleware"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// BillingHandlers serves checkout and portal session creation
type BillingHandlers struct {
	checkout *stripe.Checkout
	logger   *zap.Logger
}

// NewBillingHandlers creates billing handlers
func NewBillingHandlers(checkout *stripe.Checkout, logger *zap.Logger) *BillingHandlers {
	return &BillingHandlers{checkout: checkout, logger: logger}
}

// CreateCheckout handles POST /api/v1/billing/checkout
func (h *BillingHandlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return
	}
	email, _ := middleware.UserEmailFromContext(r.Context())

	url, err := h.checkout.CreateCheckoutSession(r.Context(), userID, email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// CreatePortal handles POST /api/v1/billing/portal
func (h *BillingHandlers) CreatePortal(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserEmailFromContext(r.Context())
	if !ok || email == "" {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return
	}

	url, err := h.checkout.CreatePortalSession(r.Context(), email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
