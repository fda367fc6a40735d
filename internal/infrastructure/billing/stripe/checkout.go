package stripe

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/nuggs-ai/nuggs/internal/infrastructure/config"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// Checkout creates Stripe Checkout and Customer Portal sessions
type Checkout struct {
	priceID     string
	frontendURL string
	logger      *zap.Logger
}

// NewCheckout creates the checkout service and installs the API key
func NewCheckout(cfg *config.Config, logger *zap.Logger) *Checkout {
	stripe.Key = cfg.Billing.StripeSecretKey
	return &Checkout{
		priceID:     cfg.Billing.StripePriceIDMonthly,
		frontendURL: strings.TrimRight(cfg.Billing.FrontendURL, "/"),
		logger:      logger,
	}
}

// CreateCheckoutSession starts a subscription checkout for the user and
// returns the hosted payment page URL. The profile id rides along as
// metadata on both the session and the subscription it creates, which is
// how webhook events find their way back to the profile.
func (c *Checkout) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	if stripe.Key == "" || c.priceID == "" || c.frontendURL == "" {
		return "", apperrors.NewNotConfiguredError("Stripe checkout")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{userIDMetadataKey: userID.String()},
		},
		SuccessURL: stripe.String(c.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(c.frontendURL + "/billing/cancel"),
	}
	params.Context = ctx
	params.AddMetadata(userIDMetadataKey, userID.String())

	sess, err := session.New(params)
	if err != nil {
		c.logger.Error("stripe checkout session creation failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return "", apperrors.NewExternalServiceError("stripe", err)
	}

	return sess.URL, nil
}

// CreatePortalSession opens the customer portal for an existing Stripe
// customer, located by the account email.
func (c *Checkout) CreatePortalSession(ctx context.Context, email string) (string, error) {
	if stripe.Key == "" || c.frontendURL == "" {
		return "", apperrors.NewNotConfiguredError("Stripe billing portal")
	}

	customerID, err := c.findCustomer(ctx, email)
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		c.logger.Error("stripe portal session creation failed", zap.Error(err))
		return "", apperrors.NewExternalServiceError("stripe", err)
	}

	return sess.URL, nil
}

func (c *Checkout) findCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", apperrors.NewExternalServiceError("stripe", err)
	}

	return "", apperrors.NewBadRequestError("No billing account exists for this user")
}
