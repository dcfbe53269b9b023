package payment

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// StripeAuthorizer verifies the caller's payment reference against Stripe
// before granting a metered operation. The reference is a PaymentIntent id
// produced by the checkout flow outside this service.
type StripeAuthorizer struct {
	table  PriceTable
	logger zerolog.Logger
}

// NewStripeAuthorizer configures the Stripe client and returns an authorizer
// over the given price table.
func NewStripeAuthorizer(apiKey string, table PriceTable) *StripeAuthorizer {
	stripe.Key = apiKey
	return &StripeAuthorizer{
		table:  table,
		logger: log.With().Str("component", "payment_gate").Logger(),
	}
}

// Authorize grants the operation when the referenced payment succeeded and
// covers the operation's price. Every rejection carries the operation's quote
// so the caller can retry after paying.
func (a *StripeAuthorizer) Authorize(ctx context.Context, operation string, reqCtx RequestContext) error {
	if reqCtx.PaymentRef == "" {
		return denied(a.table, operation, "no payment reference supplied")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(reqCtx.PaymentRef, params)
	if err != nil {
		a.logger.Warn().Err(err).Str("operation", operation).Msg("payment lookup failed")
		return denied(a.table, operation, "payment reference could not be verified")
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return denied(a.table, operation, "payment not completed")
	}

	priceCents := int64(math.Round(a.table[operation] * 100))
	if intent.AmountReceived < priceCents {
		return denied(a.table, operation, "payment amount below operation price")
	}

	a.logger.Debug().Str("operation", operation).Str("intent", intent.ID).Msg("authorization granted")
	return nil
}
