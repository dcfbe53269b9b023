// Package payment gates metered operations behind an external payment
// facilitator. Only the boolean grant decision lives here; verification and
// settlement belong to the facilitator.
package payment

import (
	"context"

	"github.com/kvasirlabs/momenta/models"
)

// Operation names of the metered surface.
const (
	OpCurrentPrices    = "get-current-prices"
	OpOHLCData         = "get-ohlc-data"
	OpRSIAnalysis      = "get-rsi-analysis"
	OpRSIDivergence    = "get-rsi-divergence"
	OpPortfolioSignals = "get-portfolio-signals"
)

var descriptions = map[string]string{
	OpCurrentPrices:    "Current prices for the tracked instrument universe",
	OpOHLCData:         "OHLC candle history with window statistics",
	OpRSIAnalysis:      "RSI analysis and trading signal for one or more instruments",
	OpRSIDivergence:    "Price/RSI divergence scan over a lookback window",
	OpPortfolioSignals: "Full portfolio signal sweep with summary tallies",
}

// RequestContext carries the caller's payment evidence into authorization.
type RequestContext struct {
	PaymentRef string
	RemoteAddr string
}

// Authorizer decides whether a caller may invoke a metered operation.
type Authorizer interface {
	Authorize(ctx context.Context, operation string, reqCtx RequestContext) error
}

// Quote describes what an operation costs.
type Quote struct {
	Operation   string  `json:"operation"`
	PriceUSD    float64 `json:"price_usd"`
	Description string  `json:"description"`
}

// PriceTable maps operations to their USD price.
type PriceTable map[string]float64

// QuoteFor returns the price and description for an operation.
func (t PriceTable) QuoteFor(operation string) Quote {
	return Quote{
		Operation:   operation,
		PriceUSD:    t[operation],
		Description: descriptions[operation],
	}
}

// denied builds the taxonomy error for a rejected authorization, carrying the
// quote so the caller can pay and retry.
func denied(table PriceTable, operation, reason string) error {
	q := table.QuoteFor(operation)
	return &models.AuthorizationDeniedError{
		Operation:   operation,
		PriceUSD:    q.PriceUSD,
		Description: q.Description,
		Reason:      reason,
	}
}

// OpenAuthorizer grants everything. Used when payment gating is disabled.
type OpenAuthorizer struct{}

// Authorize always grants.
func (OpenAuthorizer) Authorize(context.Context, string, RequestContext) error { return nil }
