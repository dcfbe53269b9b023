package models

import "fmt"

// Error kinds reported to callers. Every user-visible error carries one of
// these machine-readable kinds plus a human explanation.
const (
	KindInsufficientData    = "insufficient_data"
	KindInstrumentNotFound  = "instrument_not_found"
	KindUpstreamFetch       = "upstream_fetch_failed"
	KindAuthorizationDenied = "authorization_denied"
)

// InsufficientDataError means not enough candle history has accumulated for
// the requested computation. Recoverable: wait for more polling cycles.
type InsufficientDataError struct {
	InstrumentID string
	Interval     Interval
	Need         int
	Have         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s/%s: need %d candles, have %d",
		e.InstrumentID, e.Interval, e.Need, e.Have)
}

// Kind returns the machine-readable error kind.
func (e *InsufficientDataError) Kind() string { return KindInsufficientData }

// InstrumentNotFoundError means the caller referenced an unknown instrument.
type InstrumentNotFoundError struct {
	Query string
}

func (e *InstrumentNotFoundError) Error() string {
	return fmt.Sprintf("instrument %q not found", e.Query)
}

func (e *InstrumentNotFoundError) Kind() string { return KindInstrumentNotFound }

// UpstreamFetchError means the external price feed was unreachable or returned
// no usable price. There is no fallback value; the failure is surfaced as-is.
type UpstreamFetchError struct {
	InstrumentID string
	Err          error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("price feed fetch for %s failed: %v", e.InstrumentID, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

func (e *UpstreamFetchError) Kind() string { return KindUpstreamFetch }

// AuthorizationDeniedError means the payment gate rejected the operation. It
// carries the operation's price and description so the caller can pay and retry.
type AuthorizationDeniedError struct {
	Operation   string
	PriceUSD    float64
	Description string
	Reason      string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("authorization denied for %s: %s", e.Operation, e.Reason)
}

func (e *AuthorizationDeniedError) Kind() string { return KindAuthorizationDenied }

// Kinder is implemented by all errors of the engine taxonomy.
type Kinder interface {
	error
	Kind() string
}
