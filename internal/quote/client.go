// Package quote fetches current prices from the external feed and shields it
// behind a short-lived memoization cache.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/kvasirlabs/momenta/internal/platform/http"
	"github.com/kvasirlabs/momenta/models"
)

// Feed fetches a current price for one instrument. Implementations must fail
// loud: no synthetic fallback values.
type Feed interface {
	GetPrice(ctx context.Context, instrumentID string) (float64, time.Time, error)
	Source() string
}

// Client is the HTTP price feed client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *platformhttp.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a feed client.
type ClientOptions struct {
	BaseURL         string
	APIKey          string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new price feed client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		httpClient: platformhttp.NewClient(platformhttp.ClientOptions{
			Name:            "price-feed",
			Timeout:         opts.RequestTimeout,
			RequestsPerSec:  opts.RequestsPerSec,
			MaxRetryTimeout: opts.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "feed_client").Logger(),
	}
}

type priceResponse map[string]struct {
	USD           float64 `json:"usd"`
	LastUpdatedAt int64   `json:"last_updated_at"`
}

// GetPrice fetches the current USD price for one instrument id. Any upstream
// failure or missing price surfaces as *models.UpstreamFetchError.
func (c *Client) GetPrice(ctx context.Context, instrumentID string) (float64, time.Time, error) {
	q := url.Values{}
	q.Set("ids", instrumentID)
	q.Set("vs_currencies", "usd")
	q.Set("include_last_updated_at", "true")
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, time.Time{}, &models.UpstreamFetchError{InstrumentID: instrumentID, Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("instrument", instrumentID).Msg("price fetch failed")
		return 0, time.Time{}, &models.UpstreamFetchError{InstrumentID: instrumentID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, time.Time{}, &models.UpstreamFetchError{InstrumentID: instrumentID, Err: err}
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, time.Time{}, &models.UpstreamFetchError{
			InstrumentID: instrumentID,
			Err:          fmt.Errorf("decoding response: %w", err),
		}
	}

	entry, ok := parsed[instrumentID]
	if !ok || entry.USD <= 0 {
		return 0, time.Time{}, &models.UpstreamFetchError{
			InstrumentID: instrumentID,
			Err:          fmt.Errorf("no usable price in feed response"),
		}
	}

	ts := time.Now().UTC()
	if entry.LastUpdatedAt > 0 {
		ts = time.Unix(entry.LastUpdatedAt, 0).UTC()
	}
	return entry.USD, ts, nil
}

// Source identifies the feed in price observations.
func (c *Client) Source() string { return "coingecko" }
