package quote

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service answers price lookups, memoizing feed responses for a short window
// keyed by operation and instrument.
type Service struct {
	feed   Feed
	cache  *ttlCache
	logger zerolog.Logger
}

// ServiceOptions holds options for creating a quote service.
type ServiceOptions struct {
	CacheTTL   time.Duration
	MaxEntries int
}

// NewService wraps a feed in a memoization cache.
func NewService(feed Feed, opts ServiceOptions) *Service {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Second
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = 100
	}
	return &Service{
		feed:   feed,
		cache:  newTTLCache(opts.CacheTTL, opts.MaxEntries),
		logger: log.With().Str("component", "quote_service").Logger(),
	}
}

// GetPrice returns the current price for an instrument, served from cache when
// a fetch for the same instrument completed within the TTL window. Errors are
// never cached.
func (s *Service) GetPrice(ctx context.Context, instrumentID string) (float64, time.Time, error) {
	key := "get-price:" + instrumentID
	if hit, ok := s.cache.get(key); ok {
		return hit.price, hit.ts, nil
	}

	price, ts, err := s.feed.GetPrice(ctx, instrumentID)
	if err != nil {
		return 0, time.Time{}, err
	}

	s.cache.set(key, cachedPrice{price: price, ts: ts})
	s.logger.Debug().Str("instrument", instrumentID).Float64("price", price).Msg("price fetched")
	return price, ts, nil
}

// Source reports the underlying feed's source tag.
func (s *Service) Source() string { return s.feed.Source() }
