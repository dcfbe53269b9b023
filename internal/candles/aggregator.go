// Package candles turns polled price observations into bounded per-interval
// OHLC series. The poller is the sole writer; analysis requests read copies.
package candles

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kvasirlabs/momenta/models"
)

// series is one (instrument, interval) candle sequence, ordered by
// BucketStart ascending and capped at maxLen. lastObserved tracks the newest
// applied observation so an out-of-order tick can never regress Close.
type series struct {
	mu           sync.RWMutex
	candles      []models.Candle
	maxLen       int
	lastObserved time.Time
}

// Aggregator maintains candle series for every instrument and interval.
type Aggregator struct {
	mu        sync.RWMutex
	byKey     map[seriesKey]*series
	intervals []models.Interval
	maxLen    int
	logger    zerolog.Logger
}

type seriesKey struct {
	instrumentID string
	interval     models.Interval
}

// NewAggregator creates an aggregator covering the given intervals. maxLen
// caps every series; the oldest candle is evicted on overflow.
func NewAggregator(intervals []models.Interval, maxLen int) *Aggregator {
	if len(intervals) == 0 {
		intervals = models.AllIntervals()
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Aggregator{
		byKey:     make(map[seriesKey]*series),
		intervals: intervals,
		maxLen:    maxLen,
		logger:    log.With().Str("component", "candle_aggregator").Logger(),
	}
}

// Ingest records one price observation into every supported interval's
// current bucket. A new bucket opens with open=high=low=close=price; later
// observations in the same bucket update high/low/close only.
func (a *Aggregator) Ingest(obs models.PriceObservation) {
	for _, iv := range a.intervals {
		s := a.seriesFor(obs.InstrumentID, iv)
		s.ingest(obs, iv)
	}
}

func (a *Aggregator) seriesFor(instrumentID string, iv models.Interval) *series {
	key := seriesKey{instrumentID: instrumentID, interval: iv}

	a.mu.RLock()
	s, ok := a.byKey[key]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.byKey[key]; ok {
		return s
	}
	s = &series{maxLen: a.maxLen}
	a.byKey[key] = s
	return s
}

func (s *series) ingest(obs models.PriceObservation, iv models.Interval) {
	bucket := iv.BucketStart(obs.ObservedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.candles)
	if n > 0 && s.candles[n-1].BucketStart.Equal(bucket) {
		c := &s.candles[n-1]
		if obs.Price > c.High {
			c.High = obs.Price
		}
		if obs.Price < c.Low {
			c.Low = obs.Price
		}
		// Close is the most recently observed price, not the most recently
		// ingested one; a delayed tick still widens high/low above.
		if !obs.ObservedAt.Before(s.lastObserved) {
			c.Close = obs.Price
			s.lastObserved = obs.ObservedAt
		}
		return
	}

	// Observations never open candles for past buckets; a late tick lands
	// in the newest bucket or opens the next one.
	if n > 0 && bucket.Before(s.candles[n-1].BucketStart) {
		return
	}

	s.candles = append(s.candles, models.Candle{
		BucketStart: bucket,
		Open:        obs.Price,
		High:        obs.Price,
		Low:         obs.Price,
		Close:       obs.Price,
	})
	s.lastObserved = obs.ObservedAt
	if len(s.candles) > s.maxLen {
		s.candles = append(s.candles[:0], s.candles[1:]...)
	}
}

// Candles returns up to count most recent candles for (instrument, interval),
// oldest first. Partial history is returned as-is; only a completely empty
// series is an error.
func (a *Aggregator) Candles(instrumentID string, iv models.Interval, count int) ([]models.Candle, error) {
	a.mu.RLock()
	s, ok := a.byKey[seriesKey{instrumentID: instrumentID, interval: iv}]
	a.mu.RUnlock()

	if !ok {
		return nil, &models.InsufficientDataError{
			InstrumentID: instrumentID, Interval: iv, Need: 1, Have: 0,
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.candles)
	if n == 0 {
		return nil, &models.InsufficientDataError{
			InstrumentID: instrumentID, Interval: iv, Need: 1, Have: 0,
		}
	}
	if count <= 0 || count > n {
		count = n
	}
	out := make([]models.Candle, count)
	copy(out, s.candles[n-count:])
	return out, nil
}

// SeriesLength reports the current length of one series. Zero when the series
// does not exist yet.
func (a *Aggregator) SeriesLength(instrumentID string, iv models.Interval) int {
	a.mu.RLock()
	s, ok := a.byKey[seriesKey{instrumentID: instrumentID, interval: iv}]
	a.mu.RUnlock()
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// Intervals returns the intervals this aggregator tracks.
func (a *Aggregator) Intervals() []models.Interval {
	out := make([]models.Interval, len(a.intervals))
	copy(out, a.intervals)
	return out
}
