package models

import (
	"fmt"
	"time"
)

// Interval is a closed enumeration of supported candle bucket sizes.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// AllIntervals returns every supported interval, smallest first.
func AllIntervals() []Interval {
	return []Interval{Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d}
}

// Duration returns the bucket duration for the interval.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// Valid reports whether iv is a supported interval.
func (iv Interval) Valid() bool {
	_, ok := intervalDurations[iv]
	return ok
}

// ParseInterval converts a wire string into an Interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return iv, nil
}

// BucketStart floors ts to the interval boundary. Buckets are aligned to the
// Unix epoch so BucketStart is always an exact multiple of the duration.
func (iv Interval) BucketStart(ts time.Time) time.Time {
	secs := int64(iv.Duration() / time.Second)
	return time.Unix(ts.Unix()/secs*secs, 0).UTC()
}
