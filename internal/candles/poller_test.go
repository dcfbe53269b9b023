package candles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/momenta/models"
)

type scriptedSource struct {
	prices map[string]float64
}

func (s *scriptedSource) GetPrice(_ context.Context, id string) (float64, time.Time, error) {
	price, ok := s.prices[id]
	if !ok {
		return 0, time.Time{}, &models.UpstreamFetchError{InstrumentID: id, Err: errors.New("feed down")}
	}
	return price, time.Now().UTC(), nil
}

func (s *scriptedSource) Source() string { return "scripted" }

func TestPoller_CycleFeedsAggregator(t *testing.T) {
	agg := NewAggregator([]models.Interval{models.Interval1m}, 100)
	source := &scriptedSource{prices: map[string]float64{"wbtc": 42000, "paxg": 2600}}

	instruments := []models.Instrument{
		{ID: "wbtc", Category: models.CategoryWrappedBTC},
		{ID: "paxg", Category: models.CategoryGoldToken},
		{ID: "aaplx", Category: models.CategoryTokenizedStock}, // not in the feed
	}
	p := NewPoller(source, agg, instruments, PollerOptions{Concurrency: 2, Timeout: time.Second})

	p.runCycle()

	cs, err := agg.Candles("wbtc", models.Interval1m, 1)
	require.NoError(t, err)
	assert.Equal(t, 42000.0, cs[0].Close)

	cs, err = agg.Candles("paxg", models.Interval1m, 1)
	require.NoError(t, err)
	assert.Equal(t, 2600.0, cs[0].Close)

	// The failing instrument is isolated: nothing ingested, cycle survives.
	_, err = agg.Candles("aaplx", models.Interval1m, 1)
	var insufficient *models.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestPoller_StopCancelsInFlight(t *testing.T) {
	agg := NewAggregator([]models.Interval{models.Interval1m}, 100)
	source := &scriptedSource{prices: map[string]float64{}}
	p := NewPoller(source, agg, nil, PollerOptions{Interval: time.Hour})

	require.NoError(t, p.Start())
	p.Stop()

	select {
	case <-p.ctx.Done():
	default:
		t.Fatal("poller context should be canceled after Stop")
	}
}
