package quote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/momenta/models"
)

type stubFeed struct {
	calls int
	price float64
	err   error
}

func (f *stubFeed) GetPrice(_ context.Context, id string) (float64, time.Time, error) {
	f.calls++
	if f.err != nil {
		return 0, time.Time{}, &models.UpstreamFetchError{InstrumentID: id, Err: f.err}
	}
	return f.price, time.Now().UTC(), nil
}

func (f *stubFeed) Source() string { return "stub" }

func TestService_MemoizesWithinWindow(t *testing.T) {
	feed := &stubFeed{price: 42000}
	svc := NewService(feed, ServiceOptions{CacheTTL: time.Minute, MaxEntries: 10})

	for i := 0; i < 5; i++ {
		price, _, err := svc.GetPrice(context.Background(), "wbtc")
		require.NoError(t, err)
		assert.Equal(t, 42000.0, price)
	}
	assert.Equal(t, 1, feed.calls, "identical lookups within the window hit upstream once")
}

func TestService_DistinctInstrumentsDistinctKeys(t *testing.T) {
	feed := &stubFeed{price: 10}
	svc := NewService(feed, ServiceOptions{CacheTTL: time.Minute, MaxEntries: 10})

	_, _, err := svc.GetPrice(context.Background(), "wbtc")
	require.NoError(t, err)
	_, _, err = svc.GetPrice(context.Background(), "paxg")
	require.NoError(t, err)

	assert.Equal(t, 2, feed.calls)
}

func TestService_ErrorsNotCached(t *testing.T) {
	feed := &stubFeed{err: assert.AnError}
	svc := NewService(feed, ServiceOptions{CacheTTL: time.Minute, MaxEntries: 10})

	_, _, err := svc.GetPrice(context.Background(), "wbtc")
	var upstream *models.UpstreamFetchError
	require.ErrorAs(t, err, &upstream, "feed failure surfaces, never a synthetic price")

	_, _, err = svc.GetPrice(context.Background(), "wbtc")
	require.Error(t, err)
	assert.Equal(t, 2, feed.calls, "failures are retried, not memoized")
}
