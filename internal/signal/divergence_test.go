package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/momenta/models"
)

func flatRSI(n int, v float64) []models.RSIValue {
	out := make([]models.RSIValue, n)
	for i := range out {
		out[i] = models.RSIValue{Value: v, Valid: true}
	}
	return out
}

func TestDetectDivergence_MonotonicDataHasNoExtrema(t *testing.T) {
	candles := make([]models.Candle, 10)
	rsi := make([]models.RSIValue, 10)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = models.Candle{Open: price, High: price + 1, Low: price - 1, Close: price}
		rsi[i] = models.RSIValue{Value: 50 + float64(i), Valid: true}
	}

	result := DetectDivergence(rsi, candles, 10)
	assert.False(t, result.Bullish)
	assert.False(t, result.Bearish)
}

func TestDetectDivergence_Bullish(t *testing.T) {
	// Two price local minima, the second lower; RSI higher at the second.
	lows := []float64{10, 9, 5, 9, 10, 8, 4, 8.5, 9}
	rsiValues := []float64{50, 45, 30, 45, 50, 42, 40, 48, 50}

	candles := make([]models.Candle, len(lows))
	rsi := make([]models.RSIValue, len(lows))
	for i := range lows {
		candles[i] = models.Candle{Open: lows[i] + 1, High: 20, Low: lows[i], Close: lows[i] + 1}
		rsi[i] = models.RSIValue{Value: rsiValues[i], Valid: true}
	}

	result := DetectDivergence(rsi, candles, len(lows))
	assert.True(t, result.Bullish, "lower price low with higher RSI low")
	assert.False(t, result.Bearish, "constant highs produce no maxima")
	assert.Greater(t, result.Strength, 0.0)
}

func TestDetectDivergence_Bearish(t *testing.T) {
	highs := []float64{10, 11, 15, 11, 10, 12, 16, 11.5, 11}
	rsiValues := []float64{50, 55, 70, 55, 50, 58, 60, 52, 50}

	candles := make([]models.Candle, len(highs))
	rsi := make([]models.RSIValue, len(highs))
	for i := range highs {
		candles[i] = models.Candle{Open: highs[i] - 1, High: highs[i], Low: 1, Close: highs[i] - 1}
		rsi[i] = models.RSIValue{Value: rsiValues[i], Valid: true}
	}

	result := DetectDivergence(rsi, candles, len(highs))
	assert.True(t, result.Bearish, "higher price high with lower RSI high")
	assert.False(t, result.Bullish, "constant lows produce no minima")
}

func TestDetectDivergence_SingleExtremumInsufficient(t *testing.T) {
	// One V-shape only: a single local minimum cannot diverge.
	lows := []float64{10, 9, 5, 9, 10}
	candles := make([]models.Candle, len(lows))
	for i := range lows {
		candles[i] = models.Candle{Open: lows[i], High: 20, Low: lows[i], Close: lows[i]}
	}

	result := DetectDivergence(flatRSI(len(lows), 50), candles, len(lows))
	assert.False(t, result.Bullish)
	assert.False(t, result.Bearish)
}

func TestDetectDivergence_MismatchedLengths(t *testing.T) {
	candles := make([]models.Candle, 5)
	result := DetectDivergence(flatRSI(4, 50), candles, 10)
	require.Equal(t, models.DivergenceResult{}, result)
}
