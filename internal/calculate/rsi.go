// Package calculate implements the numeric indicator kernels.
package calculate

import (
	"github.com/kvasirlabs/momenta/models"
)

// RSISeries computes the Wilder-smoothed RSI over candle closes. The output
// is aligned 1:1 with the input; positions before the warmup period carry
// Valid=false. Requires at least period+1 candles (period deltas to seed the
// first averages).
func RSISeries(candles []models.Candle, period int) ([]models.RSIValue, error) {
	if period < 2 {
		period = 14
	}
	if len(candles) < period+1 {
		return nil, &models.InsufficientDataError{
			Need: period + 1,
			Have: len(candles),
		}
	}

	out := make([]models.RSIValue, len(candles))

	// Seed averages with a simple mean of the first `period` changes.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = models.RSIValue{Value: rsiFrom(avgGain, avgLoss), Valid: true}

	// Wilder smoothing for the remainder.
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = models.RSIValue{Value: rsiFrom(avgGain, avgLoss), Valid: true}
	}

	return out, nil
}

// rsiFrom converts smoothed averages into an RSI value. avgLoss == 0 means a
// pure uptrend; RSI is 100 by convention, never a division by zero.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// CurrentRSI returns the most recent defined RSI value of the series.
func CurrentRSI(series []models.RSIValue) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Valid {
			return series[i].Value, true
		}
	}
	return 0, false
}
