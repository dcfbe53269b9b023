package calculate

import "github.com/kvasirlabs/momenta/models"

// EMA computes an exponential moving average of candle closes, seeded with
// the simple average of the first `period` closes. With fewer than `period`
// candles it returns the last close.
func EMA(candles []models.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		return candles[len(candles)-1].Close
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema
}
