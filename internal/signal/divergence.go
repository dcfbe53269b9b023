package signal

import (
	"math"

	"github.com/kvasirlabs/momenta/models"
)

// DetectDivergence scans the last `lookback` candles for price/RSI
// divergence. A local extremum is a point strictly above (or below) both
// neighbors; at least two extrema of the relevant kind must exist, otherwise
// the flags stay false.
func DetectDivergence(rsiSeries []models.RSIValue, candles []models.Candle, lookback int) models.DivergenceResult {
	if lookback <= 0 {
		lookback = 10
	}
	if len(candles) != len(rsiSeries) || len(candles) < 3 {
		return models.DivergenceResult{}
	}

	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}
	window := candles[start:]
	rsiWindow := rsiSeries[start:]

	lows, highs := localExtrema(window)

	result := models.DivergenceResult{}

	if len(lows) >= 2 {
		prev, last := lows[len(lows)-2], lows[len(lows)-1]
		priceLower := window[last].Low < window[prev].Low
		rsiHigher := rsiWindow[last].Valid && rsiWindow[prev].Valid &&
			rsiWindow[last].Value > rsiWindow[prev].Value
		if priceLower && rsiHigher {
			result.Bullish = true
			result.Strength = divergenceStrength(
				window[prev].Low, window[last].Low,
				rsiWindow[prev].Value, rsiWindow[last].Value,
			)
		}
	}

	if len(highs) >= 2 {
		prev, last := highs[len(highs)-2], highs[len(highs)-1]
		priceHigher := window[last].High > window[prev].High
		rsiLower := rsiWindow[last].Valid && rsiWindow[prev].Valid &&
			rsiWindow[last].Value < rsiWindow[prev].Value
		if priceHigher && rsiLower {
			result.Bearish = true
			strength := divergenceStrength(
				window[prev].High, window[last].High,
				rsiWindow[prev].Value, rsiWindow[last].Value,
			)
			if strength > result.Strength {
				result.Strength = strength
			}
		}
	}

	return result
}

// localExtrema returns indices of strict local minima (on lows) and maxima
// (on highs). Endpoints are never extrema: they have only one neighbor.
func localExtrema(window []models.Candle) (lows, highs []int) {
	for i := 1; i < len(window)-1; i++ {
		if window[i].Low < window[i-1].Low && window[i].Low < window[i+1].Low {
			lows = append(lows, i)
		}
		if window[i].High > window[i-1].High && window[i].High > window[i+1].High {
			highs = append(highs, i)
		}
	}
	return lows, highs
}

// divergenceStrength scores how far price and momentum disagree, scaled to
// [0,1]. A percent of price movement and RSI points contribute equally.
func divergenceStrength(prevPrice, lastPrice, prevRSI, lastRSI float64) float64 {
	if prevPrice == 0 {
		return 0
	}
	pricePct := math.Abs(lastPrice-prevPrice) / prevPrice * 100
	rsiDiff := math.Abs(lastRSI - prevRSI)
	strength := (pricePct + rsiDiff) / 20.0
	if strength > 1 {
		strength = 1
	}
	return strength
}
