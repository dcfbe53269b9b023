package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/momenta/config"
	"github.com/kvasirlabs/momenta/models"
)

func newTestDetector() *Detector {
	return NewDetector(config.DefaultPolicies(), 50, 10)
}

// seriesEndingWith builds n candles/RSI values whose last two positions carry
// the given closes and RSI values.
func seriesEndingWith(n int, closes [2]float64, rsis [2]float64) ([]models.Candle, []models.RSIValue) {
	candles := make([]models.Candle, n)
	rsi := make([]models.RSIValue, n)
	for i := range candles {
		candles[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100}
		rsi[i] = models.RSIValue{Value: 50, Valid: true}
	}
	candles[n-2].Close = closes[0]
	candles[n-1].Close = closes[1]
	rsi[n-2].Value = rsis[0]
	rsi[n-1].Value = rsis[1]
	return candles, rsi
}

func TestDetectBuySignal_WrappedBTCOversoldReversal(t *testing.T) {
	d := newTestDetector()
	candles, rsi := seriesEndingWith(20, [2]float64{100, 101}, [2]float64{28, 32})

	result := d.DetectBuySignal(models.CategoryWrappedBTC, candles, rsi, models.DivergenceResult{})

	assert.Equal(t, models.ActionBuy, result.Action)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.Contains(t, result.Reason, "oversold reversal")
	assert.Equal(t, 101.0, result.EntryPrice)
	assert.InDelta(t, 101.0*0.97, result.StopLoss, 1e-9)
	assert.InDelta(t, 101.0*1.05, result.TakeProfit, 1e-9)
}

func TestDetectBuySignal_ConfidenceIncrements(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name       string
		closes     [2]float64
		divergence models.DivergenceResult
		expected   float64
		mentions   string
	}{
		{
			name:     "base confidence on bare crossover",
			closes:   [2]float64{100, 100.1},
			expected: 0.5,
		},
		{
			name:       "bullish divergence confirmation",
			closes:     [2]float64{100, 100.1},
			divergence: models.DivergenceResult{Bullish: true, Strength: 0.4},
			expected:   0.7,
			mentions:   "divergence",
		},
		{
			name:     "strong momentum",
			closes:   [2]float64{100, 101},
			expected: 0.65,
			mentions: "momentum",
		},
		{
			name:       "all confirmations",
			closes:     [2]float64{100, 101},
			divergence: models.DivergenceResult{Bullish: true},
			expected:   0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles, rsi := seriesEndingWith(20, tt.closes, [2]float64{28, 32})
			result := d.DetectBuySignal(models.CategoryWrappedBTC, candles, rsi, tt.divergence)
			require.Equal(t, models.ActionBuy, result.Action)
			assert.InDelta(t, tt.expected, result.Confidence, 1e-9)
			if tt.mentions != "" {
				assert.True(t, strings.Contains(result.Reason, tt.mentions), "reason %q should mention %q", result.Reason, tt.mentions)
			}
		})
	}
}

func TestDetectBuySignal_NoCrossoverHolds(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name   string
		rsis   [2]float64
		closes [2]float64
	}{
		{"rsi stayed above oversold", [2]float64{45, 50}, [2]float64{100, 101}},
		{"rsi still below oversold", [2]float64{25, 28}, [2]float64{100, 101}},
		{"crossover without rising close", [2]float64{28, 32}, [2]float64{101, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles, rsi := seriesEndingWith(20, tt.closes, tt.rsis)
			result := d.DetectBuySignal(models.CategoryWrappedBTC, candles, rsi, models.DivergenceResult{})
			assert.Equal(t, models.ActionHold, result.Action)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestDetectBuySignal_TokenizedStockNeedsTrendFilter(t *testing.T) {
	d := newTestDetector()

	// Closes far below the long EMA of 100: crossover alone must not fire.
	candles, rsi := seriesEndingWith(60, [2]float64{80, 81}, [2]float64{33, 37})
	result := d.DetectBuySignal(models.CategoryTokenizedStock, candles, rsi, models.DivergenceResult{})
	assert.Equal(t, models.ActionHold, result.Action)
	assert.Contains(t, result.Reason, "EMA")

	// Close above the EMA passes the filter.
	candles, rsi = seriesEndingWith(60, [2]float64{100, 120}, [2]float64{33, 37})
	result = d.DetectBuySignal(models.CategoryTokenizedStock, candles, rsi, models.DivergenceResult{})
	assert.Equal(t, models.ActionBuy, result.Action)
}

func TestDetectBuySignal_GoldTokenNeedsThreeRisingCloses(t *testing.T) {
	d := newTestDetector()

	candles, rsi := seriesEndingWith(20, [2]float64{100, 101}, [2]float64{22, 27})
	candles[len(candles)-3].Close = 102 // breaks the rising sequence
	result := d.DetectBuySignal(models.CategoryGoldToken, candles, rsi, models.DivergenceResult{})
	assert.Equal(t, models.ActionHold, result.Action)

	candles[len(candles)-3].Close = 99.5 // 99.5 < 100 < 101
	result = d.DetectBuySignal(models.CategoryGoldToken, candles, rsi, models.DivergenceResult{})
	assert.Equal(t, models.ActionBuy, result.Action)
	assert.Contains(t, result.Reason, "three consecutive rising closes")
}

func TestDetectBuySignal_UndefinedRSIHolds(t *testing.T) {
	d := newTestDetector()
	candles, rsi := seriesEndingWith(20, [2]float64{100, 101}, [2]float64{28, 32})
	rsi[len(rsi)-1].Valid = false

	result := d.DetectBuySignal(models.CategoryWrappedBTC, candles, rsi, models.DivergenceResult{})
	assert.Equal(t, models.ActionHold, result.Action)
}

func TestDetectExitSignal_Precedence(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name    string
		price   float64
		rsi     float64
		exit    bool
		trigger string
	}{
		// WrappedBTC: stop 3%, take-profit 5%, overbought 70. Entry 100.
		{"stop loss breach", 96.9, 50, true, "stop_loss"},
		{"stop loss wins over overbought", 96.9, 80, true, "stop_loss"},
		{"take profit breach", 105.1, 50, true, "take_profit"},
		{"take profit wins over overbought", 105.1, 80, true, "take_profit"},
		{"overbought alone", 102, 75, true, "overbought"},
		{"no exit condition", 101, 50, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := d.DetectExitSignal(models.CategoryWrappedBTC, 100, tt.price, tt.rsi)
			assert.Equal(t, tt.exit, check.Exit)
			assert.Equal(t, tt.trigger, check.Trigger)
			// Levels are reported whether or not an exit fired.
			assert.InDelta(t, 97.0, check.StopLoss, 1e-9)
			assert.InDelta(t, 105.0, check.TakeProfit, 1e-9)
		})
	}
}

func TestEvaluate_SellOnOverboughtReversal(t *testing.T) {
	d := newTestDetector()
	inst := models.Instrument{ID: "wbtc", Category: models.CategoryWrappedBTC}

	candles, rsi := seriesEndingWith(20, [2]float64{101, 100}, [2]float64{74, 66})
	result := d.Evaluate(inst, candles, rsi)
	assert.Equal(t, models.ActionSell, result.Action)
	assert.Equal(t, "wbtc", result.InstrumentID)
}

func TestEvaluate_NeutralHold(t *testing.T) {
	d := newTestDetector()
	inst := models.Instrument{ID: "wbtc", Category: models.CategoryWrappedBTC}

	candles, rsi := seriesEndingWith(20, [2]float64{100, 100}, [2]float64{50, 50})
	result := d.Evaluate(inst, candles, rsi)
	assert.Equal(t, models.ActionHold, result.Action)
	assert.Contains(t, result.Reason, "neutral zone")
}
