// Package signal applies the per-category entry and exit policy to RSI and
// candle data. All detection is stateless: the engine never holds a position.
package signal

import (
	"fmt"
	"strings"

	"github.com/kvasirlabs/momenta/config"
	"github.com/kvasirlabs/momenta/internal/calculate"
	"github.com/kvasirlabs/momenta/models"
)

// Detector evaluates buy and exit conditions under a configured policy table.
type Detector struct {
	policies       map[models.Category]config.CategoryPolicy
	trendEMAPeriod int
	lookback       int
}

// NewDetector creates a detector from the deployment's policy table.
func NewDetector(policies map[models.Category]config.CategoryPolicy, trendEMAPeriod, divergenceLookback int) *Detector {
	if trendEMAPeriod <= 0 {
		trendEMAPeriod = 50
	}
	if divergenceLookback <= 0 {
		divergenceLookback = 10
	}
	return &Detector{
		policies:       policies,
		trendEMAPeriod: trendEMAPeriod,
		lookback:       divergenceLookback,
	}
}

// Policy returns the threshold policy for a category.
func (d *Detector) Policy(cat models.Category) config.CategoryPolicy {
	if p, ok := d.policies[cat]; ok {
		return p
	}
	return config.DefaultPolicies()[cat]
}

// Lookback returns the configured divergence lookback window.
func (d *Detector) Lookback() int { return d.lookback }

// DetectBuySignal evaluates the category's oversold-reversal rule on the two
// most recent RSI values and closes. Confidence starts at 0.5 on a match and
// grows with confirming divergence and price momentum, capped at 1.0.
func (d *Detector) DetectBuySignal(cat models.Category, candles []models.Candle, rsiSeries []models.RSIValue, div models.DivergenceResult) models.SignalResult {
	policy := d.Policy(cat)
	n := len(candles)

	if n < 2 || len(rsiSeries) != n || !rsiSeries[n-1].Valid || !rsiSeries[n-2].Valid {
		return holdResult(cat, policy, rsiSeries, "not enough defined RSI values for crossover evaluation")
	}

	prevRSI, currRSI := rsiSeries[n-2].Value, rsiSeries[n-1].Value
	prevClose, currClose := candles[n-2].Close, candles[n-1].Close

	crossover := prevRSI < policy.Oversold && currRSI > policy.Oversold && currClose > prevClose
	if !crossover {
		return holdResult(cat, policy, rsiSeries, "")
	}

	conditions := []string{
		fmt.Sprintf("oversold reversal: RSI crossed %.0f upward (%.1f -> %.1f) with rising close", policy.Oversold, prevRSI, currRSI),
	}

	// Category-specific confirmation.
	switch cat {
	case models.CategoryTokenizedStock:
		ema := calculate.EMA(candles, d.trendEMAPeriod)
		if currClose <= ema {
			return holdResult(cat, policy, rsiSeries,
				fmt.Sprintf("oversold reversal rejected: close %.4f below EMA%d %.4f", currClose, d.trendEMAPeriod, ema))
		}
		conditions = append(conditions, fmt.Sprintf("close above EMA%d trend filter", d.trendEMAPeriod))
	case models.CategoryGoldToken:
		if n < 3 || !(candles[n-3].Close < prevClose && prevClose < currClose) {
			return holdResult(cat, policy, rsiSeries, "oversold reversal rejected: closes not rising three buckets in a row")
		}
		conditions = append(conditions, "three consecutive rising closes")
	}

	confidence := 0.5
	if div.Bullish {
		confidence += 0.2
		conditions = append(conditions, "bullish divergence confirmation")
	}
	if prevClose > 0 && (currClose-prevClose)/prevClose >= 0.005 {
		confidence += 0.15
		conditions = append(conditions, "strong price momentum")
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	stopLoss := currClose * (1 - policy.StopLossPct)
	takeProfit := currClose * (1 + policy.TakeProfitPct)

	return models.SignalResult{
		Category:        cat,
		Action:          models.ActionBuy,
		Confidence:      confidence,
		EntryPrice:      currClose,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		RiskRewardRatio: policy.TakeProfitPct / policy.StopLossPct,
		RSI:             currRSI,
		Reason:          strings.Join(conditions, "; "),
	}
}

// DetectExitSignal checks exit conditions for a position entered at
// entryPrice, in strict precedence: stop-loss breach, take-profit breach,
// overbought RSI. The computed levels are always reported, exit or not.
func (d *Detector) DetectExitSignal(cat models.Category, entryPrice, currentPrice, currentRSI float64) models.ExitCheck {
	policy := d.Policy(cat)
	stopLoss := entryPrice * (1 - policy.StopLossPct)
	takeProfit := entryPrice * (1 + policy.TakeProfitPct)

	check := models.ExitCheck{
		CurrentPrice: currentPrice,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
	}

	switch {
	case currentPrice <= stopLoss:
		check.Exit = true
		check.Trigger = "stop_loss"
		check.TriggerLevel = stopLoss
		check.Reason = fmt.Sprintf("price %.4f breached stop-loss %.4f", currentPrice, stopLoss)
	case currentPrice >= takeProfit:
		check.Exit = true
		check.Trigger = "take_profit"
		check.TriggerLevel = takeProfit
		check.Reason = fmt.Sprintf("price %.4f reached take-profit %.4f", currentPrice, takeProfit)
	case currentRSI > policy.Overbought:
		check.Exit = true
		check.Trigger = "overbought"
		check.TriggerLevel = policy.Overbought
		check.Reason = fmt.Sprintf("RSI %.1f above overbought %.0f", currentRSI, policy.Overbought)
	default:
		check.Reason = fmt.Sprintf("no exit condition met; stop-loss %.4f, take-profit %.4f", stopLoss, takeProfit)
	}
	return check
}

// Evaluate produces the advisory action for one instrument: a buy signal when
// the entry rule fires, a sell when momentum crosses back down out of
// overbought, otherwise hold.
func (d *Detector) Evaluate(inst models.Instrument, candles []models.Candle, rsiSeries []models.RSIValue) models.SignalResult {
	div := DetectDivergence(rsiSeries, candles, d.lookback)

	result := d.DetectBuySignal(inst.Category, candles, rsiSeries, div)
	if result.Action == models.ActionBuy {
		result.InstrumentID = inst.ID
		return result
	}

	if sell, ok := d.detectSellSignal(inst.Category, candles, rsiSeries, div); ok {
		sell.InstrumentID = inst.ID
		return sell
	}

	result.InstrumentID = inst.ID
	return result
}

// detectSellSignal is the mirror of the entry rule: RSI falling back through
// the overbought level with a weakening close.
func (d *Detector) detectSellSignal(cat models.Category, candles []models.Candle, rsiSeries []models.RSIValue, div models.DivergenceResult) (models.SignalResult, bool) {
	policy := d.Policy(cat)
	n := len(candles)
	if n < 2 || len(rsiSeries) != n || !rsiSeries[n-1].Valid || !rsiSeries[n-2].Valid {
		return models.SignalResult{}, false
	}

	prevRSI, currRSI := rsiSeries[n-2].Value, rsiSeries[n-1].Value
	prevClose, currClose := candles[n-2].Close, candles[n-1].Close

	if !(prevRSI > policy.Overbought && currRSI < policy.Overbought && currClose < prevClose) {
		return models.SignalResult{}, false
	}

	confidence := 0.5
	reason := fmt.Sprintf("overbought reversal: RSI crossed %.0f downward (%.1f -> %.1f) with falling close", policy.Overbought, prevRSI, currRSI)
	if div.Bearish {
		confidence += 0.2
		reason += "; bearish divergence confirmation"
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return models.SignalResult{
		Category:   cat,
		Action:     models.ActionSell,
		Confidence: confidence,
		EntryPrice: currClose,
		RSI:        currRSI,
		Reason:     reason,
	}, true
}

// holdResult builds the no-signal response, describing where RSI sits
// relative to the category's neutral zone.
func holdResult(cat models.Category, policy config.CategoryPolicy, rsiSeries []models.RSIValue, override string) models.SignalResult {
	result := models.SignalResult{
		Category:   cat,
		Action:     models.ActionHold,
		Confidence: 0,
	}

	if override != "" {
		result.Reason = override
	}

	curr, ok := calculate.CurrentRSI(rsiSeries)
	if !ok {
		if result.Reason == "" {
			result.Reason = "RSI undefined: waiting for warmup history"
		}
		return result
	}
	result.RSI = curr

	if result.Reason == "" {
		switch {
		case curr < policy.Oversold:
			result.Reason = fmt.Sprintf("RSI %.1f below oversold %.0f, no upward crossover yet", curr, policy.Oversold)
		case curr > policy.Overbought:
			result.Reason = fmt.Sprintf("RSI %.1f above overbought %.0f, no downward crossover yet", curr, policy.Overbought)
		default:
			result.Reason = fmt.Sprintf("RSI %.1f inside neutral zone (%.0f-%.0f)", curr, policy.Oversold, policy.Overbought)
		}
	}
	return result
}
