package models

import "time"

// Category classifies a tradable instrument. The detection thresholds and risk
// levels applied by the signal engine depend on it.
type Category string

const (
	CategoryWrappedBTC     Category = "wrapped-btc"
	CategoryTokenizedStock Category = "tokenized-stock"
	CategoryGoldToken      Category = "gold-token"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWrappedBTC, CategoryTokenizedStock, CategoryGoldToken:
		return true
	}
	return false
}

// Instrument is one entry of the static tracked universe. Instruments are
// created once at startup from configuration and never mutated.
type Instrument struct {
	ID          string   `json:"id" yaml:"id"`
	Symbol      string   `json:"symbol" yaml:"symbol"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Category    Category `json:"category" yaml:"category"`
}

// PriceObservation is a single polled price point. Observations are fed to the
// candle aggregator and then discarded; they are never persisted.
type PriceObservation struct {
	InstrumentID string    `json:"instrument_id"`
	Price        float64   `json:"price"`
	ObservedAt   time.Time `json:"observed_at"`
	Source       string    `json:"source"`
}

// Candle is one OHLC bucket. BucketStart is aligned to an exact multiple of
// the interval duration. Open is fixed at creation; High/Low/Close are updated
// by later observations landing in the same bucket.
type Candle struct {
	BucketStart time.Time `json:"bucket_start"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume,omitempty"`
}

// RSIValue is one position of an RSI series. Positions before the warmup
// period carry Valid=false rather than a fabricated number.
type RSIValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// SignalAction is the advisory outcome of a signal evaluation.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// SignalResult is a purely derived trading signal. The engine never holds a
// position; entry/stop/take-profit levels are advisory reference prices.
type SignalResult struct {
	InstrumentID    string       `json:"instrument_id,omitempty"`
	Category        Category     `json:"category,omitempty"`
	Action          SignalAction `json:"action"`
	Confidence      float64      `json:"confidence"`
	EntryPrice      float64      `json:"entry_price,omitempty"`
	StopLoss        float64      `json:"stop_loss,omitempty"`
	TakeProfit      float64      `json:"take_profit,omitempty"`
	RiskRewardRatio float64      `json:"risk_reward_ratio,omitempty"`
	RSI             float64      `json:"rsi,omitempty"`
	Reason          string       `json:"reason"`
}

// DivergenceResult reports price/RSI divergence found in a lookback window.
type DivergenceResult struct {
	Bullish  bool    `json:"bullish"`
	Bearish  bool    `json:"bearish"`
	Strength float64 `json:"strength,omitempty"`
}

// ExitCheck is the outcome of an exit evaluation against an entry price.
// Exactly one trigger fires (first match in stop-loss, take-profit, overbought
// precedence); when none fires the computed levels are still reported.
type ExitCheck struct {
	Exit         bool    `json:"exit"`
	Trigger      string  `json:"trigger,omitempty"`
	TriggerLevel float64 `json:"trigger_level,omitempty"`
	CurrentPrice float64 `json:"current_price"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	Reason       string  `json:"reason"`
}

// PortfolioSignals is the batch analysis result across the universe.
type PortfolioSignals struct {
	Timestamp  time.Time            `json:"timestamp"`
	Signals    []SignalResult       `json:"signals"`
	ByAction   map[SignalAction]int `json:"by_action"`
	ByCategory map[Category]int     `json:"by_category"`
	Failed     []string             `json:"failed,omitempty"`
}

// QuotedPrice pairs an instrument with its latest fetched price.
type QuotedPrice struct {
	Instrument Instrument `json:"instrument"`
	Price      float64    `json:"price"`
	Timestamp  time.Time  `json:"timestamp"`
}

// CandleStats summarizes a returned candle window.
type CandleStats struct {
	Count      int     `json:"count"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	AvgClose   float64 `json:"avg_close"`
	FirstClose float64 `json:"first_close"`
	LastClose  float64 `json:"last_close"`
	ChangePct  float64 `json:"change_pct"`
}
