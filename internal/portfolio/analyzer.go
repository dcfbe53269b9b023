// Package portfolio fans analysis out across intervals and the instrument
// universe. A single member's failure is captured and excluded, never fatal
// to the batch.
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kvasirlabs/momenta/internal/calculate"
	"github.com/kvasirlabs/momenta/internal/candles"
	"github.com/kvasirlabs/momenta/internal/signal"
	"github.com/kvasirlabs/momenta/models"
)

// Analyzer runs per-instrument analysis over accumulated candle state.
type Analyzer struct {
	aggregator  *candles.Aggregator
	detector    *signal.Detector
	concurrency int
	logger      zerolog.Logger
}

// NewAnalyzer creates an analyzer. concurrency bounds portfolio fan-out.
func NewAnalyzer(agg *candles.Aggregator, det *signal.Detector, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Analyzer{
		aggregator:  agg,
		detector:    det,
		concurrency: concurrency,
		logger:      log.With().Str("component", "portfolio_analyzer").Logger(),
	}
}

// Analyze evaluates one instrument on one interval: RSI series, divergence,
// and the category's entry/exit policy.
func (a *Analyzer) Analyze(inst models.Instrument, iv models.Interval) (models.SignalResult, error) {
	policy := a.detector.Policy(inst.Category)

	cs, err := a.aggregator.Candles(inst.ID, iv, 0)
	if err != nil {
		return models.SignalResult{}, err
	}

	rsiSeries, err := calculate.RSISeries(cs, policy.RSIPeriod)
	if err != nil {
		if ie, ok := err.(*models.InsufficientDataError); ok {
			ie.InstrumentID = inst.ID
			ie.Interval = iv
		}
		return models.SignalResult{}, err
	}

	return a.detector.Evaluate(inst, cs, rsiSeries), nil
}

// Divergence runs the divergence scan for one instrument and interval.
func (a *Analyzer) Divergence(inst models.Instrument, iv models.Interval, lookback int) (models.DivergenceResult, error) {
	policy := a.detector.Policy(inst.Category)

	cs, err := a.aggregator.Candles(inst.ID, iv, 0)
	if err != nil {
		return models.DivergenceResult{}, err
	}
	rsiSeries, err := calculate.RSISeries(cs, policy.RSIPeriod)
	if err != nil {
		if ie, ok := err.(*models.InsufficientDataError); ok {
			ie.InstrumentID = inst.ID
			ie.Interval = iv
		}
		return models.DivergenceResult{}, err
	}
	if lookback <= 0 {
		lookback = a.detector.Lookback()
	}
	return signal.DetectDivergence(rsiSeries, cs, lookback), nil
}

// MultiTimeframeRSI computes the current RSI per requested interval. An
// interval without enough history is skipped, not fatal.
func (a *Analyzer) MultiTimeframeRSI(inst models.Instrument, intervals []models.Interval) map[models.Interval]float64 {
	policy := a.detector.Policy(inst.Category)
	out := make(map[models.Interval]float64, len(intervals))

	for _, iv := range intervals {
		cs, err := a.aggregator.Candles(inst.ID, iv, 0)
		if err != nil {
			continue
		}
		rsiSeries, err := calculate.RSISeries(cs, policy.RSIPeriod)
		if err != nil {
			continue
		}
		if curr, ok := calculate.CurrentRSI(rsiSeries); ok {
			out[iv] = curr
		}
	}
	return out
}

// PortfolioSignals analyzes the whole universe concurrently. Results below
// minConfidence are dropped except HOLD, which is always retained. Failed
// instruments are logged and listed, never aborting the batch.
func (a *Analyzer) PortfolioSignals(ctx context.Context, instruments []models.Instrument, iv models.Interval, minConfidence float64) models.PortfolioSignals {
	type outcome struct {
		result models.SignalResult
		err    error
	}

	outcomes := gather(ctx, instruments, a.concurrency, func(ctx context.Context, inst models.Instrument) (oc outcome) {
		defer func() {
			if r := recover(); r != nil {
				oc = outcome{err: fmt.Errorf("analysis of %s panicked: %v", inst.ID, r)}
			}
		}()
		if err := ctx.Err(); err != nil {
			return outcome{err: fmt.Errorf("analysis of %s canceled: %w", inst.ID, err)}
		}
		res, err := a.Analyze(inst, iv)
		return outcome{result: res, err: err}
	})

	ps := models.PortfolioSignals{
		Timestamp:  time.Now().UTC(),
		ByAction:   make(map[models.SignalAction]int),
		ByCategory: make(map[models.Category]int),
	}

	for i, oc := range outcomes {
		inst := instruments[i]
		if oc.err != nil {
			a.logger.Warn().Err(oc.err).Str("instrument", inst.ID).Msg("portfolio member analysis failed")
			ps.Failed = append(ps.Failed, inst.ID)
			continue
		}
		if oc.result.Action != models.ActionHold && oc.result.Confidence < minConfidence {
			continue
		}
		ps.Signals = append(ps.Signals, oc.result)
		ps.ByAction[oc.result.Action]++
		ps.ByCategory[inst.Category]++
	}
	return ps
}

// gather runs fn over every item with at most `concurrency` workers and
// returns one outcome per item, in input order. Each task is an independent
// failure domain: one task's failure never cancels its siblings.
func gather[T, R any](ctx context.Context, items []T, concurrency int, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range items {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = fn(ctx, items[i])
		}()
	}
	wg.Wait()
	return results
}
