package api

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/kvasirlabs/momenta/models"
)

// handleCurrentPrices returns live prices for the universe, optionally
// filtered by category. Individual feed failures are excluded; the operation
// fails only when no instrument could be priced.
func (s *Server) handleCurrentPrices(w http.ResponseWriter, r *http.Request) {
	instruments := s.registry.All()
	if catParam := r.URL.Query().Get("category"); catParam != "" {
		cat := models.Category(catParam)
		if !cat.Valid() {
			s.writeError(w, &badRequestError{err: fmt.Errorf("unknown category %q", catParam)})
			return
		}
		instruments = s.registry.ByCategory(cat)
	}

	type slot struct {
		quoted models.QuotedPrice
		err    error
	}
	slots := make([]slot, len(instruments))
	sem := make(chan struct{}, s.fetchConcurrency)
	var wg sync.WaitGroup
	for i, inst := range instruments {
		i, inst := i, inst
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			price, ts, err := s.quotes.GetPrice(r.Context(), inst.ID)
			if err != nil {
				slots[i] = slot{err: err}
				return
			}
			slots[i] = slot{quoted: models.QuotedPrice{Instrument: inst, Price: price, Timestamp: ts}}
		}()
	}
	wg.Wait()

	var prices []models.QuotedPrice
	var lastErr error
	for i := range slots {
		if slots[i].err != nil {
			s.logger.Warn().Err(slots[i].err).Str("instrument", instruments[i].ID).Msg("price excluded from listing")
			lastErr = slots[i].err
			continue
		}
		prices = append(prices, slots[i].quoted)
	}

	if len(prices) == 0 && lastErr != nil {
		s.writeError(w, lastErr)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"prices": prices})
}

// handleOHLC returns the most recent candles for one instrument and interval,
// with window statistics.
func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	inst, err := s.registry.Get(r.URL.Query().Get("instrument"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	iv, err := parseIntervalParam(r, models.Interval1h)
	if err != nil {
		s.writeError(w, err)
		return
	}
	count := intParam(r, "count", 100)

	cs, err := s.aggregator.Candles(inst.ID, iv, count)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instrument": inst,
		"interval":   iv,
		"candles":    cs,
		"stats":      candleStats(cs),
	})
}

// handleRSI returns signal analysis for one instrument, or for every
// instrument of a category. Single-instrument responses include the RSI per
// interval; category responses exclude members lacking history.
func (s *Server) handleRSI(w http.ResponseWriter, r *http.Request) {
	iv, err := parseIntervalParam(r, models.Interval1h)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if instParam := r.URL.Query().Get("instrument"); instParam != "" {
		inst, err := s.registry.Get(instParam)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result, err := s.analyzer.Analyze(inst, iv)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"signal":          result,
			"rsi_by_interval": s.analyzer.MultiTimeframeRSI(inst, s.aggregator.Intervals()),
		})
		return
	}

	instruments := s.registry.All()
	if catParam := r.URL.Query().Get("category"); catParam != "" {
		cat := models.Category(catParam)
		if !cat.Valid() {
			s.writeError(w, &badRequestError{err: fmt.Errorf("unknown category %q", catParam)})
			return
		}
		instruments = s.registry.ByCategory(cat)
	}

	var results []models.SignalResult
	for _, inst := range instruments {
		result, err := s.analyzer.Analyze(inst, iv)
		if err != nil {
			s.logger.Warn().Err(err).Str("instrument", inst.ID).Msg("rsi analysis excluded")
			continue
		}
		results = append(results, result)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"signals": results})
}

// handleDivergence runs the divergence scan for one instrument.
func (s *Server) handleDivergence(w http.ResponseWriter, r *http.Request) {
	inst, err := s.registry.Get(r.URL.Query().Get("instrument"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	iv, err := parseIntervalParam(r, models.Interval1h)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lookback := intParam(r, "lookback", 0)

	result, err := s.analyzer.Divergence(inst, iv, lookback)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instrument": inst,
		"interval":   iv,
		"divergence": result,
	})
}

// handlePortfolio sweeps the whole universe.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	iv, err := parseIntervalParam(r, models.Interval1h)
	if err != nil {
		s.writeError(w, err)
		return
	}
	minConfidence := floatParam(r, "min_confidence", 0)

	result := s.analyzer.PortfolioSignals(r.Context(), s.registry.All(), iv, minConfidence)
	s.writeJSON(w, http.StatusOK, result)
}

func parseIntervalParam(r *http.Request, fallback models.Interval) (models.Interval, error) {
	raw := r.URL.Query().Get("interval")
	if raw == "" {
		return fallback, nil
	}
	iv, err := models.ParseInterval(raw)
	if err != nil {
		return "", &badRequestError{err: err}
	}
	return iv, nil
}

func intParam(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func floatParam(r *http.Request, name string, fallback float64) float64 {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func candleStats(cs []models.Candle) models.CandleStats {
	if len(cs) == 0 {
		return models.CandleStats{}
	}
	stats := models.CandleStats{
		Count:      len(cs),
		High:       cs[0].High,
		Low:        cs[0].Low,
		FirstClose: cs[0].Close,
		LastClose:  cs[len(cs)-1].Close,
	}
	var sum float64
	for _, c := range cs {
		if c.High > stats.High {
			stats.High = c.High
		}
		if c.Low < stats.Low {
			stats.Low = c.Low
		}
		sum += c.Close
	}
	stats.AvgClose = sum / float64(len(cs))
	if stats.FirstClose != 0 {
		stats.ChangePct = (stats.LastClose - stats.FirstClose) / stats.FirstClose * 100
	}
	return stats
}
