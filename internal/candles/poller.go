package candles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kvasirlabs/momenta/models"
)

// PriceSource supplies the poller with current prices.
type PriceSource interface {
	GetPrice(ctx context.Context, instrumentID string) (float64, time.Time, error)
	Source() string
}

// Poller periodically pulls a price for every tracked instrument and feeds it
// to the aggregator. It is the single writer to all candle state.
type Poller struct {
	source      PriceSource
	aggregator  *Aggregator
	instruments []models.Instrument
	interval    time.Duration
	concurrency int
	timeout     time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// PollerOptions holds options for creating a poller.
type PollerOptions struct {
	Interval    time.Duration
	Concurrency int
	Timeout     time.Duration
}

// NewPoller creates a poller over the given universe.
func NewPoller(source PriceSource, agg *Aggregator, instruments []models.Instrument, opts PollerOptions) *Poller {
	if opts.Interval == 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:      source,
		aggregator:  agg,
		instruments: instruments,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log.With().Str("component", "poller").Logger(),
	}
}

// Start registers the polling schedule and runs one cycle immediately so
// candles begin accumulating without waiting a full interval. A cycle still
// running when the next tick fires is not overlapped; the tick is skipped.
func (p *Poller) Start() error {
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := p.cron.AddFunc(spec, p.runCycle); err != nil {
		return fmt.Errorf("register polling schedule: %w", err)
	}
	p.cron.Start()
	go p.runCycle()
	p.logger.Info().Dur("interval", p.interval).Int("instruments", len(p.instruments)).Msg("poller started")
	return nil
}

// Stop halts the schedule and cancels in-flight fetches.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	p.cancel()
	<-ctx.Done()
	p.logger.Info().Msg("poller stopped")
}

// runCycle polls every instrument with bounded concurrency. One instrument's
// failure never blocks the rest of the cycle.
func (p *Poller) runCycle() {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	started := time.Now()
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures int

	for _, inst := range p.instruments {
		inst := inst
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			price, ts, err := p.source.GetPrice(ctx, inst.ID)
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				p.logger.Warn().Err(err).Str("instrument", inst.ID).Msg("poll failed")
				return
			}
			p.aggregator.Ingest(models.PriceObservation{
				InstrumentID: inst.ID,
				Price:        price,
				ObservedAt:   ts,
				Source:       p.source.Source(),
			})
		}()
	}
	wg.Wait()

	p.logger.Debug().
		Int("instruments", len(p.instruments)).
		Int("failures", failures).
		Dur("took", time.Since(started)).
		Msg("poll cycle complete")
}
