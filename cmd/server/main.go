package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kvasirlabs/momenta/config"
	"github.com/kvasirlabs/momenta/internal/api"
	"github.com/kvasirlabs/momenta/internal/candles"
	"github.com/kvasirlabs/momenta/internal/payment"
	"github.com/kvasirlabs/momenta/internal/portfolio"
	"github.com/kvasirlabs/momenta/internal/quote"
	"github.com/kvasirlabs/momenta/internal/registry"
	signals "github.com/kvasirlabs/momenta/internal/signal"
	"github.com/kvasirlabs/momenta/models"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	reg := registry.New(cfg.Instruments)

	feed := quote.NewClient(quote.ClientOptions{
		BaseURL:         cfg.Feed.BaseURL,
		APIKey:          cfg.Feed.APIKey,
		RequestTimeout:  cfg.Feed.RequestTimeout.Std(),
		RequestsPerSec:  cfg.Feed.RequestsPerSec,
		MaxRetryTimeout: cfg.Feed.MaxRetryTime.Std(),
	})
	quotes := quote.NewService(feed, quote.ServiceOptions{
		CacheTTL:   cfg.Cache.TTL.Std(),
		MaxEntries: cfg.Cache.MaxEntries,
	})

	aggregator := candles.NewAggregator(models.AllIntervals(), cfg.Candles.MaxSeriesLength)
	poller := candles.NewPoller(quotes, aggregator, reg.All(), candles.PollerOptions{
		Interval:    cfg.Poller.Interval.Std(),
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout.Std(),
	})

	detector := signals.NewDetector(cfg.Signals.Policies, cfg.Signals.TrendEMAPeriod, cfg.Signals.DivergenceLookback)
	analyzer := portfolio.NewAnalyzer(aggregator, detector, cfg.Poller.Concurrency)

	prices := payment.PriceTable(cfg.Payment.PricesUSD)
	var authorizer payment.Authorizer = payment.OpenAuthorizer{}
	if cfg.Payment.Enabled {
		authorizer = payment.NewStripeAuthorizer(cfg.Payment.StripeAPIKey, prices)
	} else {
		log.Warn().Msg("payment gating disabled, all operations are open")
	}

	server := api.NewServer(api.ServerOptions{
		Addr:             cfg.Server.Addr,
		Registry:         reg,
		Quotes:           quotes,
		Aggregator:       aggregator,
		Analyzer:         analyzer,
		Authorizer:       authorizer,
		Prices:           prices,
		FetchConcurrency: cfg.Poller.Concurrency,
	})

	if err := poller.Start(); err != nil {
		log.Fatal().Err(err).Msg("starting poller failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("stopped")
}
