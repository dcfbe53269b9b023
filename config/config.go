package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kvasirlabs/momenta/models"
)

// CategoryPolicy is the per-category signal policy. Thresholds are
// deployment configuration, not code constants.
type CategoryPolicy struct {
	RSIPeriod     int     `yaml:"rsi_period"`
	Oversold      float64 `yaml:"oversold"`
	Overbought    float64 `yaml:"overbought"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr            string   `yaml:"addr"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Feed struct {
		BaseURL        string   `yaml:"base_url"`
		APIKey         string   `yaml:"api_key"`
		RequestTimeout Duration `yaml:"request_timeout"`
		RequestsPerSec int      `yaml:"requests_per_sec"`
		MaxRetryTime   Duration `yaml:"max_retry_time"`
	} `yaml:"feed"`

	Cache struct {
		TTL        Duration `yaml:"ttl"`
		MaxEntries int      `yaml:"max_entries"`
	} `yaml:"cache"`

	Poller struct {
		Interval    Duration `yaml:"interval"`
		Concurrency int      `yaml:"concurrency"`
		Timeout     Duration `yaml:"timeout"`
	} `yaml:"poller"`

	Candles struct {
		MaxSeriesLength int `yaml:"max_series_length"`
	} `yaml:"candles"`

	Signals struct {
		DivergenceLookback int                                `yaml:"divergence_lookback"`
		TrendEMAPeriod     int                                `yaml:"trend_ema_period"`
		Policies           map[models.Category]CategoryPolicy `yaml:"policies"`
	} `yaml:"signals"`

	Payment struct {
		Enabled      bool               `yaml:"enabled"`
		StripeAPIKey string             `yaml:"stripe_api_key"`
		PricesUSD    map[string]float64 `yaml:"prices_usd"`
	} `yaml:"payment"`

	Instruments []models.Instrument `yaml:"instruments"`

	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and fills defaults. A missing file is not an error; the defaults
// are enough to run against the public feed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		c.Feed.BaseURL = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("STRIPE_API_KEY"); v != "" {
		c.Payment.StripeAPIKey = v
	}
	if v := os.Getenv("PAYMENT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Payment.Enabled = b
		}
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poller.Interval = Duration(d)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Feed.RequestTimeout == 0 {
		c.Feed.RequestTimeout = Duration(10 * time.Second)
	}
	if c.Feed.RequestsPerSec == 0 {
		c.Feed.RequestsPerSec = 5
	}
	if c.Feed.MaxRetryTime == 0 {
		c.Feed.MaxRetryTime = Duration(8 * time.Second)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(5 * time.Second)
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = Duration(5 * time.Second)
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = 4
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = Duration(15 * time.Second)
	}
	if c.Candles.MaxSeriesLength == 0 {
		c.Candles.MaxSeriesLength = 1000
	}
	if c.Signals.DivergenceLookback == 0 {
		c.Signals.DivergenceLookback = 10
	}
	if c.Signals.TrendEMAPeriod == 0 {
		c.Signals.TrendEMAPeriod = 50
	}
	if c.Signals.Policies == nil {
		c.Signals.Policies = DefaultPolicies()
	} else {
		for cat, def := range DefaultPolicies() {
			if _, ok := c.Signals.Policies[cat]; !ok {
				c.Signals.Policies[cat] = def
			}
		}
	}
	if c.Payment.PricesUSD == nil {
		c.Payment.PricesUSD = DefaultOperationPrices()
	}
	if len(c.Instruments) == 0 {
		c.Instruments = DefaultInstruments()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if inst.ID == "" || inst.Symbol == "" {
			return fmt.Errorf("instrument %+v missing id or symbol", inst)
		}
		if !inst.Category.Valid() {
			return fmt.Errorf("instrument %s: unknown category %q", inst.ID, inst.Category)
		}
		if seen[inst.ID] {
			return fmt.Errorf("duplicate instrument id %q", inst.ID)
		}
		seen[inst.ID] = true
	}
	for cat, p := range c.Signals.Policies {
		if p.RSIPeriod < 2 {
			return fmt.Errorf("policy %s: rsi_period must be >= 2", cat)
		}
		if p.Oversold >= p.Overbought {
			return fmt.Errorf("policy %s: oversold must be below overbought", cat)
		}
	}
	return nil
}

// DefaultPolicies returns the documented per-category threshold table.
// Gold's RSI period is fixed at 14; earlier deployments wavered between
// 14 and 21 without a stated rationale.
func DefaultPolicies() map[models.Category]CategoryPolicy {
	return map[models.Category]CategoryPolicy{
		models.CategoryWrappedBTC: {
			RSIPeriod: 14, Oversold: 30, Overbought: 70,
			StopLossPct: 0.03, TakeProfitPct: 0.05,
		},
		models.CategoryTokenizedStock: {
			RSIPeriod: 14, Oversold: 35, Overbought: 65,
			StopLossPct: 0.025, TakeProfitPct: 0.04,
		},
		models.CategoryGoldToken: {
			RSIPeriod: 14, Oversold: 25, Overbought: 75,
			StopLossPct: 0.015, TakeProfitPct: 0.03,
		},
	}
}

// DefaultOperationPrices is the per-operation USD price table used by the
// payment gate when none is configured.
func DefaultOperationPrices() map[string]float64 {
	return map[string]float64{
		"get-current-prices":    0.01,
		"get-ohlc-data":         0.02,
		"get-rsi-analysis":      0.05,
		"get-rsi-divergence":    0.05,
		"get-portfolio-signals": 0.10,
	}
}

// DefaultInstruments is the built-in tracked universe.
func DefaultInstruments() []models.Instrument {
	return []models.Instrument{
		{ID: "cbbtc", Symbol: "CBBTC", DisplayName: "Coinbase Wrapped BTC", Category: models.CategoryWrappedBTC},
		{ID: "wbtc", Symbol: "WBTC", DisplayName: "Wrapped Bitcoin", Category: models.CategoryWrappedBTC},
		{ID: "tbtc", Symbol: "TBTC", DisplayName: "Threshold BTC", Category: models.CategoryWrappedBTC},
		{ID: "aaplx", Symbol: "AAPLX", DisplayName: "Apple xStock", Category: models.CategoryTokenizedStock},
		{ID: "tslax", Symbol: "TSLAX", DisplayName: "Tesla xStock", Category: models.CategoryTokenizedStock},
		{ID: "nvdax", Symbol: "NVDAX", DisplayName: "NVIDIA xStock", Category: models.CategoryTokenizedStock},
		{ID: "spyx", Symbol: "SPYX", DisplayName: "S&P 500 xStock", Category: models.CategoryTokenizedStock},
		{ID: "paxg", Symbol: "PAXG", DisplayName: "Pax Gold", Category: models.CategoryGoldToken},
		{ID: "xaut", Symbol: "XAUT", DisplayName: "Tether Gold", Category: models.CategoryGoldToken},
	}
}
