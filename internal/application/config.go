// Package application loads and validates runtime configuration. Precedence
// is environment over YAML over built-in defaults; a .env file, when
// present, seeds the environment before anything reads it.
package application

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy names. Each enabled strategy with a webhook becomes one worker.
const (
	StratGolden   = "golden"
	StratBullseye = "bullseye"
	StratScalp    = "scalp"
	StratFlow     = "flow"
	Strat322      = "strat322"
	Strat22       = "strat22"
	StratMiyagi   = "miyagi"
	StratBlocks   = "blocks"
)

// StrategyNames lists every known strategy in startup order.
var StrategyNames = []string{
	StratGolden, StratBullseye, StratScalp, StratFlow,
	Strat322, Strat22, StratMiyagi, StratBlocks,
}

// ProviderConfig tunes the market-data client and its protective layers.
type ProviderConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	RateRPS        float64       `yaml:"rate_rps"`
	DailyBudget    int64         `yaml:"daily_budget"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// StrategyConfig is one strategy's toggles and thresholds. Fields a strategy
// does not use are ignored by its cascade.
type StrategyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`

	// Interval comes from IntervalSeconds in YAML and <S>_INTERVAL in env.
	Interval        time.Duration `yaml:"-"`
	IntervalSeconds int           `yaml:"interval_seconds"`

	MinPremium     float64 `yaml:"min_premium"`
	MinVolumeDelta int64   `yaml:"min_volume_delta"`
	MinVolOIRatio  float64 `yaml:"min_vol_oi_ratio"`
	MinOI          int64   `yaml:"min_oi"`
	MinDTE         int     `yaml:"min_dte"`
	MaxDTE         int     `yaml:"max_dte"`
	DeltaMin       float64 `yaml:"delta_min"`
	DeltaMax       float64 `yaml:"delta_max"`
	MinITMProb     float64 `yaml:"min_itm_probability"`
	MaxSpreadPct   float64 `yaml:"max_spread_pct"`
	MinShares      int64   `yaml:"min_shares"`
	MinNotional    float64 `yaml:"min_notional"`
}

// Config is the full runtime configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`

	Watchlist     []string `yaml:"watchlist"`
	WatchlistMode string   `yaml:"watchlist_mode"` // STATIC | ALL_MARKET
	SkipTickers   []string `yaml:"skip_tickers"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // auto | json | console

	CooldownTTL time.Duration `yaml:"cooldown_ttl"`

	Strategies map[string]*StrategyConfig `yaml:"strategies"`
}

// Default returns the built-in configuration: every strategy present with
// its shipped thresholds, nothing enabled until a webhook arrives.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:        "https://api.polygon.io",
			RateRPS:        90,
			DailyBudget:    45_000,
			MaxConcurrent:  10,
			RequestTimeout: 30 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     2 * time.Second,
		},
		WatchlistMode: "STATIC",
		MetricsAddr:   ":8090",
		LogLevel:      "info",
		LogFormat:     "auto",
		CooldownTTL:   4 * time.Hour,
		Strategies: map[string]*StrategyConfig{
			StratGolden: {
				Interval: 2 * time.Minute, MinPremium: 1_000_000,
				MinDTE: 1, MaxDTE: 180, MaxSpreadPct: 5,
			},
			StratBullseye: {
				Interval: 2 * time.Minute, MinPremium: 500_000, MinOI: 10_000,
				MinVolumeDelta: 2_500, MinVolOIRatio: 0.8,
				MinDTE: 1, MaxDTE: 5, DeltaMin: 0.35, DeltaMax: 0.65,
				MinITMProb: 0.35, MaxSpreadPct: 5,
			},
			StratScalp: {
				Interval: time.Minute, MinPremium: 2_000, MinDTE: 0, MaxDTE: 7,
			},
			StratFlow: {
				Interval: 2 * time.Minute, MinPremium: 10_000, MinDTE: 1, MaxDTE: 45,
			},
			Strat322:    {Interval: 5 * time.Minute},
			Strat22:     {Interval: 5 * time.Minute},
			StratMiyagi: {Interval: 5 * time.Minute},
			StratBlocks: {
				Interval: time.Minute, MinShares: 10_000, MinNotional: 1_000_000,
			},
		},
	}
}

// Load assembles the configuration: .env file, then built-in defaults, then
// the optional STRATEGIES_CONFIG YAML, then environment overrides. The
// returned error is fatal; the process must not start half-configured.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("STRATEGIES_CONFIG"); path != "" {
		if err := cfg.applyYAML(path); err != nil {
			return nil, fmt.Errorf("strategies config: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyYAML overlays per-strategy settings from the named file. Unknown
// strategy keys are rejected so typos fail loudly.
func (c *Config) applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay struct {
		Strategies map[string]yaml.Node `yaml:"strategies"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for name, node := range overlay.Strategies {
		sc, ok := c.Strategies[name]
		if !ok {
			return fmt.Errorf("unknown strategy %q in %s", name, path)
		}
		if err := node.Decode(sc); err != nil {
			return fmt.Errorf("strategy %s in %s: %w", name, path, err)
		}
		if sc.IntervalSeconds > 0 {
			sc.Interval = time.Duration(sc.IntervalSeconds) * time.Second
		}
	}
	return nil
}

// applyEnv overlays the recognized environment variables.
func (c *Config) applyEnv() {
	setStr(&c.Provider.APIKey, "POLYGON_API_KEY")
	setStr(&c.Provider.BaseURL, "POLYGON_BASE_URL")
	setFloat(&c.Provider.RateRPS, "RATE_LIMIT_RPS")
	setInt64(&c.Provider.DailyBudget, "REQUEST_BUDGET_DAILY")
	setInt(&c.Provider.MaxConcurrent, "MAX_CONCURRENT_REQUESTS")
	setSeconds(&c.Provider.RequestTimeout, "REQUEST_TIMEOUT")
	setInt(&c.Provider.RetryAttempts, "RETRY_ATTEMPTS")
	setSeconds(&c.Provider.RetryDelay, "RETRY_DELAY")

	setList(&c.Watchlist, "WATCHLIST")
	setStr(&c.WatchlistMode, "WATCHLIST_MODE")
	setList(&c.SkipTickers, "SKIP_TICKERS")

	setStr(&c.RedisURL, "REDIS_URL")
	setStr(&c.DatabaseURL, "DATABASE_URL")
	setStr(&c.MetricsAddr, "METRICS_ADDR")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogFormat, "LOG_FORMAT")

	for _, name := range StrategyNames {
		sc := c.Strategies[name]
		prefix := strings.ToUpper(name)
		setBool(&sc.Enabled, prefix+"_ENABLED")
		setStr(&sc.Webhook, prefix+"_WEBHOOK")
		setSeconds(&sc.Interval, prefix+"_INTERVAL")
		setFloat(&sc.MinPremium, prefix+"_MIN_PREMIUM")
		// a webhook with no explicit toggle means enabled
		if sc.Webhook != "" && os.Getenv(prefix+"_ENABLED") == "" {
			sc.Enabled = true
		}
	}

	// legacy alias from the sweeps-era deployments
	setFloat(&c.Strategies[StratGolden].MinPremium, "SWEEPS_MIN_PREMIUM")

	b := c.Strategies[StratBullseye]
	setInt(&b.MinDTE, "BULLSEYE_MIN_DTE")
	setInt(&b.MaxDTE, "BULLSEYE_MAX_DTE")
	setFloat(&b.DeltaMin, "BULLSEYE_DELTA_MIN")
	setFloat(&b.DeltaMax, "BULLSEYE_DELTA_MAX")
	setFloat(&b.MinITMProb, "BULLSEYE_MIN_ITM_PROBABILITY")
	setFloat(&b.MaxSpreadPct, "BULLSEYE_MAX_SPREAD_PCT")
	setInt64(&b.MinOI, "BULLSEYE_MIN_OI")
	setInt64(&b.MinVolumeDelta, "BULLSEYE_MIN_VOLUME_DELTA")
	setFloat(&b.MinVolOIRatio, "BULLSEYE_MIN_VOL_OI_RATIO")

	bl := c.Strategies[StratBlocks]
	setInt64(&bl.MinShares, "BLOCKS_MIN_SHARES")
	setFloat(&bl.MinNotional, "BLOCKS_MIN_NOTIONAL")

	// global floor applied to every flow strategy when set
	if v := os.Getenv("MIN_PREMIUM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			for _, name := range []string{StratGolden, StratBullseye, StratScalp, StratFlow} {
				if c.Strategies[name].MinPremium < f {
					c.Strategies[name].MinPremium = f
				}
			}
		}
	}
	if v := os.Getenv("MIN_VOLUME"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			for _, name := range []string{StratGolden, StratBullseye, StratScalp, StratFlow} {
				if c.Strategies[name].MinVolumeDelta < n {
					c.Strategies[name].MinVolumeDelta = n
				}
			}
		}
	}
}

// Enabled returns the startup-ordered names of strategies that will run.
func (c *Config) Enabled() []string {
	var out []string
	for _, name := range StrategyNames {
		if sc := c.Strategies[name]; sc.Enabled && sc.Webhook != "" {
			out = append(out, name)
		}
	}
	return out
}

// Validate rejects configurations the process cannot run with.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is required")
	}
	if c.Provider.RateRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.Provider.RateRPS)
	}
	if c.Provider.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be positive, got %d", c.Provider.MaxConcurrent)
	}
	switch c.WatchlistMode {
	case "STATIC":
		if len(c.Watchlist) == 0 {
			return fmt.Errorf("WATCHLIST is required in STATIC mode")
		}
	case "ALL_MARKET":
	default:
		return fmt.Errorf("WATCHLIST_MODE must be STATIC or ALL_MARKET, got %q", c.WatchlistMode)
	}
	if len(c.Enabled()) == 0 {
		return fmt.Errorf("no strategy enabled; set at least one <STRATEGY>_WEBHOOK")
	}
	for _, name := range c.Enabled() {
		sc := c.Strategies[name]
		if sc.Interval <= 0 {
			return fmt.Errorf("%s_INTERVAL must be positive", strings.ToUpper(name))
		}
		if !strings.HasPrefix(sc.Webhook, "http") {
			return fmt.Errorf("%s_WEBHOOK is not a URL", strings.ToUpper(name))
		}
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setSeconds reads a plain number as seconds; "90s"/"2m" forms also parse.
func setSeconds(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
