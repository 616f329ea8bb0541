package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oraklabs/oraklscan/internal/alerts"
	"github.com/oraklabs/oraklscan/internal/application"
	"github.com/oraklabs/oraklscan/internal/data/cache"
	"github.com/oraklabs/oraklscan/internal/flow"
	"github.com/oraklabs/oraklscan/internal/gates"
	"github.com/oraklabs/oraklscan/internal/infrastructure/db"
	httpapi "github.com/oraklabs/oraklscan/internal/interfaces/http"
	"github.com/oraklabs/oraklscan/internal/net/budget"
	"github.com/oraklabs/oraklscan/internal/net/circuit"
	"github.com/oraklabs/oraklscan/internal/net/httpclient"
	"github.com/oraklabs/oraklscan/internal/net/ratelimit"
	"github.com/oraklabs/oraklscan/internal/persistence"
	"github.com/oraklabs/oraklscan/internal/providers/polygon"
	"github.com/oraklabs/oraklscan/internal/scan"
	"github.com/oraklabs/oraklscan/internal/strat"
	"github.com/oraklabs/oraklscan/internal/telemetry"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// marketHours gates scanning to the extended US session, 04:00-20:00 ET.
var marketHours = timeutil.Window{StartHour: 4, StartMin: 0, EndHour: 20, EndMin: 0}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run the scanner supervisor",
		Long:  "Starts one worker per enabled strategy and serves health and metrics until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context())
		},
	}
}

func runScan(ctx context.Context) error {
	cfg, err := application.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("version", version).Strs("strategies", cfg.Enabled()).Msg("Starting scanner")

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	workers, err := buildWorkers(cfg, rt)
	if err != nil {
		return err
	}

	sup := scan.NewSupervisor(scan.SupervisorConfig{
		Workers: workers,
		Pool:    rt.pool,
		Dedup:   rt.dedup,
		Metrics: rt.metrics,
	})
	sup.AttachServer(httpapi.NewServer(cfg.MetricsAddr, sup, rt.metrics.Handler()))

	go rt.publishGauges(ctx)
	sup.Start(ctx)

	<-ctx.Done()
	sup.Shutdown()
	return nil
}

// runtime holds the shared infrastructure every strategy is built from.
type runtime struct {
	cfg       *application.Config
	metrics   *telemetry.Metrics
	pool      *httpclient.Pool
	breaker   *circuit.Breaker
	tracker   *budget.Tracker
	client    *polygon.Client
	ttl       *cache.TTLCache
	volcache  *flow.VolumeCache
	detector  *flow.Detector
	store     *strat.BarStore
	engine    *strat.Engine
	dedup     *alerts.DedupStore
	scorer    *gates.Scorer
	rdb       *redis.Client
	dbm       *db.Manager
	repos     *persistence.Repository
	webhooks  *http.Client
	watchlist []string
}

func buildRuntime(ctx context.Context, cfg *application.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, metrics: telemetry.New()}

	poolCfg := httpclient.DefaultConfig()
	poolCfg.MaxConcurrency = cfg.Provider.MaxConcurrent
	poolCfg.RequestTimeout = cfg.Provider.RequestTimeout
	poolCfg.MaxRetries = cfg.Provider.RetryAttempts
	poolCfg.BackoffBase = cfg.Provider.RetryDelay
	poolCfg.UserAgent = appName + "/" + version
	rt.pool = httpclient.New(poolCfg)

	burst := int(cfg.Provider.RateRPS)
	if burst < 1 {
		burst = 1
	}
	limiter := ratelimit.New(cfg.Provider.RateRPS, burst)
	rt.breaker = circuit.New(circuit.DefaultConfig("polygon"), polygon.IsIgnorableByBreaker)
	rt.tracker = budget.New(cfg.Provider.DailyBudget, nil)

	pcfg := polygon.DefaultConfig(cfg.Provider.APIKey)
	pcfg.BaseURL = cfg.Provider.BaseURL
	rt.ttl = cache.New(4096)
	rt.client = polygon.NewClient(pcfg, rt.pool, limiter, rt.breaker, rt.tracker,
		rt.ttl, polygon.NewSkipList(cfg.SkipTickers), nil)
	rt.client.SetMetricsCallback(rt.metrics.ProviderRequest)

	rt.volcache = flow.NewVolumeCache(nil)
	rt.detector = flow.NewDetector(rt.client, rt.volcache, nil)
	rt.store = strat.NewBarStore(rt.client, nil)
	rt.engine = strat.NewEngine(rt.store, nil)
	rt.scorer = gates.NewScorer(nil)
	rt.webhooks = &http.Client{Timeout: 10 * time.Second}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		rt.rdb = redis.NewClient(opts)
	}
	rt.dedup = alerts.NewDedupStore(cfg.CooldownTTL, nil, rt.rdb, nil)

	dbm, err := db.NewManager(ctx, db.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if dbm != nil {
		rt.dbm = dbm
		rt.repos = &dbm.Repos
	}

	rt.watchlist = cfg.Watchlist
	if cfg.WatchlistMode == "ALL_MARKET" {
		tickers, err := rt.client.GetMarketTickers(ctx)
		if err != nil {
			return nil, fmt.Errorf("ALL_MARKET ticker discovery: %w", err)
		}
		rt.watchlist = tickers
		log.Info().Int("symbols", len(tickers)).Msg("Market-wide watchlist loaded")
	}

	return rt, nil
}

func (rt *runtime) close() {
	rt.volcache.Stop()
	rt.ttl.Stop()
	if rt.dbm != nil {
		rt.dbm.Close()
	}
}

// publishGauges refreshes the slow-moving gauges every 30s and folds the
// cache counters into Prometheus as deltas.
func (rt *runtime) publishGauges(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var prev cache.Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.metrics.SetCircuitState(rt.breaker.State())
			stats := rt.tracker.Stats()
			if stats.Unlimited {
				rt.metrics.BudgetRemaining.Set(-1)
			} else {
				rt.metrics.BudgetRemaining.Set(float64(stats.Remaining))
			}

			cs := rt.ttl.Stats()
			rt.metrics.CacheHits.WithLabelValues("provider").Add(float64(cs.Hits - prev.Hits))
			rt.metrics.CacheMisses.WithLabelValues("provider").Add(float64(cs.Misses - prev.Misses))
			prev = cs
		}
	}
}

func buildWorkers(cfg *application.Config, rt *runtime) ([]*scan.Worker, error) {
	var workers []*scan.Worker
	for _, name := range cfg.Enabled() {
		strategy, schedule, err := buildStrategy(name, cfg, rt)
		if err != nil {
			return nil, err
		}
		var jobs persistence.JobsRepo
		if rt.repos != nil {
			jobs = rt.repos.Jobs
		}
		workers = append(workers, scan.NewWorker(scan.WorkerConfig{
			Strategy:    strategy,
			Watchlist:   rt.watchlist,
			Schedule:    schedule,
			Concurrency: cfg.Provider.MaxConcurrent,
			Jobs:        jobs,
			Metrics:     rt.metrics,
		}))
	}
	return workers, nil
}

func buildStrategy(name string, cfg *application.Config, rt *runtime) (scan.Strategy, scan.Schedule, error) {
	sc := cfg.Strategies[name]
	sink := alerts.NewSink(rt.webhooks, botTitle(name))
	sink.SetOutcomeCallback(rt.metrics.WebhookOutcome)

	schedule := scan.Schedule{Interval: sc.Interval, Active: &marketHours}

	switch name {
	case application.StratGolden, application.StratBullseye,
		application.StratScalp, application.StratFlow:
		cascade := flowCascade(name, sc)
		th := flow.Thresholds{
			MinPremium:     sc.MinPremium,
			MinVolumeDelta: sc.MinVolumeDelta,
			MinVolOIRatio:  sc.MinVolOIRatio,
		}
		return scan.NewFlowStrategy(name, rt.detector, th, cascade,
			rt.scorer, rt.dedup, sink, sc.Webhook, nil), schedule, nil

	case application.Strat322, application.Strat22, application.StratMiyagi:
		kind := scan.Kind322
		if name == application.Strat22 {
			kind = scan.Kind22
		} else if name == application.StratMiyagi {
			kind = scan.KindMiyagi
		}
		s := scan.NewStratStrategy(name, kind, rt.engine, rt.store,
			rt.dedup, rt.repos, sink, sc.Webhook, nil)
		schedule.Windows = s.Windows()
		return s, schedule, nil

	case application.StratBlocks:
		filter := gates.NewBlockTrade(gates.BlockConfig{
			MinShares:   sc.MinShares,
			MinNotional: sc.MinNotional,
		})
		return scan.NewBlockStrategy(name, rt.client, filter,
			rt.dedup, sink, sc.Webhook, 2*sc.Interval, nil), schedule, nil
	}
	return nil, scan.Schedule{}, fmt.Errorf("unknown strategy %q", name)
}

func flowCascade(name string, sc *application.StrategyConfig) gates.FlowCascade {
	switch name {
	case application.StratGolden:
		c := gates.DefaultGoldenConfig()
		c.MinPremium = sc.MinPremium
		c.MinDTE, c.MaxDTE = sc.MinDTE, sc.MaxDTE
		return gates.NewGoldenSweep(c)
	case application.StratBullseye:
		return gates.NewBullseye(gates.BullseyeConfig{
			MinPremium:        sc.MinPremium,
			MinOpenInterest:   sc.MinOI,
			MaxSpreadPct:      sc.MaxSpreadPct,
			DeltaMin:          sc.DeltaMin,
			DeltaMax:          sc.DeltaMax,
			MinDTE:            sc.MinDTE,
			MaxDTE:            sc.MaxDTE,
			MinVolumeDelta:    sc.MinVolumeDelta,
			MinVolOIRatio:     sc.MinVolOIRatio,
			MinITMProbability: sc.MinITMProb,
			ExpectedMoveDays:  gates.DefaultBullseyeConfig().ExpectedMoveDays,
		})
	case application.StratScalp:
		return gates.NewScalp(gates.ScalpConfig{
			MinPremium: sc.MinPremium, MinDTE: sc.MinDTE, MaxDTE: sc.MaxDTE,
		})
	default:
		return gates.NewGeneralFlow(gates.GeneralFlowConfig{
			MinPremium: sc.MinPremium, MinDTE: sc.MinDTE, MaxDTE: sc.MaxDTE,
		})
	}
}

// botTitle renders the strategy name as the webhook username suffix.
func botTitle(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
