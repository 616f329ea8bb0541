package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/data/cache"
	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/net/budget"
	"github.com/oraklabs/oraklscan/internal/net/circuit"
	"github.com/oraklabs/oraklscan/internal/net/httpclient"
	"github.com/oraklabs/oraklscan/internal/net/ratelimit"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// MetricsCallback receives the outcome of every provider request.
type MetricsCallback func(endpoint string, duration time.Duration, err error)

// Config holds provider connection settings and cache TTLs.
type Config struct {
	BaseURL       string
	APIKey        string
	PriceTTL      time.Duration
	SnapshotTTL   time.Duration
	IntradayTTL   time.Duration
	DailyTTL      time.Duration
	MaxChainPages int
}

// DefaultConfig returns the documented cache tiers: prices and chain
// snapshots 30s, intraday aggregates 60s, daily aggregates 15m.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:       "https://api.polygon.io",
		APIKey:        apiKey,
		PriceTTL:      30 * time.Second,
		SnapshotTTL:   30 * time.Second,
		IntradayTTL:   60 * time.Second,
		DailyTTL:      15 * time.Minute,
		MaxChainPages: 5,
	}
}

// Client is the typed provider fetcher shared by every scanner worker. All
// calls run through the token bucket, the daily budget, and the circuit
// breaker, in that order; responses are cached by full query key.
type Client struct {
	cfg     Config
	pool    *httpclient.Pool
	limiter *ratelimit.Limiter
	breaker *circuit.Breaker
	budget  *budget.Tracker
	cache   *cache.TTLCache
	skip    *SkipList
	clock   timeutil.Clock

	metricsCb MetricsCallback
}

// NewClient wires the fetcher. Any of budget may be nil-limited (limit 0);
// clock nil means wall time.
func NewClient(cfg Config, pool *httpclient.Pool, limiter *ratelimit.Limiter, breaker *circuit.Breaker, tracker *budget.Tracker, ttl *cache.TTLCache, skip *SkipList, clock timeutil.Clock) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polygon.io"
	}
	if cfg.MaxChainPages <= 0 {
		cfg.MaxChainPages = 5
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if skip == nil {
		skip = NewSkipList(nil)
	}
	return &Client{
		cfg:     cfg,
		pool:    pool,
		limiter: limiter,
		breaker: breaker,
		budget:  tracker,
		cache:   ttl,
		skip:    skip,
		clock:   clock,
	}
}

// SetMetricsCallback registers the telemetry hook.
func (c *Client) SetMetricsCallback(cb MetricsCallback) {
	c.metricsCb = cb
}

// SkipList exposes the sticky 404 set for health reporting.
func (c *Client) SkipList() *SkipList {
	return c.skip
}

var errStatusNotFound = errors.New("http 404")

// getJSON performs one provider GET under limiter, budget, and breaker, and
// decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	start := c.clock.Now()
	err := c.fetch(ctx, endpoint, rawURL, out)
	if c.metricsCb != nil {
		c.metricsCb(endpoint, time.Since(start), err)
	}
	return err
}

func (c *Client) fetch(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}
	if c.budget != nil {
		if err := c.budget.Consume(); err != nil {
			return err
		}
	}

	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := c.pool.Do(ctx, req)
		if err != nil {
			var se *httpclient.StatusError
			if errors.As(err, &se) {
				if se.Code == http.StatusTooManyRequests {
					return ErrRateLimited
				}
				return fmt.Errorf("%s: %w", endpoint, err)
			}
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return errStatusNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode: %w", endpoint, err)
		}
		return nil
	})
}

func (c *Client) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.cfg.APIKey)
	return strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
}

// notFound records the sticky skip and returns the typed error.
func (c *Client) notFound(symbol string) error {
	c.skip.Add(symbol, "provider 404")
	log.Warn().Str("component", "polygon").Str("symbol", symbol).Msg("Symbol not found, added to skip list")
	return &NotFoundError{Symbol: symbol}
}

// GetStockPrice returns the current price for symbol using the snapshot
// fallback chain day close, day vwap, last trade, quote midpoint, bid, ask,
// previous day close, previous day vwap.
func (c *Client) GetStockPrice(ctx context.Context, symbol string) (float64, error) {
	if c.skip.Contains(symbol) {
		return 0, &NotFoundError{Symbol: symbol}
	}

	cacheKey := "price:" + symbol
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.(float64), nil
	}

	var resp stockSnapshotResponse
	u := c.buildURL("/v2/snapshot/locale/us/markets/stocks/tickers/"+symbol, nil)
	if err := c.getJSON(ctx, "price", u, &resp); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return 0, c.notFound(symbol)
		}
		return 0, err
	}
	if resp.Ticker == nil {
		return 0, &domain.ValidationError{Field: "ticker", Reason: "missing snapshot body"}
	}

	price, ok := extractPrice(resp.Ticker)
	if !ok {
		return 0, &domain.ValidationError{Field: "price", Reason: "no usable price in snapshot"}
	}

	c.cache.Set(cacheKey, price, c.cfg.PriceTTL)
	return price, nil
}

func extractPrice(t *tickerSnap) (float64, bool) {
	candidates := []float64{t.Day.Close, t.Day.VWAP}
	if t.LastTrade != nil {
		candidates = append(candidates, t.LastTrade.Price)
	}
	if t.LastQuote != nil {
		if t.LastQuote.Bid > 0 && t.LastQuote.Ask > 0 {
			candidates = append(candidates, (t.LastQuote.Bid+t.LastQuote.Ask)/2)
		}
		candidates = append(candidates, t.LastQuote.Bid, t.LastQuote.Ask)
	}
	candidates = append(candidates, t.PrevDay.Close, t.PrevDay.VWAP)

	for _, p := range candidates {
		if domain.FinitePositive(p) {
			return p, true
		}
	}
	return 0, false
}

// GetAggregates fetches OHLCV buckets. from/to are instants; the provider
// receives epoch milliseconds so intraday windows stay exact.
func (c *Client) GetAggregates(ctx context.Context, symbol string, multiplier int, timespan string, from, to time.Time) ([]domain.Bar, error) {
	if c.skip.Contains(symbol) {
		return nil, &NotFoundError{Symbol: symbol}
	}

	cacheKey := fmt.Sprintf("aggs:%s:%d:%s:%d:%d", symbol, multiplier, timespan, from.UnixMilli(), to.UnixMilli())
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]domain.Bar), nil
	}

	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "asc")
	params.Set("limit", "5000")
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%d/%d", symbol, multiplier, timespan, from.UnixMilli(), to.UnixMilli())

	var resp aggsResponse
	if err := c.getJSON(ctx, "aggregates", c.buildURL(path, params), &resp); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, c.notFound(symbol)
		}
		return nil, err
	}

	if resp.ResultsCount > 0 && len(resp.Results) == 0 {
		return nil, &domain.ValidationError{Field: "results", Reason: "count/payload mismatch"}
	}

	tf := timeframeFor(multiplier, timespan)
	dur := aggDuration(multiplier, timespan)
	bars := make([]domain.Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		start := time.UnixMilli(r.TimestampMS).UTC()
		b := domain.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			Start:     start,
			End:       start.Add(dur),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			VWAP:      r.VWAP,
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bar at %s: %w", start.Format(time.RFC3339), err)
		}
		bars = append(bars, b)
	}

	ttl := c.cfg.IntradayTTL
	if timespan == "day" {
		ttl = c.cfg.DailyTTL
	}
	c.cache.Set(cacheKey, bars, ttl)
	return bars, nil
}

func timeframeFor(multiplier int, timespan string) domain.Timeframe {
	switch {
	case timespan == "minute" && multiplier == 60:
		return domain.Timeframe60m
	case timespan == "minute" && multiplier == 240:
		return domain.Timeframe240m
	case timespan == "minute" && multiplier == 720:
		return domain.Timeframe720m
	case timespan == "day" && multiplier == 1:
		return domain.TimeframeDay
	}
	return domain.Timeframe(fmt.Sprintf("%d%s", multiplier, timespan))
}

func aggDuration(multiplier int, timespan string) time.Duration {
	switch timespan {
	case "minute":
		return time.Duration(multiplier) * time.Minute
	case "hour":
		return time.Duration(multiplier) * time.Hour
	case "day":
		return time.Duration(multiplier) * 24 * time.Hour
	}
	return time.Minute
}

// GetOptionChainSnapshot returns every contract in the underlying's chain,
// following pagination. Malformed contracts are skipped individually.
func (c *Client) GetOptionChainSnapshot(ctx context.Context, underlying string) ([]domain.ContractSnapshot, error) {
	if c.skip.Contains(underlying) {
		return nil, &NotFoundError{Symbol: underlying}
	}

	cacheKey := "chain:" + underlying
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]domain.ContractSnapshot), nil
	}

	params := url.Values{}
	params.Set("limit", "250")
	nextURL := c.buildURL("/v3/snapshot/options/"+underlying, params)

	var contracts []domain.ContractSnapshot
	skipped := 0
	for page := 0; page < c.cfg.MaxChainPages && nextURL != ""; page++ {
		var resp chainResponse
		if err := c.getJSON(ctx, "chain", nextURL, &resp); err != nil {
			if errors.Is(err, errStatusNotFound) {
				return nil, c.notFound(underlying)
			}
			return nil, err
		}

		for _, raw := range resp.Results {
			snap, err := c.convertContract(underlying, raw)
			if err != nil {
				skipped++
				log.Debug().Str("component", "polygon").Str("underlying", underlying).
					Str("contract", raw.Details.Ticker).Err(err).Msg("Skipping malformed contract")
				continue
			}
			contracts = append(contracts, snap)
		}

		nextURL = ""
		if resp.NextURL != "" {
			nextURL = resp.NextURL + "&apiKey=" + url.QueryEscape(c.cfg.APIKey)
		}
	}

	if skipped > 0 {
		log.Debug().Str("component", "polygon").Str("underlying", underlying).
			Int("skipped", skipped).Int("kept", len(contracts)).Msg("Chain snapshot validation")
	}

	c.cache.Set(cacheKey, contracts, c.cfg.SnapshotTTL)
	return contracts, nil
}

func (c *Client) convertContract(underlying string, raw contractSnap) (domain.ContractSnapshot, error) {
	kind := domain.KindFromTicker(raw.Details.Ticker)
	switch strings.ToLower(raw.Details.ContractType) {
	case "call":
		kind = domain.Call
	case "put":
		kind = domain.Put
	}

	snap := domain.ContractSnapshot{
		Ticker:       raw.Details.Ticker,
		Underlying:   underlying,
		Kind:         kind,
		Strike:       raw.Details.StrikePrice,
		Expiration:   raw.Details.ExpirationDate,
		DayVolume:    int64(raw.Day.Volume),
		DayClose:     raw.Day.Close,
		DayOpen:      raw.Day.Open,
		DayHigh:      raw.Day.High,
		DayLow:       raw.Day.Low,
		OpenInterest: int64(raw.OpenInterest),
		IV:           raw.ImpliedVolatility,
		AsOf:         c.clock.Now().UTC(),
	}
	if raw.LastTrade != nil {
		snap.LastPrice = raw.LastTrade.Price
	}
	if raw.LastQuote != nil {
		snap.Bid = raw.LastQuote.Bid
		snap.Ask = raw.LastQuote.Ask
		snap.BidSize = int64(raw.LastQuote.BidSize)
		snap.AskSize = int64(raw.LastQuote.AskSize)
	}
	if raw.Greeks != nil {
		snap.Delta = raw.Greeks.Delta
		snap.Gamma = raw.Greeks.Gamma
		snap.Theta = raw.Greeks.Theta
		snap.Vega = raw.Greeks.Vega
	}
	if raw.UnderlyingAsset != nil {
		snap.UnderlyingPrice = raw.UnderlyingAsset.Price
	}
	if snap.Expiration == "" {
		return snap, &domain.ValidationError{Field: "expiration_date", Reason: "empty"}
	}
	if err := snap.Validate(); err != nil {
		return snap, err
	}
	return snap, nil
}

// GetStockTrades returns prints for symbol at or after since. Malformed
// prints are dropped individually.
func (c *Client) GetStockTrades(ctx context.Context, symbol string, since time.Time) ([]domain.Trade, error) {
	if c.skip.Contains(symbol) {
		return nil, &NotFoundError{Symbol: symbol}
	}

	params := url.Values{}
	params.Set("timestamp.gte", fmt.Sprintf("%d", since.UnixNano()))
	params.Set("limit", "1000")
	params.Set("sort", "timestamp")

	var resp tradesResponse
	u := c.buildURL("/v3/trades/"+symbol, params)
	if err := c.getJSON(ctx, "trades", u, &resp); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, c.notFound(symbol)
		}
		return nil, err
	}

	trades := make([]domain.Trade, 0, len(resp.Results))
	for _, r := range resp.Results {
		t := domain.Trade{
			Symbol:    symbol,
			Price:     r.Price,
			Size:      int64(r.Size),
			Timestamp: time.Unix(0, r.SIPTimestamp).UTC(),
			Exchange:  r.Exchange,
		}
		if err := t.Validate(); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// GetMarketTickers lists every ticker in the full-market stock snapshot.
// Used once at startup for ALL_MARKET watchlists.
func (c *Client) GetMarketTickers(ctx context.Context) ([]string, error) {
	const cacheKey = "market:tickers"
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]string), nil
	}

	var resp stockSnapshotResponse
	u := c.buildURL("/v2/snapshot/locale/us/markets/stocks/tickers", nil)
	if err := c.getJSON(ctx, "market", u, &resp); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		if t.Ticker != "" {
			symbols = append(symbols, t.Ticker)
		}
	}
	c.cache.Set(cacheKey, symbols, c.cfg.DailyTTL)
	return symbols, nil
}
