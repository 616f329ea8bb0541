package scan

import (
	"context"
	"errors"
	"time"

	"github.com/oraklabs/oraklscan/internal/alerts"
	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/flow"
	"github.com/oraklabs/oraklscan/internal/gates"
	"github.com/oraklabs/oraklscan/internal/providers/polygon"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// FlowStrategy diffs option-chain snapshots and alerts on flow events that
// clear its cascade. One instance per flow-based bot (golden, bullseye,
// scalp, general flow), each with its own thresholds and webhook.
type FlowStrategy struct {
	name       string
	detector   *flow.Detector
	thresholds flow.Thresholds
	cascade    gates.FlowCascade
	scorer     *gates.Scorer
	dedup      *alerts.DedupStore
	sink       *alerts.Sink
	webhookURL string
	clock      timeutil.Clock
}

// NewFlowStrategy wires one flow bot.
func NewFlowStrategy(name string, detector *flow.Detector, th flow.Thresholds, cascade gates.FlowCascade,
	scorer *gates.Scorer, dedup *alerts.DedupStore, sink *alerts.Sink, webhookURL string, clock timeutil.Clock) *FlowStrategy {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &FlowStrategy{
		name:       name,
		detector:   detector,
		thresholds: th,
		cascade:    cascade,
		scorer:     scorer,
		dedup:      dedup,
		sink:       sink,
		webhookURL: webhookURL,
		clock:      clock,
	}
}

func (s *FlowStrategy) Name() string { return s.name }

// ScanSymbol runs one flow scan: detect, filter, score, dedup, post.
// A sticky 404 is terminal for the symbol but not an error for the cycle.
func (s *FlowStrategy) ScanSymbol(ctx context.Context, symbol string) (SymbolResult, error) {
	var res SymbolResult

	events, err := s.detector.Scan(ctx, symbol, s.thresholds)
	if err != nil {
		if errors.Is(err, polygon.ErrNotFound) {
			res.Skips = append(res.Skips, Skip{Symbol: symbol, Reason: "symbol not found (skip list)"})
			return res, nil
		}
		return res, err
	}

	now := s.clock.Now()
	for _, e := range events {
		out := s.cascade.Evaluate(e, now)
		if !out.Keep {
			res.Skips = append(res.Skips, Skip{Symbol: symbol, Reason: out.SkipReason})
			continue
		}
		res.Signals++

		if !s.dedup.AllowFlow(ctx, e.CooldownKey()) {
			continue
		}

		score, label := s.scorer.Score(e, gates.DTEOf(e, now))
		embed := alerts.FlowEmbed(e, score, label)
		if err := s.sink.Send(ctx, s.webhookURL, embed); err == nil {
			res.Alerts++
		}
	}
	return res, nil
}

// BlockStrategy watches equity prints for institutional-size blocks.
type BlockStrategy struct {
	name     string
	fetcher  TradesFetcher
	filter   *gates.BlockTrade
	dedup    *alerts.DedupStore
	sink     *alerts.Sink
	webhook  string
	clock    timeutil.Clock
	lookback time.Duration
}

// TradesFetcher is the provider slice the block strategy needs.
type TradesFetcher interface {
	GetStockTrades(ctx context.Context, symbol string, since time.Time) ([]domain.Trade, error)
}

// NewBlockStrategy wires the block-trade bot.
func NewBlockStrategy(name string, fetcher TradesFetcher, filter *gates.BlockTrade,
	dedup *alerts.DedupStore, sink *alerts.Sink, webhookURL string, lookback time.Duration, clock timeutil.Clock) *BlockStrategy {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if lookback <= 0 {
		lookback = time.Minute
	}
	return &BlockStrategy{
		name:     name,
		fetcher:  fetcher,
		filter:   filter,
		dedup:    dedup,
		sink:     sink,
		webhook:  webhookURL,
		clock:    clock,
		lookback: lookback,
	}
}

func (s *BlockStrategy) Name() string { return s.name }

func (s *BlockStrategy) ScanSymbol(ctx context.Context, symbol string) (SymbolResult, error) {
	var res SymbolResult

	since := s.clock.Now().Add(-s.lookback)
	trades, err := s.fetcher.GetStockTrades(ctx, symbol, since)
	if err != nil {
		if errors.Is(err, polygon.ErrNotFound) {
			res.Skips = append(res.Skips, Skip{Symbol: symbol, Reason: "symbol not found (skip list)"})
			return res, nil
		}
		return res, err
	}

	for _, t := range trades {
		out := s.filter.Evaluate(t)
		if !out.Keep {
			continue
		}
		res.Signals++

		// one block alert per symbol per cooldown window
		key := "block|" + symbol
		if !s.dedup.AllowFlow(ctx, key) {
			continue
		}
		if err := s.sink.Send(ctx, s.webhook, alerts.BlockEmbed(t)); err == nil {
			res.Alerts++
		}
	}
	return res, nil
}
