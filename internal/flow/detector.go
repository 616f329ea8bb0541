package flow

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// bootstrapCap bounds the assumed delta on the first sight of a contract or
// after a day-volume rollover, so an opening snapshot cannot fake a giant
// sweep.
const bootstrapCap = 5000

// Thresholds are the detector-level floors. MinVolOIRatio zero disables the
// ratio floor.
type Thresholds struct {
	MinPremium     float64
	MinVolumeDelta int64
	MinVolOIRatio  float64
}

// ChainFetcher is the provider slice the detector needs.
type ChainFetcher interface {
	GetOptionChainSnapshot(ctx context.Context, underlying string) ([]domain.ContractSnapshot, error)
}

// Detector turns consecutive chain snapshots into ranked flow events. The
// per-underlying mutex keeps the single-writer invariant on the volume cache
// even if two strategies share a symbol.
type Detector struct {
	fetcher ChainFetcher
	cache   *VolumeCache
	clock   timeutil.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDetector builds a detector over the shared fetcher and volume cache.
func NewDetector(fetcher ChainFetcher, cache *VolumeCache, clock timeutil.Clock) *Detector {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Detector{
		fetcher: fetcher,
		cache:   cache,
		clock:   clock,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (d *Detector) underlyingLock(underlying string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[underlying]
	if !ok {
		l = &sync.Mutex{}
		d.locks[underlying] = l
	}
	return l
}

// Scan diffs the current chain snapshot against the cached volumes and
// returns the events clearing the thresholds, sorted by premium descending.
// An empty snapshot returns no events and leaves the cache untouched.
func (d *Detector) Scan(ctx context.Context, underlying string, th Thresholds) ([]domain.FlowEvent, error) {
	lock := d.underlyingLock(underlying)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := d.fetcher.GetOptionChainSnapshot(ctx, underlying)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil
	}

	previous := d.cache.Get(underlying)
	observedAt := d.clock.Now().UTC()

	currentVols := make(map[string]int64, len(snapshot))
	var events []domain.FlowEvent

	for _, c := range snapshot {
		currentVols[c.Ticker] = c.DayVolume

		price, ok := usablePrice(c)
		if !ok {
			continue
		}

		delta, bootstrapped := volumeDelta(c.DayVolume, previous, c.Ticker)
		if delta <= 0 || delta < th.MinVolumeDelta {
			continue
		}

		var ratio float64
		if c.OpenInterest > 0 {
			ratio = float64(delta) / float64(c.OpenInterest)
		}
		if th.MinVolOIRatio > 0 && ratio < th.MinVolOIRatio {
			continue
		}

		premium := float64(delta) * price * 100
		if premium < th.MinPremium {
			continue
		}

		kind := c.Kind
		if kind != domain.Call && kind != domain.Put {
			kind = domain.KindFromTicker(c.Ticker)
		}

		events = append(events, domain.FlowEvent{
			ContractTicker:  c.Ticker,
			Underlying:      underlying,
			Kind:            kind,
			Strike:          c.Strike,
			Expiration:      c.Expiration,
			VolumeDelta:     delta,
			TotalVolume:     c.DayVolume,
			OpenInterest:    c.OpenInterest,
			VolOIRatio:      ratio,
			LastPrice:       price,
			Bid:             c.Bid,
			Ask:             c.Ask,
			BidSize:         c.BidSize,
			AskSize:         c.AskSize,
			PremiumUSD:      premium,
			IV:              c.IV,
			Delta:           c.Delta,
			Gamma:           c.Gamma,
			Theta:           c.Theta,
			Vega:            c.Vega,
			UnderlyingPrice: c.UnderlyingPrice,
			ExecutionSide:   executionSide(price, c.Bid, c.Ask),
			Intensity:       domain.IntensityFor(ratio),
			ObservedAt:      observedAt,
		})

		if bootstrapped {
			log.Debug().Str("component", "flow").Str("contract", c.Ticker).
				Int64("delta", delta).Msg("Bootstrapped volume delta")
		}
	}

	d.cache.Set(underlying, currentVols)

	sort.Slice(events, func(i, j int) bool {
		return events[i].PremiumUSD > events[j].PremiumUSD
	})
	return events, nil
}

// volumeDelta computes current minus previous day volume. Without a previous
// record the delta bootstraps to min(current, bootstrapCap); a negative
// difference means the provider's day counter reset and bootstraps the same
// way. An unchanged volume yields zero, which the caller drops: flow is
// change, not standing volume.
func volumeDelta(current int64, previous map[string]int64, ticker string) (int64, bool) {
	if previous != nil {
		if prev, ok := previous[ticker]; ok {
			delta := current - prev
			if delta >= 0 {
				return delta, false
			}
		}
	}
	if current < bootstrapCap {
		return current, true
	}
	return bootstrapCap, true
}

// usablePrice walks the fallback chain: day close, last trade, quote
// midpoint, bid, ask, then day open/high/low.
func usablePrice(c domain.ContractSnapshot) (float64, bool) {
	candidates := []float64{
		c.DayClose,
		c.LastPrice,
		c.Midpoint(),
		c.Bid,
		c.Ask,
		c.DayOpen,
		c.DayHigh,
		c.DayLow,
	}
	for _, p := range candidates {
		if domain.FinitePositive(p) {
			return p, true
		}
	}
	return 0, false
}

// executionSide classifies the print location against the quote. Quote-less
// contracts are UNKNOWN.
func executionSide(last, bid, ask float64) domain.ExecutionSide {
	if bid <= 0 || ask <= 0 {
		return domain.SideUnknown
	}
	if last >= ask*0.995 {
		return domain.SideAsk
	}
	if last <= bid*1.005 {
		return domain.SideBid
	}
	mid := (bid + ask) / 2
	if mid > 0 && math.Abs(last-mid)/mid <= 0.02 {
		return domain.SideMid
	}
	if math.Abs(last-ask) < math.Abs(last-bid) {
		return domain.SideAsk
	}
	return domain.SideBid
}
