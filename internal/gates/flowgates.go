package gates

import (
	"math"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// FlowCascade filters one flow event. now supplies the DTE reference date.
type FlowCascade interface {
	Name() string
	Evaluate(e domain.FlowEvent, now time.Time) Outcome
}

// sanitize runs the shared fail-closed prechecks every flow cascade needs:
// finite premium, a parsable expiration, a usable kind. Returns the DTE.
func sanitize(ev *evaluator, e domain.FlowEvent, now time.Time) (int, bool) {
	if !domain.IsFinite(e.PremiumUSD) || !domain.IsFinite(e.LastPrice) {
		ev.fail("sanitize", "non-finite premium or price")
		return 0, false
	}
	if e.Kind != domain.Call && e.Kind != domain.Put {
		ev.fail("sanitize", "unknown contract kind")
		return 0, false
	}
	c := domain.ContractSnapshot{Expiration: e.Expiration}
	dte, err := c.DTE(now, timeutil.ET())
	if err != nil {
		ev.fail("sanitize", "unparsable expiration "+e.Expiration)
		return 0, false
	}
	return dte, true
}

// GoldenConfig tunes the golden sweep cascade.
type GoldenConfig struct {
	MinPremium       float64
	MaxStrikeDistPct float64
	MinDTE, MaxDTE   int
}

// DefaultGoldenConfig: $1M+ premium at the ask, near the money, inside 180
// days.
func DefaultGoldenConfig() GoldenConfig {
	return GoldenConfig{MinPremium: 1_000_000, MaxStrikeDistPct: 0.05, MinDTE: 1, MaxDTE: 180}
}

// GoldenSweep keeps only large marketable prints close to the money.
type GoldenSweep struct {
	cfg GoldenConfig
}

func NewGoldenSweep(cfg GoldenConfig) *GoldenSweep { return &GoldenSweep{cfg: cfg} }

func (g *GoldenSweep) Name() string { return "golden_sweep" }

func (g *GoldenSweep) Evaluate(e domain.FlowEvent, now time.Time) Outcome {
	ev := newEvaluator()
	dte, ok := sanitize(ev, e, now)
	if !ok {
		return ev.result()
	}

	ev.check("premium", e.PremiumUSD >= g.cfg.MinPremium, e.PremiumUSD, g.cfg.MinPremium)

	if e.UnderlyingPrice <= 0 {
		ev.fail("strike_distance", "no underlying price")
		return ev.result()
	}
	dist := math.Abs(e.Strike-e.UnderlyingPrice) / e.UnderlyingPrice
	ev.check("strike_distance", dist <= g.cfg.MaxStrikeDistPct, dist, g.cfg.MaxStrikeDistPct)
	ev.check("dte", dte >= g.cfg.MinDTE && dte <= g.cfg.MaxDTE, dte, [2]int{g.cfg.MinDTE, g.cfg.MaxDTE})
	ev.check("execution_side", e.ExecutionSide == domain.SideAsk, string(e.ExecutionSide), string(domain.SideAsk))
	return ev.result()
}

// BullseyeConfig tunes the institutional swing cascade.
type BullseyeConfig struct {
	MinPremium         float64
	MinOpenInterest    int64
	MaxSpreadPct       float64
	DeltaMin, DeltaMax float64
	MinDTE, MaxDTE     int
	MinVolumeDelta     int64
	MinVolOIRatio      float64
	MinITMProbability  float64
	ExpectedMoveDays   int
}

// DefaultBullseyeConfig: the short-dated institutional swing profile.
func DefaultBullseyeConfig() BullseyeConfig {
	return BullseyeConfig{
		MinPremium:        500_000,
		MinOpenInterest:   10_000,
		MaxSpreadPct:      5,
		DeltaMin:          0.35,
		DeltaMax:          0.65,
		MinDTE:            1,
		MaxDTE:            5,
		MinVolumeDelta:    2_500,
		MinVolOIRatio:     0.8,
		MinITMProbability: 0.35,
		ExpectedMoveDays:  5,
	}
}

// Bullseye keeps swing-sized conviction flow: liquid chains, balanced
// delta, strike inside the expected move, and a real chance of finishing
// in the money.
type Bullseye struct {
	cfg BullseyeConfig
}

func NewBullseye(cfg BullseyeConfig) *Bullseye { return &Bullseye{cfg: cfg} }

func (b *Bullseye) Name() string { return "bullseye" }

func (b *Bullseye) Evaluate(e domain.FlowEvent, now time.Time) Outcome {
	ev := newEvaluator()
	dte, ok := sanitize(ev, e, now)
	if !ok {
		return ev.result()
	}

	ev.check("premium", e.PremiumUSD >= b.cfg.MinPremium, e.PremiumUSD, b.cfg.MinPremium)
	ev.check("open_interest", e.OpenInterest >= b.cfg.MinOpenInterest, e.OpenInterest, b.cfg.MinOpenInterest)

	spread := spreadPct(e)
	ev.check("spread_pct", spread >= 0 && spread <= b.cfg.MaxSpreadPct, spread, b.cfg.MaxSpreadPct)

	absDelta := math.Abs(e.Delta)
	ev.check("delta", absDelta >= b.cfg.DeltaMin && absDelta <= b.cfg.DeltaMax, absDelta, [2]float64{b.cfg.DeltaMin, b.cfg.DeltaMax})
	ev.check("dte", dte >= b.cfg.MinDTE && dte <= b.cfg.MaxDTE, dte, [2]int{b.cfg.MinDTE, b.cfg.MaxDTE})
	ev.check("volume_delta", e.VolumeDelta >= b.cfg.MinVolumeDelta, e.VolumeDelta, b.cfg.MinVolumeDelta)
	ev.check("vol_oi_ratio", e.VolOIRatio >= b.cfg.MinVolOIRatio, e.VolOIRatio, b.cfg.MinVolOIRatio)

	prob := ProbITM(e.UnderlyingPrice, e.Strike, e.IV, dte, e.Kind)
	ev.check("itm_probability", prob >= b.cfg.MinITMProbability, prob, b.cfg.MinITMProbability)

	move := ExpectedMove(e.UnderlyingPrice, e.IV, b.cfg.ExpectedMoveDays)
	dist := math.Abs(e.Strike - e.UnderlyingPrice)
	ev.check("expected_move", move > 0 && dist <= move, dist, move)
	return ev.result()
}

// ScalpConfig tunes the scalp cascade.
type ScalpConfig struct {
	MinPremium     float64
	MinDTE, MaxDTE int
}

// DefaultScalpConfig: anything short-dated with real money behind it.
func DefaultScalpConfig() ScalpConfig {
	return ScalpConfig{MinPremium: 2_000, MinDTE: 0, MaxDTE: 7}
}

// Scalp keeps small fast short-dated flow.
type Scalp struct {
	cfg ScalpConfig
}

func NewScalp(cfg ScalpConfig) *Scalp { return &Scalp{cfg: cfg} }

func (s *Scalp) Name() string { return "scalp" }

func (s *Scalp) Evaluate(e domain.FlowEvent, now time.Time) Outcome {
	ev := newEvaluator()
	dte, ok := sanitize(ev, e, now)
	if !ok {
		return ev.result()
	}
	ev.check("dte", dte >= s.cfg.MinDTE && dte <= s.cfg.MaxDTE, dte, [2]int{s.cfg.MinDTE, s.cfg.MaxDTE})
	ev.check("premium", e.PremiumUSD >= s.cfg.MinPremium, e.PremiumUSD, s.cfg.MinPremium)
	return ev.result()
}

// GeneralFlowConfig tunes the broad flow cascade.
type GeneralFlowConfig struct {
	MinPremium     float64
	MinDTE, MaxDTE int
}

// DefaultGeneralFlowConfig: the catch-all feed.
func DefaultGeneralFlowConfig() GeneralFlowConfig {
	return GeneralFlowConfig{MinPremium: 10_000, MinDTE: 1, MaxDTE: 45}
}

// GeneralFlow is the broad unusual-activity feed.
type GeneralFlow struct {
	cfg GeneralFlowConfig
}

func NewGeneralFlow(cfg GeneralFlowConfig) *GeneralFlow { return &GeneralFlow{cfg: cfg} }

func (g *GeneralFlow) Name() string { return "general_flow" }

func (g *GeneralFlow) Evaluate(e domain.FlowEvent, now time.Time) Outcome {
	ev := newEvaluator()
	dte, ok := sanitize(ev, e, now)
	if !ok {
		return ev.result()
	}
	ev.check("premium", e.PremiumUSD >= g.cfg.MinPremium, e.PremiumUSD, g.cfg.MinPremium)
	ev.check("dte", dte >= g.cfg.MinDTE && dte <= g.cfg.MaxDTE, dte, [2]int{g.cfg.MinDTE, g.cfg.MaxDTE})
	return ev.result()
}

func spreadPct(e domain.FlowEvent) float64 {
	if e.Bid <= 0 || e.Ask <= 0 {
		return -1
	}
	mid := (e.Bid + e.Ask) / 2
	if mid <= 0 {
		return -1
	}
	return (e.Ask - e.Bid) / mid * 100
}
