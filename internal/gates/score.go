package gates

import (
	"sync"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// Score labels.
const (
	LabelWhale         = "WHALE"
	LabelInstitutional = "INSTITUTIONAL"
	LabelSignificant   = "SIGNIFICANT"
	LabelNotable       = "NOTABLE"

	whalePremium = 5_000_000
)

// Scorer computes the 0-100 institutional score. It tracks how often each
// contract has fired during the current ET session for the repeat-activity
// component; the counter resets at date rollover like the dedup store.
type Scorer struct {
	clock timeutil.Clock

	mu        sync.Mutex
	repeats   map[string]int
	resetDate string
}

// NewScorer builds a scorer. clock may be nil for wall time.
func NewScorer(clock timeutil.Clock) *Scorer {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Scorer{
		clock:     clock,
		repeats:   make(map[string]int),
		resetDate: timeutil.TradingDate(clock.Now()),
	}
}

// Score returns the additive institutional score and its qualitative label.
// Components: premium tier (35), execution aggressiveness (25), volume/OI
// dynamics (20), catalyst proxy (10), repeat activity (10). Calling Score
// records the event for future repeat counting.
func (s *Scorer) Score(e domain.FlowEvent, dte int) (int, string) {
	repeats := s.bumpRepeat(e.ContractTicker)

	score := premiumTier(e.PremiumUSD) +
		aggressiveness(e) +
		volumeDynamics(e) +
		catalyst(e, dte) +
		repeatPoints(repeats)

	label := LabelNotable
	switch {
	case e.PremiumUSD >= whalePremium:
		label = LabelWhale
	case score >= 80:
		label = LabelInstitutional
	case score >= 60:
		label = LabelSignificant
	}
	return score, label
}

func (s *Scorer) bumpRepeat(ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := timeutil.TradingDate(s.clock.Now())
	if today != s.resetDate {
		s.repeats = make(map[string]int)
		s.resetDate = today
	}
	prior := s.repeats[ticker]
	s.repeats[ticker] = prior + 1
	return prior
}

func premiumTier(premium float64) int {
	switch {
	case premium >= whalePremium:
		return 35
	case premium >= 1_000_000:
		return 28
	case premium >= 500_000:
		return 20
	case premium >= 100_000:
		return 12
	default:
		return 5
	}
}

func aggressiveness(e domain.FlowEvent) int {
	switch {
	case e.ExecutionSide == domain.SideAsk && e.Intensity == domain.IntensityAggressive:
		return 25
	case e.ExecutionSide == domain.SideAsk:
		return 18
	case e.ExecutionSide == domain.SideMid:
		return 10
	default:
		return 5
	}
}

func volumeDynamics(e domain.FlowEvent) int {
	switch {
	case e.VolOIRatio >= 1.0:
		return 20
	case e.VolOIRatio >= 0.5:
		return 15
	case e.VolOIRatio >= 0.2:
		return 10
	default:
		return 4
	}
}

// catalyst is a proxy for event-driven positioning: aggressive short-dated
// buying usually fronts a known date.
func catalyst(e domain.FlowEvent, dte int) int {
	switch {
	case dte <= 7 && e.ExecutionSide == domain.SideAsk:
		return 10
	case dte <= 30:
		return 5
	default:
		return 0
	}
}

func repeatPoints(prior int) int {
	switch {
	case prior >= 3:
		return 10
	case prior >= 1:
		return 5
	default:
		return 0
	}
}

// DTEOf resolves the event's days to expiration against now; -1 on a bad
// expiration string (which sanitize upstream should have caught).
func DTEOf(e domain.FlowEvent, now time.Time) int {
	c := domain.ContractSnapshot{Expiration: e.Expiration}
	dte, err := c.DTE(now, timeutil.ET())
	if err != nil {
		return -1
	}
	return dte
}
