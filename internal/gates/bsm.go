package gates

import (
	"math"

	"github.com/oraklabs/oraklscan/internal/domain"
)

// normCDF is the standard normal cumulative distribution.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ProbITM estimates the risk-neutral probability the contract expires in
// the money, N(d2) for calls and N(-d2) for puts, with the rate term
// dropped. Returns 0 when the inputs cannot support the model.
func ProbITM(spot, strike, iv float64, dteDays int, kind domain.OptionKind) float64 {
	if spot <= 0 || strike <= 0 || iv <= 0 || dteDays <= 0 {
		return 0
	}
	t := float64(dteDays) / 365
	d2 := (math.Log(spot/strike) - iv*iv/2*t) / (iv * math.Sqrt(t))
	if !domain.IsFinite(d2) {
		return 0
	}
	if kind == domain.Put {
		return normCDF(-d2)
	}
	return normCDF(d2)
}

// ExpectedMove is the one-standard-deviation forecast range over the given
// horizon: spot · IV · √(days/365).
func ExpectedMove(spot, iv float64, days int) float64 {
	if spot <= 0 || iv <= 0 || days <= 0 {
		return 0
	}
	return spot * iv * math.Sqrt(float64(days)/365)
}
