package strat

import (
	"testing"

	"github.com/oraklabs/oraklscan/internal/domain"
)

func flatHistory(n int, price, vol float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Open: price, High: price * 1.02, Low: price * 0.98, Close: price * 1.015,
			Volume: vol,
		}
	}
	return bars
}

func TestConfidenceStaysInBand(t *testing.T) {
	cases := []struct {
		name    string
		history []domain.Bar
		dir     domain.OptionKind
	}{
		{"empty history", nil, domain.Call},
		{"single bar", flatHistory(1, 100, 1000), domain.Put},
		{"deep history call", flatHistory(60, 100, 1000), domain.Call},
		{"deep history put", flatHistory(60, 100, 1000), domain.Put},
		{"zero volume", flatHistory(30, 100, 0), domain.Call},
	}
	for _, tc := range cases {
		c := Confidence(tc.history, tc.dir, tc.history)
		if c < 0.40 || c > 0.95 {
			t.Errorf("%s: confidence %v outside [0.40, 0.95]", tc.name, c)
		}
	}
}

func TestConfidenceRewardsAlignedTrend(t *testing.T) {
	// Rising closes: EMA lags price, so close > EMA and CALL is aligned.
	history := make([]domain.Bar, 40)
	price := 100.0
	for i := range history {
		history[i] = domain.Bar{
			Open: price, High: price * 1.015, Low: price * 0.995, Close: price * 1.01,
			Volume: 1000,
		}
		price *= 1.01
	}
	refs := history[len(history)-3:]

	call := Confidence(history, domain.Call, refs)
	put := Confidence(history, domain.Put, refs)
	if call <= put {
		t.Errorf("aligned CALL %v not above misaligned PUT %v", call, put)
	}
}

func TestConfidencePenalizesWicks(t *testing.T) {
	history := flatHistory(40, 100, 1000)
	clean := []domain.Bar{
		{Open: 100, High: 104, Low: 99, Close: 103.5, Volume: 1000}, // body 3.5 / range 5
	}
	wicky := []domain.Bar{
		{Open: 100, High: 104, Low: 99, Close: 100.5, Volume: 1000}, // body 0.5 / range 5
	}
	if Confidence(history, domain.Call, clean) <= Confidence(history, domain.Call, wicky) {
		t.Error("wicky reference bar not penalized")
	}
}

func TestConfidenceVolumeFactor(t *testing.T) {
	base := flatHistory(30, 100, 1000)

	surge := append(append([]domain.Bar{}, base...), domain.Bar{
		Open: 100, High: 102, Low: 98, Close: 101.5, Volume: 5000,
	})
	quiet := append(append([]domain.Bar{}, base...), domain.Bar{
		Open: 100, High: 102, Low: 98, Close: 101.5, Volume: 10,
	})
	refs := []domain.Bar{{Open: 100, High: 102, Low: 98, Close: 101.5, Volume: 1000}}

	if Confidence(surge, domain.Call, refs) <= Confidence(quiet, domain.Call, refs) {
		t.Error("volume surge not rewarded over dead tape")
	}
}
