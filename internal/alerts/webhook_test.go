package alerts

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraklabs/oraklscan/internal/domain"
)

func TestSinkPostsEmbedPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewSink(srv.Client(), "Golden")
	err := sink.Send(context.Background(), srv.URL, Embed{Title: "test", Color: 1})
	require.NoError(t, err)

	assert.Equal(t, "ORAKL Golden", got.Username)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "test", got.Embeds[0].Title)
}

func TestSinkRetriesOnceOn429(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("X-RateLimit-Reset-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewSink(srv.Client(), "Golden")
	err := sink.Send(context.Background(), srv.URL, Embed{Title: "retry"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSinkCountsFailuresWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var outcomes []bool
	sink := NewSink(srv.Client(), "Golden")
	sink.SetOutcomeCallback(func(ok bool) { outcomes = append(outcomes, ok) })

	err := sink.Send(context.Background(), srv.URL, Embed{Title: "bad"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-429 failures are not retried")
	assert.Equal(t, []bool{false}, outcomes)
}

func TestFlowEmbedSanitizesNaN(t *testing.T) {
	e := domain.FlowEvent{
		ContractTicker:  "O:AAPL261219C00200000",
		Underlying:      "AAPL",
		Kind:            domain.Call,
		Strike:          200,
		Expiration:      "2026-12-19",
		VolumeDelta:     1500,
		PremiumUSD:      1_050_000,
		LastPrice:       7,
		Bid:             math.NaN(),
		Ask:             math.Inf(1),
		VolOIRatio:      0.5,
		IV:              math.NaN(),
		Delta:           0.55,
		UnderlyingPrice: 198.50,
		ExecutionSide:   domain.SideAsk,
		Intensity:       domain.IntensityAggressive,
		ObservedAt:      time.Date(2025, 10, 22, 14, 0, 0, 0, time.UTC),
	}

	emb := FlowEmbed(e, 90, "WHALE")
	raw, err := json.Marshal(emb)
	require.NoError(t, err)

	body := string(raw)
	for _, banned := range []string{"NaN", "Inf", "None", "nan", "null"} {
		assert.NotContains(t, body, banned)
	}
	assert.Contains(t, body, placeholder)
}

func TestEmbedLimits(t *testing.T) {
	fields := make([]EmbedField, 40)
	for i := range fields {
		fields[i] = EmbedField{Name: strings.Repeat("n", 300), Value: strings.Repeat("v", 2000)}
	}
	// Interleave empties that must be elided.
	fields[3] = EmbedField{Name: "x", Value: "  "}
	fields[7] = EmbedField{Name: "", Value: "y"}

	e := Embed{
		Title:       strings.Repeat("t", 400),
		Description: strings.Repeat("d", 5000),
		Color:       0x2000000,
		Fields:      fields,
	}
	e.sanitize()

	assert.LessOrEqual(t, len(e.Title), maxTitle)
	assert.LessOrEqual(t, len(e.Description), maxDescription)
	assert.LessOrEqual(t, len(e.Fields), maxFields)
	assert.LessOrEqual(t, e.Color, maxColor)
	for _, f := range e.Fields {
		assert.LessOrEqual(t, len(f.Name), maxFieldName)
		assert.LessOrEqual(t, len(f.Value), maxFieldValue)
		assert.NotEmpty(t, strings.TrimSpace(f.Value))
	}
}

func TestPatternEmbed(t *testing.T) {
	rec := domain.PatternRecord{
		Symbol:             "AAPL",
		Pattern:            domain.Pattern322,
		Timeframe:          domain.Timeframe60m,
		CompletionBarStart: time.Date(2025, 10, 22, 14, 0, 0, 0, time.UTC),
		Direction:          domain.Call,
		Entry:              450, Stop: 449, Target: 456,
		Confidence: 0.72,
	}
	emb := PatternEmbed(rec)
	assert.Contains(t, emb.Title, "AAPL")
	assert.Contains(t, emb.Title, "3-2-2")
	assert.Equal(t, colorBull, emb.Color)
	require.Len(t, emb.Fields, 4)
}
