package alerts

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
)

// Discord embed hard limits.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxColor       = 0xFFFFFF
)

// Embed colors per signal mood.
const (
	colorBull    = 0x2ECC71
	colorBear    = 0xE74C3C
	colorNeutral = 0x95A5A6
	colorWhale   = 0xF1C40F
)

// placeholder renders where a number could not be sanitized. Never a
// literal "None" or "nan".
const placeholder = "—"

// Embed is one Discord-style rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small text under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// fmtUSD formats a dollar amount with thousands grouping, or the
// placeholder for unusable values.
func fmtUSD(v float64) string {
	if !domain.IsFinite(v) {
		return placeholder
	}
	if math.Abs(v) >= 1_000_000 {
		return fmt.Sprintf("$%.2fM", v/1_000_000)
	}
	if math.Abs(v) >= 1_000 {
		return fmt.Sprintf("$%.1fK", v/1_000)
	}
	return fmt.Sprintf("$%.2f", v)
}

// fmtFloat renders to two decimals, placeholder on NaN/Inf.
func fmtFloat(v float64) string {
	if !domain.IsFinite(v) {
		return placeholder
	}
	return fmt.Sprintf("%.2f", v)
}

func fmtPct(v float64) string {
	if !domain.IsFinite(v) {
		return placeholder
	}
	return fmt.Sprintf("%.2f%%", v)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// sanitize enforces the embed limits in place: clipped strings, clamped
// color, elided empty fields, at most 25 fields.
func (e *Embed) sanitize() {
	e.Title = clip(e.Title, maxTitle)
	e.Description = clip(e.Description, maxDescription)
	if e.Color < 0 || e.Color > maxColor {
		e.Color = colorNeutral
	}
	kept := e.Fields[:0]
	for _, f := range e.Fields {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		f.Name = clip(f.Name, maxFieldName)
		f.Value = clip(f.Value, maxFieldValue)
		kept = append(kept, f)
		if len(kept) == maxFields {
			break
		}
	}
	e.Fields = kept
}

// FlowEmbed renders a flow event as an alert embed.
func FlowEmbed(e domain.FlowEvent, score int, label string) Embed {
	color := colorBull
	if e.Kind == domain.Put {
		color = colorBear
	}
	if label == "WHALE" {
		color = colorWhale
	}

	emb := Embed{
		Title: fmt.Sprintf("%s %s %s $%s %s", label, e.Underlying, e.Kind, fmtFloat(e.Strike), e.Expiration),
		Description: fmt.Sprintf("%s premium swept at the %s (%s intensity)",
			fmtUSD(e.PremiumUSD), strings.ToLower(string(e.ExecutionSide)), strings.ToLower(string(e.Intensity))),
		Color:     color,
		Timestamp: e.ObservedAt.UTC().Format(time.RFC3339),
		Fields: []EmbedField{
			{Name: "Premium", Value: fmtUSD(e.PremiumUSD), Inline: true},
			{Name: "Volume Δ", Value: fmt.Sprintf("%d", e.VolumeDelta), Inline: true},
			{Name: "Vol/OI", Value: fmtFloat(e.VolOIRatio), Inline: true},
			{Name: "Last", Value: fmtUSD(e.LastPrice), Inline: true},
			{Name: "Bid/Ask", Value: fmtFloat(e.Bid) + " / " + fmtFloat(e.Ask), Inline: true},
			{Name: "Spot", Value: fmtUSD(e.UnderlyingPrice), Inline: true},
			{Name: "Delta", Value: fmtFloat(e.Delta), Inline: true},
			{Name: "IV", Value: fmtPct(e.IV * 100), Inline: true},
			{Name: "Score", Value: fmt.Sprintf("%d/100", score), Inline: true},
		},
		Footer: &EmbedFooter{Text: e.ContractTicker},
	}
	emb.sanitize()
	return emb
}

// PatternEmbed renders a pattern detection as an alert embed.
func PatternEmbed(rec domain.PatternRecord) Embed {
	color := colorBull
	if rec.Direction == domain.Put {
		color = colorBear
	}

	emb := Embed{
		Title: fmt.Sprintf("%s %s %s → %s", rec.Symbol, rec.Pattern, rec.Timeframe, rec.Direction),
		Description: fmt.Sprintf("Pattern completed on the bar starting %s",
			rec.CompletionBarStart.UTC().Format("2006-01-02 15:04 MST")),
		Color:     color,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields: []EmbedField{
			{Name: "Entry", Value: fmtUSD(rec.Entry), Inline: true},
			{Name: "Target", Value: fmtUSD(rec.Target), Inline: true},
			{Name: "Stop", Value: fmtUSD(rec.Stop), Inline: true},
			{Name: "Confidence", Value: fmtPct(rec.Confidence * 100), Inline: true},
		},
	}
	emb.sanitize()
	return emb
}

// BlockEmbed renders a block print as an alert embed.
func BlockEmbed(t domain.Trade) Embed {
	emb := Embed{
		Title:       fmt.Sprintf("BLOCK %s %d @ %s", t.Symbol, t.Size, fmtUSD(t.Price)),
		Description: fmt.Sprintf("Single print, %s notional", fmtUSD(t.Notional())),
		Color:       colorNeutral,
		Timestamp:   t.Timestamp.UTC().Format(time.RFC3339),
	}
	emb.sanitize()
	return emb
}
