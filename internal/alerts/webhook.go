package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Doer is the HTTP client slice the sink needs; *http.Client satisfies it.
// The sink deliberately does not ride the provider pool: webhook POSTs
// cannot be replayed by a generic retry loop, and chat latency must not
// consume provider connections.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// payload is the webhook body: one embed per post.
type payload struct {
	Embeds   []Embed `json:"embeds"`
	Username string  `json:"username"`
}

// Sink posts embeds to a chat webhook. Delivery failures are counted, never
// retried beyond the one rate-limit retry, and never block scanning.
type Sink struct {
	client  Doer
	botName string

	onOutcome func(ok bool)
}

// NewSink builds a sink. client nil gets a 10s-timeout default. botName
// appears as "ORAKL <botName>" in the chat.
func NewSink(client Doer, botName string) *Sink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sink{client: client, botName: botName}
}

// SetOutcomeCallback registers the telemetry hook for webhook results.
func (s *Sink) SetOutcomeCallback(cb func(ok bool)) {
	s.onOutcome = cb
}

// Send posts one embed to url. A 429 waits for the server-indicated reset
// and retries once; any other non-2xx is a counted failure.
func (s *Sink) Send(ctx context.Context, url string, embed Embed) error {
	err := s.post(ctx, url, embed, true)
	if s.onOutcome != nil {
		s.onOutcome(err == nil)
	}
	if err != nil {
		log.Warn().Str("component", "webhook").Err(err).Msg("Webhook delivery failed")
	}
	return err
}

func (s *Sink) post(ctx context.Context, url string, embed Embed, allowRetry bool) error {
	body, err := json.Marshal(payload{
		Embeds:   []Embed{embed},
		Username: "ORAKL " + s.botName,
	})
	if err != nil {
		return fmt.Errorf("marshal embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests && allowRetry:
		wait := resetAfter(resp)
		log.Debug().Str("component", "webhook").Dur("wait", wait).Msg("Webhook rate limited, retrying once")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		return s.post(ctx, url, embed, false)
	default:
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
}

// resetAfter reads X-RateLimit-Reset-After (seconds, possibly fractional);
// one second when absent or unparsable.
func resetAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("X-RateLimit-Reset-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}
