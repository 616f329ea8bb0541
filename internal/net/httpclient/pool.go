package httpclient

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config tunes the shared provider HTTP pool.
type Config struct {
	MaxConcurrency  int
	RequestTimeout  time.Duration
	ConnectTimeout  time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	UserAgent       string
}

// DefaultConfig matches the provider envelope: 100 pooled connections,
// 30 per host, 5s connect, 30s total deadline, 3 retries.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  30,
		RequestTimeout:  30 * time.Second,
		ConnectTimeout:  5 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 30,
		MaxRetries:      3,
		BackoffBase:     time.Second,
		BackoffMax:      30 * time.Second,
		UserAgent:       "oraklscan/1.0",
	}
}

// Pool is a concurrency-bounded retrying HTTP client. Retries cover
// transient network errors, 5xx, and 429; 404 and other 4xx pass through to
// the caller untouched.
type Pool struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client

	mu    sync.RWMutex
	stats Stats
}

// Stats aggregates request outcomes. Latency percentiles are EMA
// approximations, good enough for the health endpoint.
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	SuccessRequests int64         `json:"success_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	RetriedRequests int64         `json:"retried_requests"`
	TotalLatency    time.Duration `json:"total_latency"`
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
}

// New builds a pool around a bounded transport.
func New(config Config) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 30
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Second
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = 30 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: config.ConnectTimeout,
	}

	return &Pool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: transport,
		},
	}
}

// Do executes the request with concurrency limiting and retries. The caller
// owns the response body on success.
func (p *Pool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.incrementStat("retried")
			select {
			case <-time.After(p.nextDelay(attempt, lastErr)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := p.client.Do(req.Clone(ctx))
		p.recordLatency(time.Since(start))

		if err != nil {
			lastErr = err
			if isRetryableError(err) && attempt < p.config.MaxRetries {
				log.Debug().
					Str("component", "httpclient").
					Str("url", req.URL.Path).
					Int("attempt", attempt+1).
					Err(err).
					Msg("Retrying request")
				continue
			}
			break
		}

		if isRetryableStatus(resp.StatusCode) && attempt < p.config.MaxRetries {
			lastErr = &StatusError{Code: resp.StatusCode, RetryAfter: retryAfter(resp)}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			continue
		}

		p.incrementStat("success")
		return resp, nil
	}

	p.incrementStat("failed")
	return nil, lastErr
}

// StatusError is the retry-loop error for a retryable HTTP status, carrying
// any server-indicated wait.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return "HTTP " + strconv.Itoa(e.Code)
}

// nextDelay prefers the server-indicated retry-after from a 429/503 over the
// computed exponential backoff.
func (p *Pool) nextDelay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*StatusError); ok && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	backoff := p.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > p.config.BackoffMax {
		backoff = p.config.BackoffMax
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// CloseIdleConnections releases pooled connections on shutdown.
func (p *Pool) CloseIdleConnections() {
	p.client.CloseIdleConnections()
}

func (p *Pool) incrementStat(kind string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalRequests++
	switch kind {
	case "success":
		p.stats.SuccessRequests++
	case "failed":
		p.stats.FailedRequests++
	case "retried":
		p.stats.RetriedRequests++
	}
}

func (p *Pool) recordLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalLatency += d
	if p.stats.P50Latency == 0 {
		p.stats.P50Latency = d
		p.stats.P95Latency = d
		return
	}

	const alpha = 0.1
	p.stats.P50Latency = time.Duration(float64(p.stats.P50Latency)*(1-alpha) + float64(d)*alpha)

	alpha95 := 0.05
	if d > p.stats.P95Latency {
		alpha95 = 0.2
	}
	p.stats.P95Latency = time.Duration(float64(p.stats.P95Latency)*(1-alpha95) + float64(d)*alpha95)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
