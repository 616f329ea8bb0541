package circuit

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls. Workers
// treat it as a signal to skip the scan cycle, not as a provider error.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config tunes one breaker.
type Config struct {
	Name           string
	MaxFailures    uint32        // consecutive failures before opening
	Window         time.Duration // rolling window for failure counts
	Cooldown       time.Duration // open duration before half-open
	HalfOpenProbes uint32        // probes admitted while half-open
}

// DefaultConfig returns the provider-facing defaults: open after 5
// consecutive hard failures inside 30s, stay open 60s, admit one probe.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		MaxFailures:    5,
		Window:         30 * time.Second,
		Cooldown:       60 * time.Second,
		HalfOpenProbes: 1,
	}
}

// Breaker wraps gobreaker with the error taxonomy used by the fetcher:
// rate-limit and not-found outcomes never count as breaker failures.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	ignore func(error) bool
}

// New builds a breaker. ignore reports errors that should not count as
// failures (rate limiting, sticky 404s, caller cancellation); it may be nil.
func New(cfg Config, ignore func(error) bool) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	if ignore == nil {
		ignore = func(error) bool { return false }
	}

	b := &Breaker{ignore: ignore}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || ignore(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("component", "circuit").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
	return b
}

// Execute runs fn under the breaker. While open it returns ErrCircuitOpen
// without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the breaker state as a string (closed, half-open, open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Counts exposes the underlying failure counters.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
