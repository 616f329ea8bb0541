package polygon

import (
	"context"
	"errors"
	"fmt"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/net/budget"
)

var (
	// ErrNotFound marks a symbol the provider answered 404 for. The symbol
	// is also added to the process skip list, so later calls fail fast.
	ErrNotFound = errors.New("symbol not found")

	// ErrRateLimited is the final outcome when retries could not get past
	// provider throttling. It never trips the circuit breaker.
	ErrRateLimited = errors.New("provider rate limited")
)

// NotFoundError wraps ErrNotFound with the symbol.
type NotFoundError struct {
	Symbol string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("symbol %s not found", e.Symbol)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsIgnorableByBreaker reports outcomes that are not provider outages:
// throttling, sticky 404s, caller cancellation, budget exhaustion, and
// payload validation failures.
func IsIgnorableByBreaker(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, budget.ErrBudgetExhausted) {
		return true
	}
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}
