package domain

import (
	"fmt"
	"math"
)

// ValidationError describes a rejected provider field. Carrying the field and
// reason keeps skip diagnostics structured instead of free-text.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s=%v %s", e.Field, e.Value, e.Reason)
}

// IsFinite reports whether f is a usable number (not NaN, not ±Inf).
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FinitePositive reports whether f is finite and strictly positive.
func FinitePositive(f float64) bool {
	return IsFinite(f) && f > 0
}
