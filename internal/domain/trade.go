package domain

import "time"

// Trade is one equity print, used by the block-trade scanner.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Exchange  int       `json:"exchange,omitempty"`
}

// Notional returns price times size.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Size)
}

// Validate applies print-level sanity checks.
func (t Trade) Validate() error {
	if !FinitePositive(t.Price) {
		return &ValidationError{Field: "price", Value: t.Price, Reason: "not positive finite"}
	}
	if t.Size <= 0 {
		return &ValidationError{Field: "size", Value: float64(t.Size), Reason: "not positive"}
	}
	return nil
}
