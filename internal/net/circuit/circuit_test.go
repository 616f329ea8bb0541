package circuit

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "test", MaxFailures: 3, Cooldown: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want boom", i, err)
		}
	}

	err := b.Execute(func() error {
		t.Fatal("fn must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("got %v, want ErrCircuitOpen", err)
	}
	if b.State() != "open" {
		t.Errorf("state = %s, want open", b.State())
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	b := New(Config{Name: "test", MaxFailures: 3, Cooldown: time.Minute}, nil)

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	// 2 failures, success, 2 failures: still closed
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("breaker opened early: %v", err)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	b := New(Config{Name: "test", MaxFailures: 2, Cooldown: 50 * time.Millisecond, HalfOpenProbes: 1}, nil)

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	if b.State() != "open" {
		t.Fatalf("state = %s, want open", b.State())
	}

	time.Sleep(70 * time.Millisecond)

	// Probe succeeds: breaker closes again.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("state after probe = %s, want closed", b.State())
	}
}

func TestIgnoredErrorsDoNotTrip(t *testing.T) {
	errRateLimited := errors.New("rate limited")
	b := New(Config{Name: "test", MaxFailures: 2, Cooldown: time.Minute}, func(err error) bool {
		return errors.Is(err, errRateLimited)
	})

	for i := 0; i < 10; i++ {
		b.Execute(func() error { return errRateLimited })
	}

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("ignored errors tripped the breaker: %v", err)
	}
}
