package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(10)
	defer c.Stop()

	c.Set("price:SPY", 450.25, time.Minute)

	v, ok := c.Get("price:SPY")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(float64) != 450.25 {
		t.Errorf("got %v", v)
	}

	if _, ok := c.Get("price:QQQ"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestExpiration(t *testing.T) {
	c := New(10)
	defer c.Stop()

	c.Set("snap:AAPL", "payload", 20*time.Millisecond)
	if _, ok := c.Get("snap:AAPL"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("snap:AAPL"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestLRUEvictionAtCapacity(t *testing.T) {
	c := New(3)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("c", 3, time.Minute)

	// Touch "a" so "b" becomes the least recently accessed.
	c.Get("a")
	c.Set("d", 4, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to survive", k)
		}
	}

	if ev := c.Stats().Evictions; ev != 1 {
		t.Errorf("evictions = %d, want 1", ev)
	}
}

func TestStatsCounts(t *testing.T) {
	c := New(100)
	defer c.Stop()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, time.Minute)
	}
	c.Get("k0")
	c.Get("k1")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 5 {
		t.Errorf("stats = %+v", s)
	}
}
