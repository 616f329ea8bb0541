// Package alerts owns the last mile: deciding whether a signal may post
// (dedup and cooldown) and delivering it to the chat webhook.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// DurableDedup is the persistence-backed pattern tier. MarkAlert returns
// false when the key already exists, i.e. the alert was posted before;
// possibly by a previous process.
type DurableDedup interface {
	MarkAlert(ctx context.Context, dedupKey string) (bool, error)
}

// DedupStore suppresses repeat alerts. Flow alerts cool down per contract
// key for a TTL; pattern alerts post at most once per ET trading date.
// Tiers stack: in-memory always, Redis when configured, and a durable store
// for pattern keys so dedup survives restarts. External tier failures log
// and fall through to the in-memory answer; dedup must never block
// scanning.
type DedupStore struct {
	clock       timeutil.Clock
	cooldownTTL time.Duration
	rdb         *redis.Client
	durable     DurableDedup

	mu        sync.Mutex
	cooldowns map[string]time.Time
	daily     map[string]struct{}
	resetDate string
}

// NewDedupStore builds the store. rdb and durable may be nil.
func NewDedupStore(cooldownTTL time.Duration, clock timeutil.Clock, rdb *redis.Client, durable DurableDedup) *DedupStore {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if cooldownTTL <= 0 {
		cooldownTTL = 4 * time.Hour
	}
	return &DedupStore{
		clock:       clock,
		cooldownTTL: cooldownTTL,
		rdb:         rdb,
		durable:     durable,
		cooldowns:   make(map[string]time.Time),
		daily:       make(map[string]struct{}),
		resetDate:   timeutil.TradingDate(clock.Now()),
	}
}

// rollover clears day-scoped state when the ET date has changed since the
// last call. Compared by date string, so a sleeping process that wakes past
// midnight still resets.
func (s *DedupStore) rollover(now time.Time) {
	today := timeutil.TradingDate(now)
	if today == s.resetDate {
		return
	}
	s.daily = make(map[string]struct{})
	s.resetDate = today
	// cooldown entries are TTL-scoped, not day-scoped; expired ones are
	// dropped lazily on read
	for k, at := range s.cooldowns {
		if now.Sub(at) >= s.cooldownTTL {
			delete(s.cooldowns, k)
		}
	}
}

// AllowFlow reports whether a flow alert for key may post, and if so starts
// its cooldown.
func (s *DedupStore) AllowFlow(ctx context.Context, key string) bool {
	s.mu.Lock()
	now := s.clock.Now()
	s.rollover(now)
	if at, ok := s.cooldowns[key]; ok && now.Sub(at) < s.cooldownTTL {
		s.mu.Unlock()
		return false
	}
	s.cooldowns[key] = now
	s.mu.Unlock()

	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, "orakl:flow:"+key, now.Unix(), s.cooldownTTL).Result()
		if err != nil {
			log.Warn().Str("component", "dedup").Err(err).Msg("Redis cooldown check failed, using in-memory answer")
		} else if !ok {
			return false
		}
	}
	return true
}

// AllowPattern reports whether a pattern alert for dedupKey may post today.
// The durable tier is authoritative when present: a key it has seen is
// suppressed even on a fresh process.
func (s *DedupStore) AllowPattern(ctx context.Context, dedupKey string) bool {
	s.mu.Lock()
	now := s.clock.Now()
	s.rollover(now)
	if _, seen := s.daily[dedupKey]; seen {
		s.mu.Unlock()
		return false
	}
	s.daily[dedupKey] = struct{}{}
	s.mu.Unlock()

	if s.rdb != nil {
		ttl := timeutil.NextMidnightET(now).Sub(now)
		ok, err := s.rdb.SetNX(ctx, "orakl:pattern:"+dedupKey, now.Unix(), ttl).Result()
		if err != nil {
			log.Warn().Str("component", "dedup").Err(err).Msg("Redis pattern dedup failed, using in-memory answer")
		} else if !ok {
			return false
		}
	}

	if s.durable != nil {
		fresh, err := s.durable.MarkAlert(ctx, dedupKey)
		if err != nil {
			log.Warn().Str("component", "dedup").Err(err).Msg("Durable dedup failed, using in-memory answer")
			return true
		}
		return fresh
	}
	return true
}

// Flush gives external tiers a chance to finish writes on shutdown. The
// in-memory maps need nothing; Redis writes are synchronous already.
func (s *DedupStore) Flush(ctx context.Context) {
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			log.Warn().Str("component", "dedup").Err(err).Msg("Redis close failed")
		}
	}
}
