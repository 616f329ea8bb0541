package polygon

import (
	"sort"
	"sync"
	"time"
)

// SkipList is the process-wide sticky 404 set. Append-only: once a symbol
// lands here it stays for the life of the process.
type SkipList struct {
	mu      sync.RWMutex
	entries map[string]skipEntry
}

type skipEntry struct {
	reason  string
	addedAt time.Time
}

// NewSkipList creates an empty skip list, optionally preloaded with
// configured symbols (SKIP_TICKERS).
func NewSkipList(preload []string) *SkipList {
	s := &SkipList{entries: make(map[string]skipEntry)}
	for _, sym := range preload {
		if sym != "" {
			s.entries[sym] = skipEntry{reason: "configured", addedAt: time.Now()}
		}
	}
	return s
}

// Add marks a symbol as permanently skipped.
func (s *SkipList) Add(symbol, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[symbol]; !ok {
		s.entries[symbol] = skipEntry{reason: reason, addedAt: time.Now()}
	}
}

// Contains reports whether the symbol is skipped.
func (s *SkipList) Contains(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[symbol]
	return ok
}

// Symbols returns the skipped symbols in sorted order.
func (s *SkipList) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of skipped symbols.
func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
