package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is one accepted envelope together with the time it was received.
type Entry struct {
	IKey       string          `json:"iKey"`
	Name       string          `json:"name"`
	Time       time.Time       `json:"time"`
	BaseType   string          `json:"baseType"`
	Raw        json.RawMessage `json:"envelope"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Store is a thread-safe in-memory envelope store, keyed by instrumentation
// key. A background goroutine (Run) periodically evicts entries older than
// the configured TTL. Each key keeps at most maxPerKey entries, oldest first out.
type Store struct {
	mu        sync.RWMutex
	data      map[string][]*Entry
	ttl       time.Duration
	maxPerKey int
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL and per-key capacity.
func New(ttl time.Duration, maxPerKey int) *Store {
	return &Store{
		data:      make(map[string][]*Entry),
		ttl:       ttl,
		maxPerKey: maxPerKey,
		now:       time.Now,
	}
}

// TTL returns the configured retention.
func (s *Store) TTL() time.Duration { return s.ttl }

// Add records entries, stamping each with the receive time.
// Callers must not modify entries after calling Add.
func (s *Store) Add(entries ...*Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, e := range entries {
		e.ReceivedAt = now
		list := append(s.data[e.IKey], e)
		if over := len(list) - s.maxPerKey; over > 0 {
			list = append([]*Entry(nil), list[over:]...)
		}
		s.data[e.IKey] = list
	}
}

// List returns the live entries for ikey in arrival order.
// Stale entries that have not yet been evicted are excluded.
func (s *Store) List(ikey string) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	list := s.data[ikey]
	out := make([]*Entry, 0, len(list))
	for _, e := range list {
		if e.ReceivedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns the instrumentation keys currently held, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.data {
		n += len(list)
	}
	return n
}

// Evict removes entries whose ReceivedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for key, list := range s.data {
		// Entries are in arrival order, so the live ones are a suffix.
		i := sort.Search(len(list), func(i int) bool { return list[i].ReceivedAt.After(cutoff) })
		removed += i
		switch {
		case i == len(list):
			delete(s.data, key)
		case i > 0:
			s.data[key] = append([]*Entry(nil), list[i:]...)
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) so entries are evicted promptly. Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale envelopes", "count", n)
			}
		}
	}
}
