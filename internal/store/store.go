package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phantomscan/phantomscan/internal/model"
)

// Entry is a scored candidate together with the time it was last stored.
type Entry struct {
	Scored    model.ScoredCandidate
	UpdatedAt time.Time
}

// key identifies a candidate across ecosystems.
type key struct {
	ecosystem model.Ecosystem
	name      string
}

// Store is a thread-safe in-memory result store, keyed by (ecosystem, name).
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL. Watchlist entries are held
// alongside under the same TTL.
type Store struct {
	mu        sync.RWMutex
	data      map[key]*Entry
	watchlist map[key]model.WatchlistEntry
	ttl       time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data:      make(map[key]*Entry),
		watchlist: make(map[key]model.WatchlistEntry),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Put stores or replaces the scored candidate. A fresh score also clears any
// watchlist entry for the same package.
func (s *Store) Put(sc model.ScoredCandidate) {
	k := key{sc.Candidate.Ecosystem, sc.Candidate.Name}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[k] = &Entry{
		Scored:    sc,
		UpdatedAt: s.now(),
	}
	delete(s.watchlist, k)
}

// Get returns the entry for the given package and whether one was found.
// The entry may be stale if TTL has elapsed.
func (s *Store) Get(eco model.Ecosystem, name string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key{eco, name}]
	return e, ok
}

// List returns the scored candidates whose UpdatedAt is within the TTL.
// Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []model.ScoredCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]model.ScoredCandidate, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e.Scored)
		}
	}
	return out
}

// Watch records a watchlist entry. The first observation wins so
// FirstSeenAt stays honest across repeated sightings.
func (s *Store) Watch(w model.WatchlistEntry) {
	k := key{w.Ecosystem, w.Name}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchlist[k]; !ok {
		s.watchlist[k] = w
	}
}

// Watchlist returns all current watchlist entries.
func (s *Store) Watchlist() []model.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.WatchlistEntry, 0, len(s.watchlist))
	for _, w := range s.watchlist {
		out = append(out, w)
	}
	return out
}

// Count returns the total number of scored entries currently held,
// including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for k, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, k)
			removed++
		}
	}
	for k, w := range s.watchlist {
		if !w.FirstSeenAt.After(cutoff) {
			delete(s.watchlist, k)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so entries are evicted promptly. Run blocks
// until ctx is cancelled.
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
				slog.Debug("store: evicted stale entries", "count", n)
			}
		}
	}
}
