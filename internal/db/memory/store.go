package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/equidex/internal/db"
)

var _ db.Store = (*Store)(nil)

// DefaultSize is the entry capacity used when none is configured.
const DefaultSize = 10_000

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-process db.Store bounded by an LRU. It backs the embedding
// cache and budget counters when no Redis address is configured.
type Store struct {
	mu    sync.Mutex // serializes read-modify-write in IncrBy and Expire
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

// New creates a store holding at most size entries.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Store{cache: cache, now: time.Now}, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close drops all entries.
func (s *Store) Close() { s.cache.Purge() }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value; ttl <= 0 means no expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.cache.Add(key, e)
	s.mu.Unlock()
	return nil
}

// IncrBy adds val to the integer stored at key, creating it at zero.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	e, ok := s.lookup(key)
	if ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value is not an integer: %w", err)}
		}
		current = n
	}
	e.value = []byte(strconv.FormatInt(current+val, 10))
	s.cache.Add(key, e)
	return nil
}

// Expire sets a TTL on an existing key. With nx, keys that already expire are left alone.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.cache.Add(key, e)
	return nil
}

// lookup returns a live entry and evicts an expired one. Caller holds mu.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		s.cache.Remove(key)
		return entry{}, false
	}
	return e, true
}
