package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/equidex/internal/db"
)

// Counter lifetimes. A daily counter is kept past midnight so that tokens
// reported by a run straddling the day boundary are not lost.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// Store keeps the embedding token counters read and written by
// embedding.BudgetTracker, one per provider and accounting period.
type Store struct {
	counters db.Counters
	ttl      map[db.Period]time.Duration
}

// New wraps counters. Non-positive TTLs select the defaults.
func New(counters db.Counters, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{
		counters: counters,
		ttl:      map[db.Period]time.Duration{db.Daily: dailyTTL, db.Monthly: monthTTL},
	}
}

// IncrBy adds tokens to the counter at key. The first increment of a period
// fixes its expiry; later ones leave it untouched.
func (s *Store) IncrBy(ctx context.Context, key string, tokens int64) error {
	if err := s.counters.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	if err := s.counters.Expire(ctx, key, s.lifetime(key), true); err != nil {
		return fmt.Errorf("budget expire %s: %w", key, err)
	}
	return nil
}

// Get returns the tokens counted at key. A counter that was never written,
// or has expired with its period, reads as zero.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.counters.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	tokens, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: corrupt counter %q: %w", key, raw, err)
	}
	return tokens, nil
}

// lifetime picks the TTL for a db.BudgetKey. Keys of another shape get the
// monthly lifetime, the longer of the two.
func (s *Store) lifetime(key string) time.Duration {
	if p, ok := db.BudgetPeriod(key); ok {
		return s.ttl[p]
	}
	return s.ttl[db.Monthly]
}
