package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/db"
	"github.com/kailas-cloud/equidex/internal/domain"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning and lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// ParseBudgetAction validates a configured action; empty means warn.
func ParseBudgetAction(s string) (BudgetAction, error) {
	switch BudgetAction(s) {
	case "", BudgetActionWarn:
		return BudgetActionWarn, nil
	case BudgetActionReject:
		return BudgetActionReject, nil
	default:
		return "", fmt.Errorf("unknown budget action %q (want warn or reject)", s)
	}
}

// Limits are token caps per period. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  BudgetAction
}

// BudgetStore persists counters across restarts. IncrBy may be retried.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetSnapshot is a point-in-time view of consumption, reported by the API.
type BudgetSnapshot struct {
	DailyUsed        int64 `json:"daily_used"`
	DailyRemaining   int64 `json:"daily_remaining"`
	MonthlyUsed      int64 `json:"monthly_used"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
}

// BudgetTracker counts tokens in memory and writes them behind to an optional store.
// Check never leaves the process.
type BudgetTracker struct {
	mu          sync.Mutex
	limits      Limits
	provider    string
	dailyUsed   int64
	monthlyUsed int64
	day         time.Time
	month       time.Time
	store       BudgetStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewBudgetTracker creates a tracker for one embedding provider.
func NewBudgetTracker(provider string, limits Limits, logger *zap.Logger) *BudgetTracker {
	if limits.Action == "" {
		limits.Action = BudgetActionWarn
	}
	b := &BudgetTracker{
		limits:   limits,
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	now := b.now()
	b.day, b.month = truncateToDay(now), truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the current period's counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	if val, err := store.Get(ctx, b.dailyKey(now)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget", zap.String("provider", b.provider), zap.Error(err))
	}
	if val, err := store.Get(ctx, b.monthlyKey(now)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget", zap.String("provider", b.provider), zap.Error(err))
	}

	b.logger.Info("Embedding budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
	return b
}

func (b *BudgetTracker) dailyKey(t time.Time) string {
	return db.BudgetKey(b.provider, db.Daily, t)
}

func (b *BudgetTracker) monthlyKey(t time.Time) string {
	return db.BudgetKey(b.provider, db.Monthly, t)
}

// Check reports whether another request is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	dailyOver := b.limits.Daily > 0 && b.dailyUsed >= b.limits.Daily
	monthlyOver := b.limits.Monthly > 0 && b.monthlyUsed >= b.limits.Monthly
	if !dailyOver && !monthlyOver {
		return nil
	}
	if b.limits.Action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Embedding token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.limits.Daily),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens, then persists them if a store is attached.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.rollover()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the caller so a cancelled request still gets counted.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, key := range []string{b.dailyKey(now), b.monthlyKey(now)} {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, or -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return remaining(b.limits.Daily, b.dailyUsed)
}

// RemainingMonthly returns tokens left this month, or -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return remaining(b.limits.Monthly, b.monthlyUsed)
}

// Snapshot returns current consumption.
func (b *BudgetTracker) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return BudgetSnapshot{
		DailyUsed:        b.dailyUsed,
		DailyRemaining:   remaining(b.limits.Daily, b.dailyUsed),
		MonthlyUsed:      b.monthlyUsed,
		MonthlyRemaining: remaining(b.limits.Monthly, b.monthlyUsed),
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// rollover zeroes counters at day and month boundaries. Caller holds mu.
func (b *BudgetTracker) rollover() {
	now := b.now()
	if d := truncateToDay(now); d.After(b.day) {
		b.dailyUsed = 0
		b.day = d
	}
	if m := truncateToMonth(now); m.After(b.month) {
		b.monthlyUsed = 0
		b.month = m
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
