package db

import (
	"context"
	"time"
)

// Store is the backend shared by the embedding cache and the embedding token budget.
// Redis serves deployments with several replicas; memory.Store serves a single process.
type Store interface {
	Pinger
	VectorCache
	Counters
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorCache holds encoded embedding vectors under EmbeddingKey keys.
// Get returns ErrKeyNotFound for a missing or expired vector.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counters holds integer token counters under BudgetKey keys.
// Expire with nx set leaves an existing expiry alone, so a period's counter
// dies on schedule however often it is incremented.
type Counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
