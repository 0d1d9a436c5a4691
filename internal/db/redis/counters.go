package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/equidex/internal/db"
)

// IncrBy adds val to the counter at key, creating it at zero.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.client.Do(ctx, s.client.B().Incrby().Key(key).Increment(val).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets the counter's lifetime. With nx, EXPIRE NX keeps an expiry that is already set.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	expire := s.client.B().Expire().Key(key).Seconds(seconds(ttl))
	var cmd rueidis.Completed
	if nx {
		cmd = expire.Nx().Build()
	} else {
		cmd = expire.Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
