package cache

import (
	"context"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes lifecycle transitions of one booking across
// service instances.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(cfg config.RedisConfig) *RedisLocker {
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    time.Duration(cfg.LockTTLSeconds) * time.Second,
	}
}

func (c *RedisLocker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLocker) AcquireBookingLock(ctx context.Context, id domain.BookingID) (bool, error) {
	return c.client.SetNX(ctx, bookingLockKey(id), "locked", c.ttl).Result()
}

func (c *RedisLocker) ReleaseBookingLock(ctx context.Context, id domain.BookingID) error {
	return c.client.Del(ctx, bookingLockKey(id)).Err()
}

func (c *RedisLocker) Close() error {
	return c.client.Close()
}

func bookingLockKey(id domain.BookingID) string {
	return "lock:booking:" + id.String()
}
