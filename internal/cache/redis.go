package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vkurasov/ridepool/config"
	"github.com/vkurasov/ridepool/internal/domain"
)

type RedisCache struct {
	client  *redis.Client
	rideTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, rideTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		rideTTL: rideTTL,
	}
}

// releaseScript deletes the lock only when it is still owned by the caller,
// so a holder whose lease expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// AcquireRideLock takes the per-ride lease. It returns an owner token on
// success; ok=false means another holder has the lease. The TTL bounds the
// hold time so a crashed holder cannot starve the ride.
func (c *RedisCache) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, rideLockKey(rideID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) ReleaseRideLock(ctx context.Context, rideID, token string) error {
	return releaseScript.Run(ctx, c.client, []string{rideLockKey(rideID)}, token).Err()
}

// GetRide returns the cached ride snapshot, or nil on a miss. Snapshots are
// for display reads only, never for capacity decisions.
func (c *RedisCache) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := c.client.Get(ctx, rideKey(rideID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var ride domain.Ride
	if err := json.Unmarshal(data, &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

func (c *RedisCache) SetRide(ctx context.Context, ride *domain.Ride) error {
	payload, err := json.Marshal(ride)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rideKey(ride.ID), payload, c.rideTTL).Err()
}

func (c *RedisCache) InvalidateRide(ctx context.Context, rideID string) error {
	return c.client.Del(ctx, rideKey(rideID)).Err()
}

func rideKey(rideID string) string {
	return fmt.Sprintf("cache:ride:%s", rideID)
}

func rideLockKey(rideID string) string {
	return fmt.Sprintf("lock:ride:%s", rideID)
}
