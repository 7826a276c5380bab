// Package lease provides short-lived reminder claims so overlapping dispatch
// cycles do not deliver the same reminder twice.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reminder-lease:"

// releaseScript deletes the key only while it still holds the caller's token.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// Key builds the lease key of one reminder.
func Key(appointmentID, reminderID string) string {
	return keyPrefix + appointmentID + ":" + reminderID
}

// RedisClaimer stores claims as SET NX PX keys.
type RedisClaimer struct {
	rdb      *redis.Client
	newToken func() string
}

func NewRedisClaimer(rdb *redis.Client) *RedisClaimer {
	return &RedisClaimer{rdb: rdb, newToken: func() string { return uuid.New().String() }}
}

// Claim reserves key for ttl. ok is false when another holder owns it.
func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = c.newToken()
	ok, err = c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the claim if token still owns it.
func (c *RedisClaimer) Release(ctx context.Context, key, token string) error {
	if err := c.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// ConnectRedis opens a client and pings it with a short timeout.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
