package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localLease struct {
	token   string
	expires time.Time
}

// LocalClaimer keeps claims in process memory. It only protects against overlap
// inside one process and is used when no Redis is configured.
type LocalClaimer struct {
	mu     sync.Mutex
	leases map[string]localLease
	now    func() time.Time
}

func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{leases: make(map[string]localLease), now: time.Now}
}

func (c *LocalClaimer) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if l, ok := c.leases[key]; ok && now.Before(l.expires) {
		return "", false, nil
	}
	// drop expired entries so the map does not grow without bound
	for k, l := range c.leases {
		if !now.Before(l.expires) {
			delete(c.leases, k)
		}
	}
	token := uuid.New().String()
	c.leases[key] = localLease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (c *LocalClaimer) Release(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.leases[key]; ok && l.token == token {
		delete(c.leases, key)
	}
	return nil
}
