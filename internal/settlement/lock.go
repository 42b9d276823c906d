package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

var errLockHeld = errors.New("settlement lock held by another attempt")

// Locker serializes attempts for one session across instances. It narrows the
// duplicate race window; the unique settlement key is still the guarantee.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

type redisLocker struct {
	client *redislock.Client
}

// NewRedisLocker adapts a redislock client.
func NewRedisLocker(c *redislock.Client) Locker {
	return &redisLocker{client: c}
}

func (l *redisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

func lockKey(sessionID string) string {
	return "settlement:lock:" + sessionID
}
