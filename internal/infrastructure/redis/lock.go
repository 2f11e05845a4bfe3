package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

const lockKeyPrefix = "checkout:lock:"

// ConfirmLocker is a checkout.Locker backed by SET NX with an owner token,
// so replicas serving the same transaction never confirm it concurrently.
type ConfirmLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ checkout.Locker = (*ConfirmLocker)(nil)

func NewConfirmLocker(client redis.Cmdable, ttl time.Duration) *ConfirmLocker {
	return &ConfirmLocker{client: client, ttl: ttl}
}

// TryLock makes a single acquisition attempt. A lock held elsewhere is
// reported as acquired=false with a nil error.
func (l *ConfirmLocker) TryLock(ctx context.Context, key string) (checkout.Unlock, bool, error) {
	lockKey := lockKeyPrefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		res, err := releaseLockScript.Run(ctx, l.client, []string{lockKey}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
		if res == 0 {
			return domainErrors.ErrLockNotHeld
		}
		return nil
	}
	return unlock, true, nil
}
