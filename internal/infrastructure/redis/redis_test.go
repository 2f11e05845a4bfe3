package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to the server named by CHECKOUT_TEST_REDIS_ADDR.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CHECKOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHECKOUT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConfirmLocker_ExclusiveUntilUnlocked(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	locker := NewConfirmLocker(client, 5*time.Second)
	key := "confirm:" + uuid.NewString()

	unlock, ok, err := locker.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	assert.ErrorIs(t, unlock(ctx), domainErrors.ErrLockNotHeld)

	unlock, ok, err = locker.TryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, unlock(ctx))
}

func TestConfirmLocker_ExpiredLockCannotBeReleasedByOldOwner(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	locker := NewConfirmLocker(client, 50*time.Millisecond)
	key := "confirm:" + uuid.NewString()

	stale, ok, err := locker.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)

	fresh, ok, err := locker.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, stale(ctx), domainErrors.ErrLockNotHeld)
	assert.NoError(t, fresh(ctx))
}

func TestCompletionPublisher_AppendsToStream(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	stream := "checkout:completed:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	pub := NewCompletionPublisher(client, stream)
	require.NoError(t, pub.PublishCompletion(ctx, "txn-1", map[string]any{"status": "successful"}))

	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "txn-1", msgs[0].Values["transaction_id"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &payload))
	assert.Equal(t, "successful", payload["status"])
}

func TestNewCompletionPublisher_DefaultStream(t *testing.T) {
	pub := NewCompletionPublisher(nil, "")
	assert.Equal(t, CompletionStream, pub.stream)
}
