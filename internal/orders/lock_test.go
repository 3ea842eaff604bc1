package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

type memoryLockStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) ReleaseOwned(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLockStore) LockKey(scope, id string) string {
	return "lock:" + scope + ":" + id
}

func TestRedisLockerSerializesPerOrder(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	locker, err := NewRedisLocker(store, 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, locker.ttl)

	orderID := uuid.New()
	release, err := locker.Acquire(context.Background(), orderID)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), orderID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	other, err := locker.Acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(context.Background(), orderID)
	require.NoError(t, err)
	again()
}

func TestRedisLockerKeepsForeignOwner(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	locker, err := NewRedisLocker(store, time.Second)
	require.NoError(t, err)

	orderID := uuid.New()
	release, err := locker.Acquire(context.Background(), orderID)
	require.NoError(t, err)

	// Simulate TTL expiry followed by another holder.
	key := store.LockKey("order", orderID.String())
	store.values[key] = "someone-else"
	release()
	require.Equal(t, "someone-else", store.values[key])
}

func TestRedisLockerDependencyFailure(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}, err: errors.New("connection refused")}
	locker, err := NewRedisLocker(store, time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestNewRedisLockerRequiresClient(t *testing.T) {
	_, err := NewRedisLocker(nil, time.Second)
	require.Error(t, err)
}
