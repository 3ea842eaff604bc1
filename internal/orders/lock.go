package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
)

const defaultLockTTL = 30 * time.Second

// Locker serializes lifecycle operations per order.
type Locker interface {
	// Acquire returns a release func, or a Conflict error when another operation holds the order.
	Acquire(ctx context.Context, orderID uuid.UUID) (func(), error)
}

// lockStore is the subset of pkg/redis.Client used for locking.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseOwned(ctx context.Context, key, owner string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker implements Locker with SETNX + TTL. Release is a compare-and-delete
// so an expired lock taken over by another request is left alone.
type RedisLocker struct {
	client lockStore
	ttl    time.Duration
}

// NewRedisLocker constructs a Redis-backed order locker.
func NewRedisLocker(client lockStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for order lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, orderID uuid.UUID) (func(), error) {
	key := l.client.LockKey("order", orderID.String())
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is being modified by another request")
	}
	return func() {
		// A fresh context so a cancelled request still frees its lock.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_, _ = l.client.ReleaseOwned(releaseCtx, key, owner)
	}, nil
}
