package paypalwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const guardProvider = "paypal"

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	GuardKey(provider, id string) string
}

// CallbackGuard marks PayPal payment ids whose return callback is being or has been handled.
type CallbackGuard struct {
	store guardStore
	ttl   time.Duration
}

func NewCallbackGuard(store guardStore, ttl time.Duration) (*CallbackGuard, error) {
	if store == nil {
		return nil, errors.New("guard store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &CallbackGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether the payment id was already seen, marking it otherwise.
func (g *CallbackGuard) CheckAndMark(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, errors.New("payment id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.GuardKey(guardProvider, paymentID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set callback guard: %w", err)
	}
	return !set, nil
}

// Release clears the mark so a later callback can retry.
func (g *CallbackGuard) Release(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return errors.New("payment id is required")
	}
	return g.store.Del(ctx, g.store.GuardKey(guardProvider, paymentID))
}
