package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const (
	maxPollBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

// cachedTopicPublishers hands out one ordered publisher per topic.
func cachedTopicPublishers(client pubSubClient) publisherFactory {
	var mu sync.Mutex
	cache := map[string]publisher{}
	return func(topic string) publisher {
		mu.Lock()
		defer mu.Unlock()
		if pub, ok := cache[topic]; ok {
			return pub
		}
		handle := client.Publisher(topic)
		if handle == nil {
			return nil
		}
		handle.EnableMessageOrdering = true
		pub := &gcpPublisher{handle: handle}
		cache[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	handle *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{res: p.handle.Publish(ctx, msg)}
}

func (p *gcpPublisher) ResumePublish(orderingKey string) {
	p.handle.ResumePublish(orderingKey)
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}

// pollBackoff doubles the wait after each failed batch up to maxPollBackoff.
type pollBackoff struct {
	base    time.Duration
	current time.Duration
}

func newPollBackoff(base time.Duration) *pollBackoff {
	return &pollBackoff{base: base, current: base}
}

func (b *pollBackoff) failure() time.Duration {
	b.current = min(b.current*2, maxPollBackoff)
	return jitter(b.current)
}

func (b *pollBackoff) idle() time.Duration {
	return jitter(b.base)
}

func (b *pollBackoff) reset() {
	b.current = b.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
