package broadcast

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wfunc/getroasted/logger"
)

// RedisBus fans messages out across server instances over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to url (redis://...) and pings it.
func NewRedisBus(url string) (*RedisBus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisBus{client: c}, nil
}

var _ Bus = (*RedisBus)(nil)

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, fn func([]byte)) (func(), error) {
	ps := b.client.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	return func() {
		if err := ps.Close(); err != nil {
			logger.Log.Warnf("redis: unsubscribe %s: %v", channel, err)
		}
		<-done
	}, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
