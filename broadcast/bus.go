package broadcast

import (
	"context"
	"sync"
)

// Bus is ephemeral pub/sub. Nothing is persisted and delivery is best effort.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (unsubscribe func(), err error)
	Close() error
}

// LocalBus delivers to subscribers in the same process, synchronously.
type LocalBus struct {
	mutex  sync.RWMutex
	nextID int
	subs   map[string]map[int]func([]byte)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]func([]byte))}
}

var _ Bus = (*LocalBus)(nil)

func (b *LocalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mutex.RLock()
	fns := make([]func([]byte), 0, len(b.subs[channel]))
	for _, fn := range b.subs[channel] {
		fns = append(fns, fn)
	}
	b.mutex.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, channel string, fn func([]byte)) (func(), error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]func([]byte))
	}
	b.subs[channel][id] = fn

	return func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		delete(b.subs[channel], id)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}, nil
}

func (b *LocalBus) Close() error {
	b.mutex.Lock()
	b.subs = make(map[string]map[int]func([]byte))
	b.mutex.Unlock()
	return nil
}
