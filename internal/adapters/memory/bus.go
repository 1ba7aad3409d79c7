// Package memory implements ports.Bus inside a single process.
// It is used when no Redis server is configured and in tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// DefaultBuffer is the per-subscriber queue length. A subscriber that falls
// further behind loses messages, like a slow Redis pub/sub client would.
const DefaultBuffer = 64

var errBusClosed = errors.New("bus closed")

// Bus is an in-process broadcast bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	closed bool
}

// NewBus creates an empty bus. buffer <= 0 selects DefaultBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Publish delivers payload to every current subscriber of channel without blocking.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errBusClosed
	}
	msg := append([]byte(nil), payload...)
	for s := range b.subs[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber on channel.
func (b *Bus) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errBusClosed
	}
	s := &subscription{
		bus:     b,
		channel: channel,
		ch:      make(chan []byte, b.buffer),
		done:    make(chan struct{}),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*subscription]struct{})
	}
	b.subs[channel][s] = struct{}{}
	return s, nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *Bus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Close drops every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]map[*subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, set := range subs {
		for s := range set {
			s.once.Do(func() { close(s.done) })
		}
	}
	return nil
}

func (b *Bus) unsubscribe(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.channel)
		}
	}
}

type subscription struct {
	bus     *Bus
	channel string
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, ports.ErrSubscriptionClosed
	default:
	}
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return nil, ports.ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.done)
	})
	return nil
}
