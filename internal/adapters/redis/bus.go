// Package redis implements ports.Bus on Redis pub/sub.
package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Bus publishes and subscribes through a shared Redis client.
type Bus struct {
	rdb *goredis.Client
}

// NewBus connects to Redis and verifies the connection with PING.
func NewBus(ctx context.Context, opts Options) (*Bus, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &Bus{rdb: rdb}, nil
}

// NewBusFromClient wraps an existing client.
func NewBusFromClient(rdb *goredis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the server to confirm the subscription before returning,
// so messages published after Subscribe returns are not missed.
func (b *Bus) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	return &subscription{
		ps:      ps,
		channel: channel,
		msgs:    ps.Channel(),
		done:    make(chan struct{}),
	}, nil
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}

type subscription struct {
	ps      *goredis.PubSub
	channel string
	msgs    <-chan *goredis.Message
	done    chan struct{}
	once    sync.Once
	err     error
}

func (s *subscription) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, ports.ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.msgs:
		if !ok {
			return nil, ports.ErrSubscriptionClosed
		}
		return []byte(msg.Payload), nil
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if err := s.ps.Unsubscribe(context.Background(), s.channel); err != nil {
			s.err = fmt.Errorf("failed to unsubscribe from %s: %w", s.channel, err)
		}
		if err := s.ps.Close(); err != nil && s.err == nil {
			s.err = err
		}
	})
	return s.err
}
