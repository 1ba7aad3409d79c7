package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/melih/lighthouse-dash/internal/core/ports"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	bus, err := NewBus(context.Background(), Options{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus, srv
}

func TestRedisBusPublishSubscribe(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "server_messages")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, "server_messages", []byte(`{"text":"hi"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(msg) != `{"text":"hi"}` {
		t.Errorf("Receive = %q, want %q", msg, `{"text":"hi"}`)
	}
}

func TestRedisSubscriptionCloseUnsubscribesOnce(t *testing.T) {
	bus, srv := newTestBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "containers_list")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if n := srv.PubSubNumSub("containers_list")["containers_list"]; n != 1 {
		t.Fatalf("NUMSUB = %d, want 1", n)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close: %v, want nil", err)
	}

	deadline := time.Now().Add(time.Second)
	for srv.PubSubNumSub("containers_list")["containers_list"] != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription still registered after Close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := sub.Receive(ctx); !errors.Is(err, ports.ErrSubscriptionClosed) {
		t.Errorf("Receive after Close error = %v, want ErrSubscriptionClosed", err)
	}
}

func TestRedisReceiveHonorsContext(t *testing.T) {
	bus, _ := newTestBus(t)
	sub, err := bus.Subscribe(context.Background(), "idle")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := sub.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive error = %v, want deadline exceeded", err)
	}
}

func TestNewBusFailsWithoutServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewBus(ctx, Options{Addr: addr}); err == nil {
		t.Fatal("NewBus succeeded against a stopped server")
	}
}

func TestNewBusFromClient(t *testing.T) {
	srv := miniredis.RunT(t)
	bus := NewBusFromClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	defer bus.Close()

	if err := bus.Publish(context.Background(), "nobody", []byte("x")); err != nil {
		t.Errorf("Publish: %v", err)
	}
}
