package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// DefaultIdleTimeout closes a stream that has seen no message for this long.
const DefaultIdleTimeout = 60 * time.Second

// ErrIdleTimeout is returned by Run when the channel stayed quiet past the idle timeout.
var ErrIdleTimeout = errors.New("stream idle timeout")

// Relay forwards one bus channel to one client.
type Relay struct {
	bus  ports.Bus
	idle time.Duration
	log  *slog.Logger
}

// NewRelay creates a Relay. idle <= 0 selects DefaultIdleTimeout.
func NewRelay(bus ports.Bus, idle time.Duration, log *slog.Logger) *Relay {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{bus: bus, idle: idle, log: log}
}

// Run subscribes to channel and hands every message to send until the
// client goes away (ctx done or send fails), the channel goes idle, or the
// subscription is closed. The subscription is closed exactly once on return.
//
// A client disconnect is not an error: Run returns nil. An idle channel
// returns ErrIdleTimeout.
func (r *Relay) Run(ctx context.Context, channel string, send func([]byte) error) error {
	sub, err := r.bus.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	log := r.log.With("channel", channel)
	defer func() {
		if err := sub.Close(); err != nil {
			log.Warn("failed to close subscription", "err", err)
		}
	}()

	log.Debug("stream opened")
	for {
		msg, err := r.receive(ctx, sub)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				log.Debug("stream closed by client")
				return nil
			case errors.Is(err, context.DeadlineExceeded):
				log.Debug("stream idle, closing", "idle", r.idle)
				return ErrIdleTimeout
			case errors.Is(err, ports.ErrSubscriptionClosed):
				log.Debug("subscription closed")
				return nil
			}
			return err
		}
		if err := send(msg); err != nil {
			log.Debug("stream closed by client", "err", err)
			return nil
		}
	}
}

func (r *Relay) receive(ctx context.Context, sub ports.Subscription) ([]byte, error) {
	rctx, cancel := context.WithTimeout(ctx, r.idle)
	defer cancel()
	return sub.Receive(rctx)
}
