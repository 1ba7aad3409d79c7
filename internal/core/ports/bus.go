package ports

import (
	"context"
	"errors"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// ErrSubscriptionClosed is returned by Receive after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Bus is a broadcast publish/subscribe transport keyed by channel name.
// Delivery is at-most-once to subscribers connected at publish time.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// Subscription is a handle on one channel subscription.
type Subscription interface {
	// Receive blocks until a message arrives, ctx is done, or the subscription is closed.
	Receive(ctx context.Context) ([]byte, error)
	// Close unsubscribes. It is safe to call more than once; only the first call unsubscribes.
	Close() error
}

// HostSampler reports host resource usage.
type HostSampler interface {
	Sample(ctx context.Context) (domain.HostMetrics, error)
}
