// Package events turns batch summaries into bus events and relays bus
// channels to live stream clients.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// Publisher serializes notices and pushes them onto the server messages channel.
type Publisher struct {
	bus     ports.Bus
	channel string
	log     *slog.Logger
	now     func() time.Time
	events  metric.Int64Counter
}

// NewPublisher creates a Publisher. An empty channel selects domain.ChannelServerMessages.
func NewPublisher(bus ports.Bus, channel string, log *slog.Logger) *Publisher {
	if channel == "" {
		channel = domain.ChannelServerMessages
	}
	if log == nil {
		log = slog.Default()
	}
	events, err := otel.Meter("github.com/melih/lighthouse-dash/events").Int64Counter(
		"events.published",
		metric.WithDescription("Events published to live clients, by category."),
	)
	if err != nil {
		log.Warn("failed to create events counter", "err", err)
		events = noop.Int64Counter{}
	}
	return &Publisher{bus: bus, channel: channel, log: log, now: time.Now, events: events}
}

// Publish sends one event. Failures are logged and never returned.
func (p *Publisher) Publish(ctx context.Context, text string, category domain.Category) {
	ev := domain.Event{
		Text:      text,
		Category:  category,
		Timestamp: float64(p.now().UnixNano()) / float64(time.Second),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to encode event", "err", err)
		return
	}
	if err := p.bus.Publish(ctx, p.channel, payload); err != nil {
		p.log.Error("failed to publish event", "channel", p.channel, "err", err)
		return
	}
	p.events.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(category))))
	p.log.Debug("event published", "channel", p.channel, "category", category, "text", text)
}
