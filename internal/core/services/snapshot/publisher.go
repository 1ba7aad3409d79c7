// Package snapshot periodically publishes the container list, the image
// list, per container stats and host metrics onto the bus.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"golang.org/x/time/rate"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// DefaultInterval is the pause between two snapshots of the same kind.
const DefaultInterval = time.Second

// Publisher runs the snapshot loops.
type Publisher struct {
	runtime  ports.Runtime
	bus      ports.Bus
	host     ports.HostSampler
	interval time.Duration
	log      *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithHostSampler enables the host metrics loop.
func WithHostSampler(h ports.HostSampler) Option {
	return func(p *Publisher) { p.host = h }
}

// WithInterval sets the pause between snapshots. d <= 0 selects DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPublisher creates a snapshot Publisher.
func NewPublisher(runtime ports.Runtime, bus ports.Bus, log *slog.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{runtime: runtime, bus: bus, interval: DefaultInterval, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run blocks until ctx is done, publishing every snapshot kind on its own loop.
func (p *Publisher) Run(ctx context.Context) {
	var wg conc.WaitGroup
	wg.Go(func() { p.loop(ctx, "containers", p.PublishContainers) })
	wg.Go(func() { p.loop(ctx, "images", p.PublishImages) })
	wg.Go(func() { p.loop(ctx, "container metrics", p.PublishContainerMetrics) })
	if p.host != nil {
		wg.Go(func() { p.loop(ctx, "host metrics", p.PublishHostMetrics) })
	}
	wg.Wait()
	p.log.Info("snapshot publishers stopped")
}

// loop calls fn at most once per interval. Errors are logged and the loop goes on.
func (p *Publisher) loop(ctx context.Context, name string, fn func(context.Context) error) {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("snapshot failed", "snapshot", name, "err", err)
		}
	}
}

// PublishContainers publishes every container, running or not.
func (p *Publisher) PublishContainers(ctx context.Context) error {
	containers, err := p.runtime.ListContainers(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	if containers == nil {
		containers = []domain.Container{}
	}
	return p.publishJSON(ctx, domain.ChannelContainerList, containers)
}

// PublishImages publishes every local image with the number of containers using it.
func (p *Publisher) PublishImages(ctx context.Context) error {
	images, err := p.runtime.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	containers, err := p.runtime.ListContainers(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	perImage := make(map[string]int, len(images))
	for _, c := range containers {
		perImage[trimDigest(c.ImageID)]++
	}
	out := make([]domain.Image, 0, len(images))
	for _, img := range images {
		img.ID = trimDigest(img.ID)
		img.NumContainers = perImage[img.ID]
		out = append(out, img)
	}
	return p.publishJSON(ctx, domain.ChannelImageList, out)
}

// PublishContainerMetrics fetches one stats sample per running container
// concurrently and publishes each on the container's own channel.
func (p *Publisher) PublishContainerMetrics(ctx context.Context) error {
	containers, err := p.runtime.ListContainers(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	errs := make([]error, len(containers))
	iter.ForEachIdx(containers, func(i int, c *domain.Container) {
		stats, err := p.runtime.ContainerStats(ctx, c.ID)
		if err != nil {
			errs[i] = fmt.Errorf("failed to get stats for container %s: %w", domain.ShortID(c.ID), err)
			return
		}
		if err := p.bus.Publish(ctx, domain.ContainerMetricsChannel(c.ID), stats); err != nil {
			errs[i] = fmt.Errorf("failed to publish stats for container %s: %w", domain.ShortID(c.ID), err)
		}
	})
	return errors.Join(errs...)
}

// PublishHostMetrics publishes one host usage sample.
func (p *Publisher) PublishHostMetrics(ctx context.Context) error {
	if p.host == nil {
		return nil
	}
	m, err := p.host.Sample(ctx)
	if err != nil {
		return fmt.Errorf("failed to sample host: %w", err)
	}
	return p.publishJSON(ctx, domain.ChannelHostMetrics, m)
}

func (p *Publisher) publishJSON(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", channel, err)
	}
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", channel, err)
	}
	return nil
}

func trimDigest(id string) string {
	return strings.TrimPrefix(id, "sha256:")
}
