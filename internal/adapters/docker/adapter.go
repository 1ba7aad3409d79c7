package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// DefaultStopTimeout is how long the daemon waits before killing a stopping container.
const DefaultStopTimeout = 10 * time.Second

// Adapter implements ports.Runtime using the Docker SDK.
type Adapter struct {
	cli         *client.Client
	log         *slog.Logger
	stopTimeout time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithStopTimeout sets the grace period for stop and restart.
func WithStopTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.stopTimeout = d }
}

// NewAdapter creates a new Docker adapter from the environment (DOCKER_HOST etc.).
func NewAdapter(log *slog.Logger, opts ...Option) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{cli: cli, log: log, stopTimeout: DefaultStopTimeout}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Client exposes the underlying SDK client so other adapters can share it.
func (a *Adapter) Client() *client.Client { return a.cli }

// Ping checks that the daemon is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach docker daemon: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (a *Adapter) Close() error { return a.cli.Close() }

// wrap adds context to a daemon error and marks not-found errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errdefs.IsNotFound(err) {
		return ports.NotFound(fmt.Errorf("failed to %s: %w", op, err))
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// InspectContainer fetches the current status of a container.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (domain.Resource, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return domain.Resource{}, wrap("inspect container", err)
	}
	res := domain.Resource{ID: info.ID, Kind: domain.KindContainer}
	if info.State != nil {
		res.Status = domain.Status(info.State.Status)
	}
	return res, nil
}

// InspectContainerRaw returns the daemon's inspect payload unchanged.
func (a *Adapter) InspectContainerRaw(ctx context.Context, id string) ([]byte, error) {
	_, raw, err := a.cli.ContainerInspectWithRaw(ctx, id, false)
	if err != nil {
		return nil, wrap("inspect container", err)
	}
	return raw, nil
}

// ListContainers returns containers with details. all includes stopped ones.
func (a *Adapter) ListContainers(ctx context.Context, all bool) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, wrap("list containers", err)
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		result = append(result, toContainer(c))
	}
	return result, nil
}

func toContainer(c types.Container) domain.Container {
	names := make([]string, 0, len(c.Names))
	for _, n := range c.Names {
		names = append(names, strings.TrimPrefix(n, "/"))
	}
	name := ""
	if len(names) > 0 {
		name = names[0]
	}

	published := make([]domain.Port, 0, len(c.Ports))
	for _, p := range c.Ports {
		published = append(published, domain.Port{IP: p.IP, PrivatePort: p.PrivatePort, PublicPort: p.PublicPort, Type: p.Type})
	}

	var ip string
	if c.NetworkSettings != nil {
		for _, n := range c.NetworkSettings.Networks {
			if n != nil && n.IPAddress != "" {
				ip = n.IPAddress
				break
			}
		}
	}

	return domain.Container{
		ID:        c.ID,
		Name:      name,
		Names:     names,
		Image:     c.Image,
		ImageID:   c.ImageID,
		Status:    c.Status,
		State:     domain.Status(c.State),
		Ports:     published,
		IPAddress: ip,
	}
}

// CreateContainer creates (but does not start) a container from image.
func (a *Adapter) CreateContainer(ctx context.Context, image string) (string, error) {
	resp, err := a.cli.ContainerCreate(ctx, &container.Config{Image: image}, nil, nil, nil, "")
	if err != nil {
		return "", wrap("create container", err)
	}
	for _, w := range resp.Warnings {
		a.log.Warn("container created with warning", "id", domain.ShortID(resp.ID), "warning", w)
	}
	return resp.ID, nil
}

func (a *Adapter) StartContainer(ctx context.Context, id string) error {
	return wrap("start container", a.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

// StopContainer stops a running container, killing it after the stop timeout.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	return wrap("stop container", a.cli.ContainerStop(ctx, id, a.stopOptions()))
}

func (a *Adapter) KillContainer(ctx context.Context, id string) error {
	return wrap("kill container", a.cli.ContainerKill(ctx, id, "SIGKILL"))
}

func (a *Adapter) PauseContainer(ctx context.Context, id string) error {
	return wrap("pause container", a.cli.ContainerPause(ctx, id))
}

func (a *Adapter) UnpauseContainer(ctx context.Context, id string) error {
	return wrap("unpause container", a.cli.ContainerUnpause(ctx, id))
}

func (a *Adapter) RestartContainer(ctx context.Context, id string) error {
	return wrap("restart container", a.cli.ContainerRestart(ctx, id, a.stopOptions()))
}

func (a *Adapter) RemoveContainer(ctx context.Context, id string, force bool) error {
	return wrap("remove container", a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}))
}

func (a *Adapter) stopOptions() container.StopOptions {
	secs := int(a.stopTimeout / time.Second)
	return container.StopOptions{Timeout: &secs}
}

// GetContainerLogs returns the container's stdout and stderr as plain text.
// Non TTY log streams are multiplexed by the daemon and get demuxed here.
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, wrap("inspect container", err)
	}
	logs, err := a.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	})
	if err != nil {
		return nil, wrap("get container logs", err)
	}
	if info.Config != nil && info.Config.Tty {
		return logs, nil
	}

	pr, pw := io.Pipe()
	go func() {
		defer logs.Close()
		_, err := stdcopy.StdCopy(pw, pw, logs)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// ContainerStats returns one stats sample as the daemon's JSON.
func (a *Adapter) ContainerStats(ctx context.Context, id string) ([]byte, error) {
	stats, err := a.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return nil, wrap("get container stats", err)
	}
	defer stats.Body.Close()
	body, err := io.ReadAll(stats.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read container stats: %w", err)
	}
	return body, nil
}

var _ ports.Runtime = (*Adapter)(nil)
