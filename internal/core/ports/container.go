package ports

import (
	"context"
	"errors"
	"io"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// ErrNotFound is matched (errors.Is) by runtime errors for missing resources.
var ErrNotFound = errors.New("not found")

type notFoundError struct{ err error }

func (e notFoundError) Error() string        { return e.err.Error() }
func (e notFoundError) Unwrap() error        { return e.err }
func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound marks err as a not-found error while keeping its message.
func NotFound(err error) error {
	if err == nil {
		return nil
	}
	return notFoundError{err: err}
}

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	// InspectContainer fetches the current status of a container.
	InspectContainer(ctx context.Context, id string) (domain.Resource, error)
	// InspectContainerRaw returns the full attribute payload as reported by the runtime.
	InspectContainerRaw(ctx context.Context, id string) ([]byte, error)
	ListContainers(ctx context.Context, all bool) ([]domain.Container, error)
	CreateContainer(ctx context.Context, image string) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	KillContainer(ctx context.Context, id string) error
	PauseContainer(ctx context.Context, id string) error
	UnpauseContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
	// ContainerStats returns a single stats sample as JSON.
	ContainerStats(ctx context.Context, id string) ([]byte, error)
}

// ImageService defines the operations on local images.
type ImageService interface {
	ListImages(ctx context.Context) ([]domain.Image, error)
	// PullImage pulls ref:tag and returns the last status line of the pull stream.
	PullImage(ctx context.Context, ref, tag string) (string, error)
	RemoveImage(ctx context.Context, id string, force bool) error
}

// PruneService removes unused objects of one type.
type PruneService interface {
	Prune(ctx context.Context, target domain.PruneTarget) (deleted int, reclaimed uint64, err error)
}

// Runtime is the full container runtime surface used by the dashboard.
type Runtime interface {
	ContainerService
	ImageService
	PruneService
}
