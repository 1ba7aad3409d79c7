package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// DefaultTag is used when a pull request names no tag.
const DefaultTag = "latest"

var errBuildsDisabled = errors.New("image builds are not enabled")

// Executor applies one action to one resource. It never returns an error:
// every problem is folded into the returned domain.Outcome.
type Executor struct {
	runtime ports.Runtime
	builder ports.BuilderService
	log     *slog.Logger

	// restartFailuresAreNoOps turns runtime errors from restart into skipped
	// outcomes instead of batch errors.
	restartFailuresAreNoOps bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBuilder enables the build action.
func WithBuilder(b ports.BuilderService) ExecutorOption {
	return func(e *Executor) { e.builder = b }
}

// WithRestartFailuresAreNoOps sets the restart failure policy. It defaults to true.
func WithRestartFailuresAreNoOps(v bool) ExecutorOption {
	return func(e *Executor) { e.restartFailuresAreNoOps = v }
}

// NewExecutor creates an Executor on top of the runtime.
func NewExecutor(runtime ports.Runtime, log *slog.Logger, opts ...ExecutorOption) *Executor {
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		runtime:                 runtime,
		log:                     log,
		restartFailuresAreNoOps: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute applies an id based action. The container status is fetched fresh
// right before the guard runs; it is never cached across units.
func (e *Executor) Execute(ctx context.Context, id string, action domain.Action) domain.Outcome {
	if action == domain.ActionDeleteImage {
		return e.deleteImage(ctx, id)
	}

	res, err := e.runtime.InspectContainer(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.PreconditionFailure(id, "no such container")
		}
		return domain.RuntimeFailure(id, err)
	}

	verdict, reason := Check(action, res.Status)
	switch verdict {
	case Deny:
		e.log.Debug("transition rejected", "id", domain.ShortID(id), "action", action, "status", res.Status, "reason", reason)
		return domain.PreconditionFailure(id, reason)
	case Skip:
		e.log.Debug("transition skipped", "id", domain.ShortID(id), "action", action, "status", res.Status)
		return domain.Skipped(id, reason)
	}

	switch action {
	case domain.ActionStart:
		err = e.runtime.StartContainer(ctx, id)
	case domain.ActionStop:
		err = e.runtime.StopContainer(ctx, id)
	case domain.ActionKill:
		err = e.runtime.KillContainer(ctx, id)
	case domain.ActionPause:
		err = e.runtime.PauseContainer(ctx, id)
	case domain.ActionResume:
		err = e.runtime.UnpauseContainer(ctx, id)
	case domain.ActionRestart:
		return e.restart(ctx, id)
	case domain.ActionDelete:
		return e.deleteContainer(ctx, res)
	default:
		return domain.RuntimeFailure(id, fmt.Errorf("unsupported action %q", action))
	}
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.PreconditionFailure(id, "no such container")
		}
		return domain.RuntimeFailure(id, err)
	}
	return domain.Success(id, "")
}

func (e *Executor) restart(ctx context.Context, id string) domain.Outcome {
	err := e.runtime.RestartContainer(ctx, id)
	if err == nil {
		return domain.Success(id, "")
	}
	if e.restartFailuresAreNoOps {
		e.log.Warn("restart failed, treating as no-op", "id", domain.ShortID(id), "err", err)
		return domain.Skipped(id, err.Error())
	}
	return domain.RuntimeFailure(id, err)
}

// deleteContainer stops a running or paused container first, then force removes it.
func (e *Executor) deleteContainer(ctx context.Context, res domain.Resource) domain.Outcome {
	if mustStopFirst(res.Status) {
		if err := e.runtime.StopContainer(ctx, res.ID); err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return domain.PreconditionFailure(res.ID, "already deleted")
			}
			return domain.RuntimeFailure(res.ID, err)
		}
	}
	if err := e.runtime.RemoveContainer(ctx, res.ID, true); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.PreconditionFailure(res.ID, "already deleted")
		}
		return domain.RuntimeFailure(res.ID, err)
	}
	return domain.Success(res.ID, "")
}

func (e *Executor) deleteImage(ctx context.Context, id string) domain.Outcome {
	if err := e.runtime.RemoveImage(ctx, id, true); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.PreconditionFailure(id, "already deleted")
		}
		return domain.RuntimeFailure(id, err)
	}
	return domain.Success(id, "")
}

// ExecutePayload applies a payload based action (pull, build, create).
func (e *Executor) ExecutePayload(ctx context.Context, action domain.Action, p domain.Payload) domain.Outcome {
	switch action {
	case domain.ActionPullImage:
		return e.pull(ctx, p)
	case domain.ActionBuildImage:
		return e.build(ctx, p)
	case domain.ActionCreate:
		return e.create(ctx, p)
	}
	return domain.RuntimeFailure(p.Image, fmt.Errorf("unsupported action %q", action))
}

func (e *Executor) pull(ctx context.Context, p domain.Payload) domain.Outcome {
	tag := p.Tag
	if tag == "" {
		tag = DefaultTag
	}
	ref := p.Image + ":" + tag
	status, err := e.runtime.PullImage(ctx, p.Image, tag)
	if err != nil {
		return domain.Outcome{ID: ref, Label: ref, Result: domain.ResultFailure, Detail: err.Error(), Source: domain.SourceRuntime}
	}
	if status == "" {
		status = ref
	}
	return domain.Outcome{ID: ref, Label: status, Result: domain.ResultSuccess, Detail: status}
}

func (e *Executor) build(ctx context.Context, p domain.Payload) domain.Outcome {
	if e.builder == nil {
		return domain.Outcome{ID: p.Image, Label: p.Image, Result: domain.ResultFailure, Detail: errBuildsDisabled.Error(), Source: domain.SourceRuntime}
	}
	name, err := e.builder.BuildImage(ctx, p.RepoURL, p.Image)
	if err != nil {
		return domain.Outcome{ID: p.Image, Label: p.Image, Result: domain.ResultFailure, Detail: err.Error(), Source: domain.SourceRuntime}
	}
	return domain.Outcome{ID: name, Label: name, Result: domain.ResultSuccess, Detail: "built from " + p.RepoURL}
}

// create creates a container from an image, pulling the image once if it is missing.
func (e *Executor) create(ctx context.Context, p domain.Payload) domain.Outcome {
	id, err := e.runtime.CreateContainer(ctx, p.Image)
	if errors.Is(err, ports.ErrNotFound) {
		ref, tag := splitRef(p.Image)
		e.log.Info("image missing, pulling before create", "image", p.Image)
		if _, perr := e.runtime.PullImage(ctx, ref, tag); perr != nil {
			return domain.Outcome{ID: p.Image, Label: p.Image, Result: domain.ResultFailure, Detail: perr.Error(), Source: domain.SourceRuntime}
		}
		id, err = e.runtime.CreateContainer(ctx, p.Image)
	}
	if err != nil {
		return domain.Outcome{ID: p.Image, Label: p.Image, Result: domain.ResultFailure, Detail: err.Error(), Source: domain.SourceRuntime}
	}
	return domain.Success(id, "created from "+p.Image)
}

// splitRef splits "repo:tag" into its parts, defaulting the tag. A colon
// belonging to a registry port ("host:5000/repo") is not a tag separator.
func splitRef(image string) (string, string) {
	i := strings.LastIndex(image, ":")
	if i < 0 || strings.Contains(image[i+1:], "/") {
		return image, DefaultTag
	}
	return image[:i], image[i+1:]
}
