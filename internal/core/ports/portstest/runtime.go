// Package portstest provides in-memory implementations of the core ports for tests.
package portstest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// Call is one recorded runtime invocation.
type Call struct {
	Op string
	ID string
}

// Runtime is a fake ports.Runtime backed by a map of container statuses.
// Mutations update the stored status the way the Docker daemon would.
type Runtime struct {
	mu         sync.Mutex
	containers map[string]domain.Status
	images     map[string]bool
	imageOf    map[string]string
	calls      []Call

	// Errors maps "op" or "op:id" to an error returned by that call.
	Errors map[string]error
	// PullStatus is the last status line returned by PullImage.
	PullStatus string
	// QuietPull makes PullImage report no status line at all.
	QuietPull bool
	// Pruned maps a prune target to the number of objects it deletes.
	Pruned map[domain.PruneTarget]int
	// Hook, when set, runs after every call is recorded.
	Hook func(op, id string)
}

// NewRuntime returns a fake runtime holding the given containers.
func NewRuntime(containers map[string]domain.Status) *Runtime {
	c := make(map[string]domain.Status, len(containers))
	for id, s := range containers {
		c[id] = s
	}
	return &Runtime{
		containers: c,
		images:     make(map[string]bool),
		imageOf:    make(map[string]string),
		Errors:     make(map[string]error),
		Pruned:     make(map[domain.PruneTarget]int),
	}
}

// AddImage registers a local image id.
func (r *Runtime) AddImage(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[id] = true
}

// AddContainer registers a container created from imageID.
func (r *Runtime) AddContainer(id string, status domain.Status, imageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[id] = status
	r.imageOf[id] = imageID
}

// SetError makes op (optionally scoped to one id) fail with err.
func (r *Runtime) SetError(op, id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := op
	if id != "" {
		key = op + ":" + id
	}
	r.Errors[key] = err
}

// Calls returns a copy of the recorded calls.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the ops recorded for one id, in order.
func (r *Runtime) CallsFor(id string) []string {
	var ops []string
	for _, c := range r.Calls() {
		if c.ID == id {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Status returns the stored status of a container.
func (r *Runtime) Status(id string) (domain.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.containers[id]
	return s, ok
}

func (r *Runtime) record(op, id string) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, ID: id})
	err := r.Errors[op+":"+id]
	if err == nil {
		err = r.Errors[op]
	}
	hook := r.Hook
	r.mu.Unlock()
	if hook != nil {
		hook(op, id)
	}
	return err
}

func (r *Runtime) transition(op, id string, to domain.Status) error {
	if err := r.record(op, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[id]; !ok {
		return ports.NotFound(fmt.Errorf("No such container: %s", id))
	}
	r.containers[id] = to
	return nil
}

func (r *Runtime) InspectContainer(ctx context.Context, id string) (domain.Resource, error) {
	if err := r.record("inspect", id); err != nil {
		return domain.Resource{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.containers[id]
	if !ok {
		return domain.Resource{}, ports.NotFound(fmt.Errorf("No such container: %s", id))
	}
	return domain.Resource{ID: id, Kind: domain.KindContainer, Status: s}, nil
}

func (r *Runtime) InspectContainerRaw(ctx context.Context, id string) ([]byte, error) {
	res, err := r.InspectContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"Id":%q,"State":{"Status":%q}}`, res.ID, res.Status)), nil
}

func (r *Runtime) ListContainers(ctx context.Context, all bool) ([]domain.Container, error) {
	if err := r.record("list", ""); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Container
	for id, s := range r.containers {
		if !all && s != domain.StatusRunning {
			continue
		}
		out = append(out, domain.Container{ID: id, Name: id, ImageID: r.imageOf[id], State: s})
	}
	return out, nil
}

func (r *Runtime) CreateContainer(ctx context.Context, image string) (string, error) {
	if err := r.record("create", image); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.images[image] && !r.images[image+":latest"] {
		return "", ports.NotFound(errors.New("No such image: " + image))
	}
	id := fmt.Sprintf("c%063d", len(r.containers)+1)
	r.containers[id] = domain.StatusCreated
	return id, nil
}

func (r *Runtime) StartContainer(ctx context.Context, id string) error {
	return r.transition("start", id, domain.StatusRunning)
}

func (r *Runtime) StopContainer(ctx context.Context, id string) error {
	return r.transition("stop", id, domain.StatusExited)
}

func (r *Runtime) KillContainer(ctx context.Context, id string) error {
	return r.transition("kill", id, domain.StatusExited)
}

func (r *Runtime) PauseContainer(ctx context.Context, id string) error {
	return r.transition("pause", id, domain.StatusPaused)
}

func (r *Runtime) UnpauseContainer(ctx context.Context, id string) error {
	return r.transition("unpause", id, domain.StatusRunning)
}

func (r *Runtime) RestartContainer(ctx context.Context, id string) error {
	return r.transition("restart", id, domain.StatusRunning)
}

func (r *Runtime) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := r.record("remove", id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[id]; !ok {
		return ports.NotFound(fmt.Errorf("No such container: %s", id))
	}
	delete(r.containers, id)
	return nil
}

func (r *Runtime) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := r.record("logs", id); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("log line for " + id + "\n")), nil
}

func (r *Runtime) ContainerStats(ctx context.Context, id string) ([]byte, error) {
	if err := r.record("stats", id); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"id":%q}`, id)), nil
}

func (r *Runtime) ListImages(ctx context.Context) ([]domain.Image, error) {
	if err := r.record("images", ""); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Image
	for id := range r.images {
		out = append(out, domain.Image{ID: id, Name: id, Tag: "latest"})
	}
	return out, nil
}

func (r *Runtime) PullImage(ctx context.Context, ref, tag string) (string, error) {
	if err := r.record("pull", ref+":"+tag); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[ref+":"+tag] = true
	if r.QuietPull {
		return "", nil
	}
	if r.PullStatus != "" {
		return r.PullStatus, nil
	}
	return "Status: Downloaded newer image for " + ref + ":" + tag, nil
}

func (r *Runtime) RemoveImage(ctx context.Context, id string, force bool) error {
	if err := r.record("remove-image", id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.images[id] {
		return ports.NotFound(errors.New("No such image: " + id))
	}
	delete(r.images, id)
	return nil
}

func (r *Runtime) Prune(ctx context.Context, target domain.PruneTarget) (int, uint64, error) {
	if err := r.record("prune", string(target)); err != nil {
		return 0, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.Pruned[target]
	return n, uint64(n) * 1024, nil
}

var _ ports.Runtime = (*Runtime)(nil)
