package domain

import "strings"

// ShortIDLength is the number of characters of an id shown to humans.
const ShortIDLength = 12

// Kind is the type of a managed resource.
type Kind string

const (
	KindContainer Kind = "container"
	KindImage     Kind = "image"
)

// Status is the lifecycle state reported by the runtime for a container.
// Images have no lifecycle status.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusExited     Status = "exited"
	StatusRestarting Status = "restarting"
	StatusRemoving   Status = "removing"
	StatusDead       Status = "dead"
)

// Resource is a snapshot of a runtime-owned entity taken right before acting on it.
type Resource struct {
	ID     string
	Kind   Kind
	Status Status
}

// ShortID returns the display form of an id: the first 12 characters,
// with any "sha256:" digest prefix removed.
func ShortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > ShortIDLength {
		return id[:ShortIDLength]
	}
	return id
}
