package domain

// Action is a user requested transition.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionKill    Action = "kill"
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionRestart Action = "restart"
	ActionDelete  Action = "delete"

	ActionCreate      Action = "create"
	ActionDeleteImage Action = "delete-image"
	ActionPullImage   Action = "pull"
	ActionBuildImage  Action = "build"
)

// ContainerActions are the actions exposed under /containers/{action}.
var ContainerActions = []Action{
	ActionStart, ActionStop, ActionKill, ActionPause, ActionResume, ActionRestart, ActionDelete,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionKill, ActionPause, ActionResume, ActionRestart, ActionDelete,
		ActionCreate, ActionDeleteImage, ActionPullImage, ActionBuildImage:
		return true
	}
	return false
}

// NeedsPayload reports whether a operates on a payload instead of a list of ids.
func (a Action) NeedsPayload() bool {
	return a == ActionCreate || a == ActionPullImage || a == ActionBuildImage
}

// Payload carries the arguments of payload based actions.
type Payload struct {
	Image   string `json:"image"`
	Tag     string `json:"tag,omitempty"`
	RepoURL string `json:"repo_url,omitempty"`
}

// ActionRequest is one batch: an action applied to an ordered set of ids,
// plus at most one payload based unit.
type ActionRequest struct {
	IDs     []string
	Action  Action
	Payload *Payload
}

// Units returns the number of units of work the request fans out to.
func (r ActionRequest) Units() int {
	n := len(r.IDs)
	if r.Payload != nil {
		n++
	}
	return n
}
