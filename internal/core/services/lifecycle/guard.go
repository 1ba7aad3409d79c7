// Package lifecycle applies one lifecycle action to a batch of resources
// concurrently and reports the aggregated outcome.
package lifecycle

import "github.com/melih/lighthouse-dash/internal/core/domain"

// Verdict is the state guard's decision for one transition.
type Verdict int

const (
	// Allow means the transition is meaningful and the runtime should be called.
	Allow Verdict = iota
	// Deny is a precondition failure: the resource is already in the target state.
	Deny
	// Skip is a silent no-op that is not reported as an error.
	Skip
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Skip:
		return "skip"
	}
	return "unknown"
}

type rule struct {
	allowed map[domain.Status]bool
	reason  string
	skip    bool
}

func statuses(s ...domain.Status) map[domain.Status]bool {
	m := make(map[domain.Status]bool, len(s))
	for _, st := range s {
		m[st] = true
	}
	return m
}

var rules = map[domain.Action]rule{
	domain.ActionStart:   {allowed: statuses(domain.StatusExited, domain.StatusCreated), reason: "already started"},
	domain.ActionStop:    {allowed: statuses(domain.StatusRunning, domain.StatusPaused), reason: "already stopped"},
	domain.ActionKill:    {allowed: statuses(domain.StatusRunning, domain.StatusPaused), reason: "already killed"},
	domain.ActionPause:   {allowed: statuses(domain.StatusRunning), reason: "already paused"},
	domain.ActionResume:  {allowed: statuses(domain.StatusPaused), reason: "already running"},
	domain.ActionRestart: {allowed: statuses(domain.StatusRunning, domain.StatusPaused), skip: true},
}

// Check decides whether action is meaningful for a resource currently in status.
// Actions without a rule (delete, image and payload actions) are always allowed.
func Check(action domain.Action, status domain.Status) (Verdict, string) {
	r, ok := rules[action]
	if !ok || r.allowed[status] {
		return Allow, ""
	}
	if r.skip {
		return Skip, "not running"
	}
	return Deny, r.reason
}

// mustStopFirst reports whether delete has to stop the container before removing it.
func mustStopFirst(status domain.Status) bool {
	return status == domain.StatusRunning || status == domain.StatusPaused
}
