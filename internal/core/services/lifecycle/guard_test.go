package lifecycle

import (
	"testing"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		action  domain.Action
		status  domain.Status
		verdict Verdict
		reason  string
	}{
		{domain.ActionStart, domain.StatusExited, Allow, ""},
		{domain.ActionStart, domain.StatusCreated, Allow, ""},
		{domain.ActionStart, domain.StatusRunning, Deny, "already started"},
		{domain.ActionStart, domain.StatusPaused, Deny, "already started"},

		{domain.ActionStop, domain.StatusRunning, Allow, ""},
		{domain.ActionStop, domain.StatusPaused, Allow, ""},
		{domain.ActionStop, domain.StatusExited, Deny, "already stopped"},
		{domain.ActionStop, domain.StatusCreated, Deny, "already stopped"},

		{domain.ActionKill, domain.StatusRunning, Allow, ""},
		{domain.ActionKill, domain.StatusPaused, Allow, ""},
		{domain.ActionKill, domain.StatusExited, Deny, "already killed"},

		{domain.ActionPause, domain.StatusRunning, Allow, ""},
		{domain.ActionPause, domain.StatusPaused, Deny, "already paused"},
		{domain.ActionPause, domain.StatusExited, Deny, "already paused"},

		{domain.ActionResume, domain.StatusPaused, Allow, ""},
		{domain.ActionResume, domain.StatusRunning, Deny, "already running"},

		{domain.ActionRestart, domain.StatusRunning, Allow, ""},
		{domain.ActionRestart, domain.StatusPaused, Allow, ""},
		{domain.ActionRestart, domain.StatusExited, Skip, "not running"},
		{domain.ActionRestart, domain.StatusCreated, Skip, "not running"},

		{domain.ActionDelete, domain.StatusRunning, Allow, ""},
		{domain.ActionDelete, domain.StatusExited, Allow, ""},
		{domain.ActionDelete, domain.StatusDead, Allow, ""},
	}
	for _, tc := range cases {
		verdict, reason := Check(tc.action, tc.status)
		if verdict != tc.verdict || reason != tc.reason {
			t.Errorf("Check(%s, %s) = (%s, %q), want (%s, %q)",
				tc.action, tc.status, verdict, reason, tc.verdict, tc.reason)
		}
	}
}

func TestCheckUnknownStatusIsDenied(t *testing.T) {
	if v, _ := Check(domain.ActionStart, domain.StatusRestarting); v != Deny {
		t.Errorf("start on restarting = %s, want deny", v)
	}
}
