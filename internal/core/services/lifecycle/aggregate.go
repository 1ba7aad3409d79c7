package lifecycle

import (
	"fmt"
	"strings"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// Notice is a summary line waiting to be published as an event.
type Notice struct {
	Text     string
	Category domain.Category
}

type messages struct {
	success string
	failure string
}

var actionMessages = map[domain.Action]messages{
	domain.ActionStart:       {"Containers started", "Containers already started"},
	domain.ActionStop:        {"Containers stopped", "Containers already stopped"},
	domain.ActionKill:        {"Containers killed", "Containers already killed"},
	domain.ActionPause:       {"Containers paused", "Containers already paused"},
	domain.ActionResume:      {"Containers resumed", "Containers already running"},
	domain.ActionRestart:     {"Containers restarted", "Containers failed to restart"},
	domain.ActionDelete:      {"Containers deleted", "Containers failed to delete"},
	domain.ActionCreate:      {"Containers created", "Containers failed to create"},
	domain.ActionDeleteImage: {"Images deleted", "Images failed to delete"},
	domain.ActionPullImage:   {"Image pulled", "Image pull failed"},
	domain.ActionBuildImage:  {"Image built", "Image build failed"},
}

// Aggregate partitions outcomes into success labels and error messages.
// Skipped units are non-errors and land in the success bucket, so the two
// buckets always add up to the number of outcomes.
//
// Guard failures are reported by short id; runtime failures by the runtime's message.
func Aggregate(outcomes []domain.Outcome) domain.BatchSummary {
	s := domain.BatchSummary{
		SuccessIDs:    []string{},
		ErrorMessages: []string{},
	}
	for _, o := range outcomes {
		switch {
		case !o.Failed():
			s.SuccessIDs = append(s.SuccessIDs, o.Label)
		case o.Source == domain.SourceRuntime:
			s.ErrorMessages = append(s.ErrorMessages, o.Detail)
		default:
			s.ErrorMessages = append(s.ErrorMessages, o.Label)
		}
	}
	return s
}

// Notices formats the summary lines for a batch: one success line when
// anything succeeded, one error line when anything failed.
func Notices(action domain.Action, s domain.BatchSummary) []Notice {
	m, ok := actionMessages[action]
	if !ok {
		m = messages{success: "Action " + string(action) + " succeeded", failure: "Action " + string(action) + " failed"}
	}
	var out []Notice
	if n := len(s.SuccessIDs); n > 0 {
		out = append(out, Notice{
			Text:     fmt.Sprintf("%s (%d): %s", m.success, n, formatList(s.SuccessIDs)),
			Category: domain.CategorySuccess,
		})
	}
	if len(s.ErrorMessages) > 0 {
		out = append(out, Notice{
			Text:     fmt.Sprintf("%s: %s", m.failure, formatList(s.ErrorMessages)),
			Category: domain.CategoryError,
		})
	}
	return out
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
