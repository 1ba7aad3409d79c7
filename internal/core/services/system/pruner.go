// Package system implements host wide maintenance operations.
package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	units "github.com/docker/go-units"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
	"github.com/melih/lighthouse-dash/internal/core/services/lifecycle"
)

// Pruner removes unused runtime objects and reports what was reclaimed.
type Pruner struct {
	runtime ports.PruneService
	events  lifecycle.EventPublisher
	log     *slog.Logger
}

// NewPruner creates a Pruner.
func NewPruner(runtime ports.PruneService, events lifecycle.EventPublisher, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{runtime: runtime, events: events, log: log}
}

// Prune prunes every named object type. No targets means containers only.
//
// Unknown targets reject the whole request with a wrapped
// lifecycle.ErrMalformedRequest before anything is pruned. Otherwise every
// target is attempted; failures are joined and the partial report returned.
func (p *Pruner) Prune(ctx context.Context, objects []string) (domain.PruneReport, error) {
	report := domain.PruneReport{Deleted: make(map[domain.PruneTarget]int)}

	targets, err := parseTargets(objects)
	if err != nil {
		p.Reject(ctx, err)
		return report, err
	}

	var errs []error
	for _, t := range targets {
		n, reclaimed, err := p.runtime.Prune(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to prune %s: %w", t, err))
			continue
		}
		report.Deleted[t] += n
		report.SpaceReclaimed += reclaimed
		p.log.Info("pruned", "target", t, "deleted", n, "reclaimed", reclaimed)
	}

	if err := errors.Join(errs...); err != nil {
		p.events.Publish(ctx, "API error, please try again: "+err.Error(), domain.CategoryError)
		return report, err
	}
	p.events.Publish(ctx, Summary(report), domain.CategorySuccess)
	return report, nil
}

// Reject publishes an error event for a prune request that was never attempted.
func (p *Pruner) Reject(ctx context.Context, err error) {
	p.log.Warn("prune rejected", "err", err)
	p.events.Publish(ctx, "API error, please try again: "+err.Error(), domain.CategoryError)
}

// Summary formats the success message of a prune.
func Summary(r domain.PruneReport) string {
	return fmt.Sprintf("System pruned successfully: %d objects deleted, %s space reclaimed",
		r.Total(), units.HumanSize(float64(r.SpaceReclaimed)))
}

func parseTargets(objects []string) ([]domain.PruneTarget, error) {
	if len(objects) == 0 {
		return []domain.PruneTarget{domain.PruneContainers}, nil
	}
	seen := make(map[domain.PruneTarget]bool, len(objects))
	targets := make([]domain.PruneTarget, 0, len(objects))
	for _, o := range objects {
		t := domain.PruneTarget(o)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown prune target %q", lifecycle.ErrMalformedRequest, o)
		}
		if !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}
	return targets, nil
}
