package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// Prune removes unused objects of one type and reports how many were
// deleted and how many bytes were reclaimed. Networks reclaim no space.
func (a *Adapter) Prune(ctx context.Context, target domain.PruneTarget) (int, uint64, error) {
	args := filters.NewArgs()
	switch target {
	case domain.PruneContainers:
		r, err := a.cli.ContainersPrune(ctx, args)
		if err != nil {
			return 0, 0, wrap("prune containers", err)
		}
		return len(r.ContainersDeleted), r.SpaceReclaimed, nil
	case domain.PruneImages:
		r, err := a.cli.ImagesPrune(ctx, args)
		if err != nil {
			return 0, 0, wrap("prune images", err)
		}
		return len(r.ImagesDeleted), r.SpaceReclaimed, nil
	case domain.PruneVolumes:
		r, err := a.cli.VolumesPrune(ctx, args)
		if err != nil {
			return 0, 0, wrap("prune volumes", err)
		}
		return len(r.VolumesDeleted), r.SpaceReclaimed, nil
	case domain.PruneNetworks:
		r, err := a.cli.NetworksPrune(ctx, args)
		if err != nil {
			return 0, 0, wrap("prune networks", err)
		}
		return len(r.NetworksDeleted), 0, nil
	}
	return 0, 0, fmt.Errorf("unknown prune target %q", target)
}
