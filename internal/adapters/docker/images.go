package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// ListImages returns every local image. Untagged images are named "none".
func (a *Adapter) ListImages(ctx context.Context) ([]domain.Image, error) {
	images, err := a.cli.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return nil, wrap("list images", err)
	}
	out := make([]domain.Image, 0, len(images))
	for _, img := range images {
		name, tag := "none", "none"
		if len(img.RepoTags) > 0 {
			name = img.RepoTags[0]
			if i := strings.LastIndex(name, ":"); i >= 0 && !strings.Contains(name[i+1:], "/") {
				tag = name[i+1:]
			}
		}
		out = append(out, domain.Image{
			ID:      img.ID,
			Name:    name,
			Tag:     tag,
			Created: img.Created,
			Size:    img.Size,
		})
	}
	return out, nil
}

// PullImage pulls ref:tag and returns the last status line reported by the daemon.
func (a *Adapter) PullImage(ctx context.Context, ref, tag string) (string, error) {
	target := ref + ":" + tag
	reader, err := a.cli.ImagePull(ctx, target, image.PullOptions{})
	if err != nil {
		return "", wrap("pull image", err)
	}
	defer reader.Close()

	status, err := lastStatus(reader)
	if err != nil {
		return "", fmt.Errorf("failed to pull image %s: %w", target, err)
	}
	a.log.Info("image pulled", "image", target, "status", status)
	return status, nil
}

// RemoveImage deletes a local image.
func (a *Adapter) RemoveImage(ctx context.Context, id string, force bool) error {
	_, err := a.cli.ImageRemove(ctx, id, image.RemoveOptions{Force: force, PruneChildren: true})
	return wrap("remove image", err)
}

// lastStatus drains a pull or build progress stream and returns its last
// status line. An error message embedded in the stream is returned as an error.
func lastStatus(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	var last string
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return last, nil
			}
			return last, fmt.Errorf("failed to read progress stream: %w", err)
		}
		if msg.Error != nil {
			return last, msg.Error
		}
		if msg.Status != "" {
			last = msg.Status
		} else if s := strings.TrimSpace(msg.Stream); s != "" {
			last = s
		}
	}
}
