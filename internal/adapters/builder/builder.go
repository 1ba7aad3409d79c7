// Package builder builds images from git repositories.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
)

// Adapter implements ports.BuilderService: shallow clone, then docker build.
type Adapter struct {
	cli *client.Client
	log *slog.Logger
}

// NewBuilderAdapter creates a builder on top of an existing Docker client.
func NewBuilderAdapter(cli *client.Client, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cli: cli, log: log}
}

// BuildImage clones a repo and builds a Docker image from its root Dockerfile.
func (a *Adapter) BuildImage(ctx context.Context, repoURL string, imageName string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	log := a.log.With("repo", repoURL, "image", imageName)
	log.Info("cloning repository", "dir", tmpDir)
	_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone repo: %w", err)
	}

	tar, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{ExcludePatterns: []string{".git"}})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	log.Info("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{imageName},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// The build only finishes once the stream is drained.
	if err := drain(resp.Body, log); err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	log.Info("image built")
	return imageName, nil
}

// drain reads a build stream to the end, logging build output at debug
// level. An error reported inside the stream is returned.
func drain(r io.Reader, log *slog.Logger) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if msg.Error != nil {
			return msg.Error
		}
		if s := strings.TrimSpace(msg.Stream); s != "" {
			log.Debug("build output", "line", s)
		}
	}
}
