// image.go implements image build and inspection for the bot.
//
// The build context is assembled in memory: the rendered Dockerfile,
// the dependency inputs (lockfile, manifest, extras) and the
// entrypoint script. Nothing else from the context directory is sent
// to the daemon, so a stray virtualenv or .git directory can never
// leak into the image or perturb the build.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// BuildImage builds the bot image from the given build definition and
// context directory, applying the given tags and labels.
//
// Build progress lines from the daemon are written to progress when it
// is non-nil. A build error reported in the response stream fails the
// build even though the HTTP call itself succeeded; the daemon
// delivers failures in-band.
func BuildImage(ctx context.Context, cli *Client, spec *buildspec.Spec, contextDir string, tags []string, labels map[string]string, progress io.Writer) error {
	buildContext, err := buildContextTar(spec, contextDir)
	if err != nil {
		return err
	}

	resp, err := cli.Inner().ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        tags,
		Dockerfile:  buildspec.DockerfileName,
		Labels:      labels,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to start image build",
			err,
		)
	}
	defer resp.Body.Close()

	return decodeBuildStream(resp.Body, progress)
}

// buildMessage is the subset of the daemon's build stream messages
// this tool reads.
type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// decodeBuildStream consumes the JSON message stream of an image
// build, forwarding progress and surfacing in-band errors.
func decodeBuildStream(body io.Reader, progress io.Writer) error {
	decoder := json.NewDecoder(body)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}

		if msg.Error != "" {
			detail := msg.ErrorDetail.Message
			if detail == "" {
				detail = msg.Error
			}
			return model.NewCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("image build failed: %s", strings.TrimSpace(detail)),
			)
		}

		if progress != nil && msg.Stream != "" {
			fmt.Fprint(progress, msg.Stream)
		}
	}
}

// buildContextTar assembles the in-memory tar archive sent to the
// daemon as the build context.
func buildContextTar(spec *buildspec.Spec, contextDir string) (io.Reader, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)

	// The rendered Dockerfile goes in first, under the name the build
	// options reference.
	dockerfile := spec.Render()
	if err := writeTarBytes(tw, buildspec.DockerfileName, 0o644, dockerfile); err != nil {
		return nil, err
	}

	// Dependency inputs, verbatim from the context directory.
	for _, name := range spec.InputFiles() {
		if err := writeTarFile(tw, contextDir, name, 0o644); err != nil {
			return nil, err
		}
	}

	// The entrypoint script ships in the context when present so image
	// builds are self-contained; deployments that mount the source
	// tree instead may omit it.
	entrypoint := strings.TrimPrefix(spec.Entrypoint, "./")
	if _, err := os.Stat(filepath.Join(contextDir, entrypoint)); err == nil {
		if err := writeTarFile(tw, contextDir, entrypoint, 0o755); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context: %w", err)
	}
	return buf, nil
}

// writeTarBytes adds an in-memory file to the archive.
func writeTarBytes(tw *tar.Writer, name string, mode int64, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: mode,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s into build context: %w", name, err)
	}
	return nil
}

// writeTarFile adds a file from the context directory to the archive.
func writeTarFile(tw *tar.Writer, contextDir string, name string, mode int64) error {
	data, err := os.ReadFile(filepath.Join(contextDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewCLIError(
				model.ExitLockfileMissing,
				fmt.Sprintf("build input %s not found in context %s", name, contextDir),
			)
		}
		return fmt.Errorf("failed to read build input %s: %w", name, err)
	}
	return writeTarBytes(tw, name, mode, data)
}

// ImageExists reports whether an image with the given reference exists
// locally.
func ImageExists(ctx context.Context, cli *Client, ref string) (bool, error) {
	images, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker images",
			err,
		)
	}
	return len(images) > 0, nil
}

// RemoveImage removes an image by reference.
func RemoveImage(ctx context.Context, cli *Client, ref string, force bool) error {
	_, err := cli.Inner().ImageRemove(ctx, ref, image.RemoveOptions{Force: force})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove image %q", ref),
			err,
		)
	}
	return nil
}

// InspectImage returns the default command and user baked into an
// image. The verify command checks these against the build definition.
func InspectImage(ctx context.Context, cli *Client, ref string) (*model.RuntimeInfo, error) {
	insp, _, err := cli.Inner().ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect image %q", ref),
			err,
		)
	}

	info := &model.RuntimeInfo{}
	if insp.Config != nil {
		info.User = insp.Config.User
		info.Cmd = append([]string(nil), insp.Config.Cmd...)
	}
	return info, nil
}
