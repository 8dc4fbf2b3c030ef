// logs.go implements log tailing for the bot container.
package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// TailLogs writes the last tail lines of a container's output to w.
// With follow, it streams until the context is cancelled.
//
// Containers started without a TTY multiplex stdout and stderr into a
// single stream; stdcopy demultiplexes it. Both streams land on the
// same writer because the split carries no meaning for log reading.
func TailLogs(ctx context.Context, cli *Client, containerID string, tail int, follow bool, w io.Writer) error {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
	}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}

	rc, err := cli.Inner().ContainerLogs(ctx, containerID, opts)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to read logs of container %q", containerID),
			err,
		)
	}
	defer rc.Close()

	if _, err := stdcopy.StdCopy(w, w, rc); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to copy container logs: %w", err)
	}
	return nil
}
