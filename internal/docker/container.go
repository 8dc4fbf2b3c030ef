// container.go implements the bot container lifecycle: create + start,
// stop, remove, discovery by label, and runtime inspection.
//
// Containers are created through the SDK's ContainerCreate +
// ContainerStart pair rather than by shelling out to `docker run`; the
// deploy options map one-to-one onto Config/HostConfig fields and the
// SDK reports errors structurally.
package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// DeployOptions describes the container to create for a deployment.
type DeployOptions struct {
	// Name is the container name.
	Name string

	// ImageTag is the image reference to run.
	ImageTag string

	// User is the account the main process runs as. Never root; the
	// build spec validation upstream guarantees this.
	User string

	// WorkDir is the container working directory.
	WorkDir string

	// Env lists environment variables in KEY=value form.
	Env []string

	// Binds lists volume bind specifications in Docker's
	// "host:container[:mode]" form.
	Binds []string

	// Labels are the management labels from BuildLabels.
	Labels map[string]string
}

// Deploy creates and starts the bot container. The restart policy is
// unless-stopped: the bot survives daemon restarts but respects an
// explicit stop.
func Deploy(ctx context.Context, cli *Client, opts DeployOptions) (string, error) {
	created, err := cli.Inner().ContainerCreate(ctx,
		&container.Config{
			Image:      opts.ImageTag,
			User:       opts.User,
			WorkingDir: opts.WorkDir,
			Env:        opts.Env,
			Labels:     opts.Labels,
		},
		&container.HostConfig{
			Binds: opts.Binds,
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
		},
		nil, nil, opts.Name)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q", opts.Name),
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", opts.Name),
			err,
		)
	}

	return created.ID, nil
}

// ListManagedContainers returns all containers carrying the managed-by
// label, including stopped ones. Filtering happens server-side via the
// Docker API label filter.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		),
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo maps a Docker API container summary to the domain
// type. The API returns names with a leading "/" that is stripped for
// display.
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// FindDeployment locates a managed deployment by name and returns the
// reconstructed aggregate. Returns a CLIError with
// ExitDeploymentNotFound when no managed container carries the name.
func FindDeployment(ctx context.Context, cli *Client, name string) (*model.Deployment, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	for _, info := range containers {
		if info.Labels[LabelName] == name {
			return BuildDeployment(info)
		}
	}

	return nil, model.NewCLIError(
		model.ExitDeploymentNotFound,
		fmt.Sprintf("deployment %q not found", name),
	)
}

// ListDeployments reconstructs all managed deployments. Containers
// with unparsable labels are skipped; they cannot be attributed to a
// deployment and a damaged label set should not take down the status
// listing for everything else.
func ListDeployments(ctx context.Context, cli *Client) ([]*model.Deployment, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	deployments := make([]*model.Deployment, 0, len(containers))
	for _, info := range containers {
		d, err := BuildDeployment(info)
		if err != nil {
			continue
		}
		deployments = append(deployments, d)
	}
	return deployments, nil
}

// StartContainer starts a stopped container by ID.
func StartContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// StopContainer stops a running container by ID. The daemon sends
// SIGTERM and escalates to SIGKILL after its default timeout.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by ID. With force, the daemon
// kills a running container first.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	if err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// InspectRuntime returns the configured user, command and run state of
// a container.
func InspectRuntime(ctx context.Context, cli *Client, containerID string) (*model.RuntimeInfo, error) {
	insp, err := cli.Inner().ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", containerID),
			err,
		)
	}

	info := &model.RuntimeInfo{}
	if insp.Config != nil {
		info.User = insp.Config.User
		info.Cmd = append([]string(nil), insp.Config.Cmd...)
	}
	if insp.State != nil {
		info.Running = insp.State.Running
		if started, err := time.Parse(time.RFC3339Nano, insp.State.StartedAt); err == nil {
			info.StartedAt = started
		}
	}
	return info, nil
}

// RunningUIDs returns the UIDs of the processes inside a running
// container, via the daemon's top endpoint. This observes the actual
// process table rather than the configured user, which is what the
// never-runs-as-root check wants.
func RunningUIDs(ctx context.Context, cli *Client, containerID string) ([]string, error) {
	top, err := cli.Inner().ContainerTop(ctx, containerID, []string{"-eo", "uid,pid,comm"})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to read process list of container %q", containerID),
			err,
		)
	}

	uidCol := -1
	for i, title := range top.Titles {
		if strings.EqualFold(title, "UID") {
			uidCol = i
			break
		}
	}
	if uidCol == -1 {
		return nil, fmt.Errorf("container top output has no UID column (titles: %v)", top.Titles)
	}

	uids := make([]string, 0, len(top.Processes))
	for _, proc := range top.Processes {
		if uidCol < len(proc) {
			uids = append(uids, proc[uidCol])
		}
	}
	return uids, nil
}
