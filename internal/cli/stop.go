// stop.go implements "markovbotctl stop": stopping a running
// deployment. The image, configuration and any mounted volumes are
// preserved; start brings the same container back.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [name]",
		Short: "Stop a running bot deployment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runStop(cmd.Context(), name)
		},
	}
	return cmd
}

func runStop(ctx context.Context, name string) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	deployment, err := docker.FindDeployment(ctx, cli, name)
	if err != nil {
		return err
	}

	if deployment.Status != model.StatusRunning {
		fmt.Printf("Deployment %s is not running (status: %s)\n", name, deployment.Status)
		return nil
	}

	if err := docker.StopContainer(ctx, cli, deployment.Container.ContainerID); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"name": name, "status": string(model.StatusStopped)})
	}
	fmt.Printf("Stopped %s (%s)\n", name, shortID(deployment.Container.ContainerID))
	return nil
}
