// start.go implements "markovbotctl start": starting a stopped
// deployment.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Start a stopped bot deployment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runStart(cmd.Context(), name)
		},
	}
	return cmd
}

func runStart(ctx context.Context, name string) error {
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

	if deployment.Status == model.StatusRunning {
		fmt.Printf("Deployment %s is already running\n", name)
		return nil
	}

	if err := docker.StartContainer(ctx, cli, deployment.Container.ContainerID); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"name": name, "status": string(model.StatusRunning)})
	}
	fmt.Printf("Started %s (%s)\n", name, shortID(deployment.Container.ContainerID))
	return nil
}
