// remove.go implements "markovbotctl remove": removing a deployment's
// container and, optionally, its image.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// removeFlags holds the flag values for the remove command.
type removeFlags struct {
	force bool // --force: remove even while running
	rmi   bool // --rmi: also remove the image
}

// NewRemoveCommand creates the "remove" cobra command.
func NewRemoveCommand() *cobra.Command {
	flags := &removeFlags{}

	cmd := &cobra.Command{
		Use:   "remove [name]",
		Short: "Remove a bot deployment",
		Long: `Remove a deployment's container. A running deployment is refused
unless --force is given. With --rmi, the image the container was
created from is removed as well.

Examples:
  markovbotctl remove
  markovbotctl remove --force --rmi`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runRemove(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Remove even if the deployment is running")
	cmd.Flags().BoolVar(&flags.rmi, "rmi", false, "Also remove the deployment's image")

	return cmd
}

func runRemove(ctx context.Context, name string, flags *removeFlags) error {
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

	if deployment.Status == model.StatusRunning && !flags.force {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("deployment %q is running; stop it first or use --force", name))
	}

	if err := docker.RemoveContainer(ctx, cli, deployment.Container.ContainerID, flags.force); err != nil {
		return err
	}
	logger.Info("removed container",
		zap.String("name", name),
		zap.String("container", shortID(deployment.Container.ContainerID)))

	if flags.rmi {
		if err := docker.RemoveImage(ctx, cli, deployment.ImageTag, flags.force); err != nil {
			return err
		}
		logger.Info("removed image", zap.String("image", deployment.ImageTag))
	}

	if jsonOutput {
		return printJSON(map[string]any{"name": name, "removed": true, "imageRemoved": flags.rmi})
	}
	fmt.Printf("Removed %s\n", name)
	if flags.rmi {
		fmt.Printf("Removed image %s\n", deployment.ImageTag)
	}
	return nil
}
