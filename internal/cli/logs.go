// logs.go implements "markovbotctl logs": tailing the bot container's
// output, the containerized equivalent of the bot's own log-tail admin
// command.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saultyevil/markovbotctl/internal/docker"
)

// logsFlags holds the flag values for the logs command.
type logsFlags struct {
	tail   int  // --tail: number of trailing lines
	follow bool // --follow: stream until interrupted
}

// NewLogsCommand creates the "logs" cobra command.
func NewLogsCommand() *cobra.Command {
	flags := &logsFlags{}

	cmd := &cobra.Command{
		Use:   "logs [name]",
		Short: "Show the bot container's logs",
		Long: `Show the bot container's stdout and stderr.

Examples:
  markovbotctl logs
  markovbotctl logs --tail 50
  markovbotctl logs --follow`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runLogs(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().IntVar(&flags.tail, "tail", 100, "Number of trailing log lines to show (0 for all)")
	cmd.Flags().BoolVarP(&flags.follow, "follow", "f", false, "Follow log output until interrupted")

	return cmd
}

func runLogs(ctx context.Context, name string, flags *logsFlags) error {
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

	// Ctrl-C ends a follow cleanly instead of surfacing as an error.
	if flags.follow {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	return docker.TailLogs(ctx, cli, deployment.Container.ContainerID, flags.tail, flags.follow, os.Stdout)
}
