// status.go implements "markovbotctl status": reporting deployment
// state reconstructed from container labels.
//
// Without a name, every managed deployment is listed. With a name, a
// detail view is shown that additionally reports configuration drift:
// the digest of the config file on disk compared against the digest
// recorded at deploy time.
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saultyevil/markovbotctl/internal/botconfig"
	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// statusFlags holds the flag values for the status command.
type statusFlags struct {
	config string // --config: bot config file for drift detection
}

// statusDetail is the machine-readable detail view of one deployment.
type statusDetail struct {
	*model.Deployment

	// ConfigDrift reports whether the config file on disk differs from
	// the config the deployment was created with. Nil when no config
	// file could be read for comparison.
	ConfigDrift *bool `json:"configDrift,omitempty"`
}

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	flags := &statusFlags{}

	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show deployment status",
		Long: `Show the status of bot deployments.

Without a name, all managed deployments are listed. With a name, a
detail view is shown including configuration drift against the config
file on disk.

Examples:
  markovbotctl status
  markovbotctl status markovbot
  markovbotctl status --json`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runStatusList(cmd.Context())
			}
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runStatusDetail(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Bot config file for drift detection (default: $BOT_CONFIG or ./bot-config.json)")

	return cmd
}

func runStatusList(ctx context.Context) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	deployments, err := docker.ListDeployments(ctx, cli)
	if err != nil {
		return err
	}

	sort.Slice(deployments, func(i, j int) bool {
		return deployments[i].Name < deployments[j].Name
	})

	if jsonOutput {
		return printJSON(deployments)
	}

	if len(deployments) == 0 {
		fmt.Println("No deployments found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tIMAGE\tCONTAINER\tCREATED")
	for _, d := range deployments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Name,
			d.Status,
			d.ImageTag,
			shortID(d.Container.ContainerID),
			d.CreatedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func runStatusDetail(ctx context.Context, name string, flags *statusFlags) error {
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

	detail := statusDetail{Deployment: deployment}

	// Drift detection is best-effort: a missing or unreadable config
	// file leaves the field unset rather than failing the whole status
	// report.
	if deployment.ConfigDigest != "" {
		if cfg, err := botconfig.Load(flags.config); err == nil {
			if digest, err := cfg.Digest(); err == nil {
				drift := digest != deployment.ConfigDigest
				detail.ConfigDrift = &drift
			}
		}
	}

	if jsonOutput {
		return printJSON(detail)
	}

	fmt.Printf("Name:            %s\n", deployment.Name)
	fmt.Printf("Status:          %s\n", deployment.Status)
	fmt.Printf("Image:           %s\n", deployment.ImageTag)
	fmt.Printf("Container:       %s (%s)\n", deployment.Container.ContainerName, shortID(deployment.Container.ContainerID))
	fmt.Printf("Build context:   %s\n", deployment.ContextDir)
	fmt.Printf("Lockfile digest: %s\n", deployment.LockfileDigest)
	fmt.Printf("Created:         %s\n", deployment.CreatedAt.Local().Format(time.RFC3339))
	if detail.ConfigDrift != nil {
		if *detail.ConfigDrift {
			fmt.Println("Config:          DRIFTED (file on disk differs from deployed config)")
		} else {
			fmt.Println("Config:          in sync")
		}
	}
	return nil
}
