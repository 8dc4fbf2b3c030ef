// update.go implements "markovbotctl update": bringing the bot's
// checkout up to date, rebuilding the image and redeploying. This is
// the container recast of the bot's own update-and-restart admin
// command.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/model"
	"github.com/saultyevil/markovbotctl/internal/repo"
)

// updateFlags holds the flag values for the update command.
type updateFlags struct {
	spec       string // --spec: build spec overrides file
	contextDir string // --context: checkout and build context
	branch     string // --branch: branch to update to
	config     string // --config: bot config file for the redeploy
	logDir     string // --log-dir: host directory for bot logs
	noDeploy   bool   // --no-deploy: stop after the rebuild
}

// NewUpdateCommand creates the "update" cobra command.
func NewUpdateCommand() *cobra.Command {
	flags := &updateFlags{}

	cmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Update the checkout, rebuild and redeploy the bot",
		Long: `Update the bot's source checkout (fetch, checkout, fast-forward pull),
rebuild the image against the updated lockfile, and replace the running
deployment with the new image.

The pull is fast-forward only: local divergence is never merged away,
it has to be resolved by hand.

Examples:
  markovbotctl update
  markovbotctl update --branch main --context ~/src/markovbot
  markovbotctl update --no-deploy`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runUpdate(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "Build spec overrides file (JSONC)")
	cmd.Flags().StringVar(&flags.contextDir, "context", ".", "Checkout and build context directory")
	cmd.Flags().StringVar(&flags.branch, "branch", "main", "Branch to update to")
	cmd.Flags().StringVar(&flags.config, "config", "", "Bot config file (default: $BOT_CONFIG or ./bot-config.json)")
	cmd.Flags().StringVar(&flags.logDir, "log-dir", "", "Host directory to mount for bot logs")
	cmd.Flags().BoolVar(&flags.noDeploy, "no-deploy", false, "Update and rebuild only, do not redeploy")

	return cmd
}

func runUpdate(ctx context.Context, name string, flags *updateFlags) error {
	contextDir, err := filepath.Abs(flags.contextDir)
	if err != nil {
		return fmt.Errorf("failed to resolve context directory: %w", err)
	}

	mgr := repo.NewManager()
	if !mgr.IsRepo(contextDir) {
		return model.NewCLIError(model.ExitGitError,
			fmt.Sprintf("%s is not a Git working tree", contextDir))
	}

	// The checkout may live on a filesystem owned by another user (a
	// mounted volume, a deploy account); registering it as a trusted
	// root for this exact path keeps git working without widening trust
	// beyond it.
	if err := mgr.EnsureSafeDirectory(contextDir); err != nil {
		return err
	}

	oldCommit, err := mgr.HeadCommit(contextDir)
	if err != nil {
		return err
	}

	newCommit, err := mgr.Update(contextDir, flags.branch)
	if err != nil {
		return err
	}
	logger.Info("checkout updated",
		zap.String("branch", flags.branch),
		zap.String("from", shortID(oldCommit)),
		zap.String("to", shortID(newCommit)))

	result, err := runBuild(ctx, &buildFlags{
		spec:       flags.spec,
		contextDir: contextDir,
		repository: buildspec.DefaultRepository,
	})
	if err != nil {
		return err
	}

	if flags.noDeploy {
		if !jsonOutput {
			fmt.Printf("Updated %s..%s and built %s; skipping deploy\n",
				shortID(oldCommit), shortID(newCommit), result.ImageTag)
		}
		return nil
	}

	return runDeploy(ctx, name, &deployFlags{
		spec:       flags.spec,
		contextDir: contextDir,
		config:     flags.config,
		logDir:     flags.logDir,
		force:      true,
	})
}
