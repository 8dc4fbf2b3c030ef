// config.go implements "markovbotctl config": validating the bot's
// runtime configuration file and watching it for changes.
//
// The watch subcommand mirrors the hot reload the bot performs inside
// the container: it logs exactly which keys changed on each valid
// write, keeps the last good config across invalid interim states, and
// can optionally bounce the deployment so the new config takes effect
// immediately.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/botconfig"
	"github.com/saultyevil/markovbotctl/internal/docker"
)

// configFlags holds flag values shared by the config subcommands.
type configFlags struct {
	config string // --config: bot config file path
}

// watchFlags holds flag values specific to "config watch".
type watchFlags struct {
	restart bool // --restart: bounce the deployment on valid changes
}

// NewConfigCommand creates the "config" command group.
func NewConfigCommand() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and watch the bot's runtime configuration",
	}

	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "Bot config file (default: $BOT_CONFIG or ./bot-config.json)")

	cmd.AddCommand(newConfigValidateCommand(flags))
	cmd.AddCommand(newConfigWatchCommand(flags))

	return cmd
}

func newConfigValidateCommand(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the bot config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(flags)
		},
	}
}

func runConfigValidate(flags *configFlags) error {
	cfg, err := botconfig.Load(flags.config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	digest, err := cfg.Digest()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"path":   cfg.Path,
			"valid":  true,
			"digest": digest,
		})
	}

	fmt.Printf("%s is valid (digest %s)\n", cfg.Path, shortID(digest))
	fmt.Printf("  cooldown: rate %d, standard %ds, extended %ds\n",
		cfg.Cooldown.Rate, cfg.Cooldown.Standard, cfg.Cooldown.Extended)
	fmt.Printf("  logfile:  %s -> %s\n", cfg.Logfile.LogName, cfg.Logfile.LogLocation)
	fmt.Printf("  markov training enabled: %t\n", cfg.Markov.EnableTraining)
	return nil
}

func newConfigWatchCommand(flags *configFlags) *cobra.Command {
	wf := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch [name]",
		Short: "Watch the bot config file for changes",
		Long: `Watch the bot config file, logging the changed keys on each valid
write. Invalid interim states keep the last good config.

With --restart, the named deployment is restarted after each valid
change so the bot picks up the new configuration. Runs until
interrupted.

Examples:
  markovbotctl config watch
  markovbotctl config watch --restart
  markovbotctl config watch --config ./bot-config.json --restart markovbot`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runConfigWatch(cmd.Context(), name, flags, wf)
		},
	}

	cmd.Flags().BoolVar(&wf.restart, "restart", false, "Restart the deployment after each valid config change")

	return cmd
}

func runConfigWatch(ctx context.Context, name string, flags *configFlags, wf *watchFlags) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var onChange func(old, new *botconfig.Loaded, changes []botconfig.Change)
	if wf.restart {
		onChange = func(old, new *botconfig.Loaded, changes []botconfig.Change) {
			if err := restartDeployment(ctx, name); err != nil {
				logger.Error("failed to restart deployment after config change",
					zap.String("name", name), zap.Error(err))
			}
		}
	}

	watcher, err := botconfig.NewWatcher(botconfig.ResolvePath(flags.config), logger, onChange)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("config watch stopped")
	return nil
}

// restartDeployment stops and starts the named deployment's container,
// using a fresh client per restart.
func restartDeployment(ctx context.Context, name string) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	deployment, err := docker.FindDeployment(ctx, cli, name)
	if err != nil {
		return err
	}

	id := deployment.Container.ContainerID
	if deployment.Container.Status == "running" {
		if err := docker.StopContainer(ctx, cli, id); err != nil {
			return err
		}
	}
	if err := docker.StartContainer(ctx, cli, id); err != nil {
		return err
	}

	logger.Info("deployment restarted after config change",
		zap.String("name", name),
		zap.String("container", shortID(id)))
	return nil
}
