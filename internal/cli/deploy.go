// deploy.go implements "markovbotctl deploy": creating and starting
// the bot container from a previously built image.
//
// Deploy never runs the bot as root: the build definition's user is
// passed to the container config, and validation upstream rejects root
// outright.
// All deployment metadata is written as container labels; there is no
// state file to keep in sync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/botconfig"
	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// deployFlags holds the flag values for the deploy command.
type deployFlags struct {
	spec       string // --spec: build spec overrides file
	contextDir string // --context: build context directory
	config     string // --config: bot config file to mount
	logDir     string // --log-dir: host directory for bot logs
	force      bool   // --force: replace an existing deployment
}

// deployResult is the machine-readable output of a successful deploy.
type deployResult struct {
	Name        string `json:"name"`
	ImageTag    string `json:"imageTag"`
	ContainerID string `json:"containerId"`
	User        string `json:"user"`
}

// NewDeployCommand creates the "deploy" cobra command.
func NewDeployCommand() *cobra.Command {
	flags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "deploy [name]",
		Short: "Create and start the bot container",
		Long: `Deploy the bot: create a container from the image built for the current
lockfile and start it.

The image must have been built first (see "markovbotctl build"). The
bot config is validated before anything reaches the daemon, and the
run token must be present in the environment. The container runs as
the build definition's non-root user with restart policy
unless-stopped.

Examples:
  markovbotctl deploy
  markovbotctl deploy --config ./bot-config.json --log-dir /var/log/markovbot
  markovbotctl deploy --force`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runDeploy(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "Build spec overrides file (JSONC)")
	cmd.Flags().StringVar(&flags.contextDir, "context", ".", "Build context directory")
	cmd.Flags().StringVar(&flags.config, "config", "", "Bot config file (default: $BOT_CONFIG or ./bot-config.json)")
	cmd.Flags().StringVar(&flags.logDir, "log-dir", "", "Host directory to mount for bot logs")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Replace an existing deployment with the same name")

	return cmd
}

func runDeploy(ctx context.Context, name string, flags *deployFlags) error {
	spec, err := loadSpec(flags.spec)
	if err != nil {
		return err
	}

	contextDir, err := filepath.Abs(flags.contextDir)
	if err != nil {
		return fmt.Errorf("failed to resolve context directory: %w", err)
	}
	if err := spec.CheckContext(contextDir); err != nil {
		return err
	}

	lock, err := buildspec.ParseLockfile(contextDir, spec.Inputs.Lockfile)
	if err != nil {
		return err
	}
	imageTag := buildspec.ImageTag(buildspec.DefaultRepository, lock.Digest)

	// The config is validated before any daemon contact. A deployed bot
	// without a run token can only crash-loop.
	cfg, err := botconfig.Load(flags.config)
	if err != nil {
		return err
	}
	tokens := botconfig.ResolveTokens()
	if err := cfg.ValidateForDeploy(tokens); err != nil {
		return err
	}
	configDigest, err := cfg.Digest()
	if err != nil {
		return err
	}
	configPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	exists, err := docker.ImageExists(ctx, cli, imageTag)
	if err != nil {
		return err
	}
	if !exists {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("image %s not found; run \"markovbotctl build\" first", imageTag))
	}

	if err := replaceExisting(ctx, cli, name, flags.force); err != nil {
		return err
	}

	deployment := &model.Deployment{
		Name:           name,
		ContextDir:     contextDir,
		ImageTag:       imageTag,
		LockfileDigest: lock.Digest,
		ConfigDigest:   configDigest,
		CreatedAt:      time.Now().UTC(),
	}

	configTarget := path.Join(spec.WorkDir, "bot-config.json")
	env := []string{
		botconfig.EnvConfigPath + "=" + configTarget,
		botconfig.EnvRunToken + "=" + tokens.Run,
		botconfig.EnvDevelopmentToken + "=" + tokens.Development,
	}

	binds := []string{fmt.Sprintf("%s:%s:ro", configPath, configTarget)}
	if flags.logDir != "" {
		logDir, err := filepath.Abs(flags.logDir)
		if err != nil {
			return fmt.Errorf("failed to resolve log directory: %w", err)
		}
		binds = append(binds, fmt.Sprintf("%s:%s", logDir, path.Join(spec.WorkDir, "logs")))
	}

	logger.Info("deploying bot container",
		zap.String("name", name),
		zap.String("image", imageTag),
		zap.String("user", spec.User.Name))

	containerID, err := docker.Deploy(ctx, cli, docker.DeployOptions{
		Name:     name,
		ImageTag: imageTag,
		User:     spec.User.Name,
		WorkDir:  spec.WorkDir,
		Env:      env,
		Binds:    binds,
		Labels:   docker.BuildLabels(deployment),
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(deployResult{
			Name:        name,
			ImageTag:    imageTag,
			ContainerID: containerID,
			User:        spec.User.Name,
		})
	}

	fmt.Printf("Deployed %s (%s) from %s as user %s\n",
		name, shortID(containerID), imageTag, spec.User.Name)
	return nil
}

// replaceExisting removes a previous deployment with the same name.
// Without --force an existing deployment is an error rather than a
// silent replacement.
func replaceExisting(ctx context.Context, cli *docker.Client, name string, force bool) error {
	existing, err := docker.FindDeployment(ctx, cli, name)
	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) && cliErr.Code == model.ExitDeploymentNotFound {
			return nil
		}
		return err
	}

	if !force {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("deployment %q already exists (container %s); use --force to replace it",
				name, shortID(existing.Container.ContainerID)))
	}

	logger.Info("removing existing deployment",
		zap.String("name", name),
		zap.String("container", shortID(existing.Container.ContainerID)))
	return docker.RemoveContainer(ctx, cli, existing.Container.ContainerID, true)
}

// shortID truncates a container ID to the familiar 12-character form.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
