// render.go implements "markovbotctl render": writing the build
// definition out as a Dockerfile or a docker-compose service.
//
// Rendering is pure: no Docker daemon is contacted. The same spec
// renders byte-identically every time, so the output is safe to commit
// and diff.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// renderFlags holds flag values shared by the render subcommands.
type renderFlags struct {
	spec   string // --spec: build spec overrides file
	output string // --output: write here instead of stdout
}

// composeFlags holds flag values specific to "render compose".
type composeFlags struct {
	name       string // --name: deployment and service name
	contextDir string // --context: build context, for the image tag
	image      string // --image: explicit image tag override
	config     string // --config: host path of the bot config mount
	logDir     string // --log-dir: host directory for the log mount
}

// NewRenderCommand creates the "render" command group.
func NewRenderCommand() *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the build definition",
		Long: `Render the bot's build definition as a Dockerfile or a docker-compose
service. Output is deterministic for a given spec.`,
	}

	cmd.PersistentFlags().StringVar(&flags.spec, "spec", "", "Build spec overrides file (JSONC)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Write to file instead of stdout")

	cmd.AddCommand(newRenderDockerfileCommand(flags))
	cmd.AddCommand(newRenderComposeCommand(flags))

	return cmd
}

func newRenderDockerfileCommand(flags *renderFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dockerfile",
		Short: "Render the Dockerfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSpec(flags.spec)
			if err != nil {
				return err
			}
			return writeRendered(flags.output, spec.Render())
		},
	}
}

func newRenderComposeCommand(flags *renderFlags) *cobra.Command {
	cf := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Render a docker-compose service for the bot",
		Long: `Render a docker-compose YAML document describing the bot service,
mirroring exactly what the deploy command would create.

The image tag defaults to the lockfile-digest tag of the build context;
pass --image to override. Tokens are referenced as compose variable
substitutions, never inlined.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenderCompose(flags, cf)
		},
	}

	cmd.Flags().StringVar(&cf.name, "name", defaultDeploymentName, "Deployment and service name")
	cmd.Flags().StringVar(&cf.contextDir, "context", ".", "Build context directory")
	cmd.Flags().StringVar(&cf.image, "image", "", "Image tag (default: derived from the context lockfile)")
	cmd.Flags().StringVar(&cf.config, "config", "", "Host path of the bot config file to mount")
	cmd.Flags().StringVar(&cf.logDir, "log-dir", "", "Host directory to mount for bot logs")

	return cmd
}

func runRenderCompose(flags *renderFlags, cf *composeFlags) error {
	if err := model.ValidateName(cf.name); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid deployment name", err)
	}

	spec, err := loadSpec(flags.spec)
	if err != nil {
		return err
	}

	contextDir, err := filepath.Abs(cf.contextDir)
	if err != nil {
		return fmt.Errorf("failed to resolve context directory: %w", err)
	}

	imageTag := cf.image
	lockfileDigest := ""
	if imageTag == "" {
		lock, err := buildspec.ParseLockfile(contextDir, spec.Inputs.Lockfile)
		if err != nil {
			return err
		}
		imageTag = buildspec.ImageTag(buildspec.DefaultRepository, lock.Digest)
		lockfileDigest = lock.Digest
	}

	var labels map[string]string
	if lockfileDigest != "" {
		labels = docker.BuildLabels(&model.Deployment{
			Name:           cf.name,
			ContextDir:     contextDir,
			ImageTag:       imageTag,
			LockfileDigest: lockfileDigest,
			CreatedAt:      time.Now().UTC(),
		})
	}

	configPath := cf.config
	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	out, err := spec.RenderCompose(buildspec.ComposeOptions{
		DeploymentName: cf.name,
		ImageTag:       imageTag,
		ConfigPath:     configPath,
		LogDir:         cf.logDir,
		Labels:         labels,
	})
	if err != nil {
		return err
	}

	return writeRendered(flags.output, out)
}

// loadSpec loads and validates the build definition, with overrides
// from the given spec file applied on top of the defaults.
func loadSpec(specPath string) (*buildspec.Spec, error) {
	spec, err := buildspec.Load(specPath)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// writeRendered writes rendered output to the given file, or stdout
// when no file is named.
func writeRendered(output string, data []byte) error {
	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	logger.Info("rendered output written", zap.String("path", output))
	return nil
}
