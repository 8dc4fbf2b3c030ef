// build.go implements "markovbotctl build": building the bot image.
//
// The image tag is derived from the lockfile digest, so a build against
// an unchanged lockfile produces the same tag and a changed lockfile
// can never masquerade as the previous dependency set. A stable
// ":latest" alias is applied alongside the digest tag.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/docker"
)

// buildFlags holds the flag values for the build command.
type buildFlags struct {
	spec       string // --spec: build spec overrides file
	contextDir string // --context: build context directory
	repository string // --repository: image repository name
	noLatest   bool   // --no-latest: skip the :latest alias
	quiet      bool   // --quiet: suppress build progress
}

// buildResult is the machine-readable output of a successful build.
type buildResult struct {
	ImageTag       string `json:"imageTag"`
	LatestTag      string `json:"latestTag,omitempty"`
	LockfileDigest string `json:"lockfileDigest"`
	Packages       int    `json:"packages"`
	ContextDir     string `json:"contextDir"`
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bot image from the build definition",
		Long: `Build the bot image through the Docker daemon.

The build context contains only the rendered Dockerfile, the dependency
inputs (lockfile, manifest, readme) and the entrypoint script. The
lockfile and manifest are checked before any Docker API call, so a
missing lockfile fails fast with its own exit code.

Examples:
  markovbotctl build
  markovbotctl build --context ~/src/markovbot
  markovbotctl build --spec botbuild.jsonc --no-latest`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runBuild(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("Built %s (%d packages pinned)\n", result.ImageTag, result.Packages)
			if result.LatestTag != "" {
				fmt.Printf("Tagged %s\n", result.LatestTag)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "Build spec overrides file (JSONC)")
	cmd.Flags().StringVar(&flags.contextDir, "context", ".", "Build context directory")
	cmd.Flags().StringVar(&flags.repository, "repository", buildspec.DefaultRepository, "Image repository name")
	cmd.Flags().BoolVar(&flags.noLatest, "no-latest", false, "Do not tag the image as :latest")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Suppress build progress output")

	return cmd
}

// runBuild performs the build and returns the result, shared with the
// update command's rebuild step.
func runBuild(ctx context.Context, flags *buildFlags) (*buildResult, error) {
	spec, err := loadSpec(flags.spec)
	if err != nil {
		return nil, err
	}

	contextDir, err := filepath.Abs(flags.contextDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve context directory: %w", err)
	}

	// Fail before touching the daemon when the dependency inputs are
	// incomplete; dependency restore could only fail later anyway.
	if err := spec.CheckContext(contextDir); err != nil {
		return nil, err
	}

	lock, err := buildspec.ParseLockfile(contextDir, spec.Inputs.Lockfile)
	if err != nil {
		return nil, err
	}
	logger.Debug("lockfile parsed",
		zap.String("path", lock.Path),
		zap.Int("packages", len(lock.Packages)),
		zap.String("digest", lock.Digest))

	digestTag := buildspec.ImageTag(flags.repository, lock.Digest)
	tags := []string{digestTag}
	latestTag := ""
	if !flags.noLatest {
		latestTag = flags.repository + ":latest"
		tags = append(tags, latestTag)
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}

	var progress io.Writer
	if !flags.quiet && !jsonOutput {
		progress = os.Stdout
	}

	labels := map[string]string{
		docker.LabelManagedBy:      docker.ManagedByValue,
		docker.LabelLockfileDigest: lock.Digest,
	}

	logger.Info("building image",
		zap.String("tag", digestTag),
		zap.String("context", contextDir))
	if err := docker.BuildImage(ctx, cli, spec, contextDir, tags, labels, progress); err != nil {
		return nil, err
	}

	return &buildResult{
		ImageTag:       digestTag,
		LatestTag:      latestTag,
		LockfileDigest: lock.Digest,
		Packages:       len(lock.Packages),
		ContextDir:     contextDir,
	}, nil
}
