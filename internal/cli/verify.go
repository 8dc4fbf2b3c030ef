// verify.go implements "markovbotctl verify": checking a deployment
// against the properties the build definition promises.
//
// The checks cover the three guarantees that matter for this bot:
// dependency determinism (the image's lockfile digest still matches the
// build context), non-root execution (configured user and observed
// UIDs), and the path-specific version-control trust entry in the
// rendered build.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/docker"
	"github.com/saultyevil/markovbotctl/internal/model"
)

// verifyFlags holds the flag values for the verify command.
type verifyFlags struct {
	spec string // --spec: build spec overrides file
}

// verifyCheck is a single named check result.
type verifyCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// NewVerifyCommand creates the "verify" cobra command.
func NewVerifyCommand() *cobra.Command {
	flags := &verifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify [name]",
		Short: "Verify a deployment against the build definition",
		Long: `Verify that a deployment still satisfies the build definition's
guarantees:

  - the image's default user is the non-root user from the definition
  - no process in a running container runs as UID 0
  - the image's command is the entrypoint script
  - the lockfile in the build context still matches the deployed image
  - the rendered build trusts exactly the working directory, no more

Exits non-zero when any check fails.`,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := deploymentNameArg(args)
			if err != nil {
				return err
			}
			return runVerify(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "Build spec overrides file (JSONC)")

	return cmd
}

func runVerify(ctx context.Context, name string, flags *verifyFlags) error {
	spec, err := loadSpec(flags.spec)
	if err != nil {
		return err
	}

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

	var checks []verifyCheck
	add := func(name string, ok bool, detail string) {
		checks = append(checks, verifyCheck{Name: name, OK: ok, Detail: detail})
	}

	// Image identity: user and command baked into the image.
	imageInfo, err := docker.InspectImage(ctx, cli, deployment.ImageTag)
	if err != nil {
		add("image inspect", false, err.Error())
	} else {
		add("image user", imageInfo.User == spec.User.Name,
			fmt.Sprintf("image user %q, expected %q", imageInfo.User, spec.User.Name))

		wantCmd := []string{spec.Entrypoint}
		add("image command", equalStrings(imageInfo.Cmd, wantCmd),
			fmt.Sprintf("image command %v, expected %v", imageInfo.Cmd, wantCmd))
	}

	// Container identity: the configured user must be the non-root user
	// from the definition, never root or UID 0.
	runtimeInfo, err := docker.InspectRuntime(ctx, cli, deployment.Container.ContainerID)
	if err != nil {
		add("container inspect", false, err.Error())
	} else {
		nonRoot := runtimeInfo.User != "" && runtimeInfo.User != "root" && runtimeInfo.User != "0"
		add("container user", nonRoot && runtimeInfo.User == spec.User.Name,
			fmt.Sprintf("container user %q, expected %q", runtimeInfo.User, spec.User.Name))

		// Observed process table, not just configuration. Only possible
		// while the container runs.
		if runtimeInfo.Running {
			uids, err := docker.RunningUIDs(ctx, cli, deployment.Container.ContainerID)
			if err != nil {
				add("running processes", false, err.Error())
			} else {
				rootProcs := 0
				for _, uid := range uids {
					if uid == "0" || uid == "root" {
						rootProcs++
					}
				}
				add("running processes", rootProcs == 0,
					fmt.Sprintf("%d of %d processes run as root", rootProcs, len(uids)))
			}
		}
	}

	// Dependency determinism: the lockfile in the build context must
	// still hash to the digest the image was built from.
	if _, err := os.Stat(deployment.ContextDir); err != nil {
		add("lockfile digest", false,
			fmt.Sprintf("build context %s no longer exists", deployment.ContextDir))
	} else if lock, err := buildspec.ParseLockfile(deployment.ContextDir, spec.Inputs.Lockfile); err != nil {
		add("lockfile digest", false, err.Error())
	} else {
		add("lockfile digest", lock.Digest == deployment.LockfileDigest,
			fmt.Sprintf("context lockfile %s, deployed %s",
				shortID(lock.Digest), shortID(deployment.LockfileDigest)))
	}

	// Trust scoping: the rendered build must contain exactly one
	// safe.directory entry and it must name the working directory.
	rendered := spec.Render()
	occurrences := bytes.Count(rendered, []byte("safe.directory"))
	scoped := occurrences == 1 &&
		bytes.Contains(rendered, []byte("safe.directory "+spec.WorkDir))
	add("safe.directory scope", scoped,
		fmt.Sprintf("%d safe.directory entries in rendered build", occurrences))

	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
		}
	}

	if jsonOutput {
		if err := printJSON(map[string]any{
			"name":   name,
			"passed": failed == 0,
			"checks": checks,
		}); err != nil {
			return err
		}
	} else {
		for _, c := range checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Printf("%-22s %-4s %s\n", c.Name, mark, c.Detail)
		}
	}

	if failed > 0 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("verification of %q failed %d of %d checks", name, failed, len(checks)))
	}
	if !jsonOutput {
		fmt.Printf("Deployment %q passed all %d checks\n", name, len(checks))
	}
	return nil
}

// equalStrings compares two string slices element-wise.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
