package buildspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// Spec is the declarative build definition for the bot image.
//
// The zero value is not usable; start from Default() and apply
// overrides via Load. All paths inside the Spec refer to the container
// filesystem, not the host.
type Spec struct {
	// BaseImage is the image the build starts from.
	BaseImage string `json:"baseImage"`

	// User describes the non-root account the bot runs as.
	User UserSpec `json:"user"`

	// SystemPackages lists the OS packages installed into the image,
	// in install order.
	SystemPackages []string `json:"systemPackages"`

	// WorkDir is the directory the bot source lives in and the
	// container's working directory.
	WorkDir string `json:"workDir"`

	// SafeDirectory is the path registered as a trusted
	// version-control root inside the image. It must name exactly the
	// working directory; a wildcard or a broader path would defeat
	// the point of the per-path trust entry.
	SafeDirectory string `json:"safeDirectory"`

	// DependencyManager describes the tool that restores the bot's
	// library dependencies from the lockfile.
	DependencyManager DependencyManagerSpec `json:"dependencyManager"`

	// Inputs names the files copied into the image for dependency
	// restore.
	Inputs BuildInputs `json:"inputs"`

	// Entrypoint is the command the container runs on start, relative
	// to the working directory. Its internals are opaque to this tool.
	Entrypoint string `json:"entrypoint"`
}

// UserSpec describes the container user the bot process runs as.
type UserSpec struct {
	// Name is the account name. Must not be "root".
	Name string `json:"name"`

	// UID is the numeric user ID. Must be non-zero.
	UID int `json:"uid"`

	// HomeDir is the account's home directory.
	HomeDir string `json:"homeDir"`

	// SSHKeyDir is the directory prepared for SSH key material,
	// relative to the home directory.
	SSHKeyDir string `json:"sshKeyDir"`
}

// DependencyManagerSpec describes the dependency manager bootstrap and
// the dependency restore step.
type DependencyManagerSpec struct {
	// Tool is the dependency manager name (e.g. "poetry").
	Tool string `json:"tool"`

	// InstallCommand installs the tool itself into the user's local
	// environment.
	InstallCommand string `json:"installCommand"`

	// BinDir is the user-local binary directory prepended to PATH so
	// the installed tool is reachable.
	BinDir string `json:"binDir"`

	// SyncCommand restores the declared dependencies from the
	// lockfile. It must fail the build when resolution fails.
	SyncCommand string `json:"syncCommand"`
}

// BuildInputs names the build-time input files copied into the image.
type BuildInputs struct {
	// Lockfile pins exact dependency versions for reproducible installs.
	Lockfile string `json:"lockfile"`

	// Manifest declares the project and its dependency constraints.
	Manifest string `json:"manifest"`

	// Extra lists additional files the dependency manager expects to
	// be present (e.g. the README referenced by the manifest).
	Extra []string `json:"extra,omitempty"`
}

// Default returns the canonical build definition for the markovbot
// image. Every field can be overridden through a spec file; the
// defaults reproduce the original build exactly.
func Default() *Spec {
	return &Spec{
		BaseImage: "python:3.11-slim-buster",
		User: UserSpec{
			Name:      "markovbot",
			UID:       1000,
			HomeDir:   "/home/markovbot",
			SSHKeyDir: ".ssh",
		},
		SystemPackages: []string{"git", "openssh-client"},
		WorkDir:        "/home/markovbot/markovbot",
		SafeDirectory:  "/home/markovbot/markovbot",
		DependencyManager: DependencyManagerSpec{
			Tool:           "poetry",
			InstallCommand: "pip install --user poetry",
			BinDir:         "/home/markovbot/.local/bin",
			SyncCommand:    "poetry install --no-root",
		},
		Inputs: BuildInputs{
			Lockfile: "poetry.lock",
			Manifest: "pyproject.toml",
			Extra:    []string{"README.md"},
		},
		Entrypoint: "./entrypoint.sh",
	}
}

// Load returns the build definition with overrides from the given
// JSONC spec file applied on top of the defaults.
//
// An empty path returns Default() unchanged. A path that does not
// exist is an error: an operator who points at a spec file expects it
// to be honored, silently falling back would mask typos.
func Load(specPath string) (*Spec, error) {
	spec := Default()
	if specPath == "" {
		return spec, nil
	}

	data, err := os.ReadFile(specPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitSpecInvalid,
				fmt.Sprintf("build spec not found: %s", specPath),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read build spec: %w", err)
	}

	// Spec files may carry comments and trailing commas; strip them
	// before handing the bytes to encoding/json. Unmarshalling into
	// the default-initialized struct means the file only needs to
	// mention the fields it changes.
	if err := json.Unmarshal(jsonc.ToJSON(data), spec); err != nil {
		return nil, model.WrapCLIError(
			model.ExitSpecInvalid,
			fmt.Sprintf("failed to parse build spec %s", specPath),
			err,
		)
	}

	return spec, nil
}

// Validate checks the build definition for the invariants the rest of
// the tool depends on. It returns a CLIError with ExitSpecInvalid on
// the first violation.
//
// The non-root rule is absolute: no spec may name the root user or
// UID 0, regardless of what else it overrides.
func (s *Spec) Validate() error {
	fail := func(format string, args ...any) error {
		return model.NewCLIError(model.ExitSpecInvalid, fmt.Sprintf(format, args...))
	}

	if s.BaseImage == "" {
		return fail("build spec: baseImage must not be empty")
	}
	if s.User.Name == "" {
		return fail("build spec: user.name must not be empty")
	}
	if s.User.Name == "root" || s.User.UID == 0 {
		return fail("build spec: bot must not run as root (got user %q, uid %d)", s.User.Name, s.User.UID)
	}
	if !path.IsAbs(s.User.HomeDir) {
		return fail("build spec: user.homeDir must be absolute, got %q", s.User.HomeDir)
	}
	if !path.IsAbs(s.WorkDir) {
		return fail("build spec: workDir must be absolute, got %q", s.WorkDir)
	}
	if s.SafeDirectory != s.WorkDir {
		return fail("build spec: safeDirectory %q must name exactly the working directory %q", s.SafeDirectory, s.WorkDir)
	}
	for _, pkg := range s.SystemPackages {
		if strings.TrimSpace(pkg) == "" {
			return fail("build spec: systemPackages must not contain empty entries")
		}
	}
	if s.DependencyManager.Tool == "" || s.DependencyManager.SyncCommand == "" {
		return fail("build spec: dependencyManager tool and syncCommand must be set")
	}
	if s.Inputs.Lockfile == "" {
		return fail("build spec: inputs.lockfile must not be empty")
	}
	if s.Inputs.Manifest == "" {
		return fail("build spec: inputs.manifest must not be empty")
	}
	if s.Entrypoint == "" {
		return fail("build spec: entrypoint must not be empty")
	}
	if path.IsAbs(s.Entrypoint) {
		return fail("build spec: entrypoint %q must be relative to the working directory", s.Entrypoint)
	}

	return nil
}

// InputFiles returns all build-time input file names in copy order:
// lockfile first, then manifest, then extras.
func (s *Spec) InputFiles() []string {
	files := make([]string, 0, 2+len(s.Inputs.Extra))
	files = append(files, s.Inputs.Lockfile, s.Inputs.Manifest)
	files = append(files, s.Inputs.Extra...)
	return files
}

// CheckContext verifies that the build context directory contains the
// lockfile and manifest the build definition names. It fails before
// any Docker API call, so a missing lockfile never reaches the
// dependency-restore step.
func (s *Spec) CheckContext(contextDir string) error {
	required := []struct {
		name string
		what string
	}{
		{s.Inputs.Lockfile, "lockfile"},
		{s.Inputs.Manifest, "manifest"},
	}

	for _, req := range required {
		p := filepath.Join(contextDir, req.name)
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return model.NewCLIError(
					model.ExitLockfileMissing,
					fmt.Sprintf("%s %s not found in build context %s", req.what, req.name, contextDir),
				)
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}

	return nil
}
