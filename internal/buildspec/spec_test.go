package buildspec

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// TestDefault_IsValid verifies that the canonical build definition
// passes its own validation. If this fails, every command is broken.
func TestDefault_IsValid(t *testing.T) {
	spec := Default()
	require.NoError(t, spec.Validate())

	assert.Equal(t, "python:3.11-slim-buster", spec.BaseImage)
	assert.Equal(t, "markovbot", spec.User.Name)
	assert.Equal(t, 1000, spec.User.UID)
	assert.Equal(t, []string{"git", "openssh-client"}, spec.SystemPackages)
	assert.Equal(t, spec.WorkDir, spec.SafeDirectory)
	assert.Equal(t, "./entrypoint.sh", spec.Entrypoint)
}

// TestLoad_EmptyPathReturnsDefault verifies that an empty spec path
// yields the unmodified default definition.
func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	spec, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), spec)
}

// TestLoad_AppliesOverrides verifies that a JSONC spec file overrides
// only the fields it mentions, leaving the rest of the defaults intact.
func TestLoad_AppliesOverrides(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "botbuild.jsonc"))
	require.NoError(t, err)

	// Overridden fields.
	assert.Equal(t, "python:3.11-slim-bookworm", spec.BaseImage)
	assert.Equal(t, 1001, spec.User.UID)
	assert.Equal(t, []string{"git", "openssh-client", "curl"}, spec.SystemPackages)

	// Untouched defaults.
	assert.Equal(t, "/home/markovbot/markovbot", spec.WorkDir)
	assert.Equal(t, "poetry", spec.DependencyManager.Tool)
	assert.Equal(t, "./entrypoint.sh", spec.Entrypoint)
}

// TestLoad_MissingFile verifies that pointing at a nonexistent spec
// file is an error rather than a silent fallback to defaults.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "no-such-spec.jsonc"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitSpecInvalid, cliErr.Code)
}

// TestValidate rejects the definitions that would break the tool's
// invariants, root execution above all.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr string
	}{
		{
			name:    "root user name",
			mutate:  func(s *Spec) { s.User.Name = "root" },
			wantErr: "must not run as root",
		},
		{
			name:    "uid zero",
			mutate:  func(s *Spec) { s.User.UID = 0 },
			wantErr: "must not run as root",
		},
		{
			name:    "empty base image",
			mutate:  func(s *Spec) { s.BaseImage = "" },
			wantErr: "baseImage",
		},
		{
			name:    "relative workdir",
			mutate:  func(s *Spec) { s.WorkDir = "markovbot" },
			wantErr: "workDir must be absolute",
		},
		{
			name:    "safe directory differs from workdir",
			mutate:  func(s *Spec) { s.SafeDirectory = "/home/markovbot" },
			wantErr: "safeDirectory",
		},
		{
			name:    "absolute entrypoint",
			mutate:  func(s *Spec) { s.Entrypoint = "/usr/bin/run.sh" },
			wantErr: "entrypoint",
		},
		{
			name:    "empty lockfile name",
			mutate:  func(s *Spec) { s.Inputs.Lockfile = "" },
			wantErr: "inputs.lockfile",
		},
		{
			name:    "blank system package",
			mutate:  func(s *Spec) { s.SystemPackages = []string{"git", "  "} },
			wantErr: "systemPackages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Default()
			tt.mutate(spec)

			err := spec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitSpecInvalid, cliErr.Code)
		})
	}
}

// TestCheckContext_Valid verifies the success scenario: a context
// containing both lockfile and manifest passes.
func TestCheckContext_Valid(t *testing.T) {
	spec := Default()
	require.NoError(t, spec.CheckContext("testdata"))
}

// TestCheckContext_MissingLockfile verifies the failure scenario: a
// missing lockfile aborts with the dedicated exit code before any
// Docker interaction.
func TestCheckContext_MissingLockfile(t *testing.T) {
	spec := Default()
	err := spec.CheckContext(t.TempDir())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitLockfileMissing, cliErr.Code)
	assert.Contains(t, err.Error(), "poetry.lock")
}

// TestCheckContext_MissingManifest verifies that a context with a
// lockfile but no manifest is also rejected.
func TestCheckContext_MissingManifest(t *testing.T) {
	spec := Default()
	err := spec.CheckContext(filepath.Join("testdata", "unpinned"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitLockfileMissing, cliErr.Code)
	assert.Contains(t, err.Error(), "pyproject.toml")
}

// TestInputFiles verifies copy ordering: lockfile, manifest, extras.
func TestInputFiles(t *testing.T) {
	spec := Default()
	assert.Equal(t, []string{"poetry.lock", "pyproject.toml", "README.md"}, spec.InputFiles())
}
