package buildspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// TestParseLockfile verifies that a valid lockfile parses into the
// expected pinned package set and metadata.
func TestParseLockfile(t *testing.T) {
	summary, err := ParseLockfile("testdata", "poetry.lock")
	require.NoError(t, err)

	require.Len(t, summary.Packages, 4)
	assert.Equal(t, "aiohttp", summary.Packages[0].Name)
	assert.Equal(t, "3.9.5", summary.Packages[0].Version)
	assert.Equal(t, "disnake", summary.Packages[1].Name)
	assert.Equal(t, "2.9.2", summary.Packages[1].Version)

	assert.Equal(t, "^3.11", summary.PythonVersions)
	assert.NotEmpty(t, summary.ContentHash)
	assert.Len(t, summary.Digest, 64, "BLAKE3-256 digest should be 64 hex characters")
}

// TestParseLockfile_Deterministic verifies the reproducibility
// property: the same lockfile bytes always produce the same digest,
// and therefore the same image tag.
func TestParseLockfile_Deterministic(t *testing.T) {
	first, err := ParseLockfile("testdata", "poetry.lock")
	require.NoError(t, err)
	second, err := ParseLockfile("testdata", "poetry.lock")
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t,
		ImageTag(DefaultRepository, first.Digest),
		ImageTag(DefaultRepository, second.Digest))
}

// TestParseLockfile_DigestTracksContent verifies that a changed
// lockfile produces a different digest.
func TestParseLockfile_DigestTracksContent(t *testing.T) {
	original, err := ParseLockfile("testdata", "poetry.lock")
	require.NoError(t, err)

	// Copy the lockfile with a one-byte change into a temp context.
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "poetry.lock"))
	require.NoError(t, err)
	modified := append(data, '\n')
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poetry.lock"), modified, 0o644))

	changed, err := ParseLockfile(dir, "poetry.lock")
	require.NoError(t, err)
	assert.NotEqual(t, original.Digest, changed.Digest)
}

// TestParseLockfile_Missing verifies the dedicated exit code for an
// absent lockfile.
func TestParseLockfile_Missing(t *testing.T) {
	_, err := ParseLockfile(t.TempDir(), "poetry.lock")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitLockfileMissing, cliErr.Code)
}

// TestParseLockfile_RejectsConstraints verifies that a lockfile entry
// carrying a version constraint instead of an exact pin is rejected.
// Constraints make resolution nondeterministic, which breaks the
// reproducible-build property.
func TestParseLockfile_RejectsConstraints(t *testing.T) {
	_, err := ParseLockfile(filepath.Join("testdata", "unpinned"), "poetry.lock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an exact pin")

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitLockfileMissing, cliErr.Code)
}

// TestImageTag verifies the short-digest tag scheme.
func TestImageTag(t *testing.T) {
	digest := "3f1a9c02b4d6e8f0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718"
	assert.Equal(t, "markovbot:3f1a9c02b4d6", ImageTag("markovbot", digest))

	// Digests shorter than twelve characters are used as-is.
	assert.Equal(t, "markovbot:abc", ImageTag("markovbot", "abc"))
}

// TestDigestBytes verifies stability against a fixed input.
func TestDigestBytes(t *testing.T) {
	a := DigestBytes([]byte("lockfile contents"))
	b := DigestBytes([]byte("lockfile contents"))
	c := DigestBytes([]byte("different contents"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
