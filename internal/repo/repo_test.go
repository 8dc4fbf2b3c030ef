package repo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// git runs a git command in dir, failing the test on error.
func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

// newTestRepo creates a git repository with one commit and returns its
// path. Identity and global config are isolated to the test.
func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	// Keep global config writes out of the real home directory.
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))
	t.Setenv("GIT_AUTHOR_NAME", "test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	dir := t.TempDir()
	git(t, dir, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644))
	git(t, dir, "add", "README.md")
	git(t, dir, "commit", "-m", "initial commit")
	return dir
}

func TestIsRepo(t *testing.T) {
	m := NewManager()
	dir := newTestRepo(t)

	assert.True(t, m.IsRepo(dir))
	assert.False(t, m.IsRepo(t.TempDir()))
}

func TestCurrentBranch(t *testing.T) {
	m := NewManager()
	dir := newTestRepo(t)

	branch, err := m.CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestCurrentBranch_DetachedHead(t *testing.T) {
	m := NewManager()
	dir := newTestRepo(t)
	head := git(t, dir, "rev-parse", "HEAD")
	git(t, dir, "checkout", "--detach", head)

	_, err := m.CurrentBranch(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached HEAD")
}

func TestHeadCommit(t *testing.T) {
	m := NewManager()
	dir := newTestRepo(t)

	head, err := m.HeadCommit(dir)
	require.NoError(t, err)
	assert.Equal(t, git(t, dir, "rev-parse", "HEAD"), head)
	assert.Len(t, head, 40)
}

// TestUpdate verifies the fetch + checkout + fast-forward pull flow
// against a local origin.
func TestUpdate(t *testing.T) {
	m := NewManager()
	origin := newTestRepo(t)

	// Allow fetching the checked-out branch of the non-bare origin.
	git(t, origin, "config", "receive.denyCurrentBranch", "ignore")

	clone := filepath.Join(t.TempDir(), "clone")
	git(t, filepath.Dir(clone), "clone", origin, clone)

	// Advance origin past the clone.
	require.NoError(t, os.WriteFile(filepath.Join(origin, "new.txt"), []byte("new\n"), 0o644))
	git(t, origin, "add", "new.txt")
	git(t, origin, "commit", "-m", "second commit")
	originHead := git(t, origin, "rev-parse", "HEAD")

	head, err := m.Update(clone, "main")
	require.NoError(t, err)
	assert.Equal(t, originHead, head)
}

// TestUpdate_RefusesDivergence verifies that a diverged checkout fails
// instead of being merged.
func TestUpdate_RefusesDivergence(t *testing.T) {
	m := NewManager()
	origin := newTestRepo(t)

	clone := filepath.Join(t.TempDir(), "clone")
	git(t, filepath.Dir(clone), "clone", origin, clone)

	// Diverge both sides.
	require.NoError(t, os.WriteFile(filepath.Join(origin, "origin.txt"), []byte("o\n"), 0o644))
	git(t, origin, "add", "origin.txt")
	git(t, origin, "commit", "-m", "origin change")

	require.NoError(t, os.WriteFile(filepath.Join(clone, "local.txt"), []byte("l\n"), 0o644))
	git(t, clone, "add", "local.txt")
	git(t, clone, "commit", "-m", "local change")

	_, err := m.Update(clone, "main")
	require.Error(t, err)
}

// TestEnsureSafeDirectory verifies the path-specific trust entry is
// added exactly once.
func TestEnsureSafeDirectory(t *testing.T) {
	m := NewManager()
	dir := newTestRepo(t)

	require.NoError(t, m.EnsureSafeDirectory(dir))
	// A second call must not duplicate the entry.
	require.NoError(t, m.EnsureSafeDirectory(dir))

	out := git(t, dir, "config", "--global", "--get-all", "safe.directory")
	entries := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{dir}, entries, "exactly one entry naming exactly this path")
}
