// Package repo provides the Git operations behind the update command.
//
// It wraps the git CLI via os/exec rather than a Go Git library: the
// update flow (fetch, checkout, fast-forward pull) must behave exactly
// like the git the operator uses by hand, including respecting their
// global configuration and credential helpers.
//
// All errors from Git commands are wrapped in model.CLIError with
// ExitGitError so the CLI layer maps them to the right exit code.
package repo

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// Manager runs Git operations against a checkout. It is stateless; all
// methods receive the repository path. The struct exists as a receiver
// so a custom git binary path can be added later without breaking
// callers.
type Manager struct{}

// NewManager creates a new repo Manager.
func NewManager() *Manager {
	return &Manager{}
}

// IsRepo reports whether dir is inside a Git working tree.
func (m *Manager) IsRepo(dir string) bool {
	out, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the checked-out branch name, or an error for a
// detached HEAD.
func (m *Manager) CurrentBranch(dir string) (string, error) {
	out, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", model.NewCLIError(model.ExitGitError,
			fmt.Sprintf("repository %s is in detached HEAD state", dir))
	}
	return branch, nil
}

// HeadCommit returns the full SHA of the current HEAD.
func (m *Manager) HeadCommit(dir string) (string, error) {
	out, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Update brings the checkout up to date on the given branch:
// fetch, checkout, then a fast-forward-only pull. The pull refuses to
// merge; an operator with local divergence has to resolve it by hand
// rather than have this tool invent a merge commit.
//
// Returns the HEAD commit after the update.
func (m *Manager) Update(dir string, branch string) (string, error) {
	if branch == "" {
		branch = "main"
	}

	if _, err := runGit(dir, "fetch", "--prune", "origin"); err != nil {
		return "", err
	}
	if _, err := runGit(dir, "checkout", branch); err != nil {
		return "", err
	}
	if _, err := runGit(dir, "pull", "--ff-only", "origin", branch); err != nil {
		return "", err
	}

	return m.HeadCommit(dir)
}

// EnsureSafeDirectory registers dir as a trusted version-control root
// in the global git configuration, for that specific path only.
// Adding an already-present entry would accumulate duplicates, so the
// existing entries are checked first.
func (m *Manager) EnsureSafeDirectory(dir string) error {
	out, err := runGit(dir, "config", "--global", "--get-all", "safe.directory")
	if err == nil {
		for _, line := range strings.Split(out, "\n") {
			if strings.TrimSpace(line) == dir {
				return nil
			}
		}
	}
	// --get-all fails when no entry exists yet; that's the add case.

	_, err = runGit(dir, "config", "--global", "--add", "safe.directory", dir)
	return err
}

// runGit executes a git command in the given working directory and
// returns its combined output. Failures carry the git output in the
// error message, since that is where git explains itself.
func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitGitError,
			fmt.Sprintf("git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(output))),
			err,
		)
	}
	return string(output), nil
}
