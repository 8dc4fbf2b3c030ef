// Package model defines the domain types for the markovbotctl CLI.
//
// All entities here are transient: deployment state is reconstructed at
// runtime from Docker container labels, never from a state file on disk.
// The types in this package are shared by every other internal package,
// so model must not import anything outside the standard library.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DeploymentStatus represents the lifecycle state of a bot deployment.
// The state transitions are:
//
//	[Built] → Running → Stopped ⇄ Running → [Removed]
//	Running/Stopped → Missing (container labels reference a build
//	context directory that no longer exists on disk)
type DeploymentStatus string

const (
	// StatusRunning indicates the bot container is running.
	StatusRunning DeploymentStatus = "running"

	// StatusStopped indicates the bot container exists but is not
	// running. Image, configuration and log volumes are preserved.
	StatusStopped DeploymentStatus = "stopped"

	// StatusMissing indicates the build context directory recorded in
	// the container labels no longer exists on disk. The container can
	// still be started or removed, but not rebuilt or updated.
	StatusMissing DeploymentStatus = "missing"
)

// String returns the string representation of DeploymentStatus,
// satisfying fmt.Stringer for CLI output.
func (s DeploymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the DeploymentStatus is one of the
// predefined states.
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusMissing:
		return true
	default:
		return false
	}
}

// ParseDeploymentStatus converts a string to a DeploymentStatus.
// Returns an error if the string does not match any valid status.
func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	status := DeploymentStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid deployment status: %q (valid: running, stopped, missing)", s)
	}
	return status, nil
}

// Deployment represents a deployed bot instance: a built image plus the
// container created from it. This is the primary aggregate entity.
//
// All fields are reconstructed from Docker container labels (see the
// label schema in internal/docker/label.go).
type Deployment struct {
	// Name is the unique identifier for this deployment. Must contain
	// only alphanumeric characters and hyphens.
	Name string `json:"name"`

	// ContextDir is the absolute path to the build context directory
	// that the image was built from (where the lockfile and manifest
	// live).
	ContextDir string `json:"contextDir"`

	// ImageTag is the tag of the image the container was created from,
	// derived from the lockfile digest (e.g. "markovbot:3f1a9c02b4d6").
	ImageTag string `json:"imageTag"`

	// LockfileDigest is the full BLAKE3 digest of the lockfile the
	// image was built against.
	LockfileDigest string `json:"lockfileDigest"`

	// ConfigDigest is the BLAKE3 digest of the bot configuration file
	// that was current at deploy time. Used by the status command to
	// report configuration drift.
	ConfigDigest string `json:"configDigest,omitempty"`

	// Status is the current lifecycle state of the deployment.
	Status DeploymentStatus `json:"status"`

	// Container holds runtime information about the bot container.
	Container ContainerInfo `json:"container"`

	// CreatedAt is the timestamp when this deployment was created.
	CreatedAt time.Time `json:"createdAt"`
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name,
	// without the leading "/" the API prepends.
	ContainerName string `json:"containerName"`

	// Status is the Docker container state string (e.g. "running",
	// "exited", "created").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container,
	// including the markovbot.* management labels.
	Labels map[string]string `json:"labels,omitempty"`
}

// RuntimeInfo describes the observed runtime identity of a container,
// as reported by a container inspect call. The verify command compares
// these values against the build spec.
type RuntimeInfo struct {
	// User is the user the container's main process runs as, either a
	// name ("markovbot") or a numeric UID string.
	User string `json:"user"`

	// Cmd is the container's default command.
	Cmd []string `json:"cmd"`

	// Running reports whether the container is currently running.
	Running bool `json:"running"`

	// StartedAt is when the container last started, zero if never.
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// nameRegex validates deployment names: alphanumeric + hyphens only,
// must start and end with alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is a valid deployment name.
// Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("deployment name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid deployment name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitSpecInvalid indicates the build spec file could not be
	// loaded or failed validation.
	ExitSpecInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitLockfileMissing indicates the lockfile or manifest is missing
	// from the build context or the lockfile is unusable (unparsable,
	// or not fully pinned), so dependency restore cannot succeed.
	ExitLockfileMissing ExitCode = 4

	// ExitGitError indicates a Git operation failed.
	ExitGitError ExitCode = 5

	// ExitDeploymentNotFound indicates the named deployment does not exist.
	ExitDeploymentNotFound ExitCode = 6

	// ExitConfigInvalid indicates the bot configuration file failed
	// validation.
	ExitConfigInvalid ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
