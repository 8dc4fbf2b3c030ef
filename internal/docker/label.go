package docker

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// Label key constants define the Docker label keys that persist
// deployment metadata on the bot container. These labels are the sole
// persistence mechanism; there is no external state file.
//
// All keys share the "markovbot." prefix to avoid collisions with
// labels set by other tools.
const (
	// LabelPrefix is the common prefix for all markovbotctl labels.
	LabelPrefix = "markovbot."

	// LabelManagedBy identifies containers managed by markovbotctl.
	// This is the primary label used for filtering and discovery.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the deployment's unique identifier.
	LabelName = LabelPrefix + "name"

	// LabelContextDir stores the absolute path to the build context
	// directory the image was built from.
	LabelContextDir = LabelPrefix + "context-dir"

	// LabelImageTag stores the image reference the container was
	// created from.
	LabelImageTag = LabelPrefix + "image-tag"

	// LabelLockfileDigest stores the full BLAKE3 digest of the
	// lockfile the image was built against. The verify command
	// compares it against the current build context.
	LabelLockfileDigest = LabelPrefix + "lockfile-digest"

	// LabelConfigDigest stores the BLAKE3 digest of the bot config at
	// deploy time. The status command compares it against the current
	// config file to report drift.
	LabelConfigDigest = LabelPrefix + "config-digest"

	// LabelCreatedAt stores the RFC3339 timestamp of deployment
	// creation, always in UTC.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "markovbotctl"

// BuildLabels constructs the Docker label map for a deployment. The
// labels allow full reconstruction of the Deployment from container
// inspection alone.
func BuildLabels(d *model.Deployment) map[string]string {
	labels := map[string]string{
		LabelManagedBy:      ManagedByValue,
		LabelName:           d.Name,
		LabelContextDir:     d.ContextDir,
		LabelImageTag:       d.ImageTag,
		LabelLockfileDigest: d.LockfileDigest,
		LabelCreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.ConfigDigest != "" {
		labels[LabelConfigDigest] = d.ConfigDigest
	}
	return labels
}

// ParseLabels reconstructs a Deployment from Docker container labels,
// the inverse of BuildLabels.
//
// Status and Container are not reconstructed here; they come from
// runtime container state, not static labels. Missing required labels
// are reported all at once to keep debugging to a single round trip.
func ParseLabels(labels map[string]string) (*model.Deployment, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelName,
		LabelContextDir,
		LabelImageTag,
		LabelLockfileDigest,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if labels[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("container is missing required labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("container is not managed by %s (managed-by=%q)", ManagedByValue, labels[LabelManagedBy])
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid %s label %q: %w", LabelCreatedAt, labels[LabelCreatedAt], err)
	}

	return &model.Deployment{
		Name:           labels[LabelName],
		ContextDir:     labels[LabelContextDir],
		ImageTag:       labels[LabelImageTag],
		LockfileDigest: labels[LabelLockfileDigest],
		ConfigDigest:   labels[LabelConfigDigest],
		CreatedAt:      createdAt,
	}, nil
}

// BuildDeployment constructs the full Deployment aggregate for a
// managed container: labels plus runtime status.
func BuildDeployment(info model.ContainerInfo) (*model.Deployment, error) {
	d, err := ParseLabels(info.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for container %q: %w", info.ContainerName, err)
	}

	d.Container = info
	d.Status = determineStatus(info, d.ContextDir)
	return d, nil
}

// determineStatus computes the aggregate deployment status.
// Priority: missing build context beats everything (the deployment
// cannot be rebuilt or updated), then the container's own state.
func determineStatus(info model.ContainerInfo, contextDir string) model.DeploymentStatus {
	if _, err := os.Stat(contextDir); os.IsNotExist(err) {
		return model.StatusMissing
	}
	if info.Status == "running" {
		return model.StatusRunning
	}
	return model.StatusStopped
}
