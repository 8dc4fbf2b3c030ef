package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saultyevil/markovbotctl/internal/model"
)

func testDeployment(t *testing.T) *model.Deployment {
	t.Helper()
	return &model.Deployment{
		Name:           "markovbot",
		ContextDir:     "/srv/markovbot",
		ImageTag:       "markovbot:3f1a9c02b4d6",
		LockfileDigest: "3f1a9c02b4d6e8f0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718",
		ConfigDigest:   "aabbccdd",
		CreatedAt:      time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
	}
}

// TestBuildLabels_ParseLabels_RoundTrip verifies that a deployment
// survives the label encode/decode cycle. Labels are the only
// persistence mechanism, so a lossy round trip would lose state.
func TestBuildLabels_ParseLabels_RoundTrip(t *testing.T) {
	original := testDeployment(t)

	labels := BuildLabels(original)
	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "2026-08-27T10:00:00Z", labels[LabelCreatedAt])

	parsed, err := ParseLabels(labels)
	require.NoError(t, err)

	assert.Equal(t, original.Name, parsed.Name)
	assert.Equal(t, original.ContextDir, parsed.ContextDir)
	assert.Equal(t, original.ImageTag, parsed.ImageTag)
	assert.Equal(t, original.LockfileDigest, parsed.LockfileDigest)
	assert.Equal(t, original.ConfigDigest, parsed.ConfigDigest)
	assert.True(t, original.CreatedAt.Equal(parsed.CreatedAt))
}

// TestBuildLabels_OmitsEmptyConfigDigest verifies that deployments
// created before any config existed do not carry an empty label.
func TestBuildLabels_OmitsEmptyConfigDigest(t *testing.T) {
	d := testDeployment(t)
	d.ConfigDigest = ""

	labels := BuildLabels(d)
	_, present := labels[LabelConfigDigest]
	assert.False(t, present)

	parsed, err := ParseLabels(labels)
	require.NoError(t, err)
	assert.Empty(t, parsed.ConfigDigest)
}

// TestParseLabels_MissingLabels verifies that all missing labels are
// reported together.
func TestParseLabels_MissingLabels(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      "markovbot",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelContextDir)
	assert.Contains(t, err.Error(), LabelImageTag)
	assert.Contains(t, err.Error(), LabelLockfileDigest)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

// TestParseLabels_ForeignContainer verifies containers managed by
// another tool are rejected.
func TestParseLabels_ForeignContainer(t *testing.T) {
	labels := BuildLabels(testDeployment(t))
	labels[LabelManagedBy] = "someone-else"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not managed by")
}

// TestParseLabels_BadTimestamp verifies a corrupt created-at label is
// an error rather than a zero time.
func TestParseLabels_BadTimestamp(t *testing.T) {
	labels := BuildLabels(testDeployment(t))
	labels[LabelCreatedAt] = "yesterday"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

// TestBuildDeployment_Status verifies status derivation from container
// state and build context existence.
func TestBuildDeployment_Status(t *testing.T) {
	contextDir := t.TempDir()

	base := testDeployment(t)
	base.ContextDir = contextDir
	labels := BuildLabels(base)

	tests := []struct {
		name           string
		containerState string
		contextDir     string
		want           model.DeploymentStatus
	}{
		{"running container", "running", contextDir, model.StatusRunning},
		{"exited container", "exited", contextDir, model.StatusStopped},
		{"created container", "created", contextDir, model.StatusStopped},
		{"missing context wins over running", "running", "/nonexistent/context", model.StatusMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := make(map[string]string, len(labels))
			for k, v := range labels {
				l[k] = v
			}
			l[LabelContextDir] = tt.contextDir

			d, err := BuildDeployment(model.ContainerInfo{
				ContainerID:   "abc123",
				ContainerName: "markovbot",
				Status:        tt.containerState,
				Labels:        l,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Status)
		})
	}
}
