package buildspec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// composeDoc mirrors the generated YAML for assertions. Parsed with a
// generic service map so the test does not depend on the renderer's
// internal types.
type composeDoc struct {
	Services map[string]struct {
		Image         string            `yaml:"image"`
		ContainerName string            `yaml:"container_name"`
		User          string            `yaml:"user"`
		Restart       string            `yaml:"restart"`
		WorkingDir    string            `yaml:"working_dir"`
		Environment   []string          `yaml:"environment"`
		Volumes       []string          `yaml:"volumes"`
		Labels        map[string]string `yaml:"labels"`
	} `yaml:"services"`
}

func TestRenderCompose(t *testing.T) {
	spec := Default()
	out, err := spec.RenderCompose(ComposeOptions{
		DeploymentName: "markovbot",
		ImageTag:       "markovbot:3f1a9c02b4d6",
		ConfigPath:     "/srv/markovbot/bot-config.json",
		LogDir:         "/srv/markovbot/logs",
		Labels: map[string]string{
			"markovbot.managed-by": "markovbotctl",
			"markovbot.name":       "markovbot",
		},
	})
	require.NoError(t, err)

	// The generated file carries a do-not-edit header.
	assert.True(t, strings.HasPrefix(string(out), "# Generated by markovbotctl"))

	var doc composeDoc
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Contains(t, doc.Services, "markovbot")

	svc := doc.Services["markovbot"]
	assert.Equal(t, "markovbot:3f1a9c02b4d6", svc.Image)
	assert.Equal(t, "markovbot", svc.ContainerName)
	assert.Equal(t, "markovbot", svc.User, "service must run as the non-root bot user")
	assert.Equal(t, "unless-stopped", svc.Restart)
	assert.Equal(t, "/home/markovbot/markovbot", svc.WorkingDir)

	// Tokens are compose variable references, never inlined values.
	assert.Contains(t, svc.Environment, "BOT_RUN_TOKEN=${BOT_RUN_TOKEN}")
	assert.Contains(t, svc.Environment, "BOT_CONFIG=/home/markovbot/markovbot/bot-config.json")

	// Config is mounted read-only; logs read-write.
	assert.Contains(t, svc.Volumes, "/srv/markovbot/bot-config.json:/home/markovbot/markovbot/bot-config.json:ro")
	assert.Contains(t, svc.Volumes, "/srv/markovbot/logs:/home/markovbot/markovbot/logs")

	assert.Equal(t, "markovbotctl", svc.Labels["markovbot.managed-by"])
}

func TestRenderCompose_NoOptionalMounts(t *testing.T) {
	out, err := Default().RenderCompose(ComposeOptions{
		DeploymentName: "markovbot",
		ImageTag:       "markovbot:latest",
	})
	require.NoError(t, err)

	var doc composeDoc
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Empty(t, doc.Services["markovbot"].Volumes)
}

func TestRenderCompose_RequiresNameAndTag(t *testing.T) {
	_, err := Default().RenderCompose(ComposeOptions{ImageTag: "markovbot:latest"})
	require.Error(t, err)

	_, err = Default().RenderCompose(ComposeOptions{DeploymentName: "markovbot"})
	require.Error(t, err)
}
