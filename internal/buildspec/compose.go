// compose.go renders a Docker Compose service definition for the bot.
//
// The compose output is an alternative to the SDK-driven deploy
// command: operators who keep the rest of their services under compose
// can fold the bot into the same stack. The service definition mirrors
// exactly what deploy would create (same image, user, restart policy,
// mounts and labels), so the two paths are interchangeable.
package buildspec

import (
	"fmt"
	"path"

	"gopkg.in/yaml.v3"
)

// ComposeOptions carries the deploy-level values that a compose
// rendering needs on top of the build definition itself.
type ComposeOptions struct {
	// DeploymentName is the service and container name.
	DeploymentName string

	// ImageTag is the image reference to run, normally the
	// lockfile-digest tag produced by the build command.
	ImageTag string

	// ConfigPath is the host path to the bot configuration file,
	// mounted read-only into the working directory.
	ConfigPath string

	// LogDir is the host directory mounted for the bot's log files.
	// Empty means no log mount.
	LogDir string

	// Labels are the management labels applied to the service's
	// container, matching the deploy command's label schema.
	Labels map[string]string
}

// composeFile is the YAML document structure for the generated
// compose file.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

// composeService is a single service entry. Only the fields the bot
// deployment needs are emitted.
type composeService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name"`
	User          string            `yaml:"user"`
	Restart       string            `yaml:"restart"`
	WorkingDir    string            `yaml:"working_dir"`
	Environment   []string          `yaml:"environment,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
}

// RenderCompose produces a docker-compose YAML document for the bot
// service described by the build definition and options.
//
// Token values are referenced as compose variable substitutions
// (${BOT_RUN_TOKEN}) rather than inlined, so the rendered file is safe
// to commit.
func (s *Spec) RenderCompose(opts ComposeOptions) ([]byte, error) {
	if opts.DeploymentName == "" {
		return nil, fmt.Errorf("compose render: deployment name must not be empty")
	}
	if opts.ImageTag == "" {
		return nil, fmt.Errorf("compose render: image tag must not be empty")
	}

	configTarget := path.Join(s.WorkDir, "bot-config.json")

	service := composeService{
		Image:         opts.ImageTag,
		ContainerName: opts.DeploymentName,
		User:          s.User.Name,
		Restart:       "unless-stopped",
		WorkingDir:    s.WorkDir,
		Environment: []string{
			"BOT_CONFIG=" + configTarget,
			"BOT_RUN_TOKEN=${BOT_RUN_TOKEN}",
			"BOT_DEVELOPMENT_TOKEN=${BOT_DEVELOPMENT_TOKEN}",
		},
		Labels: opts.Labels,
	}

	if opts.ConfigPath != "" {
		service.Volumes = append(service.Volumes,
			fmt.Sprintf("%s:%s:ro", opts.ConfigPath, configTarget))
	}
	if opts.LogDir != "" {
		service.Volumes = append(service.Volumes,
			fmt.Sprintf("%s:%s", opts.LogDir, path.Join(s.WorkDir, "logs")))
	}

	doc := composeFile{
		Services: map[string]composeService{
			opts.DeploymentName: service,
		},
	}

	yamlBytes, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compose file: %w", err)
	}

	header := "# Generated by markovbotctl. Do not edit by hand.\n" +
		"# Re-render with: markovbotctl render compose\n"
	return append([]byte(header), yamlBytes...), nil
}
