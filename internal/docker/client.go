// Package docker wraps the Docker Engine SDK for the markovbotctl CLI.
//
// It provides the client with automatic socket detection, image build
// and inspection, bot container lifecycle operations, log tailing, and
// the label schema that carries all deployment state. There is no
// state file: everything the status and verify commands report is
// reconstructed from Docker API queries.
package docker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// defaultPingTimeout bounds the daemon liveness probe. Docker Desktop
// on macOS can take a few seconds to answer when idle.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. The wrapper controls the
// exposed API surface and owns socket detection; everything else in
// this package goes through it.
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client. DOCKER_HOST wins when set;
// otherwise the platform's default socket paths are probed.
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is
// found or the client cannot be created.
func NewClient() (*Client, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker socket not found",
			err,
		)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a client for a specific connection string.
// API version negotiation keeps the tool compatible with whatever
// daemon version the host runs.
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// dockerPipeHost is the Docker Desktop named pipe on Windows. The pipe
// path is fixed and cannot be relocated.
const dockerPipeHost = "npipe:////./pipe/docker_engine"

// detectDockerHost probes the known socket paths for the platform.
// Existence is checked rather than connectivity; Ping handles the
// latter.
func detectDockerHost() (string, error) {
	return detectHostFor(runtime.GOOS)
}

// detectHostFor resolves the default daemon address for a platform.
func detectHostFor(goos string) (string, error) {
	switch goos {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Docker Desktop either symlinks the standard path or uses a
		// per-user socket under ~/.docker.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Named pipes do not answer os.Stat, so reachability is left
		// entirely to Ping.
		return dockerPipeHost, nil

	default:
		return "", fmt.Errorf("no default Docker socket on %s; set DOCKER_HOST", goos)
	}
}

// detectUnixSocket returns the Docker host URI for the first socket
// path that exists, in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v (is Docker running?)",
		paths,
	)
}

// Ping verifies the daemon is reachable within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases the client's resources. Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the underlying SDK client for operations this wrapper
// does not cover. Prefer the wrapper methods where they exist.
func (c *Client) Inner() *client.Client {
	return c.inner
}
