// render.go turns a build definition into Dockerfile text.
//
// Rendering is deterministic: the same Spec always produces
// byte-identical output. This matters because the rendered Dockerfile
// participates in the build context digest, and unstable output would
// defeat reproducible image tags.
package buildspec

import (
	"fmt"
	"path"
	"strings"
)

// DockerfileName is the file name the renderer writes into the build
// context and the name passed to the image build API.
const DockerfileName = "Dockerfile"

// Render produces the Dockerfile for the build definition.
//
// Step order mirrors the original build: system packages are installed
// as root, then the build drops to the bot user and never escalates
// again. Everything after the USER instruction (SSH key directory,
// dependency manager bootstrap, dependency restore) runs as the
// non-root account, so the resulting layers are owned by it.
func (s *Spec) Render() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n\n", s.BaseImage)

	// System packages, as root. The apt lists are removed in the same
	// layer to keep the image small.
	if len(s.SystemPackages) > 0 {
		fmt.Fprintf(&b, "RUN apt-get update \\\n")
		fmt.Fprintf(&b, "    && apt-get install -y --no-install-recommends %s \\\n",
			strings.Join(s.SystemPackages, " "))
		fmt.Fprintf(&b, "    && rm -rf /var/lib/apt/lists/*\n\n")
	}

	// Create the bot account and switch to it. --create-home gives the
	// account a writable home for the dependency manager's user-local
	// install.
	fmt.Fprintf(&b, "RUN useradd --create-home --uid %d %s\n", s.User.UID, s.User.Name)
	fmt.Fprintf(&b, "USER %s\n", s.User.Name)
	if s.User.SSHKeyDir != "" {
		fmt.Fprintf(&b, "RUN mkdir -p %s\n", path.Join(s.User.HomeDir, s.User.SSHKeyDir))
	}
	b.WriteString("\n")

	// Dependency manager bootstrap. PATH is extended first so the
	// freshly installed tool resolves in later RUN steps and at runtime.
	fmt.Fprintf(&b, "ENV PATH=\"%s:${PATH}\"\n", s.DependencyManager.BinDir)
	fmt.Fprintf(&b, "RUN %s\n\n", s.DependencyManager.InstallCommand)

	// Working directory and the per-path version-control trust entry.
	fmt.Fprintf(&b, "WORKDIR %s\n", s.WorkDir)
	fmt.Fprintf(&b, "RUN git config --global --add safe.directory %s\n\n", s.SafeDirectory)

	// Dependency restore from the lockfile. A failed resolution fails
	// the build here, before any runtime artifact exists.
	fmt.Fprintf(&b, "COPY --chown=%s:%s %s ./\n",
		s.User.Name, s.User.Name, strings.Join(s.InputFiles(), " "))
	fmt.Fprintf(&b, "RUN %s\n\n", s.DependencyManager.SyncCommand)

	fmt.Fprintf(&b, "CMD [%q]\n", s.Entrypoint)

	return []byte(b.String())
}
