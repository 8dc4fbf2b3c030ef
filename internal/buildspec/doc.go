// Package buildspec owns the bot's container build definition as data.
//
// The definition covers everything the image build does: base image
// selection, non-root user creation, system package installation,
// dependency manager bootstrap, dependency restore from the lockfile,
// the version-control safe-directory entry, and the entrypoint command.
//
// Key responsibilities:
//   - Provide the canonical default build definition
//   - Load operator overrides from a JSONC spec file
//   - Validate the definition (non-root user, path-specific safe
//     directory, relative entrypoint)
//   - Render the definition to a deterministic Dockerfile and to a
//     Docker Compose service definition
//   - Check the build context and summarize the lockfile's pinned
//     package set, content-addressed with BLAKE3
package buildspec
