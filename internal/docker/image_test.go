package docker

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saultyevil/markovbotctl/internal/buildspec"
	"github.com/saultyevil/markovbotctl/internal/model"
)

func writeContextFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// TestBuildContextTar verifies the archive contains exactly the
// rendered Dockerfile, the dependency inputs and the entrypoint.
func TestBuildContextTar(t *testing.T) {
	dir := t.TempDir()
	spec := buildspec.Default()

	writeContextFile(t, dir, "poetry.lock", "lock content")
	writeContextFile(t, dir, "pyproject.toml", "manifest content")
	writeContextFile(t, dir, "README.md", "readme")
	writeContextFile(t, dir, "entrypoint.sh", "#!/bin/sh\n")

	r, err := buildContextTar(spec, dir)
	require.NoError(t, err)

	entries := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}

	require.Contains(t, entries, buildspec.DockerfileName)
	assert.True(t, strings.HasPrefix(entries[buildspec.DockerfileName], "FROM "))
	assert.Equal(t, "lock content", entries["poetry.lock"])
	assert.Equal(t, "manifest content", entries["pyproject.toml"])
	assert.Equal(t, "readme", entries["README.md"])
	assert.Contains(t, entries, "entrypoint.sh")
	assert.Len(t, entries, 5)
}

// TestBuildContextTar_MissingLockfile verifies the archive assembly
// fails with the lockfile exit code before anything reaches the
// daemon.
func TestBuildContextTar_MissingLockfile(t *testing.T) {
	dir := t.TempDir()
	writeContextFile(t, dir, "pyproject.toml", "manifest content")
	writeContextFile(t, dir, "README.md", "readme")

	_, err := buildContextTar(buildspec.Default(), dir)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitLockfileMissing, cliErr.Code)
	assert.Contains(t, cliErr.Message, "poetry.lock")
}

// TestDecodeBuildStream covers the daemon's in-band error reporting
// and progress forwarding.
func TestDecodeBuildStream(t *testing.T) {
	t.Run("forwards progress", func(t *testing.T) {
		stream := `{"stream":"Step 1/9 : FROM python:3.11-slim-buster\n"}` +
			`{"stream":" ---> abc123\n"}`

		var progress bytes.Buffer
		err := decodeBuildStream(strings.NewReader(stream), &progress)
		require.NoError(t, err)
		assert.Contains(t, progress.String(), "Step 1/9")
	})

	t.Run("surfaces in-band error", func(t *testing.T) {
		stream := `{"stream":"Step 5/9 : RUN poetry install\n"}` +
			`{"errorDetail":{"message":"executor failed running"},"error":"executor failed running"}`

		err := decodeBuildStream(strings.NewReader(stream), nil)
		require.Error(t, err)

		var cliErr *model.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, model.ExitGeneralError, cliErr.Code)
		assert.Contains(t, cliErr.Message, "executor failed running")
	})

	t.Run("nil progress writer", func(t *testing.T) {
		stream := `{"stream":"Successfully built abc123\n"}`
		require.NoError(t, decodeBuildStream(strings.NewReader(stream), nil))
	})
}
