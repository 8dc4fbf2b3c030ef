package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DeploymentStatus tests ---

func TestDeploymentStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status DeploymentStatus
		want   bool
	}{
		{"running is valid", StatusRunning, true},
		{"stopped is valid", StatusStopped, true},
		{"missing is valid", StatusMissing, true},
		{"empty is invalid", DeploymentStatus(""), false},
		{"unknown is invalid", DeploymentStatus("paused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestParseDeploymentStatus(t *testing.T) {
	// Parsing is case-insensitive, matching how Docker reports states.
	status, err := ParseDeploymentStatus("Running")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	_, err = ParseDeploymentStatus("restarting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid deployment status")
}

// --- ValidateName tests ---

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "markovbot", false},
		{"hyphenated name", "markovbot-staging", false},
		{"single character", "m", false},
		{"digits allowed", "bot2", false},
		{"empty name", "", true},
		{"leading hyphen", "-bot", true},
		{"trailing hyphen", "bot-", true},
		{"underscore rejected", "markov_bot", true},
		{"slash rejected", "markov/bot", true},
		{"space rejected", "markov bot", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- CLIError tests ---

func TestCLIError_Error(t *testing.T) {
	// Without an underlying error, only the message is returned.
	err := NewCLIError(ExitLockfileMissing, "poetry.lock not found")
	assert.Equal(t, "poetry.lock not found", err.Error())

	// With an underlying error, both are included.
	underlying := errors.New("stat poetry.lock: no such file or directory")
	wrapped := WrapCLIError(ExitLockfileMissing, "poetry.lock not found", underlying)
	assert.Equal(t, "poetry.lock not found: stat poetry.lock: no such file or directory", wrapped.Error())
}

func TestCLIError_Unwrap(t *testing.T) {
	underlying := errors.New("daemon unreachable")
	wrapped := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not responding", underlying)

	// errors.Is should find the underlying error through Unwrap.
	assert.True(t, errors.Is(wrapped, underlying))

	// errors.As should recover the CLIError from a wrapped chain.
	var cliErr *CLIError
	require.True(t, errors.As(error(wrapped), &cliErr))
	assert.Equal(t, ExitDockerNotRunning, cliErr.Code)
}
