package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRootCommand_Subcommands verifies every documented subcommand
// is registered.
func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	want := []string{
		"render", "build", "deploy", "status", "logs",
		"start", "stop", "remove", "update", "verify", "config",
	}

	registered := map[string]bool{}
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range want {
		assert.True(t, registered[name], "subcommand %q not registered", name)
	}
}

// TestNewRootCommand_GlobalFlags verifies the persistent flags exist.
func TestNewRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCommand()

	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestDeploymentNameArg(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"no args defaults", nil, "markovbot", false},
		{"explicit name", []string{"my-bot"}, "my-bot", false},
		{"invalid name", []string{"-bad-"}, "", true},
		{"empty name", []string{""}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deploymentNameArg(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef0123"))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "", shortID(""))
}

func TestEqualStrings(t *testing.T) {
	assert.True(t, equalStrings(nil, nil))
	assert.True(t, equalStrings([]string{"./entrypoint.sh"}, []string{"./entrypoint.sh"}))
	assert.False(t, equalStrings([]string{"a"}, []string{"b"}))
	assert.False(t, equalStrings([]string{"a"}, []string{"a", "b"}))
}
