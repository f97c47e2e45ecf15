package cli

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/pkshell/internal/cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"databases", "schemas", "tables", "tree", "query", "shell", "serve", "ui", "version", "completion"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "api-url", "timeout", "locale", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestCompletionCommand(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "bash completion"},
		{"zsh", "#compdef pkshell"},
		{"fish", "complete -c pkshell"},
		{"powershell", "Register-ArgumentCompleter"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			root := NewRootCmd()
			buf := new(bytes.Buffer)
			root.SetOut(buf)
			root.SetArgs([]string{"completion", tt.shell})

			require.NoError(t, root.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Cleanup(config.ResetConfig)
	t.Setenv("PKSHELL_API_URL", "not a url")

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"version"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

func TestRootCmd_Version(t *testing.T) {
	t.Cleanup(config.ResetConfig)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "pkshell v"+Version)
}
