package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"sync", "initial-pull", "status", "set-user", "listen", "reload", "conflicts"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func TestSetUserSkipsConfigLoadingAnnotation(t *testing.T) {
	cmd := newRootCmd()

	for _, sub := range cmd.Commands() {
		if sub.Name() == "set-user" {
			require.Equal(t, "true", sub.Annotations[skipConfigAnnotation])
			return
		}
	}

	t.Fatal("set-user subcommand not found")
}

func TestVerboseDebugQuietAreMutuallyExclusive(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--verbose", "--quiet", "status"})

	err := cmd.Execute()
	require.Error(t, err)
}
