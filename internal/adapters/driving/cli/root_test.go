package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/storage/memory"
	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/services"
)

// execute runs the root command with args and returns the captured output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

// wireRuntime connects a gamemaster runtime to a fresh in-memory hub and
// injects its services into the command tree for the duration of the test.
func wireRuntime(t *testing.T) (*memory.Hub, *services.Runtime) {
	t.Helper()
	registry := domain.BuiltinRegistry()
	hub := memory.NewHub(registry)
	user := &domain.User{ID: domain.RandomID(), Name: "GM", Role: domain.RoleGamemaster}
	rt, err := services.NewRuntime(services.RuntimeConfig{
		Registry:  registry,
		Transport: hub.Connect(user.ID),
		Store:     memory.NewSettingStore(),
		User:      user,
	})
	require.NoError(t, err)
	Wire(rt, rt.Settings(), rt, nil)
	t.Cleanup(func() {
		Wire(nil, nil, nil, nil)
		rt.Close()
	})
	return hub, rt
}

func TestRootCommand_PrintsHelp(t *testing.T) {
	out, err := execute(t)

	require.NoError(t, err)
	assert.Contains(t, out, "hearth")
	assert.Contains(t, out, "Available Commands")
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	_, err := execute(t, "no-such-command")

	assert.Error(t, err)
}
