package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/storage/memory"
)

// wireConfig injects a fresh in-memory config store for the duration of the
// test and returns it.
func wireConfig(t *testing.T) *memory.ConfigStore {
	t.Helper()
	cfg := memory.NewConfigStore()
	Wire(nil, nil, nil, cfg)
	t.Cleanup(func() {
		Wire(nil, nil, nil, nil)
		connectToken = ""
	})
	return cfg
}

func TestConnect_RequiresConfigStore(t *testing.T) {
	Wire(nil, nil, nil, nil)

	_, err := execute(t, "connect", "wss://game.example.com/socket", "--token", "abc")
	assert.ErrorContains(t, err, "not configured")

	_, err = execute(t, "disconnect")
	assert.ErrorContains(t, err, "not configured")
}

func TestConnect_SavesURLAndToken(t *testing.T) {
	cfg := wireConfig(t)

	out, err := execute(t, "connect", "wss://game.example.com/socket", "--token", "s3cret")

	require.NoError(t, err)
	assert.Contains(t, out, "Connection saved: wss://game.example.com/socket")
	assert.Equal(t, "wss://game.example.com/socket", cfg.GetString("server.url"))
	assert.Equal(t, "s3cret", cfg.GetString("server.token"))
}

func TestConnect_RejectsNonSocketScheme(t *testing.T) {
	cfg := wireConfig(t)

	_, err := execute(t, "connect", "https://game.example.com", "--token", "abc")

	assert.ErrorContains(t, err, "ws:// or wss://")
	assert.Empty(t, cfg.GetString("server.url"))
}

func TestConnect_PromptsWhenTokenOmitted(t *testing.T) {
	cfg := wireConfig(t)
	rootCmd.SetIn(strings.NewReader("prompted\n"))
	defer rootCmd.SetIn(nil)

	out, err := execute(t, "connect", "ws://localhost:30000/socket")

	require.NoError(t, err)
	assert.Contains(t, out, "Session token: ")
	assert.Equal(t, "prompted", cfg.GetString("server.token"))
}

func TestDisconnect_ClearsStoredConnection(t *testing.T) {
	cfg := wireConfig(t)
	require.NoError(t, cfg.Set("server.url", "wss://game.example.com/socket"))
	require.NoError(t, cfg.Set("server.token", "s3cret"))

	out, err := execute(t, "disconnect")

	require.NoError(t, err)
	assert.Equal(t, "Connection forgotten.\n", out)
	assert.Empty(t, cfg.GetString("server.url"))
	assert.Empty(t, cfg.GetString("server.token"))
}
