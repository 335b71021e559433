package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvtt/hearth-cli/internal/core/services"
)

func TestSettingsCommands_RequireConfiguration(t *testing.T) {
	Wire(nil, nil, nil, nil)

	for _, args := range [][]string{
		{"settings"},
		{"settings", "list"},
		{"settings", "get", "core.maxFPS"},
		{"settings", "set", "core.maxFPS", "30"},
	} {
		_, err := execute(t, args...)
		assert.ErrorContains(t, err, "not configured", "args: %v", args)
	}
}

func TestSettingsGetAndSet(t *testing.T) {
	_, rt := wireRuntime(t)
	require.NoError(t, rt.Settings().Register(services.SettingConfig{
		Namespace: "core",
		Key:       "maxFPS",
		Scope:     services.ScopeClient,
		Type:      services.NumberSetting,
		Default:   60,
	}))

	out, err := execute(t, "settings", "get", "core.maxFPS")
	require.NoError(t, err)
	assert.Equal(t, "60\n", out)

	out, err = execute(t, "settings", "set", "core.maxFPS", "30")
	require.NoError(t, err)
	assert.Equal(t, "core.maxFPS = 30\n", out)

	out, err = execute(t, "settings", "get", "core.maxFPS")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)
}

func TestSettingsSet_StringFallback(t *testing.T) {
	_, rt := wireRuntime(t)
	require.NoError(t, rt.Settings().Register(services.SettingConfig{
		Namespace: "core",
		Key:       "theme",
		Scope:     services.ScopeClient,
		Type:      services.StringSetting,
		Default:   "light",
	}))

	// "dark" is not valid JSON, so the raw string is stored.
	out, err := execute(t, "settings", "set", "core.theme", "dark")
	require.NoError(t, err)
	assert.Equal(t, `core.theme = "dark"`+"\n", out)
}

func TestSettingsList(t *testing.T) {
	_, rt := wireRuntime(t)
	require.NoError(t, rt.Settings().Register(services.SettingConfig{
		Namespace: "core",
		Key:       "maxFPS",
		Scope:     services.ScopeClient,
		Type:      services.NumberSetting,
		Default:   60,
	}))
	require.NoError(t, rt.Settings().Register(services.SettingConfig{
		Namespace: "core",
		Key:       "theme",
		Scope:     services.ScopeClient,
		Type:      services.StringSetting,
		Default:   "light",
	}))

	out, err := execute(t, "settings", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "core.maxFPS = 60")
	assert.Contains(t, out, `core.theme = "light"`)
}

func TestSettingsList_Empty(t *testing.T) {
	wireRuntime(t)

	out, err := execute(t, "settings", "list")

	require.NoError(t, err)
	assert.Equal(t, "No settings registered.\n", out)
}

func TestSettings_RejectsBareKey(t *testing.T) {
	wireRuntime(t)

	_, err := execute(t, "settings", "get", "nodot")
	assert.ErrorContains(t, err, "namespace.key")

	_, err = execute(t, "settings", "set", "nodot", "1")
	assert.ErrorContains(t, err, "namespace.key")
}

func TestSettings_UnregisteredKey(t *testing.T) {
	wireRuntime(t)

	_, err := execute(t, "settings", "get", "core.unknown")

	assert.Error(t, err)
}

func TestSplitSettingKey(t *testing.T) {
	tests := []struct {
		id        string
		namespace string
		key       string
		ok        bool
	}{
		{"core.maxFPS", "core", "maxFPS", true},
		{"module.deep.key", "module", "deep.key", true},
		{"nodot", "", "", false},
		{".key", "", "", false},
		{"namespace.", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		ns, key, ok := splitSettingKey(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.namespace, ns, tt.id)
		assert.Equal(t, tt.key, key, tt.id)
	}
}

func TestParseSettingValue(t *testing.T) {
	assert.Equal(t, float64(30), parseSettingValue("30"))
	assert.Equal(t, true, parseSettingValue("true"))
	assert.Equal(t, nil, parseSettingValue("null"))
	assert.Equal(t, map[string]any{"a": float64(1)}, parseSettingValue(`{"a":1}`))
	assert.Equal(t, "dark", parseSettingValue("dark"))
	assert.Equal(t, "quoted", parseSettingValue(`"quoted"`))
}
