package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage game settings",
	Long: `View and change registered game settings.

Settings are addressed as namespace.key, e.g. core.rollMode. Client-scope
settings live on this machine; world-scope settings replicate to every
connected client.`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered settings with their values",
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [namespace.key]",
	Short: "Print a setting's current value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [namespace.key] [value]",
	Short: "Change a setting",
	Long: `Changes a setting. The value is parsed as JSON when possible, so numbers,
booleans, and objects keep their type; anything else is stored as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	keys := settingsService.Keys()
	if len(keys) == 0 {
		cmd.Println("No settings registered.")
		return nil
	}
	cmd.Println("Settings:")
	for _, key := range keys {
		ns, k, ok := splitSettingKey(key)
		if !ok {
			continue
		}
		value, err := settingsService.Get(ns, k)
		if err != nil {
			cmd.Printf("  %s = (unavailable: %v)\n", key, err)
			continue
		}
		cmd.Printf("  %s = %s\n", key, formatSettingValue(value))
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	ns, key, ok := splitSettingKey(args[0])
	if !ok {
		return fmt.Errorf("setting must be addressed as namespace.key, got %q", args[0])
	}
	value, err := settingsService.Get(ns, key)
	if err != nil {
		return err
	}
	cmd.Println(formatSettingValue(value))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	ns, key, ok := splitSettingKey(args[0])
	if !ok {
		return fmt.Errorf("setting must be addressed as namespace.key, got %q", args[0])
	}
	applied, err := settingsService.Set(ns, key, parseSettingValue(args[1]))
	if err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", args[0], formatSettingValue(applied))
	return nil
}

// splitSettingKey separates "namespace.key" at the first dot; the key part
// may itself contain dots.
func splitSettingKey(id string) (namespace, key string, ok bool) {
	i := strings.Index(id, ".")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// parseSettingValue decodes JSON when the argument is valid JSON and falls
// back to the raw string, so `set core.maxFPS 60` and `set core.theme dark`
// both do what they look like.
func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func formatSettingValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
