package cli

import (
	"github.com/spf13/cobra"

	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driving"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services the commands run against, injected by main before Execute.
var (
	documentService   driving.DocumentService
	settingsService   driving.SettingsService
	compendiumService driving.CompendiumService
	configStore       driven.ConfigStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Hearth virtual tabletop client",
	Long: `Hearth is a command-line client for Hearth virtual tabletop worlds.

Connect to a game server, then browse and modify world documents,
manage settings, and import from compendium packs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Wire injects the services the commands depend on. Services left nil make
// their commands report an unconfigured client instead of failing obscurely.
func Wire(doc driving.DocumentService, set driving.SettingsService, comp driving.CompendiumService, cfg driven.ConfigStore) {
	documentService = doc
	settingsService = set
	compendiumService = comp
	configStore = cfg
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
