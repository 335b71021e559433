package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
)

var compendiumCmd = &cobra.Command{
	Use:   "compendium",
	Short: "Browse and import compendium packs",
	Long:  `List packs advertised by the world, browse their indexes, and import documents.`,
}

var compendiumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known compendium packs",
	RunE:  runCompendiumList,
}

var compendiumIndexCmd = &cobra.Command{
	Use:   "index [pack]",
	Short: "Print a pack's index",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompendiumIndex,
}

var compendiumImportCmd = &cobra.Command{
	Use:   "import [pack] [id]",
	Short: "Import a pack document into the world",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompendiumImport,
}

// compendiumFields lists extra index fields for the index command.
var compendiumFields []string

func init() {
	compendiumIndexCmd.Flags().StringSliceVar(&compendiumFields, "fields", nil, "extra fields to include in the index")

	compendiumCmd.AddCommand(compendiumListCmd)
	compendiumCmd.AddCommand(compendiumIndexCmd)
	compendiumCmd.AddCommand(compendiumImportCmd)
	rootCmd.AddCommand(compendiumCmd)
}

func runCompendiumList(cmd *cobra.Command, _ []string) error {
	if compendiumService == nil {
		return errors.New("compendium service not configured")
	}

	packs := compendiumService.Packs()
	if len(packs) == 0 {
		cmd.Println("No compendium packs.")
		return nil
	}
	cmd.Println("Compendium packs:")
	for _, id := range packs {
		cmd.Printf("  %s\n", id)
	}
	return nil
}

func runCompendiumIndex(cmd *cobra.Command, args []string) error {
	if compendiumService == nil {
		return errors.New("compendium service not configured")
	}

	rows, err := compendiumService.Index(context.Background(), args[0], compendiumFields)
	if err != nil {
		return fmt.Errorf("failed to index pack %s: %w", args[0], err)
	}
	if len(rows) == 0 {
		cmd.Printf("Pack %s is empty.\n", args[0])
		return nil
	}
	for _, row := range rows {
		id, _ := row["_id"].(string)
		name, _ := row["name"].(string)
		line := fmt.Sprintf("  %s  %s", id, name)
		for _, f := range compendiumFields {
			if v, ok := domain.GetDotted(row, f); ok {
				line += fmt.Sprintf("  %s=%v", f, v)
			}
		}
		cmd.Println(strings.TrimRight(line, " "))
	}
	cmd.Printf("%d entries\n", len(rows))
	return nil
}

func runCompendiumImport(cmd *cobra.Command, args []string) error {
	if compendiumService == nil {
		return errors.New("compendium service not configured")
	}

	doc, err := compendiumService.Import(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to import from pack %s: %w", args[0], err)
	}
	if doc == nil {
		cmd.Println("Import was cancelled.")
		return nil
	}
	cmd.Printf("Imported %s %s (%s)\n", doc.Type(), doc.Name(), doc.ID())
	return nil
}
