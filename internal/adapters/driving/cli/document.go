package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage world documents",
	Long:  `List, view, create, update, or delete documents in the connected world.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List world documents of a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [type] [id]",
	Short: "Print a document as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentGet,
}

var documentCreateCmd = &cobra.Command{
	Use:   "create [type] [json]",
	Short: "Create a document from a JSON record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentCreate,
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update [type] [id] [json]",
	Short: "Apply a JSON patch to a document",
	Args:  cobra.ExactArgs(3),
	RunE:  runDocumentUpdate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [type] [id...]",
	Short: "Delete documents by id",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDocumentDelete,
}

// documentListJSON switches list output to JSON.
var documentListJSON bool

func init() {
	documentListCmd.Flags().BoolVar(&documentListJSON, "json", false, "output as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentCreateCmd)
	documentCmd.AddCommand(documentUpdateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	coll, err := documentService.Collection(args[0])
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	docs := coll.Contents()

	if documentListJSON {
		records := make([]map[string]any, 0, len(docs))
		for _, doc := range docs {
			records = append(records, doc.ToObject())
		}
		return printJSON(cmd, records)
	}

	if len(docs) == 0 {
		cmd.Printf("No %s documents.\n", args[0])
		return nil
	}
	cmd.Printf("%s documents:\n", args[0])
	for _, doc := range docs {
		name := doc.Name()
		if name == "" {
			name = "(unnamed)"
		}
		cmd.Printf("  %s  %s\n", doc.ID(), name)
	}
	for _, id := range coll.InvalidIDs() {
		cmd.Printf("  %s  (invalid)\n", id)
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	coll, err := documentService.Collection(args[0])
	if err != nil {
		return err
	}
	doc, err := coll.GetStrict(args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, doc.ToObject())
}

func runDocumentCreate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	record, err := parseRecord(args[1])
	if err != nil {
		return err
	}
	docs, err := documentService.Create(context.Background(), args[0], []map[string]any{record}, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	if len(docs) == 0 {
		cmd.Println("Creation was cancelled.")
		return nil
	}
	cmd.Printf("Created %s %s\n", args[0], docs[0].ID())
	return nil
}

func runDocumentUpdate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	patch, err := parseRecord(args[2])
	if err != nil {
		return err
	}
	patch["_id"] = args[1]
	docs, err := documentService.Update(context.Background(), args[0], []map[string]any{patch}, nil)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", args[0], err)
	}
	if len(docs) == 0 {
		cmd.Println("Nothing to update.")
		return nil
	}
	cmd.Printf("Updated %s %s\n", args[0], docs[0].ID())
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ids, err := documentService.Delete(context.Background(), args[0], args[1:], nil)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", args[0], err)
	}
	if len(ids) == 0 {
		cmd.Println("Deletion was cancelled.")
		return nil
	}
	for _, id := range ids {
		cmd.Printf("Deleted %s %s\n", args[0], id)
	}
	return nil
}

// parseRecord decodes a JSON object argument.
func parseRecord(raw string) (map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("invalid JSON record: %w", err)
	}
	return record, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
