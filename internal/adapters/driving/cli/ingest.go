package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents to the corpus",
	Long: `Read one or more files, split them into chunks, embed the chunks and
store them in the local corpus. Use "-" to read a single document from
stdin (requires --name).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

// ingestName overrides the source name; required when reading stdin.
var ingestName string

func init() {
	ingestCmd.Flags().StringVarP(&ingestName, "name", "n", "", "Source name for the document (defaults to the file name)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := initApp(cmd.Context()); err != nil {
		return err
	}
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()

	for _, arg := range args {
		name := ingestName
		var content []byte
		var err error

		if arg == "-" {
			if name == "" {
				return errors.New("--name is required when reading from stdin")
			}
			content, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		} else {
			content, err = os.ReadFile(arg)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", arg, err)
			}
			if name == "" {
				name = filepath.Base(arg)
			}
		}

		result, err := documentService.Ingest(ctx, name, string(content))
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", name, err)
		}

		cmd.Printf("Ingested %s (%d chunks)\n", name, len(result.ChunkIDs))
		cmd.Printf("  ID: %s\n", result.DocumentID)
	}

	return nil
}
