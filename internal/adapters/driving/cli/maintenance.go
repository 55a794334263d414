package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docuchat/ragcore/internal/core/domain"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and everything derived from it",
	Long: `Cascades deletion through embeddings, chunks, and the document record.
The cascade is best-effort: every stage is attempted even when an
earlier one fails, and leftovers are reclaimed by 'ragcore sweep'.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var clearEmbeddingsCmd = &cobra.Command{
	Use:   "clear-embeddings [doc-id]",
	Short: "Remove a document's chunks and embeddings for re-embedding",
	Args:  cobra.ExactArgs(1),
	RunE:  runClearEmbeddings,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim records stranded by partial failures",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearEmbeddingsCmd)
	rootCmd.AddCommand(sweepCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	err := maintenanceService.DeleteDocument(context.Background(), args[0])
	if err != nil {
		var cascade *domain.CascadeError
		if errors.As(err, &cascade) {
			cmd.Printf("Deletion of %s partially failed:\n", args[0])
			for _, stage := range cascade.Stages {
				cmd.Printf("  %s: %v\n", stage.Stage, stage.Err)
			}
			cmd.Println("\nRun 'ragcore sweep' to reclaim leftovers.")
			return err
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runClearEmbeddings(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	if err := maintenanceService.ClearDocumentEmbeddings(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}
	cmd.Printf("Cleared embeddings for %s. Re-upload or re-run the pipeline to rebuild.\n", args[0])
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	report, err := maintenanceService.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	cmd.Println("Sweep complete:")
	cmd.Printf("  Dangling chunks removed:     %d\n", report.DanglingChunks)
	cmd.Printf("  Dangling embeddings removed: %d\n", report.DanglingEmbeddings)
	cmd.Printf("  Incomplete uploads purged:   %d\n", report.PurgedDocuments)
	cmd.Printf("  Telemetry records expired:   %d\n", report.ExpiredTelemetry)
	return nil
}
