package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	stats, err := documentService.StorageStats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Println("Storage:")
	cmd.Printf("  Documents:  %d (%d orphaned)\n", stats.Documents, stats.OrphanedDocuments)
	cmd.Printf("  Chunks:     %d\n", stats.Chunks)
	cmd.Printf("  Embeddings: %d\n", stats.Embeddings)
	cmd.Printf("  Cache:      %d / %d entries\n", stats.CacheEntries, stats.CacheCapacity)
	return nil
}
