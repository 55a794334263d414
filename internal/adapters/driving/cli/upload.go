package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docuchat/ragcore/internal/core/ports/driving"
)

var (
	uploadUser    string
	uploadSession string
	uploadMime    string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document into the engine",
	Long: `Reads a text file, splits it into overlapping chunks, and stores it
for the embedding pipeline to process. The document starts active in
the given session.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadUser, "user", "u", "local", "owning user id")
	uploadCmd.Flags().StringVarP(&uploadSession, "session", "s", "", "chat session id (required)")
	uploadCmd.Flags().StringVar(&uploadMime, "mime", "text/plain", "document mime type")
	_ = uploadCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := documentService.AddDocument(context.Background(), string(content), driving.DocumentUpload{
		UserID:    uploadUser,
		SessionID: uploadSession,
		Filename:  filepath.Base(path),
		MimeType:  uploadMime,
	})
	if err != nil {
		return fmt.Errorf("uploading document: %w", err)
	}

	cmd.Printf("Uploaded %s\n", doc.Filename)
	cmd.Printf("  ID:     %s\n", doc.ID)
	cmd.Printf("  Size:   %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Chunks: %d\n", doc.ChunkCount)
	cmd.Printf("  Status: %s\n", doc.EmbeddingStatus)
	cmd.Println("\nRun 'ragcore pipeline run' to embed the new chunks.")
	return nil
}
