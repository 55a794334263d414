package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage uploaded documents",
	Long:  `List, inspect, and manage session activation of uploaded documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [user-id]",
	Short: "List documents for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentActivateCmd = &cobra.Command{
	Use:   "activate [doc-id] [session-id]",
	Short: "Activate a document for a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentActivate,
}

var documentDeactivateCmd = &cobra.Command{
	Use:   "deactivate [doc-id] [session-id]",
	Short: "Deactivate a document from a session",
	Long: `Removes the session from the document's active set. The document is
never deleted here; one with no remaining sessions becomes orphaned and
waits for explicit deletion.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentDeactivate,
}

var documentOrphansCmd = &cobra.Command{
	Use:   "orphans [user-id]",
	Short: "List documents with no active session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentOrphans,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentActivateCmd)
	documentCmd.AddCommand(documentDeactivateCmd)
	documentCmd.AddCommand(documentOrphansCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.ListForUser(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found for user: %s\n", args[0])
		return nil
	}

	cmd.Printf("Documents for user %s:\n\n", args[0])
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    File:     %s\n", docs[i].Filename)
		cmd.Printf("    Status:   %s\n", docs[i].EmbeddingStatus)
		cmd.Printf("    Sessions: %d active\n", len(docs[i].ActiveSessions))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  File:     %s\n", doc.Filename)
	cmd.Printf("  User:     %s\n", doc.UserID)
	cmd.Printf("  Size:     %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Status:   %s\n", doc.EmbeddingStatus)
	cmd.Printf("  Accessed: %d times\n", doc.AccessCount)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.ActiveSessions) > 0 {
		cmd.Println("\n  Active sessions:")
		for _, sess := range doc.ActiveSessions {
			cmd.Printf("    %s\n", sess)
		}
	} else {
		cmd.Println("\n  Orphaned (no active sessions)")
	}

	return nil
}

func runDocumentActivate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.ActivateForSession(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to activate document: %w", err)
	}
	cmd.Printf("Activated %s for session %s\n", args[0], args[1])
	return nil
}

func runDocumentDeactivate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.DeactivateFromSession(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}
	cmd.Printf("Deactivated %s from session %s\n", args[0], args[1])
	return nil
}

func runDocumentOrphans(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	orphans, err := maintenanceService.GetOrphanedDocuments(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list orphans: %w", err)
	}

	if len(orphans) == 0 {
		cmd.Println("No orphaned documents.")
		return nil
	}

	cmd.Println("Orphaned documents:")
	for i := range orphans {
		cmd.Printf("  %s  %s\n", orphans[i].ID, orphans[i].Filename)
	}
	cmd.Printf("\nTotal: %d. Delete with 'ragcore delete [doc-id]'.\n", len(orphans))
	return nil
}
