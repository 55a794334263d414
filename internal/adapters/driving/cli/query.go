package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docuchat/ragcore/internal/core/domain"
)

var (
	querySession string
	queryMode    string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve passages relevant to a query",
	Long: `Runs retrieval for a chat session. Semantic mode embeds the query and
searches the vector index; basic mode ranks whole active documents by
lexical overlap. A semantic query that cannot be embedded degrades to
basic mode rather than failing.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "chat session id (required)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "semantic", "retrieval mode: semantic or basic")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output result as JSON")
	_ = queryCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	result, err := retrievalService.Retrieve(
		context.Background(), querySession, args[0], domain.RetrievalMode(queryMode))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if result.Degraded {
		cmd.Println("(semantic retrieval unavailable, degraded to basic mode)")
	}

	switch {
	case result.Semantic != nil:
		printSemantic(cmd, result)
	case result.Basic != nil:
		printBasic(cmd, result)
	}

	cmd.Printf("\nLatency: %dms", result.LatencyMs)
	if result.QueryEmbedMs > 0 {
		cmd.Printf(" (+%dms query embedding)", result.QueryEmbedMs)
	}
	cmd.Println()
	return nil
}

func printSemantic(cmd *cobra.Command, result *domain.RetrievalResult) {
	if len(result.Semantic.Chunks) == 0 {
		cmd.Println("No matching passages.")
		return
	}

	cmd.Printf("Passages (top score %.3f, average %.3f):\n\n",
		result.Semantic.TopScore, result.Semantic.AverageScore)
	for i, rc := range result.Semantic.Chunks {
		cmd.Printf("  [%d] %.3f  document %s, chunk %d\n",
			i+1, rc.Similarity, rc.Chunk.DocumentID, rc.Chunk.ChunkIndex)
		cmd.Printf("      %s\n\n", snippet(rc.Chunk.Text, 160))
	}
}

func printBasic(cmd *cobra.Command, result *domain.RetrievalResult) {
	if len(result.Basic.Documents) == 0 {
		cmd.Println("No active documents in this session.")
		return
	}

	cmd.Println("Active documents:")
	cmd.Println()
	for i := range result.Basic.Documents {
		doc := &result.Basic.Documents[i]
		cmd.Printf("  [%d] %s (%s)\n", i+1, doc.Filename, doc.ID)
		cmd.Printf("      %s\n\n", snippet(doc.Content, 160))
	}
}

// snippet truncates text for terminal display.
func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
