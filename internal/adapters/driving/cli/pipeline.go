package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pipelineTimeout time.Duration

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Control the embedding pipeline",
}

var pipelineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	RunE:  runPipelineStatus,
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline until all chunks are embedded",
	Long: `Acquires pipeline leadership and embeds pending chunks in batches,
resuming from the persisted checkpoint. Exits when no work remains or
the timeout elapses.`,
	RunE: runPipelineRun,
}

var pipelineResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the checkpoint and error memory",
	Long: `Forces the next run to re-scan every chunk from the start. Existing
embeddings are kept; chunks that previously failed are retried.`,
	RunE: runPipelineReset,
}

func init() {
	pipelineRunCmd.Flags().DurationVar(&pipelineTimeout, "timeout", 10*time.Minute, "maximum run duration")

	pipelineCmd.AddCommand(pipelineStatusCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineResetCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func runPipelineStatus(cmd *cobra.Command, _ []string) error {
	if pipelineController == nil {
		return errors.New("pipeline not configured")
	}

	status, err := pipelineController.Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get pipeline status: %w", err)
	}

	cmd.Println("Pipeline status:")
	cmd.Printf("  Pending:    %d\n", status.Pending)
	cmd.Printf("  Processing: %d\n", status.Processing)
	cmd.Printf("  Completed:  %d\n", status.Completed)
	cmd.Printf("  Errors:     %d\n", status.Errors)

	if status.Idle() {
		cmd.Println("\nIdle: no work remaining.")
	}
	return nil
}

func runPipelineRun(cmd *cobra.Command, _ []string) error {
	if pipelineController == nil {
		return errors.New("pipeline not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pipelineController.Start(ctx) }()

	cmd.Println("Pipeline running...")

	if err := pipelineController.AwaitIdle(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("pipeline timed out after %s", pipelineTimeout)
		}
		return fmt.Errorf("waiting for pipeline: %w", err)
	}

	if err := pipelineController.Stop(); err != nil {
		return fmt.Errorf("stopping pipeline: %w", err)
	}
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	status, err := pipelineController.Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get pipeline status: %w", err)
	}
	cmd.Printf("Done: %d embedded, %d errors.\n", status.Completed, status.Errors)
	return nil
}

func runPipelineReset(cmd *cobra.Command, _ []string) error {
	if pipelineController == nil {
		return errors.New("pipeline not configured")
	}

	if err := pipelineController.Reset(context.Background()); err != nil {
		return fmt.Errorf("failed to reset pipeline: %w", err)
	}
	cmd.Println("Pipeline checkpoint cleared.")
	return nil
}
