package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/ragcore/internal/adapters/driven/storage/memory"
	"github.com/docuchat/ragcore/internal/cache"
	"github.com/docuchat/ragcore/internal/chunker"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/core/services"
)

// setupTestServices wires the package services to in-memory adapters.
func setupTestServices() func() {
	docStore := memory.NewDocumentStore()
	vectors := memory.NewVectorStore()
	telemetry := memory.NewTelemetryStore()

	documentService = services.NewDocumentService(docStore, vectors, cache.New(10), chunker.New())
	retrievalService = services.NewRetrievalService(docStore, nil, nil, nil, nil, telemetry)
	maintenanceService = services.NewMaintenanceService(docStore, vectors, telemetry, 0)
	pipelineController = services.NewPipeline(services.PipelineConfig{},
		docStore, vectors, memory.NewCheckpointStore(), memory.NewLeaderElector(),
		nil, nil, nil, nil)

	return func() {
		documentService = nil
		retrievalService = nil
		maintenanceService = nil
		pipelineController = nil
	}
}

// execute runs the root command with args and captures output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute("version")

	assert.NoError(t, err)
	assert.Contains(t, out, "ragcore version test-version-1.0.0")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "upload")
	assert.Contains(t, commandNames, "query")
	assert.Contains(t, commandNames, "document")
	assert.Contains(t, commandNames, "pipeline")
	assert.Contains(t, commandNames, "delete")
	assert.Contains(t, commandNames, "sweep")
	assert.Contains(t, commandNames, "stats")
	assert.Contains(t, commandNames, "version")
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	commands := documentCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "get")
	assert.Contains(t, commandNames, "activate")
	assert.Contains(t, commandNames, "deactivate")
	assert.Contains(t, commandNames, "orphans")
}

func TestDocumentListCmd_EmptyStore(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCaptured(t, runDocumentList, "user-1")

	assert.NoError(t, err)
	assert.Contains(t, out, "No documents found")
}

func TestDocumentLifecycleThroughCLI(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	doc, err := documentService.AddDocument(context.Background(),
		"cli lifecycle content", driving.DocumentUpload{UserID: "user-1", SessionID: "sess-1"})
	require.NoError(t, err)

	out, err := runCaptured(t, runDocumentList, "user-1")
	assert.NoError(t, err)
	assert.Contains(t, out, doc.ID)

	out, err = runCaptured(t, runDocumentGet, doc.ID)
	assert.NoError(t, err)
	assert.Contains(t, out, "sess-1")

	_, err = runCaptured(t, runDocumentDeactivate, doc.ID, "sess-1")
	assert.NoError(t, err)

	out, err = runCaptured(t, runDocumentOrphans, "user-1")
	assert.NoError(t, err)
	assert.Contains(t, out, doc.ID)

	out, err = runCaptured(t, runDelete, doc.ID)
	assert.NoError(t, err)
	assert.Contains(t, out, "Deleted")
}

func TestQueryCmd_BasicModeThroughService(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := documentService.AddDocument(context.Background(),
		"query content about penguins", driving.DocumentUpload{UserID: "user-1", SessionID: "sess-1"})
	require.NoError(t, err)

	querySession = "sess-1"
	queryMode = "basic"
	queryJSON = false
	defer func() { querySession = ""; queryMode = "semantic" }()

	out, err := runCaptured(t, runQuery, "penguins")
	assert.NoError(t, err)
	assert.Contains(t, out, "Active documents")
}

func TestSweepCmd_CleanStore(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCaptured(t, runSweep)
	assert.NoError(t, err)
	assert.Contains(t, out, "Sweep complete")
}

func TestStatsCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCaptured(t, runStats)
	assert.NoError(t, err)
	assert.Contains(t, out, "Documents:")
}

// runCaptured invokes a RunE function directly with captured output,
// bypassing the persistent service wiring.
func runCaptured(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	err := fn(cmd, args)
	return buf.String(), err
}
