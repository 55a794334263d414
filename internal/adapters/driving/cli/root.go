// Package cli implements the command line interface, the driving
// adapter that wires the storage, embedding, and index adapters into
// the core services.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	configfile "github.com/docuchat/ragcore/internal/adapters/driven/config/file"
	"github.com/docuchat/ragcore/internal/adapters/driven/embedding/ollama"
	"github.com/docuchat/ragcore/internal/adapters/driven/embedding/openai"
	"github.com/docuchat/ragcore/internal/adapters/driven/storage/sqlite"
	"github.com/docuchat/ragcore/internal/cache"
	"github.com/docuchat/ragcore/internal/chunker"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/core/services"
	"github.com/docuchat/ragcore/internal/index"
	"github.com/docuchat/ragcore/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired by initServices, consumed by the subcommands.
var (
	configStore        driven.ConfigStore
	store              *sqlite.Store
	documentService    driving.DocumentManager
	retrievalService   driving.Retriever
	pipelineController driving.PipelineController
	maintenanceService driving.Maintenance
)

var (
	flagVerbose   bool
	flagDataDir   string
	flagConfigDir string
)

var rootCmd = &cobra.Command{
	Use:   "ragcore",
	Short: "Local RAG engine for chat document retrieval",
	Long: `ragcore manages uploaded documents, embeds their chunks through a
background pipeline, and answers retrieval queries over a
distance-to-samples vector index backed by SQLite.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("closing store: %v", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.ragcore/data)")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "config directory (default ~/.ragcore)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initServices opens storage and wires the core services. The
// embedding model is optional: without one the engine still accepts
// uploads and answers basic-mode queries.
func initServices() error {
	var err error

	configStore, err = configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	store, err = sqlite.NewStore(flagDataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	model := buildEmbeddingService()

	dims := ollama.DefaultDimensions
	if model != nil {
		dims = model.Dimensions()
	}

	samples, err := index.EnsureSamples(context.Background(), store.SampleStore(), index.DefaultSampleSeed, dims)
	if err != nil {
		return fmt.Errorf("initialising sample set: %w", err)
	}

	idx := index.New(store.VectorStore(), samples)

	capacity := configStore.GetInt("cache.capacity")
	if capacity <= 0 {
		capacity = cache.DefaultCapacity
	}
	embedCache := cache.New(capacity)

	// Background embedding shares the model with interactive queries;
	// the limiter keeps the pipeline from starving them.
	perSecond := configStore.GetInt("embedding.max_per_second")
	if perSecond <= 0 {
		perSecond = 10
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), perSecond)

	ck := chunker.New(
		chunker.WithChunkSize(configStore.GetInt("chunker.size")),
		chunker.WithOverlap(configStore.GetInt("chunker.overlap")),
	)

	documentService = services.NewDocumentService(store.DocumentStore(), store.VectorStore(), embedCache, ck)

	pipelineController = services.NewPipeline(
		services.PipelineConfig{
			BatchSize:  configStore.GetInt("pipeline.batch_size"),
			MaxRetries: configStore.GetInt("pipeline.max_retries"),
		},
		store.DocumentStore(), store.VectorStore(),
		store.CheckpointStore(), store.LeaderElector(),
		model, embedCache, limiter, idx,
	)

	retrievalService = services.NewRetrievalService(
		store.DocumentStore(), idx, model, embedCache, limiter, store.TelemetryStore(),
		services.WithTopK(configStore.GetInt("retrieval.top_k")),
	)

	maintenanceService = services.NewMaintenanceService(
		store.DocumentStore(), store.VectorStore(), store.TelemetryStore(), 0)

	return nil
}

// buildEmbeddingService constructs the configured embedding backend.
// Returns nil when none is configured or construction fails, which
// degrades semantic retrieval instead of blocking the CLI.
func buildEmbeddingService() driven.EmbeddingService {
	provider := configStore.GetString("embedding.provider")
	switch provider {
	case "", "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    configStore.GetString("embedding.base_url"),
			Model:      configStore.GetString("embedding.model"),
			Dimensions: configStore.GetInt("embedding.dimensions"),
		})
	case "openai":
		apiKey := configStore.GetString("embedding.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     apiKey,
			BaseURL:    configStore.GetString("embedding.base_url"),
			Model:      configStore.GetString("embedding.model"),
			Dimensions: configStore.GetInt("embedding.dimensions"),
		})
		if err != nil {
			logger.Warn("openai embedding unavailable: %v", err)
			return nil
		}
		return svc
	case "none":
		return nil
	default:
		logger.Warn("unknown embedding provider %q, semantic retrieval disabled", provider)
		return nil
	}
}
