// Package cli provides the cobra command surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/config/file"
	embedollama "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/embedding/ollama"
	embedopenai "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driven/generation"
	genollama "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/generation/ollama"
	genopenai "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/generation/openai"
	"github.com/custodia-labs/ragchat-cli/internal/adapters/driven/storage/sqlite"
	oteladapter "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/telemetry/otel"
	vecmem "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/ragchat-cli/internal/chunking"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat-cli/internal/core/services"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verboseFlag   bool
	configDirFlag string
)

// Package-level services, wired by initApp and consumed by the
// command RunE functions. Tests swap these for mocks.
var (
	chatService     driving.ChatService
	documentService driving.DocumentService
	modelCatalog    driving.ModelCatalog

	appConfig      *configfile.Config
	registry       *services.ModelRegistry
	sessionManager *services.SessionManager
	telemetry      *oteladapter.Sink
	store          *sqlite.Store
	generator      driven.GenerationService
	embedder       driven.EmbeddingService
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with your documents from the terminal",
	Long: `ragchat ingests local documents into a searchable corpus and answers
questions about them with a language model, citing the passages it
used. Configuration lives in ~/.ragchat/config.toml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config", "", "config directory (default ~/.ragchat)")
}

// Execute runs the root command.
func Execute() error {
	defer closeApp()
	return rootCmd.Execute()
}

// initApp wires the full service graph. Commands that need services
// call it at the top of their RunE.
func initApp(ctx context.Context) error {
	logger.SetVerbose(verboseFlag)

	if chatService != nil {
		return nil
	}

	cfg, err := configfile.Load(configDirFlag)
	if err != nil {
		return err
	}
	appConfig = cfg

	dir, err := configfile.Dir(configDirFlag)
	if err != nil {
		return err
	}

	store, err = sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return fmt.Errorf("opening corpus store: %w", err)
	}

	embedder, err = buildEmbedder(cfg)
	if err != nil {
		return err
	}

	generator, err = buildGenerator(cfg)
	if err != nil {
		return err
	}

	var sink driven.TelemetrySink = driven.NoopTelemetry{}
	if cfg.Telemetry.Enabled {
		telemetry, err = oteladapter.New(ctx, cfg.Telemetry.Dir)
		if err != nil {
			return fmt.Errorf("initialising telemetry: %w", err)
		}
		sink = telemetry
	}

	index := vecmem.NewIndex()
	registry = services.NewModelRegistry(cfg.Deployments(), cfg.DefaultModel)
	modelCatalog = registry

	splitter := chunking.New(
		chunking.WithChunkSize(cfg.Ingest.ChunkSize),
		chunking.WithOverlap(cfg.Ingest.ChunkOverlap),
	)

	ingestion := services.NewIngestionService(splitter, embedder, store, index, sink, services.IngestionConfig{
		Parallelism:   cfg.Ingest.Parallelism,
		RatePerSecond: cfg.Ingest.RatePerSecond,
	})
	documentService = ingestion

	// The vector index lives in memory; rebuild it from the store.
	if _, err := ingestion.Reindex(ctx); err != nil {
		return fmt.Errorf("rebuilding vector index: %w", err)
	}

	retrieval := services.NewRetrievalService(store, index, embedder, sink)
	composer := services.NewPromptComposer(cfg.Chat.SystemInstructions, cfg.Chat.ContextBudget)

	sessionManager = services.NewSessionManager(retrieval, composer, registry, generator, sink, services.SessionConfig{
		TopK:              cfg.Chat.TopK,
		MaxTokens:         cfg.Chat.MaxTokens,
		Temperature:       cfg.Chat.Temperature,
		GenerationTimeout: cfg.GenerationTimeout(),
	})
	chatService = sessionManager

	return nil
}

// buildEmbedder selects the embedding backend from configuration.
func buildEmbedder(cfg *configfile.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		key := cfg.OpenAIKey()
		if key == "" {
			return nil, errors.New("no OpenAI API key configured; run 'ragchat settings set-key' or set OPENAI_API_KEY")
		}
		return embedopenai.NewEmbeddingService(embedopenai.Config{
			APIKey:     key,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "ollama":
		return embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// buildGenerator registers one backend per provider the configured
// deployments reference.
func buildGenerator(cfg *configfile.Config) (driven.GenerationService, error) {
	router := generation.NewRouter()

	providers := make(map[string]bool)
	for _, m := range cfg.Models {
		providers[m.Provider] = true
	}

	for provider := range providers {
		switch provider {
		case "openai":
			key := cfg.OpenAIKey()
			if key == "" {
				return nil, errors.New("no OpenAI API key configured; run 'ragchat settings set-key' or set OPENAI_API_KEY")
			}
			backend, err := genopenai.NewGenerationService(genopenai.Config{
				APIKey:  key,
				BaseURL: cfg.Generation.OpenAIBaseURL,
				Timeout: cfg.GenerationTimeout(),
			})
			if err != nil {
				return nil, err
			}
			router.Register("openai", backend)
		case "ollama":
			router.Register("ollama", genollama.NewGenerationService(genollama.Config{
				BaseURL: cfg.Generation.OllamaBaseURL,
				Timeout: cfg.GenerationTimeout(),
			}))
		default:
			return nil, fmt.Errorf("model deployment references unknown provider %q", provider)
		}
	}

	return router, nil
}

// watchConfig hot-reloads model deployments for long-running commands.
// Returns immediately; the watcher stops when ctx is cancelled.
func watchConfig(ctx context.Context) {
	if registry == nil {
		return
	}
	w, err := configfile.NewWatcher(configDirFlag, func(cfg *configfile.Config) {
		registry.Refresh(cfg.Deployments(), cfg.DefaultModel)
	})
	if err != nil {
		logger.Warn("Config watch unavailable: %v", err)
		return
	}
	go func() { _ = w.Run(ctx) }()
}

// reapSessions periodically discards sessions that have sat idle past
// the configured timeout. Returns immediately; the reaper stops when
// ctx is cancelled.
func reapSessions(ctx context.Context) {
	if sessionManager == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionManager.CloseIdle(); n > 0 {
					logger.Debug("Reaped %d idle sessions", n)
				}
			}
		}
	}()
}

// closeApp releases everything initApp opened.
func closeApp() {
	if embedder != nil {
		_ = embedder.Close()
	}
	if generator != nil {
		_ = generator.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	if telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		telemetry.Shutdown(ctx)
		cancel()
	}
}
