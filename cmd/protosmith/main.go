// Command protosmith generates context-grounded AI protocols.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/protosmith/internal/adapters/driven/ai"
	"github.com/custodia-labs/protosmith/internal/adapters/driven/config/file"
	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/protosmith/internal/adapters/driving/cli"
	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/core/services"
	"github.com/custodia-labs/protosmith/internal/logger"
	"github.com/custodia-labs/protosmith/internal/normalisers"
	"github.com/custodia-labs/protosmith/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	app, err := build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "protosmith: %v\n", err)
		return err
	}
	defer app.close()

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ingest:   app.ingestor,
		Protocol: app.pipeline,
		Settings: app.settings,
	})
	return cli.Execute(ctx)
}

// app is the wired dependency graph.
type app struct {
	settings *services.SettingsService
	ingestor *services.Ingestor
	pipeline *services.Pipeline

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}
}

// homeDir is $PROTOSMITH_HOME or ~/.protosmith.
func homeDir() (string, error) {
	if dir := os.Getenv("PROTOSMITH_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".protosmith"), nil
}

func build(ctx context.Context) (*app, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}

	var configStore driven.ConfigStore
	configStore, err = file.NewConfigStore(home)
	if err != nil {
		logger.Warn("config unavailable, settings will not persist: %v", err)
		configStore = memory.NewConfigStore()
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	a := &app{settings: settingsService}

	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}
	go func() {
		if err := prompts.Watch(ctx); err != nil {
			logger.Debug("prompt hot reload disabled: %v", err)
		}
	}()

	aiServices := ai.Init(ctx, *settings)
	a.closers = append(a.closers, func() error { aiServices.Close(); return nil })
	for _, w := range aiServices.Warnings {
		if settings.LLM.IsConfigured() || settings.Embedding.IsConfigured() {
			logger.Warn("%s", w)
		}
	}

	store, drafts, err := openStorage(ctx, settings, home, aiServices.EmbeddingService, a)
	if err != nil {
		a.close()
		return nil, err
	}

	chain := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(chain)
	chunker, err := postprocessors.BuildPipeline(chain, domain.ChainConfigFor(settings.Pipeline))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("building chunker: %w", err)
	}

	a.ingestor = services.NewIngestor(normalisers.Defaults(), chunker, aiServices.EmbeddingService, store, settings.Pipeline)
	a.pipeline = services.NewPipeline(services.PipelineDeps{
		LLM:      aiServices.LLMService,
		Embedder: aiServices.EmbeddingService,
		Store:    store,
		Drafts:   drafts,
	}, settings.Pipeline)
	a.pipeline.SetPromptStore(prompts)
	a.closers = append(a.closers, a.pipeline.Close)

	return a, nil
}

// openStorage selects the store backend. The embedding dimension is
// fixed from config, the known model table, or the live service.
func openStorage(
	ctx context.Context,
	settings *domain.AppSettings,
	home string,
	embedder driven.EmbeddingService,
	a *app,
) (driven.EmbeddingStore, driven.DraftStore, error) {
	dims := settings.Embedding.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[settings.Embedding.Model]
	}
	if dims == 0 && embedder != nil {
		dims = embedder.Dimensions()
	}

	switch settings.Storage.Backend {
	case domain.StorageMemory:
		logger.Debug("Using in-memory storage")
		return memory.NewEmbeddingStore(dims), memory.NewDraftStore(), nil
	case domain.StorageSQLite, "":
		dataDir := settings.Storage.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(home, "data")
		}
		db, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store, err := db.EmbeddingStore(ctx, dims)
		if err != nil {
			return nil, nil, err
		}
		return store, db.DraftStore(), nil
	default:
		return nil, nil, errors.New("unknown storage backend: " + string(settings.Storage.Backend))
	}
}
