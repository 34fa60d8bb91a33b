package services

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"

	keyQualityThreshold    = "pipeline.quality_threshold"
	keyHardFloor           = "pipeline.hard_floor"
	keyMaxIterations       = "pipeline.max_iterations"
	keyTopK                = "pipeline.top_k"
	keyContextTokenBudget  = "pipeline.context_token_budget"
	keyExampleCount        = "pipeline.example_count"
	keyChunkSize           = "pipeline.chunk_size"
	keyChunkOverlap        = "pipeline.chunk_overlap"
	keyEmbedConcurrency    = "pipeline.embed_concurrency"
	keyOutboundConcurrency = "pipeline.outbound_concurrency"
	keyCallTimeout         = "pipeline.call_timeout"
	keyMaxAttempts         = "pipeline.max_attempts"
	keyBackoffBase         = "pipeline.backoff_base"
	keyRequestsPerSecond   = "pipeline.requests_per_second"
	keyDedupeSources       = "pipeline.dedupe_sources"

	keyStorageBackend = "storage.backend"
	keyStorageDataDir = "storage.data_dir"
)

// Environment variables that override stored API keys.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvLLMAPIKey       = "PROTOSMITH_LLM_API_KEY"
	EnvEmbeddingAPIKey = "PROTOSMITH_EMBEDDING_API_KEY"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	p := defaults.Pipeline

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.configStore.GetString(keyEmbedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.override(EnvEmbeddingAPIKey, s.configStore.GetString(keyEmbedAPIKey)),
			Dimensions: s.configStore.GetInt(keyEmbedDimensions),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.configStore.GetString(keyLLMModel),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.override(EnvLLMAPIKey, s.configStore.GetString(keyLLMAPIKey)),
		},
		Pipeline: domain.PipelineSettings{
			QualityThreshold:    s.getFloat(keyQualityThreshold, p.QualityThreshold),
			HardFloor:           s.getFloat(keyHardFloor, p.HardFloor),
			MaxIterations:       s.getIntAllowZero(keyMaxIterations, p.MaxIterations),
			TopK:                s.getInt(keyTopK, p.TopK),
			ContextTokenBudget:  s.getInt(keyContextTokenBudget, p.ContextTokenBudget),
			ExampleCount:        s.getInt(keyExampleCount, p.ExampleCount),
			ChunkSize:           s.getInt(keyChunkSize, p.ChunkSize),
			ChunkOverlap:        s.getIntAllowZero(keyChunkOverlap, p.ChunkOverlap),
			EmbedConcurrency:    s.getInt(keyEmbedConcurrency, p.EmbedConcurrency),
			OutboundConcurrency: s.getInt(keyOutboundConcurrency, p.OutboundConcurrency),
			CallTimeout:         s.getDuration(keyCallTimeout, p.CallTimeout),
			MaxAttempts:         s.getInt(keyMaxAttempts, p.MaxAttempts),
			BackoffBase:         s.getDuration(keyBackoffBase, p.BackoffBase),
			RequestsPerSecond:   s.getFloat(keyRequestsPerSecond, p.RequestsPerSecond),
			DedupeSources:       s.getBool(keyDedupeSources, p.DedupeSources),
		},
		Storage: domain.StorageSettings{
			Backend: s.getBackend(defaults.Storage.Backend),
			DataDir: s.configStore.GetString(keyStorageDataDir),
		},
	}

	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}

	return settings, nil
}

// Save persists application settings.
// API keys supplied through the environment are never written to disk.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyQualityThreshold, settings.Pipeline.QualityThreshold},
		{keyHardFloor, settings.Pipeline.HardFloor},
		{keyMaxIterations, settings.Pipeline.MaxIterations},
		{keyTopK, settings.Pipeline.TopK},
		{keyContextTokenBudget, settings.Pipeline.ContextTokenBudget},
		{keyExampleCount, settings.Pipeline.ExampleCount},
		{keyChunkSize, settings.Pipeline.ChunkSize},
		{keyChunkOverlap, settings.Pipeline.ChunkOverlap},
		{keyEmbedConcurrency, settings.Pipeline.EmbedConcurrency},
		{keyOutboundConcurrency, settings.Pipeline.OutboundConcurrency},
		{keyCallTimeout, settings.Pipeline.CallTimeout.String()},
		{keyMaxAttempts, settings.Pipeline.MaxAttempts},
		{keyBackoffBase, settings.Pipeline.BackoffBase.String()},
		{keyRequestsPerSecond, settings.Pipeline.RequestsPerSecond},
		{keyDedupeSources, settings.Pipeline.DedupeSources},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStorageDataDir, settings.Storage.DataDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" && s.getenv(EnvEmbeddingAPIKey) == "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" && s.getenv(EnvLLMAPIKey) == "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvEmbeddingAPIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey
	// A new model may have a different vector size
	settings.Embedding.Dimensions = 0

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvLLMAPIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the settings can drive a pipeline run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var problems []string
	if !settings.LLM.IsConfigured() {
		problems = append(problems, "llm provider is not configured")
	}
	if !settings.Embedding.IsConfigured() {
		problems = append(problems, "embedding provider is not configured")
	}
	p := settings.Pipeline
	if p.HardFloor > p.QualityThreshold {
		problems = append(problems, fmt.Sprintf("hard_floor %.0f is above quality_threshold %.0f", p.HardFloor, p.QualityThreshold))
	}
	if p.ChunkOverlap >= p.ChunkSize {
		problems = append(problems, fmt.Sprintf("chunk_overlap %d must be smaller than chunk_size %d", p.ChunkOverlap, p.ChunkSize))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) override(env, stored string) string {
	if v := strings.TrimSpace(s.getenv(env)); v != "" {
		return v
	}
	return stored
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit 0 as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(strings.ToLower(val))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	switch b := domain.StorageBackend(strings.ToLower(s.configStore.GetString(keyStorageBackend))); b {
	case domain.StorageSQLite, domain.StorageMemory:
		return b
	default:
		return defaultVal
	}
}

func modelOrDefault(model, defaultModel string) string {
	if model != "" {
		return model
	}
	return defaultModel
}

func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		// Cloud providers don't need a custom base URL
		return ""
	}
	if current == "" {
		return "http://localhost:11434"
	}
	return current
}
