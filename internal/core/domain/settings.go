package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// Dimensions overrides the known model dimensionality when non-zero.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// PipelineSettings tunes the synthesis pipeline. Every value is a
// configurable default, not a fixed constant.
type PipelineSettings struct {
	QualityThreshold    float64
	HardFloor           float64
	MaxIterations       int
	TopK                int
	ContextTokenBudget  int
	ExampleCount        int
	ChunkSize           int
	ChunkOverlap        int
	EmbedConcurrency    int
	OutboundConcurrency int
	CallTimeout         time.Duration
	MaxAttempts         int
	BackoffBase         time.Duration
	RequestsPerSecond   float64
	DedupeSources       bool
}

// DefaultPipelineSettings returns the documented defaults.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		QualityThreshold:    70,
		HardFloor:           40,
		MaxIterations:       2,
		TopK:                8,
		ContextTokenBudget:  3000,
		ExampleCount:        4,
		ChunkSize:           1000,
		ChunkOverlap:        150,
		EmbedConcurrency:    5,
		OutboundConcurrency: 10,
		CallTimeout:         30 * time.Second,
		MaxAttempts:         3,
		BackoffBase:         time.Second,
		DedupeSources:       true,
	}
}

// WithDefaults fills zero values from DefaultPipelineSettings.
func (p PipelineSettings) WithDefaults() PipelineSettings {
	d := DefaultPipelineSettings()
	if p.QualityThreshold <= 0 {
		p.QualityThreshold = d.QualityThreshold
	}
	if p.HardFloor <= 0 {
		p.HardFloor = d.HardFloor
	}
	if p.MaxIterations < 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.TopK <= 0 {
		p.TopK = d.TopK
	}
	if p.ContextTokenBudget <= 0 {
		p.ContextTokenBudget = d.ContextTokenBudget
	}
	if p.ExampleCount <= 0 {
		p.ExampleCount = d.ExampleCount
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = d.ChunkSize
	}
	if p.ChunkOverlap < 0 {
		p.ChunkOverlap = d.ChunkOverlap
	}
	if p.EmbedConcurrency <= 0 {
		p.EmbedConcurrency = d.EmbedConcurrency
	}
	if p.OutboundConcurrency <= 0 {
		p.OutboundConcurrency = d.OutboundConcurrency
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = d.BackoffBase
	}
	return p
}

// StorageBackend selects the EmbeddingStore implementation.
type StorageBackend string

// Available storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageMemory StorageBackend = "memory"
)

// StorageSettings configures persistence.
type StorageSettings struct {
	Backend StorageBackend
	DataDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Pipeline holds synthesis pipeline settings.
	Pipeline PipelineSettings

	// Storage holds persistence settings.
	Storage StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users must supply them in config.toml.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
		Pipeline:  DefaultPipelineSettings(),
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "gemini-embedding-001",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"gemini-embedding-001": 768,
	}
}

// ProcessorChainConfig holds post-processor chain configuration.
// Uses generic map-based config so processors can be added without
// modifying this struct.
type ProcessorChainConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *ProcessorChainConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// ChainConfigFor returns the chunker and keyword chain configured from
// pipeline settings.
func ChainConfigFor(p PipelineSettings) ProcessorChainConfig {
	return ProcessorChainConfig{
		Processors: []string{"chunker", "keywords"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": p.ChunkSize,
				"overlap":    p.ChunkOverlap,
			},
			"keywords": {
				"max": 5,
			},
		},
	}
}
