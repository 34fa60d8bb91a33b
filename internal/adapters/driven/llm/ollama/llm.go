// Package ollama provides an LLM service adapter using a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/httpx"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the transport timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides completions using Ollama.
type LLMService struct {
	client *ollama.Client
	model  string
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url %q: %w", cfg.BaseURL, err)
	}

	return &LLMService{
		client: ollama.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

// Complete runs a single non-streaming chat turn.
func (s *LLMService) Complete(ctx context.Context, creq driven.CompletionRequest) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model: s.model,
		Messages: []ollama.Message{
			{Role: "system", Content: creq.System},
			{Role: "user", Content: creq.User},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": creq.Temperature,
		},
	}
	if creq.MaxTokens > 0 {
		req.Options["num_predict"] = creq.MaxTokens
	}
	if creq.JSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var out string
	err := s.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
		out += res.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", classify(err))
	}
	return out, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks that the Ollama server answers.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", classify(err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

// classify maps Ollama status errors onto httpx.StatusError so the shared
// retry policy can read the status class.
func classify(err error) error {
	var se ollama.StatusError
	if errors.As(err, &se) {
		return &httpx.StatusError{Provider: "ollama", StatusCode: se.StatusCode, Body: se.ErrorMessage}
	}
	return err
}
