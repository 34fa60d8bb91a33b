package driven

import "context"

// LLMService provides completion requests to a language model.
// The pipeline always asks for a fixed JSON shape and treats the returned
// text as untrusted input that must be parsed and validated.
//
// Implementations may include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama (local models)
//   - Gemini
type LLMService interface {
	// Complete sends one system instruction plus user content and returns the text reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest configures one completion call.
type CompletionRequest struct {
	// System is the system instruction.
	System string

	// User is the user content.
	User string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// JSON asks the provider for JSON-only output where supported.
	JSON bool
}
