package services

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// --- Mock implementations ---

const testDims = 32

// mockEmbeddingService implements driven.EmbeddingService with a
// bag-of-words hash so that texts sharing words embed close together.
// When gate is set, Embed holds each call until gate is closed, so tests
// can observe how many calls overlap.
type mockEmbeddingService struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
	err      error
	gate     chan struct{}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	err := m.err
	gate := m.gate
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return hashVector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return testDims }
func (m *mockEmbeddingService) ModelName() string { return "hash" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbeddingService) concurrency() (inFlight, peak int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight, m.peak
}

func hashVector(text string) []float32 {
	v := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
		v[h.Sum32()%testDims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// scriptedLLM implements driven.LLMService. Replies are chosen by which
// built-in prompt the system instruction starts with.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]func(req driven.CompletionRequest) (string, error)
	calls   map[string]int
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		replies: make(map[string]func(driven.CompletionRequest) (string, error)),
		calls:   make(map[string]int),
	}
}

// on scripts a fixed reply for a prompt.
func (m *scriptedLLM) on(prompt, reply string) *scriptedLLM {
	return m.onFunc(prompt, func(driven.CompletionRequest) (string, error) { return reply, nil })
}

// onJSON scripts a reply marshalled from v.
func (m *scriptedLLM) onJSON(prompt string, v any) *scriptedLLM {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return m.on(prompt, string(data))
}

func (m *scriptedLLM) onFunc(prompt string, fn func(driven.CompletionRequest) (string, error)) *scriptedLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[prompt] = fn
	return m
}

func (m *scriptedLLM) Complete(_ context.Context, req driven.CompletionRequest) (string, error) {
	name := promptKind(req.System)
	m.mu.Lock()
	m.calls[name]++
	fn := m.replies[name]
	m.mu.Unlock()
	if fn == nil {
		return "", errors.New("no scripted reply for " + name)
	}
	return fn(req)
}

func (m *scriptedLLM) ModelName() string { return "scripted" }
func (m *scriptedLLM) Ping(_ context.Context) error { return nil }
func (m *scriptedLLM) Close() error { return nil }

func (m *scriptedLLM) callCount(prompt string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[prompt]
}

func promptKind(system string) string {
	for name, p := range defaultPrompts {
		if name != driven.PromptStrictJSON && strings.HasPrefix(system, p) {
			return name
		}
	}
	return "unknown"
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// flakyStore wraps the memory store and fails Count/Query a set number of
// times with ErrStoreUnavailable.
type flakyStore struct {
	*memory.EmbeddingStore
	mu         sync.Mutex
	countFails int
	queryFails int
	countCalls int
	queryCalls int
}

func (s *flakyStore) Count(ctx context.Context, protocolID string) (int, error) {
	s.mu.Lock()
	s.countCalls++
	fail := s.countFails != 0
	if s.countFails > 0 {
		s.countFails--
	}
	s.mu.Unlock()
	if fail {
		return 0, domain.ErrStoreUnavailable
	}
	return s.EmbeddingStore.Count(ctx, protocolID)
}

func (s *flakyStore) Query(ctx context.Context, protocolID string, vector []float32, k int) ([]domain.ScoredItem, error) {
	s.mu.Lock()
	s.queryCalls++
	fail := s.queryFails != 0
	if s.queryFails > 0 {
		s.queryFails--
	}
	s.mu.Unlock()
	if fail {
		return nil, domain.ErrStoreUnavailable
	}
	return s.EmbeddingStore.Query(ctx, protocolID, vector, k)
}

// scoreReply builds a scorer reply whose recomputed overall equals v.
func scoreReply(v float64, issues ...domain.Issue) map[string]any {
	if issues == nil {
		issues = []domain.Issue{}
	}
	return map[string]any{
		"completeness":       v,
		"clarity":            v,
		"actionability":      v,
		"domain_alignment":   v,
		"hallucination_risk": 100 - v,
		"issues":             issues,
		"suggestions":        []domain.Suggestion{},
	}
}

func synthesisReply() map[string]any {
	return map[string]any{
		"system_prompt": "You are a refund-policy assistant.",
		"user_guidance": "Ask about an order.",
		"input_schema":  map[string]any{"type": "object"},
		"output_schema": map[string]any{"type": "object"},
		"constraints":   []string{"Be polite."},
		"tags":          []string{"support"},
		"metadata":      map[string]any{},
	}
}

func examplesReply(n int) map[string]any {
	examples := make([]map[string]any, n)
	for i := range examples {
		examples[i] = map[string]any{"input": map[string]any{"q": "refund?"}, "output": "yes"}
	}
	return map[string]any{"examples": examples}
}
