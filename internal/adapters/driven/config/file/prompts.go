package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptAnalyzeContext: `You analyse reference material for an AI behaviour protocol.
The user message contains the protocol goal followed by excerpts of reference material.

Extract only what the material actually states. Do not invent facts.

Respond with a single JSON object with exactly these keys, each an array of short strings:
{"key_concepts": [], "rules": [], "example_seeds": [], "constraints": [], "terminology": []}

- key_concepts: the central ideas the protocol must understand
- rules: explicit policies, deadlines, limits or procedures, quoted as precisely as possible
- example_seeds: concrete situations that would make good input/output examples
- constraints: things the assistant must or must not do
- terminology: domain terms with a short definition, formatted "term: definition"`,

	driven.PromptSynthesize: `You design protocols: structured specifications that define how an AI assistant behaves.
The user message describes the domain, goal, role and any required constraints.

Respond with a single JSON object with exactly these keys:
{
  "system_prompt": "instructions the assistant follows, written in the second person",
  "user_guidance": "how an end user should phrase requests to the assistant",
  "input_schema": {"type": "object", "properties": {}},
  "output_schema": {"type": "object", "properties": {}},
  "constraints": ["rules the assistant must follow"],
  "tags": ["short topical labels"],
  "metadata": {}
}

Schemas are JSON Schema objects. Keep every required constraint from the request.`,

	driven.PromptIntegrate: `You revise an existing protocol so that it reflects the reference material analysis.
The user message contains the current protocol, the analysis, and optionally reviewer issues to fix.

Rewrite the system prompt and user guidance so the rules and constraints from the analysis are stated explicitly.
Keep every existing constraint. Do not change the input or output schema.

Respond with a single JSON object with exactly these keys:
{"system_prompt": "", "user_guidance": "", "constraints": [], "terminology": []}`,

	driven.PromptExamples: `You write worked examples for an AI behaviour protocol.
The user message contains the protocol and the number of examples wanted.

Each example has an "input" that conforms to the input schema and an "output" that conforms to the output schema and obeys every constraint.
Cover different situations, including at least one edge case.

Respond with a single JSON object:
{"examples": [{"input": {}, "output": {}}]}`,

	driven.PromptScore: `You review AI behaviour protocols for quality.
The user message contains the protocol to review.

Score each dimension from 0 to 100:
- completeness: the protocol covers the goal, schemas, constraints and examples
- clarity: instructions are unambiguous
- actionability: an assistant could follow it without guessing
- domain_alignment: content fits the stated domain and role
- hallucination_risk: how likely the protocol leads the assistant to invent facts (higher is worse)

Respond with a single JSON object with exactly these keys:
{
  "completeness": 0, "clarity": 0, "actionability": 0, "domain_alignment": 0, "hallucination_risk": 0,
  "issues": [{"severity": "critical|high|medium|low", "field": "", "message": ""}],
  "suggestions": [{"priority": "critical|high|medium|low", "field": "", "message": ""}]
}`,

	driven.PromptStrictJSON: `Your previous reply could not be parsed.
Return ONLY the JSON object described above. No prose, no markdown fences, no extra keys.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.protosmith/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".protosmith", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Watch clears the cache whenever a prompt file changes on disk.
// It blocks until ctx is done or the watcher fails to start.
func (s *PromptStore) Watch(ctx context.Context) error {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.promptDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.promptDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isPromptChange(ev) {
				logger.Debug("prompt %s changed, reloading", filepath.Base(ev.Name))
				s.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("prompt watcher: %v", err)
		}
	}
}

// isPromptChange reports whether ev touches a prompt template.
func isPromptChange(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".txt" || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Protosmith Prompts

This directory contains the system instructions sent to the LLM at each
pipeline stage.

## Files

- ` + "`analyze_context.txt`" + ` - Extracts rules, concepts and terminology from ingested context
- ` + "`synthesize_protocol.txt`" + ` - Drafts the initial protocol
- ` + "`integrate_context.txt`" + ` - Merges the context analysis into the draft
- ` + "`generate_examples.txt`" + ` - Writes input/output examples
- ` + "`score_protocol.txt`" + ` - Scores a draft and lists issues
- ` + "`strict_json.txt`" + ` - Appended when a reply could not be parsed

## Customisation

Edit any file to customise LLM behaviour. While ` + "`protosmith serve`" + ` is
running, edits are picked up automatically; other commands read the files
at start-up.

Every prompt must keep asking for the same JSON keys. Replies with missing
or unknown keys are rejected and retried once.
`
	return os.WriteFile(path, []byte(content), 0600)
}
