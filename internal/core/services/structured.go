package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// Fallback system instructions used when no PromptStore is set or it fails.
// The file PromptStore ships longer versions of the same contracts.
var defaultPrompts = map[string]string{
	driven.PromptAnalyzeContext: `You analyse reference material for an AI protocol designer.
Respond with one JSON object with exactly these array-of-string keys:
"key_concepts", "rules", "example_seeds", "constraints", "terminology".
Copy concrete rules verbatim, including numbers and time limits. Use empty arrays when nothing applies.`,

	driven.PromptSynthesize: `You design behaviour protocols for AI assistants.
Respond with one JSON object with the keys "system_prompt" (string), "user_guidance" (string),
"input_schema" (JSON Schema object), "output_schema" (JSON Schema object),
"constraints" (array of strings), "tags" (array of strings) and "metadata" (object).`,

	driven.PromptIntegrate: `You refine an AI protocol draft using extracted reference context and reviewer feedback.
Rewrite the prose so it reflects every rule in the context. Never change the schemas.
Respond with one JSON object with the keys "system_prompt" (string), "user_guidance" (string),
"constraints" (array of strings) and "terminology" (array of strings).`,

	driven.PromptExamples: `You write example interactions for an AI protocol.
Each example must follow the draft's input and output schemas and respect its constraints.
Respond with one JSON object: {"examples": [{"input": ..., "output": ...}]}.`,

	driven.PromptScore: `You review AI protocol drafts. Score each dimension from 0 to 100:
"completeness", "clarity", "actionability", "domain_alignment" and "hallucination_risk" (higher means riskier).
Also return "issues" as [{"severity": "critical|high|medium|low", "field": "...", "message": "..."}]
and "suggestions" as [{"priority": "critical|high|medium|low", "field": "...", "message": "..."}].
Respond with one JSON object and nothing else.`,

	driven.PromptStrictJSON: `Your previous reply could not be parsed. Return ONLY the JSON object described above.
No prose, no markdown fences, no comments, no extra keys.`,
}

// structuredCaller sends one JSON-shaped request to the LLM and decodes the
// reply strictly, retrying once with the strict-JSON suffix when the reply
// does not parse.
type structuredCaller struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
}

// loadPrompt returns the named prompt from the store, or the built-in
// default when the store is unset or fails.
func (c *structuredCaller) loadPrompt(name string) string {
	fallback := defaultPrompts[name]
	if c.promptStore == nil {
		return fallback
	}
	prompt, err := c.promptStore.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// callOptions configures one structured call.
type callOptions struct {
	maxTokens   int
	temperature float64
	required    []string
}

// call requests prompt name with the given user payload and decodes into out.
// Transport failures wrap ErrGenerationUnavailable; replies that fail to
// parse twice wrap ErrGenerationParse.
func (c *structuredCaller) call(ctx context.Context, name, user string, opts callOptions, out any) error {
	if c.llm == nil {
		return fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, domain.ErrLLMUnavailable)
	}

	system := c.loadPrompt(name)
	req := driven.CompletionRequest{
		System:      system,
		User:        user,
		MaxTokens:   opts.maxTokens,
		Temperature: opts.temperature,
		JSON:        true,
	}

	reply, err := c.llm.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	parseErr := decodeStrict(reply, opts.required, out)
	if parseErr == nil {
		return nil
	}

	logger.Debug("%s: reply did not parse, retrying with strict suffix: %v", name, parseErr)
	req.System = system + "\n\n" + c.loadPrompt(driven.PromptStrictJSON)
	reply, err = c.llm.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	return decodeStrict(reply, opts.required, out)
}

// decodeStrict extracts the JSON object from reply, checks that every
// required key is present and decodes it into out, rejecting unknown keys
// and trailing data.
func decodeStrict(reply string, required []string, out any) error {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return err
	}

	if len(required) > 0 {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrGenerationParse, err)
		}
		var missing []string
		for _, k := range required {
			if v, ok := keys[k]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: missing keys %s", domain.ErrGenerationParse, strings.Join(missing, ", "))
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGenerationParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", domain.ErrGenerationParse)
	}
	return nil
}

// extractJSONObject trims markdown fences and surrounding prose and returns
// the outermost {...} span of reply.
func extractJSONObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", domain.ErrGenerationParse)
	}
	return []byte(s[start : end+1]), nil
}

// normaliseText is the comparison key for constraint and term merges:
// lower case, collapsed whitespace, trailing punctuation trimmed.
func normaliseText(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".;:,!")
}

// mergeUnique unions lists in order, dropping blanks and entries whose
// normalised text was already seen.
func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, list := range lists {
		for _, item := range list {
			item = strings.TrimSpace(item)
			key := normaliseText(item)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}

// marshalPayload renders v as indented JSON for a user message.
func marshalPayload(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
