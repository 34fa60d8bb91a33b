package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
// Every template is a system instruction with no format placeholders; the
// per-call payload is sent as user content.
const (
	// PromptAnalyzeContext extracts key concepts, rules, example seeds,
	// constraints and terminology from retrieved context.
	PromptAnalyzeContext = "analyze_context"

	// PromptSynthesize drafts a protocol from domain, goal, role and constraints.
	PromptSynthesize = "synthesize_protocol"

	// PromptIntegrate rewrites a draft's prose using context analysis.
	PromptIntegrate = "integrate_context"

	// PromptExamples produces input/output example pairs for a draft.
	PromptExamples = "generate_examples"

	// PromptScore rates a draft on the quality dimensions.
	PromptScore = "score_protocol"

	// PromptStrictJSON is appended to a system instruction when the first
	// response failed to parse.
	PromptStrictJSON = "strict_json"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
