// LLM Provider abstraction.
//
// Information Hiding:
// - Vendor SDKs hidden behind Provider
// - Callers only see ChatMessage in, LLMResponse out

package llm

import "context"

// Provider sends one chat completion to a model vendor.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// Model returns the provider-specific model identifier.
	Model() string
	// Chat sends the messages and returns the first choice.
	// Implementations return ErrEmptyResponse when no choice is produced.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)
}
