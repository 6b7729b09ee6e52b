// Package llm provides a provider-agnostic interface for asking a completion
// API to produce structured company records. The caller builds the prompt;
// clients here only move text in and out of a provider.
package llm

import "context"

// Client is the interface for completion providers. Both Anthropic (Claude)
// and OpenAI implement it, allowing the importer to fall back from one to
// the other.
type Client interface {
	// Complete sends the prompt as a single user message and returns the
	// raw text of the first choice. The text is untrusted: it may wrap the
	// requested JSON in prose or markdown fences.
	Complete(ctx context.Context, prompt string) (string, error)
	ProviderName() string
	ModelName() string
}
