// Package llm provides the Large Language Model client (C9, §4.9):
// grounded answer generation with citation markers, and a local, model-free
// answerability score that gates whether the LLM is called at all.
package llm

import "context"

// GenerateOptions configures one generation call.
type GenerateOptions struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// LLM is the minimal generation port C9 is built on.
type LLM interface {
	// Generate sends a prompt and blocks for the complete response.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
