// Package llm provides completion clients for the generation, correction,
// and judging stages of the pipelines.
package llm

import "context"

// Params are the sampling parameters for one completion call. They come
// straight from the prompt catalog entry that produced the prompt text.
type Params struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// CompletionClient is the provider-facing completion interface.
//
// Complete sends all prompts in one batched request and returns one output
// per prompt, in prompt order. ChatComplete sends a single system+user
// exchange and returns the assistant text.
type CompletionClient interface {
	Complete(ctx context.Context, model string, prompts []string, params Params) ([]string, error)
	ChatComplete(ctx context.Context, model, system, user string, params Params) (string, error)
}
