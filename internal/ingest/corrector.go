package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/prompts"
)

// Corrector rewrites low-quality chunks through a completion model.
type Corrector struct {
	client llm.CompletionClient
	store  *prompts.Store
	model  string
}

// NewCorrector creates a corrector bound to one correction model.
func NewCorrector(client llm.CompletionClient, store *prompts.Store, model string) *Corrector {
	return &Corrector{client: client, store: store, model: model}
}

// CorrectBatch rewrites all texts in one batched completion call and
// returns the corrected texts in input order.
func (c *Corrector) CorrectBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tpl, err := c.store.Get("correction", "process", c.model)
	if err != nil {
		return nil, fmt.Errorf("correction template: %w", err)
	}

	rendered := make([]string, len(texts))
	for i, text := range texts {
		rendered[i] = tpl.Render(map[string]string{"content": text})
	}

	outputs, err := c.client.Complete(ctx, c.model, rendered, llm.Params{
		Temperature: tpl.Temperature,
		TopP:        tpl.TopP,
		MaxTokens:   tpl.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("correction completion: %w", err)
	}

	corrected := make([]string, len(outputs))
	for i, out := range outputs {
		corrected[i] = stripArtifacts(out)
	}
	return corrected, nil
}

// stripArtifacts removes the prefix noise completion models put in front of
// the corrected text: leading whitespace and an optional announcement line
// ending with a colon.
func stripArtifacts(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "\n"); idx > 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if strings.HasSuffix(firstLine, ":") {
			return strings.TrimSpace(text[idx+1:])
		}
	}
	return text
}
