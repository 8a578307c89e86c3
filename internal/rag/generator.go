package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/prompts"
	"github.com/yannistannier/ayd/pkg/models"
)

// Generator turns a query and its retrieved chunks into a final answer.
type Generator struct {
	client llm.CompletionClient
	store  *prompts.Store
	model  string
}

// NewGenerator creates a generator bound to one generation model.
func NewGenerator(client llm.CompletionClient, store *prompts.Store, model string) *Generator {
	return &Generator{client: client, store: store, model: model}
}

// Generate renders the generation template with the retrieved context and
// calls the model. The retrieved chunks come back as the answer's sources.
func (g *Generator) Generate(ctx context.Context, query string, results []models.SearchResult) (*models.GeneratedAnswer, error) {
	return g.GenerateWithContext(ctx, query, JoinContext(results), results)
}

// GenerateWithContext is Generate with an explicit context block, for
// strategies that enrich the retrieved context before generation.
func (g *Generator) GenerateWithContext(ctx context.Context, query, contextStr string, results []models.SearchResult) (*models.GeneratedAnswer, error) {
	tpl, err := g.store.Get("rag", "direct", g.model)
	if err != nil {
		return nil, fmt.Errorf("generation template: %w", err)
	}

	prompt := tpl.Render(map[string]string{
		"context_str": contextStr,
		"query_str":   query,
	})

	text, err := g.client.ChatComplete(ctx, g.model, "", prompt, llm.Params{
		Temperature: tpl.Temperature,
		TopP:        tpl.TopP,
		MaxTokens:   tpl.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &models.GeneratedAnswer{
		Text:    strings.TrimSpace(text),
		Sources: results,
	}, nil
}

// JoinContext concatenates retrieved chunk texts into one context block.
func JoinContext(results []models.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}
