// Package rag implements the retrieval strategies and response generation
// for retrieval-augmented queries.
package rag

import (
	"context"
	"fmt"

	"github.com/yannistannier/ayd/internal/embeddings"
	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/observability"
	"github.com/yannistannier/ayd/internal/prompts"
	"github.com/yannistannier/ayd/internal/vectorstore"
	"github.com/yannistannier/ayd/pkg/models"
)

// Workflow names accepted by the factory.
const (
	WorkflowDirect    = "direct"
	WorkflowSelfCheck = "selfcheck"
)

// DefaultPrecision is the number of chunks retrieved per query.
const DefaultPrecision = 5

// GenerationError wraps a failed response generation.
type GenerationError struct {
	Workflow string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed in workflow %q: %v", e.Workflow, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Strategy answers queries against the vector store.
//
// Retrieve returns the raw scored chunks for a query. Query runs the full
// workflow: retrieval plus response generation. An empty retrieval is not
// an error; the generator simply runs with no context.
type Strategy interface {
	Retrieve(ctx context.Context, query string, filters map[string]string) ([]models.SearchResult, error)
	Query(ctx context.Context, query string, filters map[string]string) (*models.GeneratedAnswer, error)
}

// Deps carries the collaborators shared by all strategies.
type Deps struct {
	Embedder embeddings.Provider
	Store    vectorstore.VectorStore
	Client   llm.CompletionClient
	Prompts  *prompts.Store

	Collection string
	Model      string

	// Precision is the retrieval top-K; zero means the default.
	Precision int

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

func (d *Deps) validate() error {
	if d.Embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	if d.Store == nil {
		return fmt.Errorf("store is required")
	}
	if d.Client == nil {
		return fmt.Errorf("completion client is required")
	}
	if d.Prompts == nil {
		return fmt.Errorf("prompt store is required")
	}
	if d.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if d.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// New creates the strategy for a workflow name.
func New(workflow string, deps Deps) (Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Precision <= 0 {
		deps.Precision = DefaultPrecision
	}

	switch workflow {
	case WorkflowDirect:
		return newDirect(deps), nil
	case WorkflowSelfCheck:
		return newSelfCheck(deps), nil
	default:
		return nil, fmt.Errorf("unknown workflow %q", workflow)
	}
}

// retrieve embeds the query and searches the collection. Shared by all
// strategies.
func retrieve(ctx context.Context, deps Deps, query string, filters map[string]string) ([]models.SearchResult, error) {
	vector, err := deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := deps.Store.Search(ctx, deps.Collection, vector, filters, deps.Precision)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}
