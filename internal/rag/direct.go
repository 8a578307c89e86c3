package rag

import (
	"context"

	"github.com/yannistannier/ayd/pkg/models"
)

// Direct is the single-pass workflow: retrieve, then generate.
type Direct struct {
	deps      Deps
	generator *Generator
}

var _ Strategy = (*Direct)(nil)

func newDirect(deps Deps) *Direct {
	return &Direct{
		deps:      deps,
		generator: NewGenerator(deps.Client, deps.Prompts, deps.Model),
	}
}

func (d *Direct) Retrieve(ctx context.Context, query string, filters map[string]string) ([]models.SearchResult, error) {
	return retrieve(ctx, d.deps, query, filters)
}

func (d *Direct) Query(ctx context.Context, query string, filters map[string]string) (*models.GeneratedAnswer, error) {
	results, err := d.Retrieve(ctx, query, filters)
	if err != nil {
		return nil, &GenerationError{Workflow: WorkflowDirect, Err: err}
	}

	answer, err := d.generator.Generate(ctx, query, results)
	if err != nil {
		return nil, &GenerationError{Workflow: WorkflowDirect, Err: err}
	}
	return answer, nil
}
