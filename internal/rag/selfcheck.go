package rag

import (
	"context"
	"strings"

	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/pkg/models"
)

// SelfCheck is the two-pass workflow: after retrieval, a check prompt asks
// the model whether the retrieved context is sufficient, and the check
// output is appended to the context for the final generation. The check is
// soft; generation always proceeds, and a failed check pass just leaves the
// context as retrieved.
type SelfCheck struct {
	deps      Deps
	generator *Generator
}

var _ Strategy = (*SelfCheck)(nil)

func newSelfCheck(deps Deps) *SelfCheck {
	return &SelfCheck{
		deps:      deps,
		generator: NewGenerator(deps.Client, deps.Prompts, deps.Model),
	}
}

func (s *SelfCheck) Retrieve(ctx context.Context, query string, filters map[string]string) ([]models.SearchResult, error) {
	return retrieve(ctx, s.deps, query, filters)
}

func (s *SelfCheck) Query(ctx context.Context, query string, filters map[string]string) (*models.GeneratedAnswer, error) {
	results, err := s.Retrieve(ctx, query, filters)
	if err != nil {
		return nil, &GenerationError{Workflow: WorkflowSelfCheck, Err: err}
	}

	contextStr := JoinContext(results)
	if checkOut := s.check(ctx, query, results); checkOut != "" {
		contextStr = contextStr + "\n\n" + checkOut
	}

	answer, err := s.generator.GenerateWithContext(ctx, query, contextStr, results)
	if err != nil {
		return nil, &GenerationError{Workflow: WorkflowSelfCheck, Err: err}
	}
	return answer, nil
}

// check runs the check prompt and returns its output, or empty when the
// pass produced nothing usable.
func (s *SelfCheck) check(ctx context.Context, query string, results []models.SearchResult) string {
	tpl, err := s.deps.Prompts.Get("rag", "check", s.deps.Model)
	if err != nil {
		s.warn(ctx, "check template unavailable", err)
		return ""
	}

	prompt := tpl.Render(map[string]string{
		"context_str": JoinContext(results),
		"query_str":   query,
	})

	out, err := s.deps.Client.ChatComplete(ctx, s.deps.Model, "", prompt, llm.Params{
		Temperature: tpl.Temperature,
		TopP:        tpl.TopP,
		MaxTokens:   tpl.MaxTokens,
	})
	if err != nil {
		s.warn(ctx, "check pass failed", err)
		return ""
	}
	return strings.TrimSpace(out)
}

func (s *SelfCheck) warn(ctx context.Context, msg string, err error) {
	if s.deps.Logger != nil {
		s.deps.Logger.Warn(ctx, msg, "workflow", WorkflowSelfCheck, "error", err)
	}
}
