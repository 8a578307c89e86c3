package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/prompts"
	"github.com/yannistannier/ayd/internal/vectorstore"
	"github.com/yannistannier/ayd/pkg/models"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return 3 }
func (f *fakeEmbedder) MaxBatchSize() int { return 2048 }

type fakeSearchStore struct {
	results []models.SearchResult
	filters map[string]string
	topK    int
}

func (s *fakeSearchStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) (string, error) {
	return vectorstore.StatusCompleted, nil
}

func (s *fakeSearchStore) Search(ctx context.Context, collection string, vector []float32, filters map[string]string, topK int) ([]models.SearchResult, error) {
	s.filters = filters
	s.topK = topK
	return s.results, nil
}

func (s *fakeSearchStore) CreateFieldIndex(ctx context.Context, collection, field string) error {
	return nil
}

func (s *fakeSearchStore) DeleteByFilter(ctx context.Context, collection string, filters map[string]string) error {
	return nil
}

func (s *fakeSearchStore) Close() error { return nil }

// fakeChatClient returns queued responses to successive ChatComplete calls.
type fakeChatClient struct {
	responses []string
	errs      []error
	prompts   []string
	call      int
}

func (f *fakeChatClient) Complete(ctx context.Context, model string, promptTexts []string, params llm.Params) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakeChatClient) ChatComplete(ctx context.Context, model, system, user string, params llm.Params) (string, error) {
	f.prompts = append(f.prompts, user)
	i := f.call
	f.call++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no response queued")
}

const strategyCatalog = `
rag:
  direct:
    default:
      prompt: "Context:\n{context_str}\n\nQuestion: {query_str}"
      temperature: 0.2
  check:
    default:
      prompt: "Given this context:\n{context_str}\nRestate the question: {query_str}"
`

func testDeps(t *testing.T, store vectorstore.VectorStore, client llm.CompletionClient) Deps {
	t.Helper()
	promptStore, err := prompts.Parse([]byte(strategyCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return Deps{
		Embedder:   &fakeEmbedder{},
		Store:      store,
		Client:     client,
		Prompts:    promptStore,
		Collection: "documents",
		Model:      "test-model",
	}
}

func TestNewUnknownWorkflow(t *testing.T) {
	_, err := New("mystery", testDeps(t, &fakeSearchStore{}, &fakeChatClient{}))
	if err == nil {
		t.Fatal("expected error for unknown workflow")
	}
	if !strings.Contains(err.Error(), "mystery") {
		t.Errorf("error should name the workflow: %v", err)
	}
}

func TestNewKnownWorkflows(t *testing.T) {
	for _, workflow := range []string{WorkflowDirect, WorkflowSelfCheck} {
		t.Run(workflow, func(t *testing.T) {
			s, err := New(workflow, testDeps(t, &fakeSearchStore{}, &fakeChatClient{}))
			if err != nil {
				t.Fatalf("New(%q) failed: %v", workflow, err)
			}
			if s == nil {
				t.Fatal("strategy is nil")
			}
		})
	}
}

func TestDirectQuery(t *testing.T) {
	store := &fakeSearchStore{results: []models.SearchResult{
		{ChunkID: "c1", Text: "paris is the capital of france", Score: 0.9},
		{ChunkID: "c2", Text: "france is in europe", Score: 0.8},
	}}
	client := &fakeChatClient{responses: []string{"Paris."}}

	s, err := New(WorkflowDirect, testDeps(t, store, client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := s.Query(context.Background(), "capital of france?", map[string]string{"index": "tenant-a"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer.Text != "Paris." {
		t.Errorf("answer = %q", answer.Text)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(answer.Sources))
	}
	if store.topK != DefaultPrecision {
		t.Errorf("topK = %d, want %d", store.topK, DefaultPrecision)
	}
	if store.filters["index"] != "tenant-a" {
		t.Errorf("filters = %v", store.filters)
	}

	prompt := client.prompts[0]
	if !strings.Contains(prompt, "paris is the capital of france\n\nfrance is in europe") {
		t.Errorf("context not joined into prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "capital of france?") {
		t.Errorf("query missing from prompt: %q", prompt)
	}
}

func TestDirectQueryEmptyRetrieval(t *testing.T) {
	client := &fakeChatClient{responses: []string{"I do not know."}}

	s, err := New(WorkflowDirect, testDeps(t, &fakeSearchStore{}, client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := s.Query(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("empty retrieval must not fail the query: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("sources = %d, want 0", len(answer.Sources))
	}
}

func TestDirectQueryGenerationError(t *testing.T) {
	client := &fakeChatClient{errs: []error{errors.New("model unavailable")}}

	s, err := New(WorkflowDirect, testDeps(t, &fakeSearchStore{}, client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = s.Query(context.Background(), "anything?", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error %T is not *GenerationError", err)
	}
	if genErr.Workflow != WorkflowDirect {
		t.Errorf("workflow = %q", genErr.Workflow)
	}
}

func TestSelfCheckAppendsCheckOutputToContext(t *testing.T) {
	store := &fakeSearchStore{results: []models.SearchResult{
		{ChunkID: "c1", Text: "some context", Score: 0.9},
	}}
	client := &fakeChatClient{responses: []string{"restated question", "final answer"}}

	s, err := New(WorkflowSelfCheck, testDeps(t, store, client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := s.Query(context.Background(), "original question", nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer.Text != "final answer" {
		t.Errorf("answer = %q", answer.Text)
	}
	if len(client.prompts) != 2 {
		t.Fatalf("made %d calls, want 2 (check then generate)", len(client.prompts))
	}
	if !strings.Contains(client.prompts[0], "Restate the question: original question") {
		t.Errorf("check prompt = %q", client.prompts[0])
	}
	if !strings.Contains(client.prompts[1], "restated question") {
		t.Errorf("generation prompt should carry the check output: %q", client.prompts[1])
	}
	if !strings.Contains(client.prompts[1], "original question") {
		t.Errorf("generation prompt should keep the original query: %q", client.prompts[1])
	}
}

func TestSelfCheckFallsBackOnCheckFailure(t *testing.T) {
	client := &fakeChatClient{
		errs:      []error{errors.New("check exploded"), nil},
		responses: []string{"", "answer anyway"},
	}

	s, err := New(WorkflowSelfCheck, testDeps(t, &fakeSearchStore{}, client))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := s.Query(context.Background(), "original question", nil)
	if err != nil {
		t.Fatalf("check failure must not gate the answer: %v", err)
	}
	if answer.Text != "answer anyway" {
		t.Errorf("answer = %q", answer.Text)
	}
	if !strings.Contains(client.prompts[1], "original question") {
		t.Errorf("generation should fall back to the original query: %q", client.prompts[1])
	}
}
