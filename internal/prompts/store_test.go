package prompts

import (
	"strings"
	"testing"
)

const testCatalog = `
rag:
  direct:
    default:
      prompt: "Context: {context_str}\nQuestion: {query_str}"
      temperature: 0.2
      top_p: 0.9
      max_tokens: 512
    gpt-4:
      prompt: "Answer from context.\n{context_str}\n{query_str}"
      temperature: 0.1
correction:
  process:
    default:
      prompt: "Fix this text: {content}"
      max_tokens: 1024
`

func TestGet(t *testing.T) {
	store, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		name        string
		category    string
		subcategory string
		model       string
		wantPrompt  string
		wantErr     bool
	}{
		{
			name:        "exact model match",
			category:    "rag",
			subcategory: "direct",
			model:       "gpt-4",
			wantPrompt:  "Answer from context.\n{context_str}\n{query_str}",
		},
		{
			name:        "falls back to default",
			category:    "rag",
			subcategory: "direct",
			model:       "gpt-3.5-turbo",
			wantPrompt:  "Context: {context_str}\nQuestion: {query_str}",
		},
		{
			name:        "unknown category",
			category:    "summarize",
			subcategory: "direct",
			model:       "gpt-4",
			wantErr:     true,
		},
		{
			name:        "unknown subcategory",
			category:    "rag",
			subcategory: "rerank",
			model:       "gpt-4",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := store.Get(tt.category, tt.subcategory, tt.model)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if tpl.Prompt != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", tpl.Prompt, tt.wantPrompt)
			}
		})
	}
}

func TestGetParameters(t *testing.T) {
	store, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tpl, err := store.Get("rag", "direct", "unknown-model")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tpl.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", tpl.Temperature)
	}
	if tpl.TopP != 0.9 {
		t.Errorf("top_p = %v, want 0.9", tpl.TopP)
	}
	if tpl.MaxTokens != 512 {
		t.Errorf("max_tokens = %d, want 512", tpl.MaxTokens)
	}
}

func TestRender(t *testing.T) {
	tpl := Template{Prompt: "Context: {context_str}\nQuestion: {query_str}\nAgain: {query_str}"}

	got := tpl.Render(map[string]string{
		"context_str": "some facts",
		"query_str":   "what?",
	})

	if !strings.Contains(got, "Context: some facts") {
		t.Errorf("context not substituted: %q", got)
	}
	if strings.Count(got, "what?") != 2 {
		t.Errorf("repeated placeholder not substituted everywhere: %q", got)
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	tpl := Template{Prompt: "Hello {name}, see {other}"}

	got := tpl.Render(map[string]string{"name": "world"})

	if got != "Hello world, see {other}" {
		t.Errorf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	store, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := store.Validate("gpt-4", [][2]string{
		{"rag", "direct"},
		{"correction", "process"},
	}); err != nil {
		t.Errorf("Validate failed on present templates: %v", err)
	}

	if err := store.Validate("gpt-4", [][2]string{{"rag", "missing"}}); err == nil {
		t.Error("Validate passed on missing template")
	}
}
