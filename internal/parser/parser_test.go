package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistryForFile(t *testing.T) {
	registry := NewDefaultRegistry()

	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "markdown", filename: "notes.md", want: "markdown"},
		{name: "plain text", filename: "readme.txt", want: "text"},
		{name: "html", filename: "page.HTML", want: "html"},
		{name: "unsupported", filename: "report.pdf", wantErr: true},
		{name: "no extension", filename: "Makefile", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.ForFile(tt.filename)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("error %v does not wrap ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForFile failed: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("parser = %q, want %q", p.Name(), tt.want)
			}
		})
	}
}

func TestTextParserParagraphs(t *testing.T) {
	input := "first paragraph\nstill first\n\nsecond paragraph\n\n\n"

	elements, err := NewTextParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(elements))
	}
	if elements[0].Text != "first paragraph\nstill first" {
		t.Errorf("first element = %q", elements[0].Text)
	}
	if elements[1].Type != ElementNarrativeText {
		t.Errorf("type = %q, want %q", elements[1].Type, ElementNarrativeText)
	}
	if elements[0].ID == "" || elements[0].ID == elements[1].ID {
		t.Error("element ids must be unique and non-empty")
	}
}

func TestMarkdownParserHeadings(t *testing.T) {
	input := "# Overview\n\nSome intro text.\n\n## Details\nmore text\nsecond line\n"

	elements, err := NewMarkdownParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 4 {
		t.Fatalf("got %d elements, want 4: %+v", len(elements), elements)
	}
	if elements[0].Type != ElementTitle || elements[0].Text != "Overview" {
		t.Errorf("first element = %+v", elements[0])
	}
	if elements[2].Type != ElementTitle || elements[2].Text != "Details" {
		t.Errorf("third element = %+v", elements[2])
	}
	if elements[3].Text != "more text\nsecond line" {
		t.Errorf("fourth element = %q", elements[3].Text)
	}
}

func TestMarkdownParserCodeBlock(t *testing.T) {
	input := "```go\nfunc main() {}\n```\n"

	elements, err := NewMarkdownParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("got %d elements, want 1", len(elements))
	}
	if !strings.Contains(elements[0].Text, "func main() {}") {
		t.Errorf("code block content lost: %q", elements[0].Text)
	}
}

func TestHTMLParser(t *testing.T) {
	input := `<html><head><style>p{color:red}</style></head><body>
		<h1>Main Title</h1>
		<p>First  paragraph   text.</p>
		<script>alert("skip me")</script>
		<p>Second paragraph.</p>
	</body></html>`

	elements, err := NewHTMLParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 3 {
		t.Fatalf("got %d elements, want 3: %+v", len(elements), elements)
	}
	if elements[0].Type != ElementTitle || elements[0].Text != "Main Title" {
		t.Errorf("first element = %+v", elements[0])
	}
	if elements[1].Text != "First paragraph text." {
		t.Errorf("whitespace not collapsed: %q", elements[1].Text)
	}
	for _, el := range elements {
		if strings.Contains(el.Text, "skip me") || strings.Contains(el.Text, "color:red") {
			t.Errorf("script/style content leaked: %q", el.Text)
		}
	}
}
