package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// MarkdownParser handles Markdown files. Headings become title elements,
// paragraphs become narrative elements, and fenced code blocks are kept
// whole as narrative elements.
type MarkdownParser struct{}

var _ Parser = (*MarkdownParser)(nil)

// NewMarkdownParser creates a Markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Name() string {
	return "markdown"
}

func (p *MarkdownParser) SupportedExtensions() []string {
	return []string{"md", "markdown"}
}

func (p *MarkdownParser) Parse(ctx context.Context, reader io.Reader) ([]Element, error) {
	var elements []Element
	var paragraph []string
	inCodeBlock := false

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(paragraph, "\n"))
		if text != "" {
			elements = append(elements, newElement(ElementNarrativeText, text))
		}
		paragraph = paragraph[:0]
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			paragraph = append(paragraph, line)
			if !inCodeBlock {
				flush()
			}
			continue
		}
		if inCodeBlock {
			paragraph = append(paragraph, line)
			continue
		}

		if title, ok := headingText(trimmed); ok {
			flush()
			elements = append(elements, newElement(ElementTitle, title))
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}
		paragraph = append(paragraph, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	flush()

	return elements, nil
}

// headingText extracts the title from an ATX heading line.
func headingText(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level == len(line) || line[level] != ' ' {
		return "", false
	}
	return strings.TrimSpace(line[level:]), true
}
