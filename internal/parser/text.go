package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TextParser handles plain text files. Paragraphs separated by blank lines
// become narrative elements.
type TextParser struct{}

var _ Parser = (*TextParser)(nil)

// NewTextParser creates a plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Name() string {
	return "text"
}

func (p *TextParser) SupportedExtensions() []string {
	return []string{"txt", "text", "log"}
}

func (p *TextParser) Parse(ctx context.Context, reader io.Reader) ([]Element, error) {
	var elements []Element
	var paragraph []string

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
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		paragraph = append(paragraph, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()

	return elements, nil
}
