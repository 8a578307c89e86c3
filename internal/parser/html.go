package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Heading tags become title elements and
// other block-level text becomes narrative elements. Script and style
// content is dropped.
type HTMLParser struct{}

var _ Parser = (*HTMLParser)(nil)

// NewHTMLParser creates an HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Name() string {
	return "html"
}

func (p *HTMLParser) SupportedExtensions() []string {
	return []string{"html", "htm"}
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var blockTags = map[string]bool{
	"p": true, "li": true, "td": true, "th": true, "blockquote": true, "pre": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
}

func (p *HTMLParser) Parse(ctx context.Context, reader io.Reader) ([]Element, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var elements []Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if headingTags[n.Data] {
				if text := collapseSpace(textContent(n)); text != "" {
					elements = append(elements, newElement(ElementTitle, text))
				}
				return
			}
			if blockTags[n.Data] {
				if text := collapseSpace(textContent(n)); text != "" {
					elements = append(elements, newElement(ElementNarrativeText, text))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return elements, nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && skipTags[c.Data] {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
