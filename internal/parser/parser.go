// Package parser extracts typed text elements from source documents.
//
// Parsers are selected by file extension through a Registry. Each parser
// returns an ordered list of elements; title elements mark section
// boundaries the chunker keeps intact.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Element types produced by parsers.
const (
	ElementTitle         = "Title"
	ElementNarrativeText = "NarrativeText"
)

// ErrUnsupportedFormat is the sentinel for files no registered parser
// can handle.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// UnsupportedFormatError carries the offending file details.
type UnsupportedFormatError struct {
	Filename  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q for file %q", e.Extension, e.Filename)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// Element is one extracted span of document text.
type Element struct {
	// ID uniquely identifies the element within the source file.
	ID string

	// Type is one of the Element* constants.
	Type string

	// Text is the extracted text.
	Text string
}

func newElement(elemType, text string) Element {
	return Element{
		ID:   uuid.New().String(),
		Type: elemType,
		Text: text,
	}
}

// Parser defines the interface for document parsers.
type Parser interface {
	// Parse extracts elements from a document, in document order.
	Parse(ctx context.Context, reader io.Reader) ([]Element, error)

	// Name returns the parser name for logging and debugging.
	Name() string

	// SupportedExtensions returns the file extensions this parser handles.
	SupportedExtensions() []string
}

// Registry manages available parsers, keyed by file extension.
type Registry struct {
	mu           sync.RWMutex
	parsersByExt map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsersByExt: make(map[string]Parser),
	}
}

// NewDefaultRegistry creates a registry with all built-in parsers registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTextParser())
	r.Register(NewMarkdownParser())
	r.Register(NewHTMLParser())
	return r
}

// Register adds a parser for all its supported extensions.
func (r *Registry) Register(parser Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range parser.SupportedExtensions() {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		r.parsersByExt[ext] = parser
	}
}

// ForFile returns the parser for the file's extension.
func (r *Registry) ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	r.mu.RLock()
	parser, ok := r.parsersByExt[ext]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedFormatError{Filename: filename, Extension: ext}
	}
	return parser, nil
}

// Extensions returns the sorted list of registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.parsersByExt))
	for ext := range r.parsersByExt {
		exts = append(exts, ext)
	}
	return exts
}
