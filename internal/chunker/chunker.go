// Package chunker splits parsed document elements into storage-sized chunks.
//
// Elements are first grouped into sections at title boundaries, then each
// section is cut with a sliding character window. Consecutive windows share
// a configurable overlap so no span of text is ever lost at a cut point.
package chunker

import (
	"fmt"
	"strings"

	"github.com/yannistannier/ayd/internal/parser"
	"github.com/yannistannier/ayd/pkg/models"
)

// Defaults match the ingestion pipeline's storage-sized windows.
const (
	DefaultSize    = 1024
	DefaultOverlap = 128
)

// Config configures the chunker.
type Config struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared between consecutive
	// chunks of the same section.
	Overlap int
}

// Chunker performs title-aware sliding window chunking.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Zero values take the defaults; the overlap must be
// smaller than the size.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d for size %d", cfg.Overlap, cfg.Size)
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// section is a run of elements between title boundaries.
type section struct {
	elementID string
	parts     []string
}

// SplitElements groups elements into sections at title boundaries and cuts
// each section into chunks. Every chunk carries the id of the element that
// opened its section.
func (c *Chunker) SplitElements(elements []parser.Element) []models.Chunk {
	var sections []section
	for _, el := range elements {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}
		// A title always opens a new section and stays attached to the
		// content that follows it.
		if el.Type == parser.ElementTitle || len(sections) == 0 {
			sections = append(sections, section{elementID: el.ID})
		}
		last := &sections[len(sections)-1]
		last.parts = append(last.parts, text)
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		text := strings.Join(sec.parts, "\n\n")
		for _, window := range c.Split(text) {
			chunks = append(chunks, models.Chunk{
				ElementID: sec.elementID,
				Text:      window,
			})
		}
	}
	return chunks
}

// Split cuts text into sliding windows of at most size characters, each
// consecutive pair sharing overlap characters. Text at most one window long
// comes back as a single chunk.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var windows []string
	for start := 0; ; start += step {
		end := start + c.size
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}
