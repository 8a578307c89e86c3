package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultQualityThreshold is the minimum lexicon match ratio a chunk must
// reach to skip the correction pass.
const DefaultQualityThreshold = 0.8

// QualityGate decides whether a chunk of text needs the correction pass.
//
// The decision is a vocabulary check: the share of whitespace-separated
// tokens found in the loaded lexicons. OCR damage and encoding glitches
// push that share down.
type QualityGate struct {
	words     map[string]struct{}
	threshold float64
}

// GateConfig configures the quality gate.
type GateConfig struct {
	// LexiconPaths are word-list files, one word per line.
	LexiconPaths []string

	// CustomVocabulary adds domain words the lexicons do not carry.
	CustomVocabulary []string

	// Threshold is the minimum match ratio; zero means the default.
	Threshold float64
}

// NewQualityGate loads all lexicons into memory.
func NewQualityGate(cfg GateConfig) (*QualityGate, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultQualityThreshold
	}

	words := make(map[string]struct{})
	for _, path := range cfg.LexiconPaths {
		if err := loadLexicon(path, words); err != nil {
			return nil, err
		}
	}
	for _, word := range cfg.CustomVocabulary {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			words[word] = struct{}{}
		}
	}

	return &QualityGate{words: words, threshold: cfg.Threshold}, nil
}

func loadLexicon(path string, words map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open lexicon %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word != "" {
			words[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	return nil
}

// NeedsCorrection reports whether the text's known-word ratio falls below
// the threshold. Empty text never needs correction, and a ratio exactly at
// the threshold passes.
func (g *QualityGate) NeedsCorrection(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return false
	}

	matched := 0
	for _, token := range tokens {
		if _, ok := g.words[strings.ToLower(token)]; ok {
			matched++
		}
	}

	ratio := float64(matched) / float64(len(tokens))
	return ratio < g.threshold
}
