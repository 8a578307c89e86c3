// Package prompts loads and renders the prompt template catalog.
//
// Templates live in a single YAML file keyed by category, subcategory, and
// model name. The catalog is loaded once at startup and is immutable
// afterwards, so lookups are safe from any goroutine.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModelKey is the catalog key tried when no entry exists for the
// requested model name.
const DefaultModelKey = "default"

// Template is one prompt template with its sampling parameters.
type Template struct {
	Prompt      string  `yaml:"prompt"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Render substitutes {name} placeholders in the prompt text with the given
// values. Unknown placeholders are left untouched.
func (t Template) Render(values map[string]string) string {
	out := t.Prompt
	for name, value := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// Store holds the loaded template catalog.
type Store struct {
	catalog map[string]map[string]map[string]Template
}

// Load reads the YAML catalog at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from raw YAML catalog bytes.
func Parse(data []byte) (*Store, error) {
	var catalog map[string]map[string]map[string]Template
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	return &Store{catalog: catalog}, nil
}

// Get returns the template for (category, subcategory, model). When the
// model has no dedicated entry the "default" entry is used instead.
func (s *Store) Get(category, subcategory, model string) (Template, error) {
	sub, ok := s.catalog[category]
	if !ok {
		return Template{}, fmt.Errorf("unknown prompt category %q", category)
	}
	byModel, ok := sub[subcategory]
	if !ok {
		return Template{}, fmt.Errorf("unknown prompt subcategory %q in category %q", subcategory, category)
	}
	if tpl, ok := byModel[model]; ok {
		return tpl, nil
	}
	if tpl, ok := byModel[DefaultModelKey]; ok {
		return tpl, nil
	}
	return Template{}, fmt.Errorf("no prompt for model %q in %s/%s and no default", model, category, subcategory)
}

// Validate checks that every (category, subcategory) pair in refs resolves
// for the given model. Called once at startup so missing templates fail fast
// instead of midway through a pipeline run.
func (s *Store) Validate(model string, refs [][2]string) error {
	for _, ref := range refs {
		if _, err := s.Get(ref[0], ref[1], model); err != nil {
			return err
		}
	}
	return nil
}
