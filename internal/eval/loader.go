package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/yannistannier/ayd/pkg/models"
)

// Sample is one source chunk the evaluation builds a synthetic question
// from.
type Sample struct {
	ChunkID string
	Text    string
}

// ChunkLister enumerates stored chunks, scoped by payload filters. The
// pgvector store satisfies it.
type ChunkLister interface {
	List(ctx context.Context, collection string, filters map[string]string, limit int) ([]models.SearchResult, error)
}

// LoadSamples pulls up to limit chunks for one collection index and turns
// them into evaluation samples. Chunks without text are skipped.
func LoadSamples(ctx context.Context, lister ChunkLister, collection, index string, limit int) ([]Sample, error) {
	results, err := lister.List(ctx, collection, map[string]string{"index": index}, limit)
	if err != nil {
		return nil, fmt.Errorf("list chunks for index %q: %w", index, err)
	}

	samples := make([]Sample, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		samples = append(samples, Sample{ChunkID: r.ChunkID, Text: r.Text})
	}
	return samples, nil
}
