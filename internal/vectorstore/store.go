// Package vectorstore defines the storage interface for embedded chunks.
package vectorstore

import (
	"context"
	"errors"

	"github.com/yannistannier/ayd/pkg/models"
)

// StatusCompleted is the upsert status reported when every record in the
// batch was durably written.
const StatusCompleted = "completed"

// ErrUpsertIncomplete is returned when an upsert reports any status other
// than completed.
var ErrUpsertIncomplete = errors.New("upsert did not complete")

// Record is one chunk ready for storage: an id, its embedding, and the
// payload persisted alongside it.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// VectorStore is the provider-facing storage interface.
//
// Filters are exact-match conditions over payload fields, combined with AND.
// Collections are logical namespaces; records for many tenants can share one
// collection, scoped by the payload "index" field.
type VectorStore interface {
	// Upsert writes all records in one batch and returns the provider
	// status string. Callers treat anything but StatusCompleted as failure.
	Upsert(ctx context.Context, collection string, records []Record) (string, error)

	// Search returns the topK most similar records, most similar first,
	// restricted to records matching every filter.
	Search(ctx context.Context, collection string, vector []float32, filters map[string]string, topK int) ([]models.SearchResult, error)

	// CreateFieldIndex creates a keyword index over a payload field.
	CreateFieldIndex(ctx context.Context, collection, field string) error

	// DeleteByFilter removes every record matching all filters.
	DeleteByFilter(ctx context.Context, collection string, filters map[string]string) error

	// Close releases resources.
	Close() error
}
