package ingest

import (
	"fmt"

	"github.com/yannistannier/ayd/internal/vectorstore"
)

// IngestionError wraps any failure inside the ingestion pipeline with the
// file it happened on.
type IngestionError struct {
	Filename string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %q: %v", e.Filename, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// StorageWriteError reports an upsert that did not complete.
type StorageWriteError struct {
	Collection string
	Status     string
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write to collection %q finished with status %q", e.Collection, e.Status)
}

func (e *StorageWriteError) Unwrap() error {
	return vectorstore.ErrUpsertIncomplete
}
