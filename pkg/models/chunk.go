// Package models defines the core data types shared across the service.
package models

// Chunk is the unit of ingestion: a span of normalized text extracted from a
// source document, optionally carrying its embedding before storage.
type Chunk struct {
	// ElementID identifies the parsed element this chunk came from.
	ElementID string `json:"element_id"`

	// Text is the normalized chunk text.
	Text string `json:"text"`

	// Filename is the source file name.
	Filename string `json:"filename"`

	// Filetype is the source file type (extension without the dot).
	Filetype string `json:"filetype"`

	// CollectionIndex scopes the chunk to a tenant/collection/session.
	// Stored in the payload under the "index" key.
	CollectionIndex string `json:"index"`

	// Embedding is the vector computed for Text. Empty until embedded.
	Embedding []float32 `json:"-"`

	// Extra holds the full original column set for preprocessed rows.
	// Nil for chunks produced by the parsing path.
	Extra map[string]any `json:"extra,omitempty"`
}

// Payload returns the storage payload for the chunk. Preprocessed chunks
// keep their full column set; parsed chunks keep the fixed field set.
func (c *Chunk) Payload() map[string]any {
	if c.Extra != nil {
		payload := make(map[string]any, len(c.Extra)+1)
		for k, v := range c.Extra {
			payload[k] = v
		}
		payload["index"] = c.CollectionIndex
		return payload
	}
	return map[string]any{
		"text":       c.Text,
		"element_id": c.ElementID,
		"index":      c.CollectionIndex,
		"filetype":   c.Filetype,
		"filename":   c.Filename,
	}
}

// SearchResult is a scored chunk returned by the vector store.
// It is ephemeral: produced per query and never persisted.
type SearchResult struct {
	// ChunkID is the stored record id.
	ChunkID string `json:"chunk_id"`

	// Text is the chunk text from the payload.
	Text string `json:"text"`

	// Score is the provider similarity score, higher is better.
	Score float32 `json:"score"`

	// Payload carries the full stored payload for the record.
	Payload map[string]any `json:"payload,omitempty"`
}

// ElementID returns the payload element id, or empty if absent.
func (r *SearchResult) ElementID() string {
	if v, ok := r.Payload["element_id"].(string); ok {
		return v
	}
	return ""
}

// GeneratedAnswer is the output of a retrieval-augmented query.
type GeneratedAnswer struct {
	// Text is the generated answer text.
	Text string `json:"text"`

	// Sources are the retrieved chunks the answer was conditioned on.
	Sources []SearchResult `json:"sources,omitempty"`

	// IsStreaming reports whether Text was assembled from a stream.
	IsStreaming bool `json:"is_streaming"`
}

// EvalExample is one synthetic question/reference-answer pair tied to the
// chunk it was generated from. Lives only for the duration of one
// evaluation run.
type EvalExample struct {
	ChunkID         string `json:"chunk_id"`
	Question        string `json:"question"`
	ReferenceAnswer string `json:"reference_answer"`
}

// PipelineEvaluationMetrics is the result of one evaluation run.
// Scores are normalized to [0,1]. Created once per run, persisted to the
// tracking store, never mutated afterwards.
type PipelineEvaluationMetrics struct {
	RetrievalScore    float64 `json:"retrieval_score"`
	FaithfulnessScore float64 `json:"faithfulness_score"`
	CorrectnessScore  float64 `json:"correctness_score"`
	Workflow          string  `json:"workflow"`
	Collection        string  `json:"collection"`
}
