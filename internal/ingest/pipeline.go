// Package ingest turns source documents into embedded chunks in the vector
// store: parse, chunk, sanitize, optionally correct, embed, and upsert.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yannistannier/ayd/internal/chunker"
	"github.com/yannistannier/ayd/internal/embeddings"
	"github.com/yannistannier/ayd/internal/observability"
	"github.com/yannistannier/ayd/internal/parser"
	"github.com/yannistannier/ayd/internal/vectorstore"
	"github.com/yannistannier/ayd/pkg/models"
)

// DefaultBatchSize bounds the number of chunks per embedding and upsert
// request.
const DefaultBatchSize = 100

// Pipeline is the document ingestion pipeline.
type Pipeline struct {
	registry  *parser.Registry
	chunker   *chunker.Chunker
	gate      *QualityGate
	corrector *Corrector
	embedder  embeddings.Provider
	store     vectorstore.VectorStore

	collection string
	batchSize  int

	logger  *observability.Logger
	metrics *observability.Metrics
}

// Config assembles a Pipeline. Gate and Corrector are optional as a pair:
// when either is nil the correction pass is skipped entirely.
type Config struct {
	Registry  *parser.Registry
	Chunker   *chunker.Chunker
	Gate      *QualityGate
	Corrector *Corrector
	Embedder  embeddings.Provider
	Store     vectorstore.VectorStore

	Collection string
	BatchSize  int

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// New creates an ingestion pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = parser.NewDefaultRegistry()
	}
	if cfg.Chunker == nil {
		c, err := chunker.New(chunker.Config{})
		if err != nil {
			return nil, err
		}
		cfg.Chunker = c
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	}

	return &Pipeline{
		registry:   cfg.Registry,
		chunker:    cfg.Chunker,
		gate:       cfg.Gate,
		corrector:  cfg.Corrector,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		collection: cfg.Collection,
		batchSize:  cfg.BatchSize,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// IngestFile parses, chunks, corrects, embeds, and stores one document.
// It returns the number of chunks written.
func (p *Pipeline) IngestFile(ctx context.Context, reader io.Reader, filename, index string) (int, error) {
	count, err := p.ingestFile(ctx, reader, filename, index)
	filetype := extOf(filename)
	if err != nil {
		p.recordDocument(filetype, "error")
		p.logger.Error(ctx, "ingestion failed", "file", filename, "error", err)
		return 0, &IngestionError{Filename: filename, Err: err}
	}
	p.recordDocument(filetype, "success")
	return count, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, reader io.Reader, filename, index string) (int, error) {
	docParser, err := p.registry.ForFile(filename)
	if err != nil {
		return 0, err
	}

	elements, err := docParser.Parse(ctx, reader)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	p.logger.Debug(ctx, "document parsed", "file", filename, "elements", len(elements))

	split := p.chunker.SplitElements(elements)

	// Hidden text is a prompt injection vector; those chunks never reach
	// the index.
	chunks := split[:0]
	dropped := 0
	for _, chunk := range split {
		if ContainsHiddenText(chunk.Text) {
			dropped++
			continue
		}
		chunk.Text = NormalizeNewlines(chunk.Text)
		chunk.Filename = filename
		chunk.Filetype = extOf(filename)
		chunk.CollectionIndex = index
		chunks = append(chunks, chunk)
	}
	if dropped > 0 {
		p.logger.Warn(ctx, "chunks excluded by sanitization", "file", filename, "count", dropped)
	}

	if err := p.correctChunks(ctx, chunks); err != nil {
		return 0, err
	}

	return p.storeChunks(ctx, chunks)
}

// IngestPath opens and ingests one file from disk.
func (p *Pipeline) IngestPath(ctx context.Context, path, index string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &IngestionError{Filename: path, Err: err}
	}
	defer f.Close()
	return p.IngestFile(ctx, f, filepath.Base(path), index)
}

// IngestPaths ingests several files concurrently and returns the total
// number of chunks written. The first failure cancels the remaining work.
func (p *Pipeline) IngestPaths(ctx context.Context, paths []string, index string) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var total atomic.Int64
	for _, path := range paths {
		path := path
		g.Go(func() error {
			n, err := p.IngestPath(ctx, path, index)
			if err != nil {
				return err
			}
			total.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(total.Load()), nil
}

// IngestPreprocessed ingests an already-chunked CSV export. The header row
// names the columns; a "text" column is required. Rows with any empty field
// are dropped. The full column set is kept as the chunk payload. Chunking,
// sanitization, and correction are all skipped on this path.
func (p *Pipeline) IngestPreprocessed(ctx context.Context, reader io.Reader, filename, index string) (int, error) {
	if extOf(filename) != "csv" {
		return 0, &IngestionError{
			Filename: filename,
			Err:      &parser.UnsupportedFormatError{Filename: filename, Extension: extOf(filename)},
		}
	}

	chunks, err := readPreprocessedCSV(reader, filename, index)
	if err != nil {
		p.recordDocument("csv", "error")
		return 0, &IngestionError{Filename: filename, Err: err}
	}

	count, err := p.storeChunks(ctx, chunks)
	if err != nil {
		p.recordDocument("csv", "error")
		return 0, &IngestionError{Filename: filename, Err: err}
	}
	p.recordDocument("csv", "success")
	return count, nil
}

func readPreprocessedCSV(reader io.Reader, filename, index string) ([]models.Chunk, error) {
	r := csv.NewReader(reader)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	textCol := -1
	for i, col := range header {
		if strings.TrimSpace(strings.ToLower(col)) == "text" {
			textCol = i
			break
		}
	}
	if textCol == -1 {
		return nil, fmt.Errorf("csv is missing a text column")
	}

	var chunks []models.Chunk
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		if hasEmptyField(row) {
			continue
		}

		extra := make(map[string]any, len(header))
		for i, col := range header {
			extra[col] = row[i]
		}

		chunks = append(chunks, models.Chunk{
			ElementID:       uuid.New().String(),
			Text:            row[textCol],
			Filename:        filename,
			Filetype:        "csv",
			CollectionIndex: index,
			Extra:           extra,
		})
	}
	return chunks, nil
}

func hasEmptyField(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) == "" {
			return true
		}
	}
	return false
}

// correctChunks routes low-quality chunks through the correction pass and
// puts the rewritten text back in place. Chunks that pass the gate are
// untouched, so the slice always keeps its full length and order.
func (p *Pipeline) correctChunks(ctx context.Context, chunks []models.Chunk) error {
	if p.gate == nil || p.corrector == nil {
		return nil
	}

	var flagged []int
	for i, chunk := range chunks {
		if p.gate.NeedsCorrection(chunk.Text) {
			flagged = append(flagged, i)
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	texts := make([]string, len(flagged))
	for i, idx := range flagged {
		texts[i] = chunks[idx].Text
	}

	corrected, err := p.corrector.CorrectBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("correct chunks: %w", err)
	}
	for i, idx := range flagged {
		chunks[idx].Text = corrected[i]
	}

	p.logger.Info(ctx, "chunks corrected", "count", len(flagged), "total", len(chunks))
	if p.metrics != nil {
		p.metrics.RecordChunksCorrected(p.collection, len(flagged))
	}
	return nil
}

// storeChunks embeds and upserts chunks in batches: one embedding call and
// one upsert per batch.
func (p *Pipeline) storeChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		records := make([]vectorstore.Record, len(batch))
		for i := range batch {
			batch[i].Embedding = vectors[i]
			records[i] = vectorstore.Record{
				ID:      uuid.New().String(),
				Vector:  vectors[i],
				Payload: batch[i].Payload(),
			}
		}

		status, err := p.store.Upsert(ctx, p.collection, records)
		if err != nil {
			return 0, fmt.Errorf("upsert batch: %w", err)
		}
		if status != vectorstore.StatusCompleted {
			return 0, &StorageWriteError{Collection: p.collection, Status: status}
		}

		p.logger.Debug(ctx, "batch stored", "collection", p.collection, "size", len(batch))
		if p.metrics != nil {
			p.metrics.RecordChunksIndexed(p.collection, len(batch))
		}
	}
	return len(chunks), nil
}

func (p *Pipeline) recordDocument(filetype, status string) {
	if p.metrics != nil {
		p.metrics.RecordDocumentIngested(filetype, status)
	}
}

func extOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
