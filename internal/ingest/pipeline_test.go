package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yannistannier/ayd/internal/parser"
	"github.com/yannistannier/ayd/internal/vectorstore"
	"github.com/yannistannier/ayd/pkg/models"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return 3 }
func (f *fakeEmbedder) MaxBatchSize() int { return 2048 }

type fakeStore struct {
	status  string
	upserts [][]vectorstore.Record
}

func (s *fakeStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) (string, error) {
	s.upserts = append(s.upserts, records)
	if s.status != "" {
		return s.status, nil
	}
	return vectorstore.StatusCompleted, nil
}

func (s *fakeStore) Search(ctx context.Context, collection string, vector []float32, filters map[string]string, topK int) ([]models.SearchResult, error) {
	return nil, nil
}

func (s *fakeStore) CreateFieldIndex(ctx context.Context, collection, field string) error {
	return nil
}

func (s *fakeStore) DeleteByFilter(ctx context.Context, collection string, filters map[string]string) error {
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) allRecords() []vectorstore.Record {
	var all []vectorstore.Record
	for _, batch := range s.upserts {
		all = append(all, batch...)
	}
	return all
}

func newTestPipeline(t *testing.T, store *fakeStore, opts ...func(*Config)) *Pipeline {
	t.Helper()
	cfg := Config{
		Embedder:   &fakeEmbedder{},
		Store:      store,
		Collection: "documents",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestIngestFileStoresChunks(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store)

	doc := "# Overview\n\nFirst paragraph.\n\n# Details\n\nSecond paragraph.\n"
	count, err := p.IngestFile(context.Background(), strings.NewReader(doc), "notes.md", "tenant-a")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	records := store.allRecords()
	if len(records) != 2 {
		t.Fatalf("stored %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.ID == "" {
			t.Error("record id is empty")
		}
		if len(rec.Vector) != 3 {
			t.Errorf("vector length = %d, want 3", len(rec.Vector))
		}
		if rec.Payload["index"] != "tenant-a" {
			t.Errorf("payload index = %v", rec.Payload["index"])
		}
		if rec.Payload["filename"] != "notes.md" {
			t.Errorf("payload filename = %v", rec.Payload["filename"])
		}
		if rec.Payload["filetype"] != "md" {
			t.Errorf("payload filetype = %v", rec.Payload["filetype"])
		}
		if rec.Payload["element_id"] == "" {
			t.Error("payload element_id is empty")
		}
	}

	text, _ := records[0].Payload["text"].(string)
	if !strings.Contains(text, " \n") {
		t.Errorf("newlines not normalized: %q", text)
	}
}

func TestIngestFileExcludesHiddenText(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store)

	doc := "# A\n\nclean paragraph\n\n# B\n\nhidden​payload\n"
	count, err := p.IngestFile(context.Background(), strings.NewReader(doc), "doc.md", "tenant-a")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (hidden-text chunk excluded)", count)
	}
	text, _ := store.allRecords()[0].Payload["text"].(string)
	if !strings.Contains(text, "clean paragraph") {
		t.Errorf("wrong chunk survived: %q", text)
	}
}

func TestIngestFileUnsupportedFormat(t *testing.T) {
	p := newTestPipeline(t, &fakeStore{})

	_, err := p.IngestFile(context.Background(), strings.NewReader("data"), "scan.pdf", "tenant-a")
	if err == nil {
		t.Fatal("expected error")
	}

	var ingErr *IngestionError
	if !errors.As(err, &ingErr) {
		t.Errorf("error %T is not *IngestionError", err)
	}
	if !errors.Is(err, parser.ErrUnsupportedFormat) {
		t.Errorf("error %v does not wrap ErrUnsupportedFormat", err)
	}
}

func TestIngestFileIncompleteUpsert(t *testing.T) {
	store := &fakeStore{status: "pending"}
	p := newTestPipeline(t, store)

	_, err := p.IngestFile(context.Background(), strings.NewReader("some text\n"), "doc.txt", "tenant-a")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, vectorstore.ErrUpsertIncomplete) {
		t.Errorf("error %v does not wrap ErrUpsertIncomplete", err)
	}
	var storageErr *StorageWriteError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error %T is not *StorageWriteError", err)
	}
	if storageErr.Status != "pending" {
		t.Errorf("status = %q, want pending", storageErr.Status)
	}
}

func TestIngestFileBatchesUpserts(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(t, store, func(cfg *Config) {
		cfg.BatchSize = 2
		cfg.Embedder = embedder
	})

	// Five sections produce five chunks, which is three batches of size 2.
	doc := "# A\n\none\n\n# B\n\ntwo\n\n# C\n\nthree\n\n# D\n\nfour\n\n# E\n\nfive\n"
	count, err := p.IngestFile(context.Background(), strings.NewReader(doc), "doc.md", "tenant-a")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
	if len(store.upserts) != 3 {
		t.Errorf("upsert batches = %d, want 3", len(store.upserts))
	}
	if embedder.calls != 3 {
		t.Errorf("embedding calls = %d, want 3", embedder.calls)
	}
}

func TestIngestFileSplitsLongDocument(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store)

	// 2050 characters with window 1024 and overlap 128 split into 3 chunks.
	doc := strings.Repeat("a", 2050)
	count, err := p.IngestFile(context.Background(), strings.NewReader(doc), "long.txt", "tenant-a")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	for _, rec := range store.allRecords() {
		if rec.Payload["index"] != "tenant-a" {
			t.Errorf("payload index = %v", rec.Payload["index"])
		}
	}
}

func TestIngestFileCorrectionPass(t *testing.T) {
	store := &fakeStore{}
	gate, err := NewQualityGate(GateConfig{CustomVocabulary: []string{"known", "words", "only"}})
	if err != nil {
		t.Fatalf("NewQualityGate failed: %v", err)
	}
	client := &fakeCompletionClient{outputs: []string{"repaired text"}}
	corrector := NewCorrector(client, newCorrectorStore(t), "test-model")

	p := newTestPipeline(t, store, func(cfg *Config) {
		cfg.Gate = gate
		cfg.Corrector = corrector
	})

	doc := "# known\n\nknown words only\n\n# words\n\nxqzt vbnm zzzz\n"
	count, err := p.IngestFile(context.Background(), strings.NewReader(doc), "doc.md", "tenant-a")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	var texts []string
	for _, rec := range store.allRecords() {
		text, _ := rec.Payload["text"].(string)
		texts = append(texts, text)
	}
	joined := strings.Join(texts, "|")
	if !strings.Contains(joined, "repaired text") {
		t.Errorf("corrected text not stored: %q", joined)
	}
	if !strings.Contains(joined, "known words only") {
		t.Errorf("clean chunk was altered: %q", joined)
	}
	if len(client.prompts) != 1 {
		t.Errorf("correction prompts = %d, want 1", len(client.prompts))
	}
}

func TestIngestPreprocessedCSV(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store)

	csvData := "text,source\nhello world,report\n,missing text\nanother row,appendix\n"
	count, err := p.IngestPreprocessed(context.Background(), strings.NewReader(csvData), "export.csv", "tenant-a")
	if err != nil {
		t.Fatalf("IngestPreprocessed failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 (incomplete row dropped)", count)
	}

	records := store.allRecords()
	if records[0].Payload["text"] != "hello world" {
		t.Errorf("payload text = %v", records[0].Payload["text"])
	}
	if records[0].Payload["source"] != "report" {
		t.Errorf("payload source = %v", records[0].Payload["source"])
	}
	if records[0].Payload["index"] != "tenant-a" {
		t.Errorf("payload index = %v", records[0].Payload["index"])
	}
}

func TestIngestPreprocessedRejectsNonCSV(t *testing.T) {
	p := newTestPipeline(t, &fakeStore{})

	_, err := p.IngestPreprocessed(context.Background(), strings.NewReader("x"), "export.json", "tenant-a")
	if err == nil {
		t.Fatal("expected error for non-csv preprocessed file")
	}
}

func TestIngestPreprocessedMissingTextColumn(t *testing.T) {
	p := newTestPipeline(t, &fakeStore{})

	_, err := p.IngestPreprocessed(context.Background(), strings.NewReader("a,b\n1,2\n"), "export.csv", "tenant-a")
	if err == nil {
		t.Fatal("expected error for csv without text column")
	}
}
