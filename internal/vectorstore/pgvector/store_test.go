package pgvector

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/yannistannier/ayd/internal/vectorstore"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db, dimension: 3}, mock
}

func TestUpsertCompletesBatch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO ayd_chunks")
	prep.ExpectExec().
		WithArgs("id-1", "docs", `{"index":"tenant-a","text":"hello"}`, "[1,2,3]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("id-2", "docs", `{"text":"world"}`, "[4,5,6]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, err := store.Upsert(context.Background(), "docs", []vectorstore.Record{
		{ID: "id-1", Vector: []float32{1, 2, 3}, Payload: map[string]any{"text": "hello", "index": "tenant-a"}},
		{ID: "id-2", Vector: []float32{4, 5, 6}, Payload: map[string]any{"text": "world"}},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if status != vectorstore.StatusCompleted {
		t.Errorf("status = %q, want %q", status, vectorstore.StatusCompleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	store, _ := newMockStore(t)

	status, err := store.Upsert(context.Background(), "docs", nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if status != vectorstore.StatusCompleted {
		t.Errorf("status = %q, want %q", status, vectorstore.StatusCompleted)
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Upsert(context.Background(), "docs", []vectorstore.Record{
		{ID: "id-1", Vector: []float32{1, 2}},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSearchAppliesFiltersAndLimit(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "payload", "similarity"}).
		AddRow("id-1", `{"text":"hello","element_id":"e1","index":"tenant-a"}`, 0.91).
		AddRow("id-2", `{"text":"world","element_id":"e2","index":"tenant-a"}`, 0.85)

	mock.ExpectQuery("SELECT id, payload").
		WithArgs("[1,2,3]", "docs", "report.pdf", "tenant-a", 5).
		WillReturnRows(rows)

	results, err := store.Search(context.Background(), "docs", []float32{1, 2, 3}, map[string]string{
		"index":    "tenant-a",
		"filename": "report.pdf",
	}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkID != "id-1" || results[0].Text != "hello" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results not ordered by similarity: %v then %v", results[0].Score, results[1].Score)
	}
	if got := results[0].ElementID(); got != "e1" {
		t.Errorf("element id = %q, want e1", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAppliesFiltersAndLimit(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "payload"}).
		AddRow("id-1", `{"text":"hello","index":"tenant-a"}`).
		AddRow("id-2", `{"text":"world","index":"tenant-a"}`)

	mock.ExpectQuery("SELECT id, payload FROM ayd_chunks").
		WithArgs("docs", "tenant-a", 50).
		WillReturnRows(rows)

	results, err := store.List(context.Background(), "docs", map[string]string{"index": "tenant-a"}, 50)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkID != "id-1" || results[0].Text != "hello" {
		t.Errorf("first result = %+v", results[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteByFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM ayd_chunks").
		WithArgs("docs", "report.pdf", "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := store.DeleteByFilter(context.Background(), "docs", map[string]string{
		"index":    "tenant-a",
		"filename": "report.pdf",
	})
	if err != nil {
		t.Fatalf("DeleteByFilter failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestValidateEmbedding(t *testing.T) {
	store := &Store{dimension: 3}

	if err := store.validateEmbedding([]float32{1, 2, 3}, false); err != nil {
		t.Fatalf("expected valid embedding, got %v", err)
	}
	if err := store.validateEmbedding([]float32{1, 2}, false); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if err := store.validateEmbedding(nil, false); err == nil {
		t.Fatal("expected empty embedding error")
	}
	if err := store.validateEmbedding(nil, true); err != nil {
		t.Fatalf("expected empty embedding allowed, got %v", err)
	}
}

func TestEncodeEmbedding(t *testing.T) {
	got := encodeEmbedding([]float32{0.5, -1, 2})
	if got != "[0.5,-1,2]" {
		t.Errorf("encodeEmbedding = %q", got)
	}
}

func TestSanitizeIdent(t *testing.T) {
	if got := sanitizeIdent("My Collection!"); got != "my_collection_" {
		t.Errorf("sanitizeIdent = %q", got)
	}
}
