// Package pgvector provides a chunk store implementation using PostgreSQL
// with the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/yannistannier/ayd/internal/vectorstore"
	"github.com/yannistannier/ayd/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements vectorstore.VectorStore on a single chunks table.
// All collections share the table; the collection column scopes every query.
type Store struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

var _ vectorstore.VectorStore = (*Store)(nil)

// Config contains configuration for the pgvector store.
type Config struct {
	// DSN is the PostgreSQL connection string. If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse. If provided, DSN is
	// ignored and the store will not close the connection.
	DB *sql.DB

	// Dimension is the embedding dimension (e.g., 1536 for text-embedding-3-small).
	Dimension int

	// RunMigrations controls whether to run migrations on startup.
	RunMigrations bool
}

// New creates a new pgvector chunk store.
func New(cfg Config) (*Store, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	if cfg.DB != nil {
		db = cfg.DB
	} else if cfg.DSN != "" {
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	} else {
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	s := &Store{
		db:        db,
		dimension: cfg.Dimension,
		ownsDB:    ownsDB,
	}

	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return s, nil
}

// Upsert writes all records in one transaction. Existing ids are replaced.
func (s *Store) Upsert(ctx context.Context, collection string, records []vectorstore.Record) (string, error) {
	if len(records) == 0 {
		return vectorstore.StatusCompleted, nil
	}

	for i, rec := range records {
		if err := s.validateEmbedding(rec.Vector, false); err != nil {
			return "", fmt.Errorf("validate embedding for record %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ayd_chunks (id, collection, payload, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			payload = EXCLUDED.payload,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return "", fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return "", fmt.Errorf("marshal payload for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, collection, string(payload), encodeEmbedding(rec.Vector)); err != nil {
			return "", fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit upsert: %w", err)
	}
	return vectorstore.StatusCompleted, nil
}

// Search returns the topK most similar records matching every filter.
// Similarity is 1 minus the cosine distance.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, filters map[string]string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := s.validateEmbedding(vector, false); err != nil {
		return nil, err
	}

	query := `
		SELECT id, payload, 1 - (embedding <=> $1::vector) AS similarity
		FROM ayd_chunks
		WHERE collection = $2 AND embedding IS NOT NULL
	`
	args := []any{encodeEmbedding(vector), collection}
	argNum := 3

	for _, key := range sortedKeys(filters) {
		query += fmt.Sprintf(" AND payload->>%s = $%d", pq.QuoteLiteral(key), argNum)
		args = append(args, filters[key])
		argNum++
	}

	query += " ORDER BY embedding <=> $1::vector ASC"
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var id, payloadJSON string
		var similarity float64
		if err := rows.Scan(&id, &payloadJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", id, err)
		}

		text, _ := payload["text"].(string)
		results = append(results, models.SearchResult{
			ChunkID: id,
			Text:    text,
			Score:   float32(similarity),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// List returns up to limit records matching every filter, without ranking.
// Evaluation sampling reads source chunks through this.
func (s *Store) List(ctx context.Context, collection string, filters map[string]string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, payload FROM ayd_chunks WHERE collection = $1"
	args := []any{collection}
	argNum := 2

	for _, key := range sortedKeys(filters) {
		query += fmt.Sprintf(" AND payload->>%s = $%d", pq.QuoteLiteral(key), argNum)
		args = append(args, filters[key])
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var id, payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan list result: %w", err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", id, err)
		}

		text, _ := payload["text"].(string)
		results = append(results, models.SearchResult{
			ChunkID: id,
			Text:    text,
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// CreateFieldIndex creates a btree index over one payload field, scoped to
// the collection. Safe to call repeatedly.
func (s *Store) CreateFieldIndex(ctx context.Context, collection, field string) error {
	name := fmt.Sprintf("ayd_chunks_%s_%s_idx", sanitizeIdent(collection), sanitizeIdent(field))

	// DDL cannot take bind parameters, so literals are quoted inline.
	query := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON ayd_chunks ((payload->>%s)) WHERE collection = %s",
		pq.QuoteIdentifier(name), pq.QuoteLiteral(field), pq.QuoteLiteral(collection),
	)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create field index %s: %w", name, err)
	}
	return nil
}

// DeleteByFilter removes every record matching all filters.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filters map[string]string) error {
	query := "DELETE FROM ayd_chunks WHERE collection = $1"
	args := []any{collection}
	argNum := 2

	for _, key := range sortedKeys(filters) {
		query += fmt.Sprintf(" AND payload->>%s = $%d", pq.QuoteLiteral(key), argNum)
		args = append(args, filters[key])
		argNum++
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete by filter: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runMigrations applies pending database migrations.
func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ayd_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create ayd_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO ayd_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM ayd_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query ayd_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ayd_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ayd_schema_migrations: %w", err)
	}
	return applied, nil
}

// Helper functions

func (s *Store) validateEmbedding(embedding []float32, allowEmpty bool) error {
	if len(embedding) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("embedding is empty")
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}

func encodeEmbedding(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var identRe = regexp.MustCompile(`[^a-z0-9_]+`)

func sanitizeIdent(s string) string {
	return identRe.ReplaceAllString(strings.ToLower(s), "_")
}

// Migration represents an embedded migration.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		suffix := ""
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
