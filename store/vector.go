package store

import (
	"context"
	"fmt"

	"portfolio/logger"
	"portfolio/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Embedder maps text to the fixed-size vector the store indexes. The
// store is bound to exactly one embedder; mixing embedding spaces inside a
// collection would make distances meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStorer wraps the vector-search service. Distances are cosine
// distances, lower is more similar.
type VectorStorer interface {
	CreateCollection(ctx context.Context, name string) error
	AddDocuments(ctx context.Context, collection string, docs []types.KnowledgeDocument) error
	QueryBySimilarity(ctx context.Context, collection, query string, topK int, maxDistance float64) ([]types.RetrievedChunk, error)
	GetByFilter(ctx context.Context, collection string, filter DocFilter) ([]types.KnowledgeDocument, error)
	DeleteDocuments(ctx context.Context, collection string, ids []string) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	Close()
}

// DocFilter narrows GetByFilter results. Zero-value fields are ignored.
type DocFilter struct {
	IDs    []string
	Source string
}

type PgVectorStore struct {
	pool      *pgxpool.Pool
	embedder  Embedder
	dimension int
}

// NewPgVectorStore connects to Postgres, pings it and ensures the schema
// exists. Construct once per process.
func NewPgVectorStore(ctx context.Context, connStr string, embedder Embedder, dimension int) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PgVectorStore{
		pool:      pool,
		embedder:  embedder,
		dimension: dimension,
	}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS collections (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS kb_documents (
		collection_id INT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT,
		embedding vector(%d),
		PRIMARY KEY (collection_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_kb_documents_embedding ON kb_documents
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`, s.dimension)
	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *PgVectorStore) Close() {
	if s.pool != nil {
		s.pool.Close()
		logger.Info("vector store connection pool closed")
	}
}

// CreateCollection is a get-or-create: existing collections are left
// untouched.
func (s *PgVectorStore) CreateCollection(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, "INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name)
	if err != nil {
		return fmt.Errorf("error creating collection %q: %w", name, err)
	}
	logger.Infof("created collection - %s", name)
	return nil
}

func (s *PgVectorStore) collectionID(ctx context.Context, name string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx, "SELECT id FROM collections WHERE name = $1", name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("collection %q does not exist", name)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddDocuments embeds and inserts a batch inside one transaction, so a
// failed item rolls back the whole batch. Re-adding an existing id is
// rejected by the primary key.
func (s *PgVectorStore) AddDocuments(ctx context.Context, collection string, docs []types.KnowledgeDocument) error {
	if len(docs) == 0 {
		return nil
	}

	collID, err := s.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	embeddings := make([]pgvector.Vector, len(docs))
	for i, doc := range docs {
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("error embedding document %s: %w", doc.ID, err)
		}
		embeddings[i] = pgvector.NewVector(vec)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, doc := range docs {
		_, err := tx.Exec(ctx,
			`INSERT INTO kb_documents (collection_id, id, content, source, embedding) VALUES ($1, $2, $3, $4, $5)`,
			collID, doc.ID, doc.Content, doc.SourcePath, embeddings[i],
		)
		if err != nil {
			return fmt.Errorf("error adding document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// QueryBySimilarity embeds the query, takes the topK nearest documents in
// ascending-distance order and drops everything above maxDistance. An
// empty result is a valid outcome the caller must handle.
func (s *PgVectorStore) QueryBySimilarity(ctx context.Context, collection, query string, topK int, maxDistance float64) ([]types.RetrievedChunk, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT d.content, d.embedding <=> $1 AS distance
		FROM kb_documents d
		JOIN collections c ON d.collection_id = c.id
		WHERE c.name = $2 AND d.embedding IS NOT NULL
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(vec), collection, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.RetrievedChunk
	for rows.Next() {
		var chunk types.RetrievedChunk
		if err := rows.Scan(&chunk.Content, &chunk.Distance); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return filterByDistance(chunks, maxDistance), nil
}

// filterByDistance keeps chunks at or below the threshold, preserving the
// store's relevance order.
func filterByDistance(chunks []types.RetrievedChunk, maxDistance float64) []types.RetrievedChunk {
	result := make([]types.RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Distance <= maxDistance {
			result = append(result, chunk)
		}
	}
	return result
}

func (s *PgVectorStore) GetByFilter(ctx context.Context, collection string, filter DocFilter) ([]types.KnowledgeDocument, error) {
	query := `
		SELECT d.id, d.content, d.source
		FROM kb_documents d
		JOIN collections c ON d.collection_id = c.id
		WHERE c.name = $1`
	args := []any{collection}

	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		query += fmt.Sprintf(" AND d.id = ANY($%d)", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND d.source = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.KnowledgeDocument
	for rows.Next() {
		var doc types.KnowledgeDocument
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.SourcePath); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PgVectorStore) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collID, err := s.collectionID(ctx, collection)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "DELETE FROM kb_documents WHERE collection_id = $1 AND id = ANY($2)", collID, ids)
	return err
}

// DeleteCollection removes the collection and, via cascade, all of its
// documents.
func (s *PgVectorStore) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM collections WHERE name = $1", name)
	if err != nil {
		return err
	}
	logger.Infof("collection %s deleted successfully", name)
	return nil
}

func (s *PgVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
