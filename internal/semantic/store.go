package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kayis-rahman/synapse/internal/pool"
	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/types"
)

// Embedder computes a fixed-dimension dense vector for a chunk of text. It
// models the external embedding model runtime the core treats as a pure
// function: the core never loads a model itself.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store implements the semantic store over a per-project pool.
// dim is the store-wide embedding dimension D; any chunk whose embedding
// doesn't match aborts the whole add_document call.
type Store struct {
	pool *pool.Pool
	dim  int
}

// New wraps a project's connection pool. EnsureSchema must be called once
// before use.
func New(p *pool.Pool, dim int) *Store { return &Store{pool: p, dim: dim} }

// EnsureSchema creates the documents/chunks tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring handle for schema init: %w", err)
	}
	defer release()
	if _, err := h.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating semantic schema: %w", err)
	}
	return nil
}

// chunkWords splits text into whitespace-delimited words and slides a
// window of chunkSize words with stride chunkSize-chunkOverlap across it,
// dropping any chunk that would be empty after trimming. The union of
// chunk texts covers the source, allowing overlap.
func chunkWords(text string, chunkSize, chunkOverlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	stride := chunkSize - chunkOverlap
	if stride <= 0 {
		stride = chunkSize
	}

	var chunks []string
	for start := 0; start < len(words); start += stride {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// AddDocument chunks text, embeds each chunk, and stores the document and
// its chunks atomically. Embedding happens before the write transaction
// opens: a relational transaction must never be held open across an
// external embed call.
func (s *Store) AddDocument(ctx context.Context, projectID, sourceName, sourceType, text string, chunkSize, chunkOverlap int, metadata map[string]string, embedder Embedder) (*types.Document, error) {
	if err := types.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	texts := chunkWords(text, chunkSize, chunkOverlap)
	if len(texts) == 0 {
		return nil, synerr.New(synerr.InvalidInput, "", "document produced no chunks")
	}

	embeddings := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := embedder.Embed(ctx, t)
		if err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "embedding chunk %d/%d", i+1, len(texts))
		}
		if len(v) != s.dim {
			return nil, synerr.New(synerr.InvalidInput, "", "chunk %d embedding has dimension %d, want %d: document rejected in full", i+1, len(v), s.dim)
		}
		embeddings[i] = v
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, synerr.Wrap(synerr.InvalidInput, "", err, "marshaling document metadata")
	}

	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	docID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (doc_id, project_id, source_name, source_type, metadata_json, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, docID, projectID, sourceName, sourceType, string(metaJSON), now); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "inserting document")
	}

	for i, t := range texts {
		chunkID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, doc_id, project_id, text, ordinal, metadata_json, embedding, inserted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, chunkID, docID, projectID, t, i, string(metaJSON), encodeEmbedding(embeddings[i]), now); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "inserting chunk %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "committing document")
	}

	return &types.Document{DocID: docID, ProjectID: projectID, SourceName: sourceName, SourceType: sourceType, Metadata: metadata, IngestedAt: now}, nil
}

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	ChunkID  string
	Score    float64
	Text     string
	Metadata map[string]string
}

// Search scores every chunk in projectID against queryEmbedding by cosine
// similarity, applies an exact-match metadata post-filter, and returns the
// top topK by score desc. This is a brute-force scan, not an ANN index —
// acceptable at the per-project scale the store is scoped to.
func (s *Store) Search(ctx context.Context, projectID string, queryEmbedding []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	if len(queryEmbedding) != s.dim {
		return nil, synerr.New(synerr.InvalidInput, "", "query embedding has dimension %d, want %d", len(queryEmbedding), s.dim)
	}

	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	rows, err := h.DB.QueryContext(ctx, `
		SELECT chunk_id, text, metadata_json, embedding FROM chunks WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "querying chunks")
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var chunkID, text, metaJSON string
		var embedding []byte
		if err := rows.Scan(&chunkID, &text, &metaJSON, &embedding); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning chunk row")
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "unmarshaling chunk metadata")
		}
		if !matchesFilter(meta, filter) {
			continue
		}
		score := cosineSimilarity(queryEmbedding, decodeEmbedding(embedding))
		results = append(results, SearchResult{ChunkID: chunkID, Score: score, Text: text, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "iterating chunks")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// DeleteDocument removes a document, its chunks, and their vectors
// atomically; the caller observes the document either fully present or
// fully absent.
func (s *Store) DeleteDocument(ctx context.Context, projectID, docID string) error {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ? AND project_id = ?`, docID, projectID)
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "deleting document")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return synerr.New(synerr.NotFound, "", "document %s not found in project %s", docID, projectID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "deleting chunks")
	}

	return tx.Commit()
}

// DocumentSummary is one row of src.list: a document plus its chunk count.
type DocumentSummary struct {
	types.Document
	ChunkCount int
}

// ListDocuments returns every document ingested for projectID, most
// recently ingested first, alongside its chunk count (tool surface:
// src.list).
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]DocumentSummary, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	rows, err := h.DB.QueryContext(ctx, `
		SELECT d.doc_id, d.source_name, d.source_type, d.metadata_json, d.ingested_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.doc_id = d.doc_id)
		FROM documents d WHERE d.project_id = ? ORDER BY d.ingested_at DESC
	`, projectID)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "listing documents")
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var metaJSON string
		if err := rows.Scan(&d.DocID, &d.SourceName, &d.SourceType, &metaJSON, &d.IngestedAt, &d.ChunkCount); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning document row")
		}
		if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "unmarshaling document metadata")
		}
		d.ProjectID = projectID
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetChunkByID performs an exact fetch.
func (s *Store) GetChunkByID(ctx context.Context, projectID, chunkID string) (*types.Chunk, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	var c types.Chunk
	var metaJSON string
	var embedding []byte
	err = h.DB.QueryRowContext(ctx, `
		SELECT chunk_id, doc_id, text, ordinal, metadata_json, embedding
		FROM chunks WHERE chunk_id = ? AND project_id = ?
	`, chunkID, projectID).Scan(&c.ChunkID, &c.DocID, &c.Text, &c.Ordinal, &metaJSON, &embedding)
	if err == sql.ErrNoRows {
		return nil, synerr.New(synerr.NotFound, "", "chunk %s not found in project %s", chunkID, projectID)
	}
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "reading chunk")
	}
	if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "unmarshaling chunk metadata")
	}
	c.ProjectID = projectID
	c.Embedding = decodeEmbedding(embedding)
	return &c, nil
}
