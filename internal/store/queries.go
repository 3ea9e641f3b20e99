package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/northfieldai/ragcore/internal/domain"
)

// SimilarDocuments searches document_chunks scoped to user (and project when
// set), ordered by cosine similarity with chunk_index/created_at tie-breaks.
func (s *Store) SimilarDocuments(ctx context.Context, q domain.SimilarDocumentsQuery) ([]domain.RetrievalHit, error) {
	if len(q.QueryVector) != s.dimension {
		return nil, domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("query vector dimension mismatch: expected %d got %d", s.dimension, len(q.QueryVector)), nil)
	}

	vec := pgvector.NewVector(q.QueryVector)
	sql := `
SELECT chunk_text, document_type, chunk_index, created_at, metadata,
       1 - (embedding <=> $1) AS score
FROM document_chunks
WHERE user_id = $2
  AND ($3 = '' OR project_id = $3)
  AND (1 - (embedding <=> $1)) >= $4
ORDER BY embedding <=> $1, chunk_index ASC, created_at ASC
LIMIT $5`

	rows, err := s.pool.Query(ctx, sql, vec, q.UserID, q.ProjectID, q.Threshold, q.K)
	if err != nil {
		return nil, classifyQueryErr(ctx, "similar documents", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var (
			hit      domain.RetrievalHit
			docType  string
			metaRaw  []byte
		)
		if err := rows.Scan(&hit.Text, &docType, &hit.ChunkIndex, &hit.CreatedAt, &metaRaw, &hit.Similarity); err != nil {
			return nil, classifyQueryErr(ctx, "scan document hit", err)
		}
		hit.Origin = domain.OriginDocument
		hit.UserID = q.UserID
		hit.Metadata = decodeMetadata(metaRaw)
		hit.Source = hit.Metadata["filename"]
		if hit.Source == "" {
			hit.Source = docType
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(ctx, "iterate document hits", err)
	}
	return hits, nil
}

// SimilarMessages searches message_embeddings scoped to user and session
// (and project when set). The session filter is mandatory: callers must always
// supply q.SessionID so cross-session leakage cannot occur at this layer.
func (s *Store) SimilarMessages(ctx context.Context, q domain.SimilarMessagesQuery) ([]domain.RetrievalHit, error) {
	if len(q.QueryVector) != s.dimension {
		return nil, domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("query vector dimension mismatch: expected %d got %d", s.dimension, len(q.QueryVector)), nil)
	}

	vec := pgvector.NewVector(q.QueryVector)
	sql := `
SELECT content_snippet, role, session_id, created_at, metadata,
       1 - (embedding <=> $1) AS score
FROM message_embeddings
WHERE user_id = $2
  AND session_id = $3
  AND ($4 = '' OR project_id = $4)
  AND (1 - (embedding <=> $1)) >= $5
ORDER BY embedding <=> $1, created_at ASC
LIMIT $6`

	rows, err := s.pool.Query(ctx, sql, vec, q.UserID, q.SessionID, q.ProjectID, q.Threshold, q.K)
	if err != nil {
		return nil, classifyQueryErr(ctx, "similar messages", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var (
			hit     domain.RetrievalHit
			role    string
			metaRaw []byte
		)
		if err := rows.Scan(&hit.Text, &role, &hit.SessionID, &hit.CreatedAt, &metaRaw, &hit.Similarity); err != nil {
			return nil, classifyQueryErr(ctx, "scan message hit", err)
		}
		hit.Origin = domain.OriginMessage
		hit.Source = role
		hit.UserID = q.UserID
		hit.Metadata = decodeMetadata(metaRaw)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(ctx, "iterate message hits", err)
	}
	return hits, nil
}

// SimilarGlobal searches the tenant-agnostic global_knowledge table, never
// filtered by user or project.
func (s *Store) SimilarGlobal(ctx context.Context, q domain.SimilarGlobalQuery) ([]domain.RetrievalHit, error) {
	if len(q.QueryVector) != s.dimension {
		return nil, domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("query vector dimension mismatch: expected %d got %d", s.dimension, len(q.QueryVector)), nil)
	}

	vec := pgvector.NewVector(q.QueryVector)
	sql := `
SELECT example_text, category, created_at, metadata,
       1 - (embedding <=> $1) AS score
FROM global_knowledge
WHERE quality_score >= $2
  AND (1 - (embedding <=> $1)) >= $3
ORDER BY embedding <=> $1, created_at ASC
LIMIT $4`

	rows, err := s.pool.Query(ctx, sql, vec, q.MinQuality, q.Threshold, q.K)
	if err != nil {
		return nil, classifyQueryErr(ctx, "similar global knowledge", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var (
			hit      domain.RetrievalHit
			category string
			metaRaw  []byte
		)
		if err := rows.Scan(&hit.Text, &category, &hit.CreatedAt, &metaRaw, &hit.Similarity); err != nil {
			return nil, classifyQueryErr(ctx, "scan global hit", err)
		}
		hit.Origin = domain.OriginGlobal
		hit.Source = category
		hit.Metadata = decodeMetadata(metaRaw)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(ctx, "iterate global hits", err)
	}
	return hits, nil
}

func decodeMetadata(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// classifyQueryErr maps a pool error to KindDeadlineExceeded when the
// context was cancelled or expired, and to KindStoreUnreachable for every
// other failure.
func classifyQueryErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return domain.Wrap(domain.KindDeadlineExceeded, fmt.Sprintf("store: %s", op), err)
	}
	return domain.Wrap(domain.KindStoreUnreachable, fmt.Sprintf("store: %s", op), err)
}
