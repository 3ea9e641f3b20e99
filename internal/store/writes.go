package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/hashutil"
)

// InsertDocumentChunk persists a chunk idempotently on (asset_id,
// chunk_index), matching spec.md §3's DocumentChunk uniqueness invariant.
func (s *Store) InsertDocumentChunk(ctx context.Context, c domain.DocumentChunk) error {
	if len(c.Embedding) != s.dimension {
		return domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("chunk embedding dimension mismatch: expected %d got %d", s.dimension, len(c.Embedding)), nil)
	}
	id := c.ChunkID
	if id == "" {
		id = uuid.NewString()
	}
	businessKey := hashutil.ContentHash(fmt.Sprintf("%s:%d", c.AssetID, c.ChunkIndex))
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return domain.Wrap(domain.KindInvariant, "marshal chunk metadata", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO document_chunks
	(chunk_id, asset_id, user_id, project_id, document_type, chunk_index, chunk_text, business_key, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (business_key) DO NOTHING`,
		id, c.AssetID, c.UserID, c.ProjectID, string(c.DocumentType), c.ChunkIndex, c.ChunkText, businessKey,
		pgvector.NewVector(c.Embedding), meta)
	if err != nil {
		return classifyQueryErr(ctx, "insert document chunk", err)
	}
	return nil
}

// InsertMessageEmbedding persists one embedded chat turn idempotently on
// message_id, matching spec.md §3's "one embedding per message" invariant.
func (s *Store) InsertMessageEmbedding(ctx context.Context, m domain.MessageEmbedding) error {
	if len(m.Embedding) != s.dimension {
		return domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("message embedding dimension mismatch: expected %d got %d", s.dimension, len(m.Embedding)), nil)
	}
	if m.SessionID == "" {
		return domain.Wrap(domain.KindInvariant, "message embedding must carry a session id", nil)
	}
	id := m.EmbeddingID
	if id == "" {
		id = uuid.NewString()
	}
	businessKey := hashutil.ContentHash("message:" + m.MessageID)
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return domain.Wrap(domain.KindInvariant, "marshal message metadata", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classifyQueryErr(ctx, "begin message insert tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO message_embeddings
	(embedding_id, message_id, user_id, project_id, session_id, role, content_snippet, business_key, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (business_key) DO NOTHING`,
		id, m.MessageID, m.UserID, m.ProjectID, m.SessionID, string(m.Role), m.ContentSnippet, businessKey,
		pgvector.NewVector(m.Embedding), meta); err != nil {
		return classifyQueryErr(ctx, "insert message embedding", err)
	}

	// Fold the session touch into the same transaction per the Open
	// Question in spec.md §4.9/§9, since the store is reachable here.
	if _, err := tx.Exec(ctx, `
INSERT INTO sessions (session_id, touched_at) VALUES ($1, NOW())
ON CONFLICT (session_id) DO UPDATE SET touched_at = NOW()`, m.SessionID); err != nil {
		return classifyQueryErr(ctx, "touch session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyQueryErr(ctx, "commit message insert tx", err)
	}
	return nil
}

// InsertGlobalKnowledge persists a curated pattern idempotently on category+
// example_text, applying the default quality score when unset.
func (s *Store) InsertGlobalKnowledge(ctx context.Context, k domain.GlobalKnowledge) error {
	if len(k.Embedding) != s.dimension {
		return domain.Wrap(domain.KindInvariant,
			fmt.Sprintf("global knowledge embedding dimension mismatch: expected %d got %d", s.dimension, len(k.Embedding)), nil)
	}
	id := k.KnowledgeID
	if id == "" {
		id = uuid.NewString()
	}
	quality := k.QualityScore
	if quality == 0 {
		quality = domain.DefaultQualityScore
	}
	businessKey := hashutil.ContentHash(k.Category + ":" + k.ExampleText)
	meta, err := json.Marshal(k.Metadata)
	if err != nil {
		return domain.Wrap(domain.KindInvariant, "marshal global knowledge metadata", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO global_knowledge
	(knowledge_id, category, pattern_type, example_text, description, quality_score, tags, business_key, embedding, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
ON CONFLICT (business_key) DO NOTHING`,
		id, k.Category, k.PatternType, k.ExampleText, k.Description, quality, k.Tags, businessKey,
		pgvector.NewVector(k.Embedding), meta)
	if err != nil {
		return classifyQueryErr(ctx, "insert global knowledge", err)
	}
	return nil
}

// DeleteAsset removes every chunk belonging to assetID in one statement,
// the cascade spec.md's ownership summary implies but leaves unnamed.
func (s *Store) DeleteAsset(ctx context.Context, assetID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE asset_id = $1`, assetID)
	if err != nil {
		return classifyQueryErr(ctx, "delete asset", err)
	}
	return nil
}

// DeleteSession removes every message embedding for sessionID.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM message_embeddings WHERE session_id = $1`, sessionID)
	if err != nil {
		return classifyQueryErr(ctx, "delete session", err)
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return classifyQueryErr(ctx, "delete session metadata", err)
	}
	return nil
}

// TouchSession updates the session's last-activity timestamp independently
// of a message insert, the fallback path for the Open Question folding
// touches into the message-insert transaction when possible.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sessions (session_id, touched_at) VALUES ($1, NOW())
ON CONFLICT (session_id) DO UPDATE SET touched_at = NOW()`, sessionID)
	if err != nil {
		return classifyQueryErr(ctx, "touch session", err)
	}
	return nil
}
