// Package store implements C2: the vector-backed persistence layer for the
// three relations retrieval reads from. Grounded on
// fbrzx-airplane-chat/internal/vectorstore's raw pgx + pgvector-go pattern,
// extended to three independently filtered tables instead of one, which is
// why this does not use langchaingo's single-collection
// vectorstores/pgvector.Store the teacher's own internal/retrieval used.
package store

import (
	"context"
	"fmt"
	"strings"
)

// ensureSchema creates the three relations, their filter indexes, and an
// approximate nearest-neighbor index per embedding column. Idempotent so it
// can run on every startup, matching the teacher's ensureSchema.
func (s *Store) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS document_chunks (
	chunk_id      UUID PRIMARY KEY,
	asset_id      TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	project_id    TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	chunk_index   INT NOT NULL,
	chunk_text    TEXT NOT NULL,
	business_key  TEXT NOT NULL UNIQUE,
	embedding     vector(%[1]d) NOT NULL,
	metadata      JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS document_chunks_user_project_idx
	ON document_chunks (user_id, project_id);
CREATE INDEX IF NOT EXISTS document_chunks_asset_idx
	ON document_chunks (asset_id);

CREATE TABLE IF NOT EXISTS message_embeddings (
	embedding_id    UUID PRIMARY KEY,
	message_id      TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	project_id      TEXT NOT NULL DEFAULT '',
	session_id      TEXT NOT NULL,
	role            TEXT NOT NULL,
	content_snippet TEXT NOT NULL,
	business_key    TEXT NOT NULL UNIQUE,
	embedding       vector(%[1]d) NOT NULL,
	metadata        JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS message_embeddings_session_idx
	ON message_embeddings (session_id);
CREATE INDEX IF NOT EXISTS message_embeddings_user_idx
	ON message_embeddings (user_id);

CREATE TABLE IF NOT EXISTS global_knowledge (
	knowledge_id  UUID PRIMARY KEY,
	category      TEXT NOT NULL,
	pattern_type  TEXT NOT NULL,
	example_text  TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0.7,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	business_key  TEXT NOT NULL UNIQUE,
	embedding     vector(%[1]d) NOT NULL,
	metadata      JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	touched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

DO $do$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'document_chunks_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX document_chunks_embedding_idx ON document_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'message_embeddings_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX message_embeddings_embedding_idx ON message_embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'global_knowledge_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX global_knowledge_embedding_idx ON global_knowledge USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
END
$do$;
`, s.dimension)

	_, err := s.pool.Exec(ctx, stmt)
	if err != nil && strings.Contains(err.Error(), "ivfflat") {
		// IVF needs a representative sample of rows to build; on a freshly
		// created empty table this can fail. Ignore and let it build on a
		// later restart once there is data, matching the teacher's guard.
		return nil
	}
	return err
}
