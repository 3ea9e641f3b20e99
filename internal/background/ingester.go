// Package background implements C9: fire-and-forget embedding and
// persistence of a turn's user/assistant messages, launched from their own
// timeout rather than the caller's request context so a disconnected caller
// never truncates the write. Grounded on the teacher's document.Service
// worker goroutines, generalized from a bounded worker pool to one
// detached goroutine per message since each write is independent and rare
// compared to retrieval traffic.
package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/northfieldai/ragcore/internal/domain"
)

const taskTimeout = 3 * time.Second

// maxContentSnippetRunes matches spec.md's content_snippet definition: the
// first 500 characters of the message, for display/debug only.
const maxContentSnippetRunes = 500

// Ingester embeds and persists chat turns without blocking the caller.
type Ingester struct {
	embedder domain.Embedder
	store    domain.VectorStore
	logger   *slog.Logger
}

// New builds an Ingester.
func New(embedder domain.Embedder, store domain.VectorStore, logger *slog.Logger) *Ingester {
	return &Ingester{embedder: embedder, store: store, logger: logger}
}

// EnqueueMessage spawns a detached goroutine that embeds and persists one
// chat message, then touches the session's last-active timestamp. It never
// blocks and never propagates an error to the caller; failures are logged
// and dropped.
func (ig *Ingester) EnqueueMessage(userID, projectID, sessionID string, role domain.MessageRole, content string) {
	go ig.run(userID, projectID, sessionID, role, content)
}

func (ig *Ingester) run(userID, projectID, sessionID string, role domain.MessageRole, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	vec, err := ig.embedder.Embed(ctx, content)
	if err != nil {
		ig.logger.Warn("background embedding failed, dropping message", "error", err, "session_id", sessionID, "role", role)
		return
	}

	msg := domain.MessageEmbedding{
		EmbeddingID:    uuid.NewString(),
		MessageID:      uuid.NewString(),
		UserID:         userID,
		ProjectID:      projectID,
		SessionID:      sessionID,
		Role:           role,
		ContentSnippet: truncateRunes(content, maxContentSnippetRunes),
		Embedding:      vec,
		CreatedAt:      time.Now(),
	}
	// InsertMessageEmbedding folds the session touch into its own
	// transaction, so no separate TouchSession call is needed here.
	if err := ig.store.InsertMessageEmbedding(ctx, msg); err != nil {
		ig.logger.Warn("background message persistence failed", "error", err, "session_id", sessionID, "role", role)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
