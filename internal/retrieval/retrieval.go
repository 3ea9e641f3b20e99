// Package retrieval implements C5: fanning out the three similarity
// searches in parallel under a deadline, auditing session isolation,
// filtering for diversity, capping per-source counts, and assembling the
// ordered ContextBlock C6 formats. Grounded on the pack's errgroup-based
// RetrieverService (vector+BM25 concurrent search), generalized from two
// sources to three and from a barrier-only design to the cooperative
// cancellation spec.md §4.5 requires.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/expand"
	"github.com/northfieldai/ragcore/internal/hashutil"
)

// Config bundles the per-source caps and thresholds spec.md §4.5/§6 name.
type Config struct {
	DocK             int
	MsgK             int
	GlobalK          int
	Threshold        float64
	GlobalMinQuality float64
	Deadline         time.Duration

	// EnforceIsolation gates the defense-in-depth session-isolation audit
	// (spec.md §6 session.enforce_isolation, default true). The session_id
	// Invariant check in Retrieve is unconditional regardless of this flag.
	EnforceIsolation bool
}

// Orchestrator implements the retrieve() algorithm from spec.md §4.5.
type Orchestrator struct {
	embedder domain.Embedder
	store    domain.VectorStore
	cfg      Config
	logger   *slog.Logger
}

// New builds an Orchestrator.
func New(embedder domain.Embedder, store domain.VectorStore, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{embedder: embedder, store: store, cfg: cfg, logger: logger.With("component", "retrieval")}
}

// maxHistoryBias caps how much of the last user turn in history is appended
// to the expanded query, per spec.md §4.5 step 1.
const maxHistoryBias = 500

// Retrieve fans out the three similarity searches and assembles a
// ContextBlock. Beyond the session_id Invariant check, it never returns an
// error: a total search failure degrades to an empty ContextBlock, matching
// spec.md §4.5's failure semantics.
func (o *Orchestrator) Retrieve(ctx context.Context, userText, userID, sessionID, projectID string, history []domain.ChatMessage) (domain.ContextBlock, error) {
	if sessionID == "" {
		err := domain.Wrap(domain.KindInvariant, "session_id is required at retrieval time", nil)
		o.logger.Error("retrieval invariant violated: empty session_id", "error", err)
		return domain.ContextBlock{}, err
	}

	start := time.Now()
	q := expand.Expand(userText)
	if last := lastUserTurn(history); last != "" {
		q = q + " " + truncateRunes(last, maxHistoryBias)
	}

	qVec, err := o.embedder.Embed(ctx, q)
	if err != nil {
		o.logger.Warn("query embedding failed, returning empty context", "error", err)
		return domain.ContextBlock{}, nil
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	var docs, msgs, globs []domain.RetrievalHit
	g, gCtx := errgroup.WithContext(deadlineCtx)

	g.Go(func() error {
		hits, err := o.store.SimilarDocuments(gCtx, domain.SimilarDocumentsQuery{
			QueryVector: qVec, UserID: userID, ProjectID: projectID,
			K: o.cfg.DocK, Threshold: o.cfg.Threshold,
		})
		if err != nil {
			o.logger.Warn("document search failed, degrading to empty", "error", err)
			return nil
		}
		docs = hits
		return nil
	})

	g.Go(func() error {
		hits, err := o.store.SimilarMessages(gCtx, domain.SimilarMessagesQuery{
			QueryVector: qVec, UserID: userID, ProjectID: projectID, SessionID: sessionID,
			K: o.cfg.MsgK, Threshold: o.cfg.Threshold,
		})
		if err != nil {
			o.logger.Warn("message search failed, degrading to empty", "error", err)
			return nil
		}
		msgs = hits
		return nil
	})

	g.Go(func() error {
		hits, err := o.store.SimilarGlobal(gCtx, domain.SimilarGlobalQuery{
			QueryVector: qVec, K: o.cfg.GlobalK, Threshold: o.cfg.Threshold, MinQuality: o.cfg.GlobalMinQuality,
		})
		if err != nil {
			o.logger.Warn("global search failed, degrading to empty", "error", err)
			return nil
		}
		globs = hits
		return nil
	})

	_ = g.Wait() // every Go func already swallows its own error; Wait only reports deadline cancellation

	if o.cfg.EnforceIsolation {
		msgs = auditSessionIsolation(msgs, sessionID, o.logger)
	}

	docs = diversityFilter(docs)
	msgs = diversityFilter(msgs)
	globs = diversityFilter(globs)

	docs = capHits(docs, o.cfg.DocK)
	msgs = capHits(msgs, o.cfg.MsgK)
	globs = capHits(globs, o.cfg.GlobalK)

	block := domain.ContextBlock{Documents: docs, PriorMessages: msgs, GlobalPatterns: globs}

	o.logger.Info("retrieval turn complete",
		"doc_hits", len(docs), "msg_hits", len(msgs), "global_hits", len(globs),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"deadline_hit", deadlineCtx.Err() != nil)

	return block, nil
}

// auditSessionIsolation drops any hit whose session_id doesn't match the
// requesting session. This is defense-in-depth: the store-side filter is
// authoritative, but an implementation bug there should never leak data.
func auditSessionIsolation(hits []domain.RetrievalHit, sessionID string, logger *slog.Logger) []domain.RetrievalHit {
	kept := hits[:0:0]
	for _, h := range hits {
		if h.SessionID != sessionID {
			logger.Warn("session isolation audit dropped a mismatched hit",
				"hit_session_id", h.SessionID, "request_session_id", sessionID)
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

// diversityFilter drops a later hit whose first 100 characters hash matches
// an earlier kept hit, preserving input order otherwise.
func diversityFilter(hits []domain.RetrievalHit) []domain.RetrievalHit {
	seen := make(map[string]struct{}, len(hits))
	kept := hits[:0:0]
	for _, h := range hits {
		key := hashutil.ContentHash(truncateRunes(h.Text, 100))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, h)
	}
	return kept
}

func capHits(hits []domain.RetrievalHit, k int) []domain.RetrievalHit {
	if k <= 0 || len(hits) <= k {
		return hits
	}
	return hits[:k]
}

func lastUserTurn(history []domain.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
