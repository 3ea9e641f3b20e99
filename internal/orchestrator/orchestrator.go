// Package orchestrator implements spec.md §2's single-turn data flow,
// gluing C4 through C9 in the fixed order the spec describes: expand,
// retrieve, format, generate, then hand the completed turn to the
// background ingester without making the caller wait for it.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/northfieldai/ragcore/internal/background"
	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/format"
	"github.com/northfieldai/ragcore/internal/generation"
	"github.com/northfieldai/ragcore/internal/retrieval"
)

// Orchestrator drives one turn end to end.
type Orchestrator struct {
	retriever  *retrieval.Orchestrator
	formatter  *format.Formatter
	generator  *generation.Generator
	background *background.Ingester
	logger     *slog.Logger
}

// New builds an Orchestrator from its already-wired collaborators.
func New(retriever *retrieval.Orchestrator, formatter *format.Formatter, generator *generation.Generator, bg *background.Ingester, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{retriever: retriever, formatter: formatter, generator: generator, background: bg, logger: logger}
}

// Turn runs one full request→response cycle. The returned channel streams
// text/tool/terminal deltas exactly as C7 produces them; once it closes,
// the caller-visible turn is finished. Background ingestion of the
// completed exchange is enqueued internally and does not delay the
// channel's closing.
func (o *Orchestrator) Turn(ctx context.Context, req domain.TurnRequest) <-chan domain.GenerateDelta {
	out := make(chan domain.GenerateDelta)
	go func() {
		defer close(out)

		if req.SessionID == "" {
			err := domain.Wrap(domain.KindInvariant, "session_id is required for a turn", nil)
			o.logger.Error("turn invariant violated: empty session_id", "error", err)
			out <- domain.GenerateDelta{Done: true, Err: err}
			return
		}

		block, err := o.retriever.Retrieve(ctx, req.UserText, req.UserID, req.SessionID, req.ProjectID, req.History)
		if err != nil {
			o.logger.Error("retrieval returned a fatal error", "error", err, "session_id", req.SessionID)
			out <- domain.GenerateDelta{Done: true, Err: err}
			return
		}
		contextText := ""
		if !block.Empty() {
			contextText = o.formatter.Format(block)
		}

		var assistantText strings.Builder
		deltas := o.generator.Generate(ctx, generation.Request{
			ContextText:     contextText,
			History:         req.History,
			UserText:        req.UserText,
			EnableWebSearch: req.EnableWebSearch,
		})

		var genErr error
		for d := range deltas {
			if d.Text != "" {
				assistantText.WriteString(d.Text)
			}
			if d.Err != nil {
				genErr = d.Err
			}
			out <- d
		}

		if genErr != nil {
			o.logger.Warn("turn completed with a generation error", "error", genErr, "session_id", req.SessionID)
		}
		if o.background != nil {
			o.background.EnqueueMessage(req.UserID, req.ProjectID, req.SessionID, domain.RoleUser, req.UserText)
			if assistantText.Len() > 0 {
				o.background.EnqueueMessage(req.UserID, req.ProjectID, req.SessionID, domain.RoleAssistant, assistantText.String())
			}
		}
	}()
	return out
}
