// Package generation implements C7: the tool-calling chat generator that
// drives a domain.ChatProvider through at most one internet_search round
// trip per turn, capping history by token budget the way the pack's
// SimpleChunker caps chunks by token budget.
package generation

import (
	"context"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/northfieldai/ragcore/internal/domain"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer using the supplied context when relevant; say so when you don't know."

// Generator is C7: it owns message construction, history capping, the
// forced-tool-choice decision, and the single tool-call round trip, driving
// an underlying domain.ChatProvider.
type Generator struct {
	provider      domain.ChatProvider
	webSearch     domain.WebSearchProvider
	maxTokens     int
	forceTriggers []string
	systemPrompt  string
	encoder       *tiktoken.Tiktoken
	logger        *slog.Logger
}

// New builds a Generator. webSearch may be nil to disable the
// internet_search tool entirely regardless of Request.EnableWebSearch.
func New(provider domain.ChatProvider, webSearch domain.WebSearchProvider, maxTokens int, forceTriggers []string, logger *slog.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = 6000
	}
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Generator{
		provider:      provider,
		webSearch:     webSearch,
		maxTokens:     maxTokens,
		forceTriggers: forceTriggers,
		systemPrompt:  defaultSystemPrompt,
		encoder:       enc,
		logger:        logger.With("component", "generation"),
	}
}

// Request is the caller-supplied input for one generation turn.
type Request struct {
	ContextText     string // pre-rendered by C6; empty if no context was retrieved
	History         []domain.ChatMessage
	UserText        string
	EnableWebSearch *bool
}

// Generate streams one turn's deltas. The returned channel is always
// closed, terminated either by a delta with Done==true or by a delta
// carrying a non-nil Err.
func (g *Generator) Generate(ctx context.Context, req Request) <-chan domain.GenerateDelta {
	out := make(chan domain.GenerateDelta)
	go func() {
		defer close(out)
		messages := g.buildMessages(req)

		var tools []domain.ToolDefinition
		forceTool := ""
		if g.webSearch != nil && (req.EnableWebSearch == nil || *req.EnableWebSearch) {
			tools = []domain.ToolDefinition{internetSearchTool()}
			if matchesForceTrigger(req.UserText, g.forceTriggers) {
				forceTool = internetSearchToolName
			}
		}

		g.drive(ctx, out, messages, tools, forceTool)
	}()
	return out
}

// drive runs the state machine: Start -> AwaitingLLM -> (Streaming | ToolRun
// -> AwaitingLLM -> Streaming) -> Done. At most one ToolRun round trip is
// permitted per turn; a second tool call request is refused with a textual
// fallback instead of being executed.
func (g *Generator) drive(ctx context.Context, out chan<- domain.GenerateDelta, messages []domain.ChatMessage, tools []domain.ToolDefinition, forceTool string) {
	hasEmitted := false
	retried := false
	toolRoundTripUsed := false

	currentMessages := messages
	currentTools := tools
	currentForce := forceTool

	for {
		deltas, err := g.provider.StreamChat(ctx, currentMessages, currentTools, currentForce)
		if err != nil && !hasEmitted && !retried && domain.Is(err, domain.KindTransient) {
			retried = true
			g.logger.Warn("chat provider transient error, retrying turn once", "error", err)
			deltas, err = g.provider.StreamChat(ctx, currentMessages, currentTools, currentForce)
		}
		if err != nil {
			out <- domain.GenerateDelta{Done: true, Err: err}
			return
		}

		toolCallSeen := false
		var pendingCall domain.ToolCall

		for {
			d, ok := <-deltas
			if !ok {
				break
			}
			if d.Err != nil {
				if !hasEmitted && !retried && domain.Is(d.Err, domain.KindTransient) {
					retried = true
					g.logger.Warn("chat provider transient stream error, retrying turn once", "error", d.Err)
					retryDeltas, retryErr := g.provider.StreamChat(ctx, currentMessages, currentTools, currentForce)
					if retryErr != nil {
						out <- domain.GenerateDelta{Done: true, Err: retryErr}
						return
					}
					deltas = retryDeltas
					continue
				}
				out <- d
				return
			}
			if d.ToolCall != nil {
				hasEmitted = true
				pendingCall = *d.ToolCall
				toolCallSeen = true
				break
			}
			if d.Text != "" {
				hasEmitted = true
				out <- d
			}
			if d.Done {
				hasEmitted = true
				out <- d
				return
			}
		}

		if !toolCallSeen {
			return
		}

		if toolRoundTripUsed {
			out <- domain.GenerateDelta{Text: "\n\n(Unable to search again this turn; answering from the context already gathered.)\n"}
			out <- domain.GenerateDelta{Done: true}
			return
		}

		toolRoundTripUsed = true
		result := g.executeTool(ctx, pendingCall)
		currentMessages = append(append([]domain.ChatMessage{}, currentMessages...), toolResultMessage(pendingCall, result))
		currentTools = nil
		currentForce = ""
	}
}

// buildMessages assembles system prompt, context block, token-capped
// history, and the user's turn, in that fixed order.
func (g *Generator) buildMessages(req Request) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(req.History)+3)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: g.systemPrompt})
	if req.ContextText != "" {
		out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: req.ContextText})
	}
	out = append(out, g.capHistory(req.History)...)
	out = append(out, domain.ChatMessage{Role: domain.RoleUser, Content: req.UserText})
	return out
}

// capHistory keeps the most recent messages that fit within maxTokens,
// dropping the oldest first. It never splits a message.
func (g *Generator) capHistory(history []domain.ChatMessage) []domain.ChatMessage {
	if len(history) == 0 {
		return nil
	}
	total := 0
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		t := g.countTokens(history[i].Content)
		if total+t > g.maxTokens {
			cut = i + 1
			break
		}
		total += t
		cut = i
	}
	return history[cut:]
}

func (g *Generator) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if g.encoder != nil {
		return len(g.encoder.Encode(text, nil, nil))
	}
	// Fallback heuristic when the encoder failed to load: ~4 chars/token.
	return len(text)/4 + 1
}
