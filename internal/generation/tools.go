package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/northfieldai/ragcore/internal/domain"
)

const internetSearchToolName = "internet_search"

// internetSearchTool describes C8's single tool to the chat provider.
func internetSearchTool() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        internetSearchToolName,
		Description: "Search the public internet for current information not present in the provided context.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query.",
				},
			},
			"required": []string{"query"},
		},
	}
}

type toolArgs struct {
	Query string `json:"query"`
}

// executeTool runs a requested tool call and returns the text fed back to
// the model. It never returns an error: failures become a stringified
// result, matching spec.md §4.7's "tool failures are never fatal".
func (g *Generator) executeTool(ctx context.Context, call domain.ToolCall) string {
	if call.Name != internetSearchToolName || g.webSearch == nil {
		return fmt.Sprintf("tool %q is not available", call.Name)
	}

	var args toolArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "tool call error: missing or invalid \"query\" argument"
	}

	results, err := g.webSearch.Search(ctx, args.Query, 5)
	if err != nil {
		g.logger.Warn("web search tool call failed", "error", err, "query", args.Query)
		return fmt.Sprintf("web search failed: %v", err)
	}
	if len(results) == 0 {
		return "web search returned no results"
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// toolResultMessage wraps a tool's output as a system-role message appended
// to the conversation before the follow-up completion, since domain.ChatMessage
// carries no tool_call_id slot of its own.
func toolResultMessage(call domain.ToolCall, result string) domain.ChatMessage {
	return domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: fmt.Sprintf("Result of %s tool call: %s", call.Name, result),
	}
}

// matchesForceTrigger reports whether userText contains any configured
// forced-tool-choice trigger phrase, case-insensitively.
func matchesForceTrigger(userText string, triggers []string) bool {
	normalized := strings.ToLower(userText)
	for _, trig := range triggers {
		if strings.Contains(normalized, strings.ToLower(trig)) {
			return true
		}
	}
	return false
}
