// Package generation implements C7: the tool-calling chat generator. This
// file backs domain.ChatProvider with langchaingo's llms package, the way
// the teacher's internal/llm wraps the raw OpenAI chat API, generalized
// from teacher's SSE line-scanning to langchaingo's typed streaming and
// tool-call response shape.
package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/northfieldai/ragcore/internal/domain"
)

// Provider implements domain.ChatProvider against an OpenAI-compatible
// chat completion model via langchaingo.
type Provider struct {
	model llms.Model
}

// NewProvider builds a Provider backed by the given model name.
func NewProvider(apiKey, model string) (*Provider, error) {
	llm, err := lcopenai.New(lcopenai.WithToken(apiKey), lcopenai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("init openai chat client: %w", err)
	}
	return &Provider{model: llm}, nil
}

var _ domain.ChatProvider = (*Provider)(nil)

// StreamChat drives one LLM call and streams deltas. It closes the returned
// channel when the call completes (with or without a tool call request).
func (p *Provider) StreamChat(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition, forceTool string) (<-chan domain.GenerateDelta, error) {
	out := make(chan domain.GenerateDelta)

	lcMessages := toLangchainMessages(messages)
	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case out <- domain.GenerateDelta{Text: string(chunk)}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}),
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toLangchainTools(tools)))
	}
	if forceTool != "" {
		opts = append(opts, llms.WithToolChoice(forceTool))
	}

	go func() {
		defer close(out)
		resp, err := p.model.GenerateContent(ctx, lcMessages, opts...)
		if err != nil {
			out <- domain.GenerateDelta{Done: true, Err: classifyProviderErr(err)}
			return
		}
		if len(resp.Choices) == 0 {
			out <- domain.GenerateDelta{Done: true}
			return
		}

		choice := resp.Choices[0]
		for _, tc := range choice.ToolCalls {
			out <- domain.GenerateDelta{ToolCall: &domain.ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			}}
			return
		}
		out <- domain.GenerateDelta{Done: true}
	}()

	return out, nil
}

func toLangchainMessages(messages []domain.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.MessageContent{
			Role:  toLangchainRole(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return out
}

func toLangchainRole(role domain.MessageRole) llms.ChatMessageType {
	switch role {
	case domain.RoleUser:
		return llms.ChatMessageTypeHuman
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeSystem
	}
}

func toLangchainTools(tools []domain.ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// classifyProviderErr maps a langchaingo/transport error to
// domain.KindTransient or domain.KindPermanent, matching spec.md §7's
// ProviderTransient/ProviderPermanent split at the same 429/5xx boundary C1
// uses for the embedding provider.
func classifyProviderErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"429", "500", "502", "503", "504", "timeout", "connection reset"} {
		if contains(msg, marker) {
			return domain.Wrap(domain.KindTransient, "chat provider error", err)
		}
	}
	return domain.Wrap(domain.KindPermanent, "chat provider error", err)
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := 0; j < len(needle); j++ {
			hc, nc := haystack[i+j], needle[j]
			if hc >= 'A' && hc <= 'Z' {
				hc += 'a' - 'A'
			}
			if nc >= 'A' && nc <= 'Z' {
				nc += 'a' - 'A'
			}
			if hc != nc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
