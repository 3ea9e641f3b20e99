// Package embedding implements C1: turning text into a fixed-dimension
// vector. It wraps langchaingo's OpenAI embedder the way the teacher's
// internal/embedding package does, adding the truncation, retry, and
// rate-limiting behavior spec.md §4.1 requires.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/ratelimit"
)

// truncateChars is the policy ceiling from spec.md §4.1: inputs longer than
// this are truncated to their last truncateChars characters.
const truncateChars = 8000

const (
	retryAttempts = 3
	retryBase     = 250 * time.Millisecond
	retryJitter   = 0.25
)

// innerEmbedder is satisfied by langchaingo's embeddings.EmbedderImpl; kept
// as an interface so tests can substitute a fake.
type innerEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client implements domain.Embedder.
type Client struct {
	inner   innerEmbedder
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New constructs a Client backed by OpenAI's embedding model via
// langchaingo, matching the teacher's wiring in internal/embedding.
func New(apiKey, model string, limiter *ratelimit.Limiter, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("init langchaingo embedder: %w", err)
	}
	return &Client{inner: embedder, limiter: limiter, logger: logger.With("component", "embedding")}, nil
}

var _ domain.Embedder = (*Client)(nil)

// Embed turns one piece of text into a D-dimensional vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text)
	var vec []float32
	err := c.withRetry(ctx, func() error {
		var err error
		vec, err = c.inner.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vec) != domain.EmbeddingDim {
		return nil, domain.Wrap(domain.KindPermanent,
			fmt.Sprintf("embedding dimension mismatch: expected %d got %d", domain.EmbeddingDim, len(vec)), nil)
	}
	return vec, nil
}

// EmbedBatch turns many texts into vectors in one provider round trip when
// the provider supports it; langchaingo batches internally.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncate(t)
	}
	var vecs [][]float32
	err := c.withRetry(ctx, func() error {
		var err error
		vecs, err = c.inner.EmbedDocuments(ctx, truncated)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, v := range vecs {
		if len(v) != domain.EmbeddingDim {
			return nil, domain.Wrap(domain.KindPermanent,
				fmt.Sprintf("embedding dimension mismatch: expected %d got %d", domain.EmbeddingDim, len(v)), nil)
		}
	}
	return vecs, nil
}

// withRetry applies the embedding rate limiter then the 3-attempt, 250ms
// base, ×2, ±25% jitter backoff policy from spec.md §4.1, retrying only on
// transient classification.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := retryBase
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return domain.Wrap(domain.KindDeadlineExceeded, "rate limiter wait cancelled", err)
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return domain.Wrap(domain.KindPermanent, "embedding provider error", err)
		}
		if attempt == retryAttempts {
			break
		}

		jittered := applyJitter(delay, retryJitter)
		c.logger.Warn("embedding call transient failure, retrying",
			"attempt", attempt, "delay_ms", jittered.Milliseconds(), "error", err)

		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return domain.Wrap(domain.KindDeadlineExceeded, "context cancelled during retry backoff", ctx.Err())
		}
		delay *= 2
	}
	return domain.Wrap(domain.KindTransient, "embedding provider retries exhausted", lastErr)
}

func applyJitter(base time.Duration, jitter float64) time.Duration {
	// ±jitter fraction around base, e.g. ±25%.
	factor := 1 - jitter + rand.Float64()*2*jitter
	return time.Duration(float64(base) * factor)
}

// isTransient classifies a provider error as retryable (network failure or
// 5xx/429) versus permanent (other 4xx). langchaingo doesn't expose a typed
// status code for every transport, so we inspect the error text the way the
// teacher's own error paths do, falling back to treating unrecognized
// failures as transient since the retry budget is small and bounded.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	if code, ok := extractStatusCode(msg); ok {
		return code >= 500 || code == 429
	}
	return !strings.Contains(msg, "invalid") && !strings.Contains(msg, "unauthorized") && !strings.Contains(msg, "forbidden")
}

func extractStatusCode(msg string) (int, bool) {
	idx := strings.Index(msg, "status")
	if idx < 0 {
		return 0, false
	}
	fields := strings.FieldsFunc(msg[idx:], func(r rune) bool { return r < '0' || r > '9' })
	for _, f := range fields {
		if len(f) == 3 {
			if n, err := strconv.Atoi(f); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// truncate applies the last-8000-characters policy from spec.md §4.1.
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= truncateChars {
		return text
	}
	return string(runes[len(runes)-truncateChars:])
}
