package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/northfieldai/ragcore/internal/domain"
)

type fakeInner struct {
	calls       int
	failUntil   int // return an error on calls <= failUntil
	failErr     error
	queryVec    []float32
	docVecs     [][]float32
	lastQuery   string
	lastDocs    []string
}

func (f *fakeInner) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastQuery = text
	if f.calls <= f.failUntil {
		return nil, f.failErr
	}
	return f.queryVec, nil
}

func (f *fakeInner) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastDocs = texts
	if f.calls <= f.failUntil {
		return nil, f.failErr
	}
	return f.docVecs, nil
}

func newVec() []float32 {
	v := make([]float32, domain.EmbeddingDim)
	for i := range v {
		v[i] = 0.001
	}
	return v
}

func TestEmbedTruncatesToLast8000Chars(t *testing.T) {
	long := strings.Repeat("a", 9000) + "END"
	inner := &fakeInner{queryVec: newVec()}
	c := &Client{inner: inner}

	if _, err := c.Embed(context.Background(), long); err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len([]rune(inner.lastQuery)) != truncateChars {
		t.Fatalf("expected truncated length %d, got %d", truncateChars, len([]rune(inner.lastQuery)))
	}
	if !strings.HasSuffix(inner.lastQuery, "END") {
		t.Fatalf("truncation should keep the tail of the text, got suffix %q", inner.lastQuery[len(inner.lastQuery)-10:])
	}
}

func TestEmbedRetriesOnTransientThenSucceeds(t *testing.T) {
	inner := &fakeInner{
		queryVec: newVec(),
		failUntil: 2,
		failErr:   errors.New("received 503 from upstream"),
	}
	c := &Client{inner: inner, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if len(vec) != domain.EmbeddingDim {
		t.Fatalf("expected dim %d, got %d", domain.EmbeddingDim, len(vec))
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", inner.calls)
	}
}

func TestEmbedDoesNotRetryOnPermanentError(t *testing.T) {
	inner := &fakeInner{
		failUntil: 3,
		failErr:   errors.New("401 unauthorized: invalid api key"),
	}
	c := &Client{inner: inner}

	_, err := c.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.Is(err, domain.KindPermanent) {
		t.Fatalf("expected KindPermanent, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 call on permanent failure, got %d", inner.calls)
	}
}

func TestEmbedExhaustsRetriesAsTransient(t *testing.T) {
	inner := &fakeInner{
		failUntil: 10,
		failErr:   errors.New("connection reset by peer"),
	}
	c := &Client{inner: inner, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	_, err := c.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.Is(err, domain.KindTransient) {
		t.Fatalf("expected KindTransient after exhausting retries, got %v", err)
	}
	if inner.calls != retryAttempts {
		t.Fatalf("expected %d attempts, got %d", retryAttempts, inner.calls)
	}
}

func TestEmbedBatchRejectsDimensionMismatch(t *testing.T) {
	inner := &fakeInner{docVecs: [][]float32{newVec(), make([]float32, 3)}}
	c := &Client{inner: inner}

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !domain.Is(err, domain.KindPermanent) {
		t.Fatalf("expected KindPermanent, got %v", err)
	}
}

func TestEmbedBatchEmptyInputReturnsNilWithoutCallingProvider(t *testing.T) {
	inner := &fakeInner{}
	c := &Client{inner: inner}

	vecs, err := c.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs != nil {
		t.Fatalf("expected nil result, got %v", vecs)
	}
	if inner.calls != 0 {
		t.Fatalf("expected provider not to be called, got %d calls", inner.calls)
	}
}

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429 too many requests", true},
		{"503 service unavailable", true},
		{"connection reset by peer", true},
		{"401 unauthorized: invalid api key", false},
		{"403 forbidden", false},
	}
	for _, tc := range cases {
		got := isTransient(errors.New(tc.msg))
		if got != tc.want {
			t.Errorf("isTransient(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
