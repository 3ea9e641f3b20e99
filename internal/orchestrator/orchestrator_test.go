package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/northfieldai/ragcore/internal/background"
	"github.com/northfieldai/ragcore/internal/domain"
	"github.com/northfieldai/ragcore/internal/format"
	"github.com/northfieldai/ragcore/internal/generation"
	"github.com/northfieldai/ragcore/internal/retrieval"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, domain.EmbeddingDim), nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

type fakeStore struct{}

func (fakeStore) SimilarMessages(ctx context.Context, q domain.SimilarMessagesQuery) ([]domain.RetrievalHit, error) {
	return []domain.RetrievalHit{{Origin: domain.OriginMessage, Similarity: 0.9, Text: "prior message", Source: "user", SessionID: q.SessionID}}, nil
}
func (fakeStore) SimilarDocuments(ctx context.Context, q domain.SimilarDocumentsQuery) ([]domain.RetrievalHit, error) {
	return []domain.RetrievalHit{{Origin: domain.OriginDocument, Similarity: 0.8, Text: "doc content", Source: "notes.txt"}}, nil
}
func (fakeStore) SimilarGlobal(ctx context.Context, q domain.SimilarGlobalQuery) ([]domain.RetrievalHit, error) {
	return nil, nil
}
func (fakeStore) InsertDocumentChunk(ctx context.Context, c domain.DocumentChunk) error { return nil }
func (fakeStore) InsertMessageEmbedding(ctx context.Context, m domain.MessageEmbedding) error {
	return nil
}
func (fakeStore) InsertGlobalKnowledge(ctx context.Context, k domain.GlobalKnowledge) error {
	return nil
}
func (fakeStore) DeleteAsset(ctx context.Context, assetID string) error      { return nil }
func (fakeStore) DeleteSession(ctx context.Context, sessionID string) error  { return nil }
func (fakeStore) TouchSession(ctx context.Context, sessionID string) error   { return nil }

var _ domain.VectorStore = (*fakeStore)(nil)

type recordingStore struct {
	fakeStore
	mu       sync.Mutex
	inserted []domain.MessageEmbedding
}

func (r *recordingStore) InsertMessageEmbedding(ctx context.Context, m domain.MessageEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, m)
	return nil
}

func (r *recordingStore) snapshot() []domain.MessageEmbedding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.MessageEmbedding, len(r.inserted))
	copy(out, r.inserted)
	return out
}

type scriptedProvider struct {
	deltas []domain.GenerateDelta
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition, forceTool string) (<-chan domain.GenerateDelta, error) {
	out := make(chan domain.GenerateDelta, len(p.deltas))
	for _, d := range p.deltas {
		out <- d
	}
	close(out)
	return out, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestTurnStreamsGeneratedTextAndEnqueuesBackgroundIngestion(t *testing.T) {
	retr := retrieval.New(fakeEmbedder{}, &recordingStore{}, retrieval.Config{
		DocK: 5, MsgK: 5, GlobalK: 5, Threshold: 0, GlobalMinQuality: 0, Deadline: time.Second,
	}, testLogger())
	fmtr := format.New(0)
	provider := &scriptedProvider{deltas: []domain.GenerateDelta{{Text: "hi "}, {Text: "there"}, {Done: true}}}
	gen := generation.New(provider, nil, 6000, nil, testLogger())
	store := &recordingStore{}
	bg := background.New(fakeEmbedder{}, store, testLogger())

	o := New(retr, fmtr, gen, bg, testLogger())
	deltas := o.Turn(context.Background(), domain.TurnRequest{
		UserID: "u1", SessionID: "s1", UserText: "tell me about Go",
	})

	var text string
	for d := range deltas {
		text += d.Text
	}
	if text != "hi there" {
		t.Fatalf("expected streamed text %q, got %q", "hi there", text)
	}

	waitFor(t, time.Second, func() bool { return len(store.snapshot()) == 2 })
	snap := store.snapshot()
	if snap[0].Role != domain.RoleUser || snap[1].Role != domain.RoleAssistant {
		t.Fatalf("expected user then assistant message persisted, got %+v", snap)
	}
	if snap[1].ContentSnippet != "hi there" {
		t.Fatalf("expected the assistant message to carry the full streamed text, got %q", snap[1].ContentSnippet)
	}
}

func TestTurnRejectsEmptySessionID(t *testing.T) {
	retr := retrieval.New(fakeEmbedder{}, &recordingStore{}, retrieval.Config{
		DocK: 5, MsgK: 5, GlobalK: 5, Threshold: 0, GlobalMinQuality: 0, Deadline: time.Second,
	}, testLogger())
	fmtr := format.New(0)
	provider := &scriptedProvider{deltas: []domain.GenerateDelta{{Text: "should never run"}, {Done: true}}}
	gen := generation.New(provider, nil, 6000, nil, testLogger())
	store := &recordingStore{}
	bg := background.New(fakeEmbedder{}, store, testLogger())

	o := New(retr, fmtr, gen, bg, testLogger())
	deltas := o.Turn(context.Background(), domain.TurnRequest{UserID: "u1", SessionID: "", UserText: "hi"})

	var got []domain.GenerateDelta
	for d := range deltas {
		got = append(got, d)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one terminal delta, got %d: %+v", len(got), got)
	}
	if !got[0].Done || got[0].Err == nil {
		t.Fatalf("expected a single done-with-error delta, got %+v", got[0])
	}
	if !domain.Is(got[0].Err, domain.KindInvariant) {
		t.Fatalf("expected KindInvariant, got %v", got[0].Err)
	}
	if len(store.snapshot()) != 0 {
		t.Fatalf("expected no background ingestion for a rejected turn, got %+v", store.snapshot())
	}
}

func TestTurnSkipsAssistantIngestionWhenGenerationProducesNoText(t *testing.T) {
	retr := retrieval.New(fakeEmbedder{}, &recordingStore{}, retrieval.Config{
		DocK: 5, MsgK: 5, GlobalK: 5, Threshold: 0, GlobalMinQuality: 0, Deadline: time.Second,
	}, testLogger())
	fmtr := format.New(0)
	provider := &scriptedProvider{deltas: []domain.GenerateDelta{{Done: true}}}
	gen := generation.New(provider, nil, 6000, nil, testLogger())
	store := &recordingStore{}
	bg := background.New(fakeEmbedder{}, store, testLogger())

	o := New(retr, fmtr, gen, bg, testLogger())
	for range o.Turn(context.Background(), domain.TurnRequest{UserID: "u1", SessionID: "s1", UserText: "hi"}) {
	}

	waitFor(t, time.Second, func() bool { return len(store.snapshot()) == 1 })
	if store.snapshot()[0].Role != domain.RoleUser {
		t.Fatalf("expected only the user message persisted, got %+v", store.snapshot())
	}
}
