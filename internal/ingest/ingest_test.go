package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/northfieldai/ragcore/internal/domain"
)

type fakeEmbedder struct {
	batchErr error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, domain.EmbeddingDim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, domain.EmbeddingDim)
	}
	return vecs, nil
}

type fakeStore struct {
	domain.VectorStore
	failAfter int
	inserted  []domain.DocumentChunk
}

func (f *fakeStore) InsertDocumentChunk(ctx context.Context, c domain.DocumentChunk) error {
	if f.failAfter >= 0 && len(f.inserted) >= f.failAfter {
		return errors.New("disk full")
	}
	f.inserted = append(f.inserted, c)
	return nil
}

type fakeSink struct {
	calls []Status
}

func (f *fakeSink) UpdateStatus(ctx context.Context, assetID string, status Status, chunksWritten int) {
	f.calls = append(f.calls, status)
}

func TestIngestWritesChunksInOrderAndMarksReady(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{failAfter: -1}
	sink := &fakeSink{}
	svc := New(embedder, store, NewChunker(100, 10, 50), sink, nil)

	text := strings.Repeat("sentence one here. sentence two here. ", 50)
	result, err := svc.Ingest(context.Background(), "asset-1", "user-1", "", []byte(text), "notes.txt", domain.DocumentTypeTXT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ChunksWritten == 0 {
		t.Fatal("expected at least one chunk written")
	}
	if len(store.inserted) != result.ChunksWritten {
		t.Fatalf("expected store to have %d chunks, got %d", result.ChunksWritten, len(store.inserted))
	}
	for i, c := range store.inserted {
		if c.ChunkIndex != i {
			t.Fatalf("expected chunks persisted in index order, got index %d at position %d", c.ChunkIndex, i)
		}
	}
	if sink.calls[len(sink.calls)-1] != StatusReady {
		t.Fatalf("expected final status Ready, got %v", sink.calls)
	}
}

func TestIngestReturnsPartialResultOnPersistFailure(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{failAfter: 2}
	sink := &fakeSink{}
	svc := New(embedder, store, NewChunker(100, 10, 50), sink, nil)

	text := strings.Repeat("sentence one here. sentence two here. ", 50)
	result, err := svc.Ingest(context.Background(), "asset-2", "user-1", "", []byte(text), "notes.txt", domain.DocumentTypeTXT)
	if err == nil {
		t.Fatal("expected an error surfaced from the persistence failure")
	}
	if result.ChunksWritten != 2 {
		t.Fatalf("expected partial result of 2 chunks written, got %d", result.ChunksWritten)
	}
	if sink.calls[len(sink.calls)-1] != StatusFailed {
		t.Fatalf("expected final status Failed, got %v", sink.calls)
	}
}

func TestIngestUnsupportedFormatWritesNoChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{failAfter: -1}
	sink := &fakeSink{}
	svc := New(embedder, store, nil, sink, nil)

	result, err := svc.Ingest(context.Background(), "asset-3", "user-1", "", []byte("binary garbage"), "file.pdf", domain.DocumentTypePDF)
	if err == nil {
		t.Fatal("expected UnsupportedFormat error")
	}
	if !domain.Is(err, domain.KindUnsupportedFormat) {
		t.Fatalf("expected KindUnsupportedFormat, got %v", err)
	}
	if result.ChunksWritten != 0 {
		t.Fatalf("expected 0 chunks written, got %d", result.ChunksWritten)
	}
	if len(store.inserted) != 0 {
		t.Fatal("expected no chunks reached the store")
	}
}

func TestIngestEmbeddingFailureAbortsWithNoWrites(t *testing.T) {
	embedder := &fakeEmbedder{batchErr: errors.New("provider down")}
	store := &fakeStore{failAfter: -1}
	sink := &fakeSink{}
	svc := New(embedder, store, NewChunker(100, 10, 50), sink, nil)

	_, err := svc.Ingest(context.Background(), "asset-4", "user-1", "", []byte("some short text here."), "notes.txt", domain.DocumentTypeTXT)
	if err == nil {
		t.Fatal("expected embedding failure to abort ingestion")
	}
	if len(store.inserted) != 0 {
		t.Fatal("expected no chunks persisted on embedding failure")
	}
}
