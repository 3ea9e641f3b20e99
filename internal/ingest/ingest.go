// Package ingest implements C3: turning an uploaded asset's raw bytes into
// persisted, embedded DocumentChunk rows. Grounded on the teacher's
// internal/document Service — same buffered-channel job queue and fixed
// worker pool — generalized from langchaingo's one-call AddDocuments to the
// extract/normalize/chunk/embed/persist pipeline spec.md §4.3 specifies.
package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/northfieldai/ragcore/internal/domain"
)

// Status mirrors the teacher's document.Status lifecycle, tracked per
// asset by whatever StatusSink the caller wires in (spec.md §4.3 says the
// ingestor "logs and records asset status" without naming a storage shape).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// StatusSink receives lifecycle updates for an ingested asset. Optional:
// Service works with a nil sink, it just won't report progress anywhere.
type StatusSink interface {
	UpdateStatus(ctx context.Context, assetID string, status Status, chunksWritten int)
}

// Result is returned by Ingest.
type Result struct {
	ChunksWritten int
}

const workerCount = 4

type job struct {
	ctx          context.Context
	assetID      string
	userID       string
	projectID    string
	fileBytes    []byte
	filename     string
	documentType domain.DocumentType
}

// Service runs the ingestion pipeline, either synchronously via Ingest or
// asynchronously via Enqueue, the way the teacher's document.Service offers
// both paths (direct call and a buffered job queue backing the worker pool).
type Service struct {
	embedder domain.Embedder
	store    domain.VectorStore
	chunker  *Chunker
	sink     StatusSink
	logger   *slog.Logger
	jobs     chan job
}

// New builds a Service and starts its fixed worker pool.
func New(embedder domain.Embedder, store domain.VectorStore, chunker *Chunker, sink StatusSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if chunker == nil {
		chunker = NewChunker(defaultTargetChars, defaultOverlapChars, defaultMaxChunks)
	}
	s := &Service{
		embedder: embedder,
		store:    store,
		chunker:  chunker,
		sink:     sink,
		logger:   logger.With("component", "ingest"),
		jobs:     make(chan job, 256),
	}
	for i := 0; i < workerCount; i++ {
		go s.worker(i)
	}
	return s
}

// Enqueue schedules ingestion of one asset without blocking the caller. If
// the queue is full the asset is dropped with a warning log; the caller is
// not told.
func (s *Service) Enqueue(ctx context.Context, assetID, userID, projectID string, fileBytes []byte, filename string, documentType domain.DocumentType) {
	j := job{
		ctx:          detachedContext(ctx),
		assetID:      assetID,
		userID:       userID,
		projectID:    projectID,
		fileBytes:    fileBytes,
		filename:     filename,
		documentType: documentType,
	}
	select {
	case s.jobs <- j:
	default:
		s.logger.Warn("ingestion queue full, asset dropped", "asset_id", assetID)
	}
}

func (s *Service) worker(id int) {
	s.logger.Info("ingestion worker started", "worker_id", id)
	for j := range s.jobs {
		if _, err := s.Ingest(j.ctx, j.assetID, j.userID, j.projectID, j.fileBytes, j.filename, j.documentType); err != nil {
			s.logger.Error("background ingestion failed", "asset_id", j.assetID, "error", err)
		}
	}
}

// Ingest runs extract → normalize → chunk → embed → persist for one asset,
// synchronously, matching spec.md §4.3's algorithm and failure semantics.
func (s *Service) Ingest(ctx context.Context, assetID, userID, projectID string, fileBytes []byte, filename string, documentType domain.DocumentType) (Result, error) {
	s.reportStatus(ctx, assetID, StatusProcessing, 0)

	text, err := extract(documentType, fileBytes)
	if err != nil {
		s.logger.Error("extraction failed", "asset_id", assetID, "error", err)
		s.reportStatus(ctx, assetID, StatusFailed, 0)
		return Result{}, err
	}

	normalized := normalize(text)
	candidates := s.chunker.Chunk(normalized)
	if len(candidates) == 0 {
		s.reportStatus(ctx, assetID, StatusReady, 0)
		return Result{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Error("embedding failed", "asset_id", assetID, "error", err)
		s.reportStatus(ctx, assetID, StatusFailed, 0)
		return Result{}, err
	}

	written := 0
	for i, candidate := range candidates {
		if i >= len(vectors) {
			break
		}
		metadata := map[string]string{"filename": filename}
		if candidate.Truncated {
			metadata["truncated"] = "true"
		}
		chunk := domain.DocumentChunk{
			ChunkID:      uuid.NewString(),
			AssetID:      assetID,
			UserID:       userID,
			ProjectID:    projectID,
			DocumentType: documentType,
			ChunkIndex:   candidate.Index,
			ChunkText:    candidate.Text,
			Embedding:    vectors[i],
			Metadata:     metadata,
		}
		if err := s.store.InsertDocumentChunk(ctx, chunk); err != nil {
			// Permanent failure after chunk N: spec.md §4.3 says return
			// partial success without rolling back prior inserts.
			s.logger.Error("persist chunk failed, returning partial result",
				"asset_id", assetID, "chunk_index", candidate.Index, "written", written, "error", err)
			s.reportStatus(ctx, assetID, StatusFailed, written)
			return Result{ChunksWritten: written}, err
		}
		written++
	}

	s.reportStatus(ctx, assetID, StatusReady, written)
	return Result{ChunksWritten: written}, nil
}

func (s *Service) reportStatus(ctx context.Context, assetID string, status Status, chunksWritten int) {
	if s.sink == nil {
		return
	}
	s.sink.UpdateStatus(ctx, assetID, status, chunksWritten)
}

// detachedContext strips the caller's cancellation but keeps values
// unneeded here: an enqueued job must survive an HTTP handler returning
// before a worker picks it up.
func detachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
