// Package domain holds the shared data model and contracts that every other
// package in ragcore depends on: the three persisted relations, the
// in-memory retrieval types, and the interfaces components use to talk to
// each other without importing one another's packages directly.
package domain

import "time"

// EmbeddingDim is the fixed dimension every stored and query vector must
// have. Validated at startup in internal/config.
const EmbeddingDim = 1536

// DocumentType enumerates the formats the ingestor is told about. Not every
// value has an extractor wired (see internal/ingest).
type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeDOCX DocumentType = "docx"
	DocumentTypeTXT  DocumentType = "txt"
	DocumentTypeMD   DocumentType = "md"
)

// DocumentChunk is one embedded slice of an uploaded asset.
//
// Invariants: every chunk belongs to exactly one asset; (AssetID, ChunkIndex)
// is unique; len(Embedding) == EmbeddingDim; deleting an asset deletes all
// its chunks.
type DocumentChunk struct {
	ChunkID      string
	AssetID      string
	UserID       string
	ProjectID    string // empty string means "no project"
	DocumentType DocumentType
	ChunkIndex   int
	ChunkText    string
	Embedding    []float32
	Metadata     map[string]string
	CreatedAt    time.Time
}

// MessageRole is the speaker of a persisted conversational turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageEmbedding is the embedded form of one chat turn.
//
// Invariants: SessionID is always populated; one embedding per message;
// len(Embedding) == EmbeddingDim.
type MessageEmbedding struct {
	EmbeddingID    string
	MessageID      string
	UserID         string
	ProjectID      string
	SessionID      string
	Role           MessageRole
	ContentSnippet string
	Embedding      []float32
	Metadata       map[string]string
	CreatedAt      time.Time
}

// GlobalKnowledge is a tenant-agnostic, read-only curated pattern.
//
// Invariant: QualityScore defaults to 0.7 when unset by the seeding process.
type GlobalKnowledge struct {
	KnowledgeID  string
	Category     string
	PatternType  string
	ExampleText  string
	Description  string
	QualityScore float64
	Tags         []string
	Embedding    []float32
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultQualityScore is applied by seeders; the retrieval path never
// assumes a record lacking an explicit score — the adapter always returns
// the persisted value.
const DefaultQualityScore = 0.7

// HitOrigin is the closed sum type tagging where a RetrievalHit came from.
type HitOrigin string

const (
	OriginMessage  HitOrigin = "message"
	OriginDocument HitOrigin = "document"
	OriginGlobal   HitOrigin = "global"
)

// RetrievalHit is an in-memory composite describing one ranked result.
// Owned by the retrieval orchestrator for the duration of a single turn;
// never persisted.
type RetrievalHit struct {
	Origin     HitOrigin
	Similarity float64 // cosine similarity, 1 - cosine_distance, in [0,1]
	Text       string
	Source     string // filename | role | category, used by the formatter
	Metadata   map[string]string
	ChunkIndex int       // tie-break: lower first, meaningful for documents only
	CreatedAt  time.Time // tie-break: earlier first
	SessionID  string    // populated for OriginMessage hits, used by the isolation audit
	UserID     string
}

// ContextBlock is the ordered, in-memory assembly of a turn's retrieved
// material. Owned by the context formatter.
type ContextBlock struct {
	Documents     []RetrievalHit
	PriorMessages []RetrievalHit
	GlobalPatterns []RetrievalHit
}

// Empty reports whether every section is empty.
func (c ContextBlock) Empty() bool {
	return len(c.Documents) == 0 && len(c.PriorMessages) == 0 && len(c.GlobalPatterns) == 0
}

// ChatMessage is the minimal message shape threaded through expansion,
// retrieval bias, and generation history capping.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// TurnRequest is the caller-supplied input for a single turn, matching
// spec.md §2's data flow description.
type TurnRequest struct {
	UserID          string
	SessionID       string
	ProjectID       string
	UserText        string
	History         []ChatMessage
	EnableWebSearch *bool // nil means "not explicitly set"
}
