// Package catalog defines the persistent entities of §3 and the store
// interface (C1) that the rest of the system depends on.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies how a Document's text was obtained.
type SourceType string

const (
	SourcePDF      SourceType = "pdf"
	SourceURL      SourceType = "url"
	SourceMarkdown SourceType = "markdown"
	SourceText     SourceType = "text"
)

// JobStatus is a Job's lifecycle state (§3, §4.5).
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ChunkMethod records which step of the chunking algorithm (§4.2) produced a
// chunk's boundary.
type ChunkMethod string

const (
	ChunkMethodParagraph ChunkMethod = "paragraph_split"
	ChunkMethodSentence  ChunkMethod = "sentence_split"
	ChunkMethodFinal     ChunkMethod = "final_chunk"
)

// ChunkMeta is the typed side-map for a chunk's metadata (§9: "dynamic dicts
// → tagged variants").
type ChunkMeta struct {
	ChunkMethod ChunkMethod `json:"chunk_method"`
	HasOverlap  bool        `json:"has_overlap"`
	Oversize    bool        `json:"oversize,omitempty"`
	Header      string      `json:"header,omitempty"`
}

// Collection is a named bag of documents (§3).
type Collection struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	DocumentCount int       `json:"document_count"`
}

// Document belongs to one Collection (§3).
type Document struct {
	ID           uuid.UUID         `json:"id"`
	CollectionID uuid.UUID         `json:"collection_id"`
	Title        string            `json:"title"`
	SourceType   SourceType        `json:"source_type"`
	SourceURL    string            `json:"source_url,omitempty"`
	Checksum     string            `json:"checksum"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ChunkCount   int               `json:"chunk_count"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Chunk belongs to one Document (§3).
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Meta       ChunkMeta `json:"meta_data"`
}

// Job tracks the lifecycle of one ingestion request (§3, §4.5).
type Job struct {
	ID           uuid.UUID  `json:"job_id"`
	CollectionID uuid.UUID  `json:"collection_id"`
	DocumentID   uuid.UUID  `json:"document_id"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Query is a recorded question with its generated answer (§3).
type Query struct {
	ID             uuid.UUID `json:"id"`
	CollectionID   uuid.UUID `json:"collection_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Citations      []byte    `json:"citations"` // JSON-encoded []Citation
	LatencyMs      int       `json:"latency_ms"`
	Model          string    `json:"model"`
	RetrievalScore float32   `json:"retrieval_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// QueryChunk records which chunk grounded a given rank of an answer (§3).
type QueryChunk struct {
	QueryID uuid.UUID `json:"query_id"`
	ChunkID uuid.UUID `json:"chunk_id"`
	Rank    int       `json:"rank"`
	Score   float32   `json:"score"`
}

// Feedback is at most one per Query (§3).
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	QueryID   uuid.UUID `json:"query_id"`
	Value     int       `json:"value"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredChunk is a chunk id paired with a similarity or relevance score, the
// common shape returned by nearest-neighbor and lexical search.
type ScoredChunk struct {
	ChunkID uuid.UUID
	Score   float32
}

// Store is the Catalog Store (C1): CRUD over every entity in §3 plus the
// two specialized operations find_document_by_checksum and nearest_chunks.
type Store interface {
	CreateCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, id uuid.UUID) (*Collection, error)
	GetCollectionByName(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)

	CreateDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	FindDocumentByChecksum(ctx context.Context, checksum string) (*Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, chunkCount int) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// CreateChunks persists chunks and their vectors as a single unit
	// (§4.4 atomicity); embeddings must already be populated.
	CreateChunks(ctx context.Context, documentID uuid.UUID, chunks []*Chunk) error
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*Chunk, error)
	GetChunksByIDs(ctx context.Context, ids []uuid.UUID) ([]*Chunk, error)
	GetAllChunksInCollection(ctx context.Context, collectionID uuid.UUID) ([]*Chunk, error)
	// DeleteChunksForDocument removes every chunk row and vector for a
	// document; used both by administrative delete and by the pipeline's
	// failure-rollback path (§4.4).
	DeleteChunksForDocument(ctx context.Context, documentID uuid.UUID) error

	// NearestChunks returns up to k chunks in collectionID ordered by
	// descending cosine similarity to queryVector (§4.1).
	NearestChunks(ctx context.Context, collectionID uuid.UUID, queryVector []float32, k int) ([]ScoredChunk, error)

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	// UpdateJobProgress sets status/progress/error atomically; callers must
	// only move progress forward (§4.5, invariant 4).
	UpdateJobProgress(ctx context.Context, id uuid.UUID, status JobStatus, progress int, errMsg string) error
	// SweepInterruptedJobs marks every pending/processing job failed with
	// error_message "interrupted" (§5 startup sweep). Returns the count
	// swept.
	SweepInterruptedJobs(ctx context.Context) (int, error)

	CreateQuery(ctx context.Context, q *Query) error
	CreateQueryChunks(ctx context.Context, qcs []*QueryChunk) error

	UpsertFeedback(ctx context.Context, f *Feedback) error
}
