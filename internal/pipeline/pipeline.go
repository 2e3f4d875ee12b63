// Package pipeline implements C4, the five-stage ingestion pipeline: parse,
// dedup, chunk, embed, persist (§4.4).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/chunker"
	"github.com/knoguchi/ragdoc/internal/embedding"
	"github.com/knoguchi/ragdoc/internal/errs"
	"github.com/knoguchi/ragdoc/internal/parser"
)

// Progress thresholds after each stage completes (§4.4's stage table).
const (
	progressParse  = 10
	progressDedup  = 30
	progressChunk  = 50
	progressEmbed  = 80
	progressDone   = 100
	embedBatchSize = 32
)

// Source is the raw material handed to a job, exactly one field populated
// depending on the Document's source_type: a local file path for PDFs, a URL
// for web, an inline string for text/markdown.
type Source struct {
	Type       catalog.SourceType
	PDFPath    string
	URL        string
	InlineText string
	Markdown   bool // not read by the pipeline: header-aware chunking is chosen by Type == markdown
}

// Config carries the chunker/embedder defaults a Pipeline applies to every
// job unless the request overrides them.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline orchestrates one ingestion job end to end.
type Pipeline struct {
	store     catalog.Store
	tokenizer chunker.Tokenizer
	embedder  embedding.Embedder
	config    Config
}

// New builds a Pipeline.
func New(store catalog.Store, tokenizer chunker.Tokenizer, embedder embedding.Embedder, cfg Config) *Pipeline {
	return &Pipeline{store: store, tokenizer: tokenizer, embedder: embedder, config: cfg}
}

// Run executes a job's five stages, persisting progress after each one and
// rolling back partially-written chunks on failure (§4.4 atomicity).
func (p *Pipeline) Run(ctx context.Context, job *catalog.Job, title string, src Source) error {
	progress := 0
	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobProcessing, progress, ""); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}

	parsed, err := p.parse(ctx, src)
	if err != nil {
		return p.fail(ctx, job.ID, progress, errs.KindParse, err)
	}
	progress = progressParse
	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobProcessing, progress, ""); err != nil {
		return fmt.Errorf("updating progress after parse: %w", err)
	}

	if existing, err := p.store.FindDocumentByChecksum(ctx, parsed.Checksum); err == nil && existing != nil {
		return p.fail(ctx, job.ID, progress, errs.KindDuplicateDocument, fmt.Errorf("document with checksum %s already exists as %s", parsed.Checksum, existing.ID))
	} else if err != nil && !isNotFound(err) {
		return p.fail(ctx, job.ID, progress, errs.KindStorage, fmt.Errorf("checking for duplicate: %w", err))
	}
	progress = progressDedup
	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobProcessing, progress, ""); err != nil {
		return fmt.Errorf("updating progress after dedup: %w", err)
	}

	docTitle := title
	if docTitle == "" {
		docTitle = parsed.Title
	}
	doc := &catalog.Document{
		ID:           job.DocumentID,
		CollectionID: job.CollectionID,
		Title:        docTitle,
		SourceType:   src.Type,
		SourceURL:    src.URL,
		Checksum:     parsed.Checksum,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return p.fail(ctx, job.ID, progress, errs.KindStorage, fmt.Errorf("creating document: %w", err))
	}

	raw := p.chunk(parsed.Text, src)
	progress = progressChunk
	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobProcessing, progress, ""); err != nil {
		return fmt.Errorf("updating progress after chunk: %w", err)
	}

	chunks, err := p.embedChunks(ctx, doc.ID, raw)
	if err != nil {
		return p.fail(ctx, job.ID, progress, errs.KindEmbedding, err)
	}
	progress = progressEmbed
	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobProcessing, progress, ""); err != nil {
		return fmt.Errorf("updating progress after embed: %w", err)
	}

	if err := p.persistWithRetry(ctx, doc.ID, chunks); err != nil {
		_ = p.store.DeleteChunksForDocument(ctx, doc.ID)
		return p.fail(ctx, job.ID, progress, errs.KindStorage, fmt.Errorf("persisting chunks: %w", err))
	}
	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, len(chunks)); err != nil {
		_ = p.store.DeleteChunksForDocument(ctx, doc.ID)
		return p.fail(ctx, job.ID, progress, errs.KindStorage, fmt.Errorf("updating document chunk count: %w", err))
	}

	if err := p.store.UpdateJobProgress(ctx, job.ID, catalog.JobCompleted, progressDone, ""); err != nil {
		return fmt.Errorf("marking job completed: %w", err)
	}
	return nil
}

func (p *Pipeline) parse(ctx context.Context, src Source) (*parser.Result, error) {
	switch src.Type {
	case catalog.SourcePDF:
		return parser.ParsePDF(src.PDFPath)
	case catalog.SourceURL:
		return parser.ParseURL(ctx, src.URL)
	case catalog.SourceMarkdown:
		return parser.ParseMarkdown("", src.InlineText), nil
	case catalog.SourceText:
		return parser.ParseText("", src.InlineText), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}

func (p *Pipeline) chunk(text string, src Source) []chunker.RawChunk {
	c := chunker.New(p.tokenizer, chunker.Config{ChunkSize: p.config.ChunkSize, ChunkOverlap: p.config.ChunkOverlap})
	if src.Type == catalog.SourceMarkdown {
		return c.ChunkMarkdown(text)
	}
	return c.Chunk(text)
}

func (p *Pipeline) embedChunks(ctx context.Context, documentID uuid.UUID, raw []chunker.RawChunk) ([]*catalog.Chunk, error) {
	texts := make([]string, len(raw))
	for i, rc := range raw {
		texts[i] = rc.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			// §7: EmbeddingError gets a single retry after 1s before the job
			// is marked failed.
			time.Sleep(time.Second)
			batch, err = p.embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
			}
		}
		vectors = append(vectors, batch...)
	}

	chunks := make([]*catalog.Chunk, len(raw))
	for i, rc := range raw {
		chunks[i] = &catalog.Chunk{
			ID:         uuid.New(),
			DocumentID: documentID,
			ChunkIndex: rc.ChunkIndex,
			Text:       rc.Text,
			TokenCount: rc.TokenCount,
			StartChar:  rc.StartChar,
			EndChar:    rc.EndChar,
			Embedding:  vectors[i],
			Meta:       rc.Meta,
		}
	}
	return chunks, nil
}

// persistWithRetry retries a transient storage failure up to 3 times with
// exponential backoff (§7: "StorageError (transient) ... retry 3x
// exponential"), so CreateChunks is attempted at most 4 times.
func (p *Pipeline) persistWithRetry(ctx context.Context, documentID uuid.UUID, chunks []*catalog.Chunk) error {
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 0; attempt < 4; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = p.store.CreateChunks(ctx, documentID, chunks); err == nil {
			return nil
		}
	}
	return err
}

func (p *Pipeline) fail(ctx context.Context, jobID uuid.UUID, lastProgress int, kind errs.Kind, cause error) error {
	wrapped := errs.New(kind, cause)
	_ = p.store.UpdateJobProgress(ctx, jobID, catalog.JobFailed, lastProgress, wrapped.Error())
	return wrapped
}

func isNotFound(err error) bool {
	kind, ok := errs.KindOf(err)
	return ok && kind == errs.KindNotFound
}
