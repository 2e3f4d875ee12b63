package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

func (s *Store) CreateQuery(ctx context.Context, q *catalog.Query) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queries (id, collection_id, question, answer, citations, latency_ms, model, retrieval_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.CollectionID, q.Question, q.Answer, q.Citations, q.LatencyMs, q.Model, q.RetrievalScore, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating query: %w", err)
	}
	return nil
}

func (s *Store) CreateQueryChunks(ctx context.Context, qcs []*catalog.QueryChunk) error {
	if len(qcs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, qc := range qcs {
		batch.Queue(`
			INSERT INTO query_chunks (query_id, chunk_id, rank, score) VALUES ($1, $2, $3, $4)`,
			qc.QueryID, qc.ChunkID, qc.Rank, qc.Score)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range qcs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting query chunk: %w", err)
		}
	}
	return nil
}

// UpsertFeedback implements the at-most-one-per-query upsert semantics (§3).
func (s *Store) UpsertFeedback(ctx context.Context, f *catalog.Feedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback (id, query_id, value, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (query_id) DO UPDATE SET value = $3, note = $4`,
		f.ID, f.QueryID, f.Value, f.Note, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting feedback: %w", err)
	}
	return nil
}

// compile-time assertion that Store implements catalog.Store in full.
var _ catalog.Store = (*Store)(nil)
