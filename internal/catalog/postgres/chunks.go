package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qdrant/go-client/qdrant"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

// CreateChunks persists chunk rows in a single batch and upserts their
// vectors into Qdrant, tagged with collection_id so NearestChunks can scope
// its search. Per §4.4 atomicity, the caller (C4 Ingestion Pipeline) is
// responsible for calling DeleteChunksForDocument to roll back a partial
// write if a later stage of the same job fails; CreateChunks itself either
// writes every chunk passed to it or returns an error having written none of
// the Qdrant points (the Postgres batch runs first so a Postgres failure
// never leaves orphaned vectors).
func (s *Store) CreateChunks(ctx context.Context, documentID uuid.UUID, chunks []*catalog.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document for chunk insert: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, chunk_index, text, token_count, start_char, end_char,
				chunk_method, has_overlap, oversize, header)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, documentID, c.ChunkIndex, c.Text, c.TokenCount, c.StartChar, c.EndChar,
			c.Meta.ChunkMethod, c.Meta.HasOverlap, c.Meta.Oversize, c.Meta.Header)
	}

	results := s.pool.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing chunk batch: %w", err)
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID.String()),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: map[string]*qdrant.Value{
				"collection_id": qdrant.NewValueString(doc.CollectionID.String()),
				"document_id":   qdrant.NewValueString(documentID.String()),
			},
		})
	}

	if _, err := s.vectors.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collName,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}

	return nil
}

func (s *Store) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*catalog.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, start_char, end_char,
			chunk_method, has_overlap, oversize, header
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (s *Store) GetChunksByIDs(ctx context.Context, ids []uuid.UUID) ([]*catalog.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, text, token_count, start_char, end_char,
			chunk_method, has_overlap, oversize, header
		FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing chunks by id: %w", err)
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (s *Store) GetAllChunksInCollection(ctx context.Context, collectionID uuid.UUID) ([]*catalog.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.text, c.token_count, c.start_char, c.end_char,
			c.chunk_method, c.has_overlap, c.oversize, c.header
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.collection_id = $1
		ORDER BY c.document_id, c.chunk_index`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("listing collection chunks: %w", err)
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]*catalog.Chunk, error) {
	var out []*catalog.Chunk
	for rows.Next() {
		var c catalog.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.TokenCount, &c.StartChar, &c.EndChar,
			&c.Meta.ChunkMethod, &c.Meta.HasOverlap, &c.Meta.Oversize, &c.Meta.Header); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteChunksForDocument removes both the relational rows and the Qdrant
// points for a document. Used for administrative delete and for the
// pipeline's rollback-on-failure path (§4.4).
func (s *Store) DeleteChunksForDocument(ctx context.Context, documentID uuid.UUID) error {
	rows, err := s.pool.Query(ctx, `SELECT id FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("listing chunk ids to delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(ids) > 0 {
		pointIDs := make([]*qdrant.PointId, len(ids))
		for i, id := range ids {
			pointIDs[i] = qdrant.NewIDUUID(id)
		}
		if _, err := s.vectors.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collName,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		}); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting chunk rows: %w", err)
	}
	return nil
}

// NearestChunks implements C1's collection-scoped ANN search (§4.1).
func (s *Store) NearestChunks(ctx context.Context, collectionID uuid.UUID, queryVector []float32, k int) ([]catalog.ScoredChunk, error) {
	results, err := s.vectors.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("collection_id", collectionID.String()),
			},
		},
		Limit:       qdrant.PtrOf(uint64(k)),
		WithPayload: qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	out := make([]catalog.ScoredChunk, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.Id.GetUuid())
		if err != nil {
			continue
		}
		out = append(out, catalog.ScoredChunk{ChunkID: id, Score: r.Score})
	}
	// Qdrant already returns results ordered by descending similarity;
	// ascending-chunk_id tie-breaking for exact ties is handled by the
	// caller (C7), which re-sorts the fused set deterministically.
	return out, nil
}
