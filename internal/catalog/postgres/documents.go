package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/errs"
)

func (s *Store) CreateDocument(ctx context.Context, d *catalog.Document) error {
	metaJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, collection_id, title, source_type, source_url, checksum, metadata, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.CollectionID, d.Title, d.SourceType, d.SourceURL, d.Checksum, metaJSON, d.ChunkCount, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*catalog.Document, error) {
	return s.scanDocument(ctx, `
		SELECT id, collection_id, title, source_type, source_url, checksum, metadata, chunk_count, created_at
		FROM documents WHERE id = $1`, id)
}

func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum string) (*catalog.Document, error) {
	if checksum == "" {
		return nil, errs.ErrNotFound
	}
	return s.scanDocument(ctx, `
		SELECT id, collection_id, title, source_type, source_url, checksum, metadata, chunk_count, created_at
		FROM documents WHERE checksum = $1`, checksum)
}

func (s *Store) scanDocument(ctx context.Context, query string, arg any) (*catalog.Document, error) {
	var d catalog.Document
	var metaJSON []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.CollectionID, &d.Title, &d.SourceType, &d.SourceURL, &d.Checksum, &metaJSON, &d.ChunkCount, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &d, nil
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, chunkCount int) error {
	result, err := s.pool.Exec(ctx, `UPDATE documents SET chunk_count = $2 WHERE id = $1`, id, chunkCount)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.DeleteChunksForDocument(ctx, id); err != nil {
		return err
	}
	result, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
