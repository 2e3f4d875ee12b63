package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/errs"
)

func (s *Store) CreateCollection(ctx context.Context, c *catalog.Collection) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collections (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, id uuid.UUID) (*catalog.Collection, error) {
	return s.scanCollection(ctx, `
		SELECT c.id, c.name, c.description, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
		FROM collections c WHERE c.id = $1`, id)
}

func (s *Store) GetCollectionByName(ctx context.Context, name string) (*catalog.Collection, error) {
	return s.scanCollection(ctx, `
		SELECT c.id, c.name, c.description, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
		FROM collections c WHERE c.name = $1`, name)
}

func (s *Store) scanCollection(ctx context.Context, query string, arg any) (*catalog.Collection, error) {
	var c catalog.Collection
	err := s.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.DocumentCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]*catalog.Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.description, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
		FROM collections c ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Collection
	for rows.Next() {
		var c catalog.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.DocumentCount); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
