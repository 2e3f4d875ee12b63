// Package postgres implements the Catalog Store (C1) on top of PostgreSQL
// for relational entities and Qdrant for the dense nearest-neighbor index,
// per §4.1: "the vector index backing nearest_chunks may be a separate ANN
// service addressed by chunk id, as long as the two stay consistent."
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qdrant/go-client/qdrant"
)

// Store implements catalog.Store.
type Store struct {
	pool      *pgxpool.Pool
	vectors   *qdrant.Client
	collName  string
	dimension int
}

// New connects to Postgres and Qdrant, creates the relational schema if
// absent (§6), and ensures the Qdrant collection backing nearest_chunks
// exists with the given embedding dimension. dimension should come from the
// live embedding model (discovered at load, §4.3). It is used only when the
// Qdrant collection has to be created: a pre-existing collection is reused
// as is, and its vector size is not compared with dimension.
func New(ctx context.Context, databaseURL, qdrantGRPCAddr string, dimension int) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	host, port, err := splitHostPort(qdrantGRPCAddr)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parsing qdrant address: %w", err)
	}

	vectors, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	s := &Store{pool: pool, vectors: vectors, collName: "chunks", dimension: dimension}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	if err := s.ensureVectorCollection(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring vector collection: %w", err)
	}

	return s, nil
}

// Close releases the Postgres pool and the Qdrant client connection.
func (s *Store) Close() {
	_ = s.vectors.Close()
	s.pool.Close()
}

func (s *Store) ensureVectorCollection(ctx context.Context) error {
	exists, err := s.vectors.CollectionExists(ctx, s.collName)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return nil
	}
	return s.vectors.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
