package postgres

import (
	"context"
	"fmt"
)

// ensureSchema creates the relational tables for every §3 entity if they do
// not already exist, mirroring the original Python service's
// database_init.py which ran a one-shot "create extension + create all
// tables" step at startup (§6: "Schema is created on startup if absent").
// The embedding vector itself is not a column here: it lives in the Qdrant
// collection, addressed by chunk id (§4.1), so there is no hard-coded
// dimension to parameterize on the relational side (§9 design note).
func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(id),
			title TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			chunk_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_checksum_key
			ON documents (checksum) WHERE checksum <> ''`,
		`CREATE INDEX IF NOT EXISTS documents_collection_id_idx ON documents (collection_id)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id),
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			start_char INTEGER NOT NULL,
			end_char INTEGER NOT NULL,
			chunk_method TEXT NOT NULL,
			has_overlap BOOLEAN NOT NULL DEFAULT false,
			oversize BOOLEAN NOT NULL DEFAULT false,
			header TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS chunks_document_id_chunk_index_key
			ON chunks (document_id, chunk_index)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(id),
			document_id UUID NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(id),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			citations JSONB NOT NULL DEFAULT '[]',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			model TEXT NOT NULL DEFAULT '',
			retrieval_score REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS query_chunks (
			query_id UUID NOT NULL REFERENCES queries(id),
			chunk_id UUID NOT NULL,
			rank INTEGER NOT NULL,
			score REAL NOT NULL,
			PRIMARY KEY (query_id, chunk_id)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id UUID PRIMARY KEY,
			query_id UUID NOT NULL UNIQUE REFERENCES queries(id),
			value INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
