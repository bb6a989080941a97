package storage

import (
	"context"
	"fmt"
)

const schema = `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS libraries (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		root_path   TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS assets (
		id              TEXT PRIMARY KEY,
		library_id      TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
		file_name       TEXT NOT NULL,
		original_name   TEXT NOT NULL,
		relative_path   TEXT NOT NULL,
		file_type       TEXT NOT NULL,
		mime_type       TEXT NOT NULL,
		file_size       BIGINT NOT NULL DEFAULT 0,
		file_hash       TEXT NOT NULL,
		width           INTEGER,
		height          INTEGER,
		duration_ms     BIGINT,
		description     TEXT NOT NULL DEFAULT '',
		ai_description  TEXT NOT NULL DEFAULT '',
		thumbnail_path  TEXT,
		folder_path     TEXT NOT NULL DEFAULT '/',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		search_vector   tsvector GENERATED ALWAYS AS (
			to_tsvector('simple'::regconfig, file_name || ' ' || description || ' ' || ai_description)
		) STORED,
		UNIQUE (library_id, relative_path)
	);

	CREATE INDEX IF NOT EXISTS assets_library_folder_idx ON assets (library_id, folder_path);
	CREATE INDEX IF NOT EXISTS assets_hash_idx ON assets (file_hash);
	CREATE INDEX IF NOT EXISTS assets_search_idx ON assets USING gin (search_vector);

	CREATE TABLE IF NOT EXISTS tags (
		id          TEXT PRIMARY KEY,
		library_id  TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		color       TEXT NOT NULL DEFAULT '#808080',
		category    TEXT NOT NULL DEFAULT '',
		is_ai       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (library_id, name)
	);

	CREATE TABLE IF NOT EXISTS asset_tags (
		asset_id    TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		tag_id      TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (asset_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS asset_tags_tag_idx ON asset_tags (tag_id);

	-- vector holds the exact little-endian float32 bytes; embedding mirrors it
	-- for pgvector distance queries.
	CREATE TABLE IF NOT EXISTS embeddings (
		asset_id    TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		model       TEXT NOT NULL,
		vector      BYTEA NOT NULL,
		embedding   vector,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (asset_id, model)
	);

	CREATE TABLE IF NOT EXISTS ai_config (
		id               TEXT PRIMARY KEY,
		provider_name    TEXT NOT NULL,
		api_endpoint     TEXT NOT NULL DEFAULT '',
		api_key          TEXT NOT NULL DEFAULT '',
		model_id         TEXT NOT NULL DEFAULT '',
		embedding_model  TEXT NOT NULL DEFAULT '',
		is_active        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
