// Package dbstore implements the relational side of the catalog pipeline
// (C4, C9-C14) against Postgres: the staging ledger, the entity appliers,
// the feature/embedding-source builders, and the candidate loader the
// recommender reads from.
//
// Grounded on platform/ucl-core/internal/connector/jdbc/postgres.go for
// pool construction and platform/store-core/pkg/vectorstore/pgvector_store.go
// for the vector-column table shape.
package dbstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns the relational connection pool and the `apl` schema's DDL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("dbstore: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dbstore: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS apl;

CREATE TABLE IF NOT EXISTS apl.shops (
  id                 bigserial PRIMARY KEY,
  rakuten_shop_code  text NOT NULL UNIQUE,
  shop_name          text,
  shop_url           text,
  updated_at         timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.genres (
  id               bigserial PRIMARY KEY,
  rakuten_genre_id bigint NOT NULL UNIQUE,
  genre_name       text,
  genre_level      int,
  parent_id        bigint REFERENCES apl.genres(id),
  updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.tag_groups (
  id                   bigserial PRIMARY KEY,
  rakuten_tag_group_id bigint NOT NULL UNIQUE,
  tag_group_name       text,
  updated_at           timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.tags (
  id             bigserial PRIMARY KEY,
  rakuten_tag_id bigint NOT NULL UNIQUE,
  tag_group_id   bigint REFERENCES apl.tag_groups(id),
  tag_name       text,
  parent_tag_id  bigint,
  updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.items (
  id                bigserial PRIMARY KEY,
  rakuten_item_code text NOT NULL UNIQUE,
  shop_id           bigint REFERENCES apl.shops(id),
  genre_id          bigint REFERENCES apl.genres(id),
  item_name         text,
  catchcopy         text,
  caption           text,
  item_url          text,
  affiliate_url     text,
  is_active         boolean NOT NULL DEFAULT true,
  updated_at        timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.item_images (
  id          bigserial PRIMARY KEY,
  item_id     bigint NOT NULL REFERENCES apl.items(id),
  size        text NOT NULL CHECK (size IN ('small','medium')),
  url         text NOT NULL,
  sort_order  int NOT NULL
);
CREATE INDEX IF NOT EXISTS item_images_item_idx ON apl.item_images (item_id);

CREATE TABLE IF NOT EXISTS apl.item_tags (
  item_id bigint NOT NULL REFERENCES apl.items(id),
  tag_id  bigint NOT NULL REFERENCES apl.tags(id),
  PRIMARY KEY (item_id, tag_id)
);

CREATE TABLE IF NOT EXISTS apl.market_snapshots (
  item_id      bigint NOT NULL REFERENCES apl.items(id),
  collected_at timestamptz NOT NULL,
  price_yen    bigint,
  point_rate   numeric,
  availability text,
  PRIMARY KEY (item_id, collected_at)
);

CREATE TABLE IF NOT EXISTS apl.review_snapshots (
  item_id         bigint NOT NULL REFERENCES apl.items(id),
  collected_at    timestamptz NOT NULL,
  review_average  numeric,
  review_count    bigint,
  PRIMARY KEY (item_id, collected_at)
);

CREATE TABLE IF NOT EXISTS apl.rank_snapshots (
  rakuten_genre_id bigint NOT NULL,
  rakuten_item_code text NOT NULL,
  collected_at     timestamptz NOT NULL,
  title            text,
  last_build_date  timestamptz,
  rank             int,
  PRIMARY KEY (rakuten_genre_id, rakuten_item_code, collected_at)
);

CREATE TABLE IF NOT EXISTS apl.item_features (
  item_id           bigint PRIMARY KEY REFERENCES apl.items(id),
  price_yen         bigint,
  price_log         double precision,
  point_rate        numeric,
  availability      text,
  review_average    numeric,
  review_count      bigint,
  review_count_log  double precision,
  rank              int,
  popularity_score  double precision,
  genre_id          bigint,
  tag_ids           bigint[],
  features_version  text,
  feature_updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.embedding_sources (
  item_id        bigint PRIMARY KEY REFERENCES apl.items(id),
  source_version text NOT NULL,
  source_text    text NOT NULL,
  source_hash    text NOT NULL,
  updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.item_embeddings (
  item_id     bigint NOT NULL REFERENCES apl.items(id),
  model       text NOT NULL,
  embedding   vector(1536),
  source_hash text NOT NULL,
  updated_at  timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (item_id, model)
);

CREATE TABLE IF NOT EXISTS apl.target_genre_configs (
  rakuten_genre_id bigint PRIMARY KEY,
  is_enabled       boolean NOT NULL DEFAULT true,
  updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apl.staging_ledger (
  source          text NOT NULL,
  entity          text NOT NULL,
  source_id       text NOT NULL,
  content_hash    text NOT NULL,
  s3_key          text NOT NULL,
  etag            text,
  saved_at        timestamptz NOT NULL,
  applied_at      timestamptz,
  applied_version text,
  updated_at      timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (source, entity, source_id)
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}
