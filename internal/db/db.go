// Package db owns the Postgres connection, schema migration and the
// workspace/document repository.
package db

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*entsql.Driver, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}
	drv, err := entsql.Open(dialect.Postgres, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := drv.DB().PingContext(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	logrus.Debug("db: connected to postgres")
	return drv, nil
}

// Migrate creates the vector extension and any missing tables, columns and
// indexes. It is safe to run repeatedly.
func Migrate(ctx context.Context, drv *entsql.Driver, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions %d", dimensions)
	}
	log := logrus.WithField("dimensions", dimensions)

	if err := drv.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector", []any{}, nil); err != nil {
		return fmt.Errorf("failed creating vector extension: %w", err)
	}

	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("failed preparing migration: %w", err)
	}
	if err := m.Create(ctx, Tables(dimensions)...); err != nil {
		return fmt.Errorf("failed creating schema resources: %w", err)
	}

	hnsw := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_embedding_hnsw ON %s USING hnsw (embedding vector_cosine_ops)",
		ChunksTable, ChunksTable)
	if err := drv.Exec(ctx, hnsw, []any{}, nil); err != nil {
		return fmt.Errorf("failed creating vector index: %w", err)
	}

	log.Info("db: schema is up to date")
	return nil
}
