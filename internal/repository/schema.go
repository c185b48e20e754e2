package repository

import (
	"context"
	"fmt"
	"strings"

	"agro-search/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgvector's hnsw index covers vector columns up to this many dimensions
const maxIndexedDimensions = 2000

func schemaStatements(dimensions int) []string {
	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = "'" + string(c) + "'"
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL CHECK (category IN (%s)),
	source TEXT,
	embedding vector(%d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, knowledgeTable, strings.Join(categories, ", "), dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_category_idx ON %s (category)`, knowledgeTable, knowledgeTable),
	}

	if dimensions <= maxIndexedDimensions {
		statements = append(statements, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
			knowledgeTable, knowledgeTable,
		))
	}

	return statements
}

// Migrate creates the pgvector extension and the articles table with a
// fixed-size embedding column, so rows of another dimensionality are rejected
// by the database itself.
func Migrate(ctx context.Context, db *pgxpool.Pool, dimensions int, logger *zap.Logger) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions %d", dimensions)
	}

	conn, err := db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	for _, stmt := range schemaStatements(dimensions) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	if dimensions > maxIndexedDimensions {
		logger.Warn("Embedding column too wide for an hnsw index, searches will scan sequentially",
			zap.Int("dimensions", dimensions),
			zap.Int("max_indexed", maxIndexedDimensions),
		)
	}

	logger.Info("Schema is up to date", zap.String("table", knowledgeTable), zap.Int("dimensions", dimensions))
	return nil
}
