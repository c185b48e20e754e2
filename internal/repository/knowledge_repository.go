package repository

import (
	"context"
	"errors"
	"fmt"

	"agro-search/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

const knowledgeTable = "knowledge_articles"

// cosine similarity against the bound query vector
const similarityExpr = "1 - (embedding <=> ?::vector)"

var ErrArticleNotFound = errors.New("knowledge article not found")

// embedding is read as text and parsed so no pgx type registration is needed
var articleColumns = []string{
	"id", "title", "content", "category", "source", "embedding::text", "created_at", "updated_at",
}

type KnowledgeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewKnowledgeRepository(db *pgxpool.Pool, logger *zap.Logger) *KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		logger: logger,
	}
}

// withConn scopes a pooled connection to fn and always releases it.
func (r *KnowledgeRepository) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(conn)
}

func buildSearchQuery(embedding []float32, threshold float64, limit int) (string, []interface{}, error) {
	vector := pgvector.NewVector(embedding)

	return squirrel.Select("id", "title", "content", "category", "source").
		Column(squirrel.Expr(similarityExpr+" AS similarity", vector)).
		From(knowledgeTable).
		Where("embedding IS NOT NULL").
		Where(squirrel.Expr(similarityExpr+" > ?", vector, threshold)).
		// distance ordering lets a cosine index serve the scan; ties are store-defined
		OrderByClause("embedding <=> ?::vector", vector).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// SearchSimilar returns up to limit articles whose cosine similarity to
// embedding exceeds threshold, most similar first.
func (r *KnowledgeRepository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.ScoredArticle, error) {
	if limit < 1 {
		return []*models.ScoredArticle{}, nil
	}

	sql, args, err := buildSearchQuery(embedding, threshold, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*models.ScoredArticle, 0, limit)
	err = r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a models.ScoredArticle
			if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &a.Source, &a.Similarity); err != nil {
				return err
			}
			results = append(results, &a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

func buildInsertQuery(a *models.KnowledgeArticle) (string, []interface{}, error) {
	var embedding interface{}
	if len(a.Embedding) > 0 {
		embedding = pgvector.NewVector(a.Embedding)
	}

	return squirrel.Insert(knowledgeTable).
		Columns("title", "content", "category", "source", "embedding").
		Values(a.Title, a.Content, string(a.Category), a.Source, embedding).
		Suffix("RETURNING id, created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// Create inserts the article and fills in its id and timestamps.
func (r *KnowledgeRepository) Create(ctx context.Context, a *models.KnowledgeArticle) error {
	sql, args, err := buildInsertQuery(a)
	if err != nil {
		return err
	}

	return r.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	})
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id int64) (*models.KnowledgeArticle, error) {
	sql, args, err := squirrel.Select(articleColumns...).
		From(knowledgeTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var article *models.KnowledgeArticle
	err = r.withConn(ctx, func(conn *pgxpool.Conn) error {
		a, err := scanArticle(conn.QueryRow(ctx, sql, args...))
		article = a
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}

	return article, nil
}

func buildNeedingEmbeddingQuery(dimensions int, afterID int64, limit int) (string, []interface{}, error) {
	return squirrel.Select(articleColumns...).
		From(knowledgeTable).
		Where(squirrel.Or{
			squirrel.Expr("embedding IS NULL"),
			squirrel.Expr("vector_dims(embedding) <> ?", dimensions),
		}).
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// ListNeedingEmbedding pages through articles that have no embedding or one
// whose length differs from dimensions, in id order after afterID.
func (r *KnowledgeRepository) ListNeedingEmbedding(ctx context.Context, dimensions int, afterID int64, limit int) ([]*models.KnowledgeArticle, error) {
	sql, args, err := buildNeedingEmbeddingQuery(dimensions, afterID, limit)
	if err != nil {
		return nil, err
	}

	var articles []*models.KnowledgeArticle
	err = r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanArticle(rows)
			if err != nil {
				return err
			}
			articles = append(articles, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return articles, nil
}

func (r *KnowledgeRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	sql, args, err := squirrel.Update(knowledgeTable).
		Set("embedding", pgvector.NewVector(embedding)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	return r.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrArticleNotFound
		}
		return nil
	})
}

// Ping checks that a connection can be acquired and used.
func (r *KnowledgeRepository) Ping(ctx context.Context) error {
	return r.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.Ping(ctx)
	})
}

func scanArticle(row pgx.Row) (*models.KnowledgeArticle, error) {
	var (
		a         models.KnowledgeArticle
		embedding *string
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &a.Source, &embedding, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	if embedding != nil {
		var v pgvector.Vector
		if err := v.Scan(*embedding); err != nil {
			return nil, fmt.Errorf("failed to parse embedding of article %d: %w", a.ID, err)
		}
		a.Embedding = v.Slice()
	}

	return &a, nil
}
