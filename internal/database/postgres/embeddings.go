package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EmbeddingRepository provides PostgreSQL-backed face embedding storage
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new embedding repository
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// FetchAllEmbeddings returns every embedding in its text form. Rows are not
// parsed here so that one malformed vector cannot fail the whole fetch.
func (r *EmbeddingRepository) FetchAllEmbeddings(ctx context.Context) ([]database.RawEmbedding, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT embedding_id, user_id, face_vector::text
		FROM embeddings
		ORDER BY embedding_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.RawEmbedding
	for rows.Next() {
		var e database.RawEmbedding
		if err := rows.Scan(&e.ID, &e.UserID, &e.Raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// CountEmbeddings returns the total number of stored embeddings
func (r *EmbeddingRepository) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// EmbeddingsForUser returns the embeddings of one user, oldest first
func (r *EmbeddingRepository) EmbeddingsForUser(ctx context.Context, userID int64) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT embedding_id, user_id, face_vector, image_path, model, created_at
		FROM embeddings
		WHERE user_id = $1
		ORDER BY embedding_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmbedding
	for rows.Next() {
		var e database.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.UserID, &vec, &e.ImagePath, &e.Model, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user embedding: %w", err)
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user embeddings: %w", err)
	}
	return out, nil
}

// SaveEmbedding appends an embedding
func (r *EmbeddingRepository) SaveEmbedding(ctx context.Context, emb *database.StoredEmbedding) error {
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO embeddings (user_id, face_vector, image_path, model)
		VALUES ($1, $2, $3, $4)
		RETURNING embedding_id, created_at
	`, emb.UserID, pgvector.NewVector(emb.Vector), emb.ImagePath, emb.Model).Scan(&emb.ID, &emb.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %d: %w", emb.UserID, database.ErrNotFound)
		}
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}
