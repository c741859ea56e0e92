package sqlite

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// FetchAllEmbeddings returns every embedding in its text form
func (s *Store) FetchAllEmbeddings(ctx context.Context) ([]database.RawEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT embedding_id, user_id, face_vector FROM embeddings ORDER BY embedding_id`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.RawEmbedding
	for rows.Next() {
		var e database.RawEmbedding
		var text string
		if err := rows.Scan(&e.ID, &e.UserID, &text); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Raw = []byte(text)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// CountEmbeddings returns the total number of stored embeddings
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// EmbeddingsForUser returns the embeddings of one user, oldest first.
// Rows that do not parse are returned with a nil vector.
func (s *Store) EmbeddingsForUser(ctx context.Context, userID int64) ([]database.StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT embedding_id, user_id, face_vector, image_path, model, created_at
		FROM embeddings WHERE user_id = ? ORDER BY embedding_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmbedding
	for rows.Next() {
		var e database.StoredEmbedding
		var text string
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &text, &e.ImagePath, &e.Model, &created); err != nil {
			return nil, fmt.Errorf("scan user embedding: %w", err)
		}
		var vec pgvector.Vector
		if len(text) >= 2 && text[0] == '[' && text[len(text)-1] == ']' {
			if err := vec.Parse(text); err == nil {
				e.Vector = vec.Slice()
			}
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user embeddings: %w", err)
	}
	return out, nil
}

// SaveEmbedding appends an embedding in pgvector text form
func (s *Store) SaveEmbedding(ctx context.Context, emb *database.StoredEmbedding) error {
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (user_id, face_vector, image_path, model, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, emb.UserID, string(candidates.Encode(emb.Vector)), emb.ImagePath, emb.Model, millis(created))
	if err != nil {
		if isForeignKey(err) {
			return fmt.Errorf("user %d: %w", emb.UserID, database.ErrNotFound)
		}
		return fmt.Errorf("insert embedding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	emb.ID = id
	emb.CreatedAt = fromMillis(millis(created))
	return nil
}
