// Package postgres stores users, embeddings, courses and attendance in
// PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool opens and pings a connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" && cfg.Host == "" {
		return nil, errors.New("DATABASE_URL or POSTGRES_HOST is required")
	}

	db, err := sql.Open("postgres", cfg.ConnectionURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Open creates the pool and applies pending migrations.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, []string, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	applied, err := pool.Migrate(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, applied, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping checks the connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// uniqueConstraint returns the violated constraint name for unique violations.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// isForeignKeyViolation reports whether err references a missing row.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

// notFound maps sql.ErrNoRows to database.ErrNotFound with context.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, database.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

var (
	_ database.UserWriter      = (*UserRepository)(nil)
	_ database.EmbeddingWriter = (*EmbeddingRepository)(nil)
	_ database.CourseStore     = (*CourseRepository)(nil)
	_ database.LectureStore    = (*LectureRepository)(nil)
	_ database.AttendanceStore = (*AttendanceRepository)(nil)
)
