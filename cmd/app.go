package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// loadConfig reads and validates the configuration and installs the
// process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// backend holds the stores of the configured database driver.
type backend struct {
	users      database.UserWriter
	embeddings database.EmbeddingWriter
	courses    database.CourseStore
	lectures   database.LectureStore
	attendance database.AttendanceStore
	ping       func(ctx context.Context) error
	close      func() error
	// applied lists migrations run while opening
	applied []string
}

func (b *backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

func (b *backend) Close() error {
	return b.close()
}

// openBackend connects to the configured database and applies pending
// migrations.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, applied, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		logger.Info("using SQLite backend", "path", cfg.Database.SQLitePath, "migrations_applied", len(applied))
		return &backend{
			users:      store,
			embeddings: store,
			courses:    store,
			lectures:   store,
			attendance: store,
			ping:       store.Ping,
			close:      store.Close,
			applied:    applied,
		}, nil
	default:
		pool, applied, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		logger.Info("using PostgreSQL backend", "migrations_applied", len(applied))
		return &backend{
			users:      postgres.NewUserRepository(pool),
			embeddings: postgres.NewEmbeddingRepository(pool),
			courses:    postgres.NewCourseRepository(pool),
			lectures:   postgres.NewLectureRepository(pool),
			attendance: postgres.NewAttendanceRepository(pool),
			ping:       pool.Ping,
			close:      pool.Close,
			applied:    applied,
		}, nil
	}
}

// newSource builds the candidate source selected by MATCH_INDEX. The
// returned function persists the HNSW graph when MATCH_INDEX_PATH is set.
func newSource(ctx context.Context, cfg *config.Config, b *backend, logger *slog.Logger) (candidates.Source, func(), error) {
	loader := candidates.NewLoader(b.embeddings, logger)
	if cfg.Matching.Index != config.IndexHNSW {
		logger.Info("using full scan candidate source", "cache_ttl", cfg.Matching.CacheTTL)
		return candidates.NewCache(loader, cfg.Matching.CacheTTL), func() {}, nil
	}

	index := candidates.NewIndex(loader, cfg.Vision.Dim)
	path := cfg.Matching.IndexPath
	if err := loadOrRebuildIndex(ctx, index, path, b.embeddings, logger); err != nil {
		return nil, nil, err
	}

	save := func() {
		if path == "" {
			return
		}
		if err := index.Save(path); err != nil {
			logger.Warn("failed to save HNSW index", "path", path, "error", err)
			return
		}
		logger.Info("HNSW index saved", "path", path, "embeddings", index.Len())
	}
	return candidates.NewIndexed(index, cfg.Matching.IndexNeighbors), save, nil
}

// loadOrRebuildIndex loads the saved graph at path if it still matches the
// store, and rebuilds it from the store otherwise.
func loadOrRebuildIndex(ctx context.Context, index *candidates.Index, path string, store database.EmbeddingReader, logger *slog.Logger) error {
	if path != "" {
		count, err := store.CountEmbeddings(ctx)
		if err != nil {
			return fmt.Errorf("failed to count embeddings: %w", err)
		}
		meta, err := index.Load(path, count)
		switch {
		case err == nil:
			logger.Info("HNSW index loaded", "path", path, "embeddings", meta.Count)
			return nil
		case errors.Is(err, candidates.ErrStaleIndex):
			logger.Info("HNSW index out of date, rebuilding", "path", path, "reason", err)
		default:
			logger.Warn("failed to load HNSW index, rebuilding", "path", path, "error", err)
		}
	}

	if err := index.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}
	logger.Info("HNSW index built", "embeddings", index.Len())
	return nil
}

func newService(cfg *config.Config, b *backend, detector vision.Detector, source candidates.Source, logger *slog.Logger) *attendance.Service {
	return attendance.NewService(attendance.Deps{
		Detector:   detector,
		Source:     source,
		Users:      b.users,
		Embeddings: b.embeddings,
		Courses:    b.courses,
		Lectures:   b.lectures,
		Attendance: b.attendance,
		Engine:     &matching.Engine{Logger: logger, Workers: cfg.Matching.Workers},
		Logger:     logger,
	}, attendance.Options{
		Threshold:             cfg.Matching.Threshold,
		LimitPerQuery:         cfg.Matching.LimitPerQuery,
		RequiredStudentImages: cfg.Enrollment.RequiredStudentImages,
		RestrictToRoster:      cfg.Matching.RestrictToRoster,
		ExpectedDim:           cfg.Vision.Dim,
		UploadDir:             cfg.Enrollment.UploadDir,
		Model:                 cfg.Vision.Model,
	})
}
