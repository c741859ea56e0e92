package config

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	d := Defaults()

	if d.Matching.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %v", d.Matching.Threshold)
	}
	if d.Vision.Dim != 512 {
		t.Errorf("expected default dim 512, got %d", d.Vision.Dim)
	}
	if d.Vision.Model != "buffalo_sc" {
		t.Errorf("expected default model buffalo_sc, got %q", d.Vision.Model)
	}
	if d.Matching.CacheTTL != 5*time.Minute {
		t.Errorf("expected default cache TTL 5m, got %v", d.Matching.CacheTTL)
	}
	if d.Enrollment.RequiredStudentImages != 5 {
		t.Errorf("expected 5 required images, got %d", d.Enrollment.RequiredStudentImages)
	}
	if d.Database.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", d.Database.Driver)
	}
	if d.Matching.Index != IndexScan {
		t.Errorf("expected scan index, got %q", d.Matching.Index)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.72")
	t.Setenv("MATCH_CACHE_TTL", "30s")
	t.Setenv("MATCH_INDEX", "HNSW")
	t.Setenv("MATCH_RESTRICT_TO_ROSTER", "true")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/a.db")
	t.Setenv("MATCH_INDEX_PATH", "/tmp/faces.hnsw")

	cfg := Load()

	if cfg.Database.Driver != DriverSQLite || cfg.Database.SQLitePath != "/tmp/a.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Matching.IndexPath != "/tmp/faces.hnsw" {
		t.Errorf("index path = %q", cfg.Matching.IndexPath)
	}

	if cfg.Matching.Threshold != 0.72 {
		t.Errorf("threshold = %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.CacheTTL != 30*time.Second {
		t.Errorf("cache TTL = %v", cfg.Matching.CacheTTL)
	}
	if cfg.Matching.Index != IndexHNSW {
		t.Errorf("index = %q", cfg.Matching.Index)
	}
	if !cfg.Matching.RestrictToRoster {
		t.Error("expected restrict to roster")
	}
	if cfg.Vision.Dim != 128 {
		t.Errorf("dim = %d", cfg.Vision.Dim)
	}
	if cfg.Web.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr = %q", cfg.Web.Addr())
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("allowed origins = %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")
	t.Setenv("MATCH_THRESHOLD", "high")
	t.Setenv("MATCH_CACHE_TTL", "soon")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("max open conns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Matching.Threshold != 0.6 {
		t.Errorf("threshold = %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.CacheTTL != 5*time.Minute {
		t.Errorf("cache TTL = %v", cfg.Matching.CacheTTL)
	}
}

func TestConnectionURL(t *testing.T) {
	cfg := DatabaseConfig{URL: "postgres://u:p@db:5432/x"}
	if got := cfg.ConnectionURL(); got != "postgres://u:p@db:5432/x" {
		t.Errorf("expected explicit URL, got %q", got)
	}

	cfg = DatabaseConfig{Host: "db", Port: 5433, User: "att", Password: "s3cret", Name: "attendance"}
	want := "postgres://att:s3cret@db:5433/attendance?sslmode=disable"
	if got := cfg.ConnectionURL(); got != want {
		t.Errorf("ConnectionURL() = %q, want %q", got, want)
	}
}

func TestLoad_PostgresParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "pg")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_USER", "svc")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "att")

	got := Load().Database.ConnectionURL()
	if got != "postgres://svc:pw@pg:6543/att?sslmode=disable" {
		t.Errorf("ConnectionURL() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Matching.Threshold = 1.5
	cfg.Vision.Dim = 0
	cfg.Matching.Index = "faiss"
	cfg.Database.Driver = "mysql"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"MATCH_THRESHOLD", "EMBEDDING_DIM", "MATCH_INDEX", "DATABASE_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestValidate_NaNThreshold(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "NaN")
	cfg := Load()
	if !math.IsNaN(cfg.Matching.Threshold) {
		t.Fatalf("expected NaN to be parsed, got %v", cfg.Matching.Threshold)
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "MATCH_THRESHOLD") {
		t.Errorf("expected MATCH_THRESHOLD error, got %v", err)
	}
}
