package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Matching index kinds
const (
	IndexScan = "scan"
	IndexHNSW = "hnsw"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Vision     VisionConfig     `yaml:"vision"`
	Matching   MatchingConfig   `yaml:"matching"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`         // postgres or sqlite
	SQLitePath   string `yaml:"sqlite_path"`    // database file for the sqlite driver
	URL          string `yaml:"url"`            // PostgreSQL connection URL; built from the parts below when empty
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"-"`
	Name         string `yaml:"name"`
}

// ConnectionURL returns URL, or a postgres:// URL assembled from the parts
func (c *DatabaseConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

type VisionConfig struct {
	URL           string        `yaml:"url"`            // embedding server; empty means unavailable
	Model         string        `yaml:"model"`          // model name recorded with stored embeddings
	MinConfidence float64       `yaml:"min_confidence"` // detections below this score are dropped
	Timeout       time.Duration `yaml:"timeout"`
	Dim           int           `yaml:"dim"` // expected embedding length
}

type MatchingConfig struct {
	Threshold        float64       `yaml:"threshold"`
	LimitPerQuery    int           `yaml:"limit_per_query"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	Index            string        `yaml:"index"`
	IndexNeighbors   int           `yaml:"index_neighbors"`
	RestrictToRoster bool          `yaml:"restrict_to_roster"`
	IndexPath        string        `yaml:"index_path"` // HNSW graph is saved here on shutdown when set
	Workers          int           `yaml:"workers"`
}

type EnrollmentConfig struct {
	RequiredStudentImages int    `yaml:"required_student_images"`
	UploadDir             string `yaml:"upload_dir"` // enrollment images are kept here when set
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns host:port for the HTTP listener
func (c *WebConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// firstEnv returns the first non-empty variable among keys
func firstEnv(defaultVal string, keys ...string) string {
	for _, k := range keys {
		if s := os.Getenv(k); s != "" {
			return s
		}
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Defaults returns the embedded defaults without consulting the environment
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := Defaults()

	port := d.Database.Port
	if p, err := strconv.Atoi(firstEnv("", "POSTGRES_PORT", "PGPORT")); err == nil && p > 0 {
		port = p
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", d.Database.Driver)),
			SQLitePath:   envString("SQLITE_PATH", d.Database.SQLitePath),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
			Host:         firstEnv(d.Database.Host, "POSTGRES_HOST", "PGHOST"),
			Port:         port,
			User:         firstEnv(d.Database.User, "POSTGRES_USER", "PGUSER"),
			Password:     firstEnv("", "POSTGRES_PASSWORD", "PGPASSWORD"),
			Name:         firstEnv(d.Database.Name, "POSTGRES_DB", "PGDATABASE"),
		},
		Vision: VisionConfig{
			URL:           os.Getenv("VISION_URL"),
			Model:         envString("VISION_MODEL", d.Vision.Model),
			MinConfidence: envFloat("VISION_MIN_CONFIDENCE", d.Vision.MinConfidence),
			Timeout:       envDuration("VISION_TIMEOUT", d.Vision.Timeout),
			Dim:           envInt("EMBEDDING_DIM", d.Vision.Dim),
		},
		Matching: MatchingConfig{
			Threshold:        envFloat("MATCH_THRESHOLD", d.Matching.Threshold),
			LimitPerQuery:    envInt("MATCH_LIMIT_PER_QUERY", d.Matching.LimitPerQuery),
			CacheTTL:         envDuration("MATCH_CACHE_TTL", d.Matching.CacheTTL),
			Index:            strings.ToLower(envString("MATCH_INDEX", d.Matching.Index)),
			IndexNeighbors:   envInt("MATCH_INDEX_NEIGHBORS", d.Matching.IndexNeighbors),
			RestrictToRoster: envBool("MATCH_RESTRICT_TO_ROSTER", d.Matching.RestrictToRoster),
			IndexPath:        os.Getenv("MATCH_INDEX_PATH"),
			Workers:          envInt("MATCH_WORKERS", d.Matching.Workers),
		},
		Enrollment: EnrollmentConfig{
			RequiredStudentImages: envInt("REQUIRED_STUDENT_IMAGES", d.Enrollment.RequiredStudentImages),
			UploadDir:             os.Getenv("UPLOAD_DIR"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", d.Log.Level),
			Format: envString("LOG_FORMAT", d.Log.Format),
		},
	}
}

// Validate checks values that would make the service misbehave
func (c *Config) Validate() error {
	var errs []error
	if math.IsNaN(c.Matching.Threshold) || c.Matching.Threshold < -1 || c.Matching.Threshold > 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be within [-1, 1], got %v", c.Matching.Threshold))
	}
	if c.Vision.Dim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.Vision.Dim))
	}
	switch c.Matching.Index {
	case IndexScan, IndexHNSW:
	default:
		errs = append(errs, fmt.Errorf("MATCH_INDEX must be %q or %q, got %q", IndexScan, IndexHNSW, c.Matching.Index))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	if c.Enrollment.RequiredStudentImages <= 0 {
		errs = append(errs, errors.New("REQUIRED_STUDENT_IMAGES must be positive"))
	}
	return errors.Join(errs...)
}
