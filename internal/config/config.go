package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth for the HTTP API; empty disables auth.
	APIKey string

	// Index sink; empty URL disables pushing chunks.
	IndexURL    string
	IndexAPIKey string

	// Worker pool
	WorkerCount       int
	MaxQueueSize      int
	MaxConcurrentPush int

	// Upload limits
	MaxUploadBytes int64

	// Per-document chunking
	ChunkChars   int
	ChunkOverlap int

	// Concatenated batch chunking
	BatchChunkChars   int
	BatchChunkOverlap int

	// Extraction
	ForceGoPDF      bool
	TokenEncoding   string
	SpreadsheetMode string
	TimetableTitle  string

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("UNBOWED_API_KEY"),

		IndexURL:    os.Getenv("INDEX_URL"),
		IndexAPIKey: os.Getenv("INDEX_API_KEY"),

		WorkerCount:       envInt("WORKER_COUNT", 4),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentPush: envInt("MAX_CONCURRENT_PUSH", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkChars:   envInt("CHUNK_CHARS", 3000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 100),

		BatchChunkChars:   envInt("BATCH_CHUNK_CHARS", 1000),
		BatchChunkOverlap: envInt("BATCH_CHUNK_OVERLAP", 200),

		ForceGoPDF:      envBool("FORCE_GO_PDF", false),
		TokenEncoding:   os.Getenv("TOKEN_ENCODING"),
		SpreadsheetMode: envOr("SPREADSHEET_MODE", "json"),
		TimetableTitle:  os.Getenv("TIMETABLE_TITLE"),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentPush <= 0 {
		cfg.MaxConcurrentPush = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate rejects chunk windows the chunker cannot honor and an index
// key without an index URL.
func (c Config) Validate() error {
	if err := validateWindow("CHUNK", c.ChunkChars, c.ChunkOverlap); err != nil {
		return err
	}
	if err := validateWindow("BATCH_CHUNK", c.BatchChunkChars, c.BatchChunkOverlap); err != nil {
		return err
	}
	switch strings.ToLower(c.SpreadsheetMode) {
	case "", "json", "csv":
	default:
		return fmt.Errorf("SPREADSHEET_MODE must be json or csv, got %q", c.SpreadsheetMode)
	}
	if c.IndexAPIKey != "" && c.IndexURL == "" {
		return fmt.Errorf("INDEX_API_KEY is set but INDEX_URL is empty")
	}
	return nil
}

func validateWindow(prefix string, chars, overlap int) error {
	if chars <= 0 {
		return fmt.Errorf("%s_CHARS must be positive, got %d", prefix, chars)
	}
	if overlap < 0 {
		return fmt.Errorf("%s_OVERLAP must not be negative, got %d", prefix, overlap)
	}
	if overlap >= chars {
		return fmt.Errorf("%s_OVERLAP (%d) must be less than %s_CHARS (%d)", prefix, overlap, prefix, chars)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
