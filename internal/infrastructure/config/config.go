// Package config loads the service configuration from YAML, .env and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	IndexMemory   = "memory"
	IndexSQLite   = "sqlite"
	IndexChroma   = "chroma"
	IndexPGVector = "pgvector"
)

// Embedders.
const (
	EmbedderHashing = "hashing"
	EmbedderOllama  = "ollama"
)

// PDF extractors.
const (
	ExtractorNative  = "native"
	ExtractorService = "service"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CorsOrigins string `yaml:"cors_origins"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SQLiteConfig locates the SQLite index file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ChromaConfig points at a Chroma server. APIPath is the collections
// endpoint; empty selects the v1 REST surface.
type ChromaConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIPath    string `yaml:"api_path,omitempty"`
}

// PGVectorConfig holds the Postgres connection string.
type PGVectorConfig struct {
	DSN string `yaml:"dsn"`
}

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Chroma   ChromaConfig   `yaml:"chroma"`
	PGVector PGVectorConfig `yaml:"pgvector"`
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type       string       `yaml:"type"`
	Dimensions int          `yaml:"dimensions"`
	Ollama     OllamaConfig `yaml:"ollama"`
}

// PDFConfig selects the PDF text extractor.
type PDFConfig struct {
	Extractor  string `yaml:"extractor"`
	ServiceURL string `yaml:"service_url"`
}

// ChunkConfig configures the chunk window.
type ChunkConfig struct {
	MaxChars int `yaml:"max_chars"`
	Overlap  int `yaml:"overlap"`
}

// QueryConfig configures retrieval.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// CatalogConfig bounds category/case enumeration.
type CatalogConfig struct {
	ScanLimit int `yaml:"scan_limit"`
}

// LogConfig configures the logger.
type LogConfig struct {
	File       string `yaml:"file"`
	Production bool   `yaml:"production"`
}

// WatchConfig enables auto-ingestion of the data directory.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server       ServerConfig   `yaml:"server"`
	DataDir      string         `yaml:"data_dir"`
	IngestFolder string         `yaml:"ingest_folder"`
	Index        IndexConfig    `yaml:"index"`
	Embedder     EmbedderConfig `yaml:"embedder"`
	PDF          PDFConfig      `yaml:"pdf"`
	Chunk        ChunkConfig    `yaml:"chunk"`
	Query        QueryConfig    `yaml:"query"`
	Catalog      CatalogConfig  `yaml:"catalog"`
	Log          LogConfig      `yaml:"log"`
	Watch        WatchConfig    `yaml:"watch"`
}

// Load reads the config at path, then .env, then environment overrides.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := defaultConfig()
	applyDefaults(cfg)
	return cfg
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CorsOrigins: "*",
			BodyLimitMB: 50,
		},
		DataDir: "./data",
		Index: IndexConfig{
			Type:   IndexSQLite,
			Chroma: ChromaConfig{URL: "http://localhost:8001", Collection: "juris"},
		},
		Embedder: EmbedderConfig{
			Type:       EmbedderHashing,
			Dimensions: 512,
			Ollama:     OllamaConfig{URL: "http://localhost:11434", Model: "nomic-embed-text", TimeoutSecs: 60},
		},
		PDF:     PDFConfig{Extractor: ExtractorNative},
		Query:   QueryConfig{TopK: 5},
		Catalog: CatalogConfig{ScanLimit: 10000},
		Log:     LogConfig{File: "logs/sibila.log"},
	}
}

// applyDefaults fills values that depend on other fields.
func applyDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.IngestFolder == "" {
		cfg.IngestFolder = cfg.DataDir
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = IndexSQLite
	}
	if cfg.Index.SQLite.Path == "" {
		cfg.Index.SQLite.Path = filepath.Join("index", "sibila.db")
	}
	if cfg.Index.Chroma.Collection == "" {
		cfg.Index.Chroma.Collection = "juris"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderHashing
	}
	if cfg.PDF.Extractor == "" {
		cfg.PDF.Extractor = ExtractorNative
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	// An unset window selects the default pair; an explicit max_chars keeps
	// whatever overlap was given.
	if cfg.Chunk.MaxChars == 0 {
		cfg.Chunk.MaxChars = 1500
		if cfg.Chunk.Overlap == 0 {
			cfg.Chunk.Overlap = 150
		}
	}
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Host = getEnv("SIBILA_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("SIBILA_PORT", cfg.Server.Port)
	cfg.Server.CorsOrigins = getEnv("SIBILA_CORS_ORIGINS", cfg.Server.CorsOrigins)
	cfg.DataDir = getEnv("SIBILA_DATA_DIR", cfg.DataDir)
	cfg.IngestFolder = getEnv("INGEST_FOLDER", cfg.IngestFolder)

	cfg.Index.Type = getEnv("SIBILA_INDEX", cfg.Index.Type)
	cfg.Index.SQLite.Path = getEnv("SIBILA_SQLITE_PATH", cfg.Index.SQLite.Path)
	cfg.Index.Chroma.URL = getEnv("SIBILA_CHROMA_URL", cfg.Index.Chroma.URL)
	cfg.Index.Chroma.Collection = getEnv("SIBILA_CHROMA_COLLECTION", cfg.Index.Chroma.Collection)
	cfg.Index.Chroma.APIPath = getEnv("SIBILA_CHROMA_API_PATH", cfg.Index.Chroma.APIPath)
	cfg.Index.PGVector.DSN = getEnv("SIBILA_PG_DSN", cfg.Index.PGVector.DSN)

	cfg.Embedder.Type = getEnv("SIBILA_EMBEDDER", cfg.Embedder.Type)
	cfg.Embedder.Ollama.URL = getEnv("SIBILA_OLLAMA_URL", cfg.Embedder.Ollama.URL)
	cfg.Embedder.Ollama.Model = getEnv("SIBILA_OLLAMA_MODEL", cfg.Embedder.Ollama.Model)

	cfg.PDF.Extractor = getEnv("SIBILA_PDF_EXTRACTOR", cfg.PDF.Extractor)
	cfg.PDF.ServiceURL = getEnv("SIBILA_PDF_SERVICE_URL", cfg.PDF.ServiceURL)

	cfg.Chunk.MaxChars = getEnvAsInt("SIBILA_CHUNK_MAX_CHARS", cfg.Chunk.MaxChars)
	cfg.Chunk.Overlap = getEnvAsInt("SIBILA_CHUNK_OVERLAP", cfg.Chunk.Overlap)
	cfg.Query.TopK = getEnvAsInt("SIBILA_TOP_K", cfg.Query.TopK)

	cfg.Log.File = getEnv("SIBILA_LOG_FILE", cfg.Log.File)
	cfg.Log.Production = getEnv("SIBILA_ENV", boolEnv(cfg.Log.Production)) == "production"
	cfg.Watch.Enabled = getEnvAsBool("SIBILA_WATCH", cfg.Watch.Enabled)
}

// Validate reports configuration values the service cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunk.MaxChars <= 0 || c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.MaxChars {
		errs = append(errs, fmt.Errorf("chunk: need 0 <= overlap < max_chars, got max_chars=%d overlap=%d", c.Chunk.MaxChars, c.Chunk.Overlap))
	}
	if c.Query.TopK < 1 || c.Query.TopK > 20 {
		errs = append(errs, fmt.Errorf("query.top_k must be within [1,20], got %d", c.Query.TopK))
	}
	switch c.Index.Type {
	case IndexMemory, IndexSQLite:
	case IndexChroma:
		if c.Index.Chroma.URL == "" {
			errs = append(errs, errors.New("index.chroma.url is required"))
		}
	case IndexPGVector:
		if c.Index.PGVector.DSN == "" {
			errs = append(errs, errors.New("index.pgvector.dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index type %q", c.Index.Type))
	}
	switch c.Embedder.Type {
	case EmbedderHashing:
	case EmbedderOllama:
		if c.Embedder.Ollama.URL == "" || c.Embedder.Ollama.Model == "" {
			errs = append(errs, errors.New("embedder.ollama.url and model are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.PDF.Extractor {
	case ExtractorNative:
	case ExtractorService:
		if c.PDF.ServiceURL == "" {
			errs = append(errs, errors.New("pdf.service_url is required for the service extractor"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pdf extractor %q", c.PDF.Extractor))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return value
	}
	return fallback
}

func boolEnv(prod bool) string {
	if prod {
		return "production"
	}
	return "development"
}
