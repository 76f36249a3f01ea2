// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Vector backends.
const (
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// Embedding providers.
const (
	EmbeddingGemini = "gemini"
	EmbeddingOpenAI = "openai"
)

// ProviderConfig holds credentials and endpoint for one remote API.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Models     []string      `yaml:"models"`
	Dimensions int           `yaml:"dimensions"`
	PauseEvery int           `yaml:"pause_every"`
	Pause      time.Duration `yaml:"pause"`
}

// ChatConfig lists chat model priorities. Primary models run on Groq,
// secondary models on Gemini.
type ChatConfig struct {
	PrimaryModels   []string      `yaml:"primary_models"`
	SecondaryModels []string      `yaml:"secondary_models"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	Backend          string `yaml:"backend"`
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       string `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`
	InsertBatchSize  int    `yaml:"insert_batch_size"`
}

// ChunkingConfig sizes the text windows.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
	Limit         int     `yaml:"limit"`
}

// Config is the complete service configuration.
type Config struct {
	HTTPAddr      string        `yaml:"http_addr"`
	LogLevel      string        `yaml:"log_level"`
	DatabaseURL   string        `yaml:"database_url"`
	JWTSecret     string        `yaml:"jwt_secret"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	PDFToTextPath string        `yaml:"pdftotext_path"`

	Gemini ProviderConfig `yaml:"gemini"`
	Groq   ProviderConfig `yaml:"groq"`
	OpenAI ProviderConfig `yaml:"openai"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Vector    VectorConfig    `yaml:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		LogLevel:      "info",
		HTTPTimeout:   60 * time.Second,
		PDFToTextPath: "pdftotext",
		Embedding: EmbeddingConfig{
			Provider:   EmbeddingGemini,
			Dimensions: 768,
			PauseEvery: 5,
			Pause:      200 * time.Millisecond,
		},
		Chat: ChatConfig{RetryDelay: 2 * time.Second},
		Vector: VectorConfig{
			Backend:          BackendPgvector,
			QdrantCollection: "document_chunks",
			InsertBatchSize:  50,
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
		Search:   SearchConfig{MinSimilarity: 0.01, Limit: 8},
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the
// environment, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Debug("config: no .env file found, using system environment variables")
	}
	path, _ := os.LookupEnv("CONFIG_FILE")
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom builds a Config from an optional YAML file and an environment lookup.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	env := envReader{lookup: lookup}
	env.str("HTTP_ADDR", &cfg.HTTPAddr)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("DATABASE_URL", &cfg.DatabaseURL)
	env.str("JWT_SECRET", &cfg.JWTSecret)
	env.duration("HTTP_TIMEOUT", &cfg.HTTPTimeout)
	env.str("PDFTOTEXT_PATH", &cfg.PDFToTextPath)

	env.str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	env.str("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	env.str("GROQ_API_KEY", &cfg.Groq.APIKey)
	env.str("GROQ_BASE_URL", &cfg.Groq.BaseURL)
	env.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	env.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	env.str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	env.list("EMBEDDING_MODELS", &cfg.Embedding.Models)
	env.integer("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	env.integer("EMBED_PAUSE_EVERY", &cfg.Embedding.PauseEvery)
	env.duration("EMBED_PAUSE", &cfg.Embedding.Pause)

	env.list("CHAT_MODELS_PRIMARY", &cfg.Chat.PrimaryModels)
	env.list("CHAT_MODELS_SECONDARY", &cfg.Chat.SecondaryModels)
	env.duration("GENERATION_RETRY_DELAY", &cfg.Chat.RetryDelay)

	env.str("VECTOR_BACKEND", &cfg.Vector.Backend)
	env.str("QDRANT_SERVICE_HOST", &cfg.Vector.QdrantHost)
	env.str("QDRANT_SERVICE_PORT", &cfg.Vector.QdrantPort)
	env.str("QDRANT_COLLECTION", &cfg.Vector.QdrantCollection)
	env.integer("INSERT_BATCH_SIZE", &cfg.Vector.InsertBatchSize)

	env.integer("CHUNK_SIZE", &cfg.Chunking.Size)
	env.integer("CHUNK_OVERLAP", &cfg.Chunking.Overlap)
	env.float("SEARCH_MIN_SIMILARITY", &cfg.Search.MinSimilarity)
	env.integer("SEARCH_LIMIT", &cfg.Search.Limit)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipelines cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	switch c.Embedding.Provider {
	case EmbeddingGemini, EmbeddingOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Vector.Backend {
	case BackendPgvector, BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q", c.Vector.Backend))
	}
	if c.Vector.InsertBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("insert batch size must be positive, got %d", c.Vector.InsertBatchSize))
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity >= 1 {
		errs = append(errs, fmt.Errorf("search min similarity must be in [0, 1), got %v", c.Search.MinSimilarity))
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search limit must be positive, got %d", c.Search.Limit))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EmbeddingProvider returns the credentials for the selected embedding backend.
func (c Config) EmbeddingProvider() ProviderConfig {
	if c.Embedding.Provider == EmbeddingOpenAI {
		return c.OpenAI
	}
	return c.Gemini
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
