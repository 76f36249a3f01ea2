package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
)

// Embedding backend defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultDimensions    = 768
	DefaultTimeout       = 60 * time.Second
)

// DefaultGeminiModels is the model priority list for Gemini embeddings.
var DefaultGeminiModels = []string{"gemini-embedding-001", "text-embedding-004"}

// DefaultOpenAIModels is the model priority list for OpenAI-compatible embeddings.
var DefaultOpenAIModels = []string{"text-embedding-3-small"}

// errModelNotFound makes the embedder move on to the next model name.
var errModelNotFound = errors.New("model not found")

var (
	_ rag.Embedder = (*GeminiEmbedder)(nil)
	_ rag.Embedder = (*OpenAIEmbedder)(nil)
)

// Config configures an HTTP embedding backend.
type Config struct {
	APIKey     string
	BaseURL    string
	Models     []string
	Dimensions int
	Timeout    time.Duration
	Logger     logrus.FieldLogger
}

func (c *Config) applyDefaults(baseURL string, models []string) error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: embedding API key is required", rag.ErrProviderNotConfigured)
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Models) == 0 {
		c.Models = models
	}
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return nil
}

// modelList walks the configured models in priority order and remembers the
// last one that worked.
type modelList struct {
	mu     sync.RWMutex
	models []string
	active string
}

func newModelList(models []string) *modelList {
	return &modelList{models: models, active: models[0]}
}

func (m *modelList) name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *modelList) embed(log logrus.FieldLogger, call func(model string) ([]float32, error)) ([]float32, error) {
	for _, model := range m.models {
		vec, err := call(model)
		if errors.Is(err, errModelNotFound) {
			log.WithField("model", model).Warn("embed: model unavailable, trying next")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", rag.ErrEmbedding, model, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: %s: empty embedding returned", rag.ErrEmbedding, model)
		}
		m.mu.Lock()
		m.active = model
		m.mu.Unlock()
		return vec, nil
	}
	return nil, fmt.Errorf("%w: none of the configured models are available: %s",
		rag.ErrEmbedding, strings.Join(m.models, ", "))
}

// GeminiEmbedder calls the Gemini embedContent endpoint.
type GeminiEmbedder struct {
	cfg    Config
	client *http.Client
	models *modelList
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// NewGeminiEmbedder creates a Gemini embedding client.
func NewGeminiEmbedder(cfg Config) (*GeminiEmbedder, error) {
	if err := cfg.applyDefaults(DefaultGeminiBaseURL, DefaultGeminiModels); err != nil {
		return nil, err
	}
	return &GeminiEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		models: newModelList(cfg.Models),
	}, nil
}

// Embed returns the embedding of text from the first available model.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.models.embed(e.cfg.Logger, func(model string) ([]float32, error) {
		name := strings.TrimPrefix(model, "models/")
		body := geminiEmbedRequest{
			Model:                "models/" + name,
			Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
			OutputDimensionality: e.cfg.Dimensions,
		}
		var resp geminiEmbedResponse
		url := fmt.Sprintf("%s/models/%s:embedContent", e.cfg.BaseURL, name)
		if err := postJSON(ctx, e.client, url, map[string]string{"x-goog-api-key": e.cfg.APIKey}, body, &resp); err != nil {
			return nil, err
		}
		return resp.Embedding.Values, nil
	})
}

// Dimensions returns the requested output dimensionality.
func (e *GeminiEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelName returns the active model.
func (e *GeminiEmbedder) ModelName() string { return e.models.name() }

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	cfg    Config
	client *http.Client
	models *modelList
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding client.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if err := cfg.applyDefaults(DefaultOpenAIBaseURL, DefaultOpenAIModels); err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		models: newModelList(cfg.Models),
	}, nil
}

// Embed returns the embedding of text from the first available model.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.models.embed(e.cfg.Logger, func(model string) ([]float32, error) {
		body := openAIEmbedRequest{Model: model, Input: []string{text}}
		// Only the text-embedding-3 family accepts a dimensions override.
		if strings.HasPrefix(model, "text-embedding-3") {
			body.Dimensions = e.cfg.Dimensions
		}
		var resp openAIEmbedResponse
		headers := map[string]string{"Authorization": "Bearer " + e.cfg.APIKey}
		if err := postJSON(ctx, e.client, e.cfg.BaseURL+"/embeddings", headers, body, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, nil
		}
		return resp.Data[0].Embedding, nil
	})
}

// Dimensions returns the requested dimensionality.
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelName returns the active model.
func (e *OpenAIEmbedder) ModelName() string { return e.models.name() }

// postJSON sends body and decodes a 2xx response into out. 404 maps to
// errModelNotFound and 429 to rag.ErrRateLimited.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errModelNotFound, truncate(raw))
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", rag.ErrRateLimited, truncate(raw))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("authentication failed (status %d): %s", resp.StatusCode, truncate(raw))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
