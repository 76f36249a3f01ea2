// Package llm generates grounded answers from retrieved chunks using a
// priority list of chat providers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"workspace-rag/internal/rag"
)

// Provider defaults.
const (
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout       = 60 * time.Second
)

var (
	// DefaultGroqModels is the primary provider's model list.
	DefaultGroqModels = []string{"llama-3.3-70b-versatile"}

	// DefaultGeminiModels is tried in order when a model is rate limited.
	DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0-flash-lite"}
)

var (
	_ rag.ChatProvider = (*OpenAICompatible)(nil)
	_ rag.ChatProvider = (*Gemini)(nil)
)

// ProviderConfig configures one chat provider.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Models  []string
	Timeout time.Duration
}

func (c ProviderConfig) withDefaults(name, baseURL string, models []string) ProviderConfig {
	if c.Name == "" {
		c.Name = name
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Models) == 0 {
		c.Models = models
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// OpenAICompatible talks to any /chat/completions endpoint. Groq by default.
type OpenAICompatible struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewOpenAICompatible creates the provider. A missing API key is reported on
// each call rather than here, so the generator can fall through to the next provider.
func NewOpenAICompatible(cfg ProviderConfig) *OpenAICompatible {
	cfg = cfg.withDefaults("groq", DefaultGroqBaseURL, DefaultGroqModels)
	return &OpenAICompatible{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *OpenAICompatible) Name() string     { return p.cfg.Name }
func (p *OpenAICompatible) Models() []string { return p.cfg.Models }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message at temperature 0.
func (p *OpenAICompatible) Complete(ctx context.Context, model, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: %s API key is not set", rag.ErrProviderNotConfigured, p.cfg.Name)
	}
	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	if err := post(ctx, p.client, p.cfg.BaseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s returned no content", p.cfg.Name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Gemini calls the generateContent endpoint.
type Gemini struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewGemini creates the provider.
func NewGemini(cfg ProviderConfig) *Gemini {
	cfg = cfg.withDefaults("gemini", DefaultGeminiBaseURL, DefaultGeminiModels)
	return &Gemini{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (g *Gemini) Name() string     { return g.cfg.Name }
func (g *Gemini) Models() []string { return g.cfg.Models }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Complete(ctx context.Context, model, prompt string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: %s API key is not set", rag.ErrProviderNotConfigured, g.cfg.Name)
	}
	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}

	var resp geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, strings.TrimPrefix(model, "models/"))
	headers := map[string]string{"x-goog-api-key": g.cfg.APIKey}
	if err := post(ctx, g.client, url, headers, body, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range resp.Candidates {
		for _, part := range c.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%s returned no content", g.cfg.Name)
	}
	return b.String(), nil
}

// post sends a JSON request. 429 and quota errors map to rag.ErrRateLimited.
func post(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
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

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		if resp.StatusCode == http.StatusTooManyRequests || mentionsQuota(msg) {
			return fmt.Errorf("%w: status %d: %s", rag.ErrRateLimited, resp.StatusCode, msg)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mentionsQuota(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "resource_exhausted")
}
