package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-rag/internal/rag"
)

type call struct{ provider, model string }

// scriptedProvider answers per model from a script; missing entries succeed.
type scriptedProvider struct {
	name   string
	models []string
	errs   map[string]error
	calls  *[]call
}

func (p *scriptedProvider) Name() string     { return p.name }
func (p *scriptedProvider) Models() []string { return p.models }

func (p *scriptedProvider) Complete(_ context.Context, model, prompt string) (string, error) {
	*p.calls = append(*p.calls, call{p.name, model})
	if err, ok := p.errs[model]; ok {
		return "", err
	}
	return fmt.Sprintf("answer from %s/%s", p.name, model), nil
}

func rateLimited() error { return fmt.Errorf("%w: status 429", rag.ErrRateLimited) }

func chunks() []rag.ScoredChunk {
	return []rag.ScoredChunk{
		{Chunk: rag.Chunk{DocumentName: "a.pdf", Content: "Alpha facts."}, Similarity: 0.9},
		{Chunk: rag.Chunk{DocumentName: "b.txt", Content: "Beta facts."}, Similarity: 0.5},
	}
}

func newGen(providers ...rag.ChatProvider) *Generator {
	logger, _ := test.NewNullLogger()
	return NewGenerator(providers, WithRetryDelay(0), WithLogger(logger))
}

func TestGenerate_PrimarySucceeds(t *testing.T) {
	var calls []call
	g := newGen(
		&scriptedProvider{name: "groq", models: []string{"llama"}, calls: &calls},
		&scriptedProvider{name: "gemini", models: []string{"flash"}, calls: &calls},
	)
	answer, err := g.Generate(context.Background(), "What is alpha?", chunks())
	require.NoError(t, err)
	assert.Equal(t, "answer from groq/llama", answer)
	assert.Equal(t, []call{{"groq", "llama"}}, calls)
}

func TestGenerate_FallsBackOnTransientFailure(t *testing.T) {
	var calls []call
	g := newGen(
		&scriptedProvider{name: "groq", models: []string{"llama"}, calls: &calls,
			errs: map[string]error{"llama": errors.New("status 500: upstream exploded")}},
		&scriptedProvider{name: "gemini", models: []string{"flash"}, calls: &calls},
	)
	answer, err := g.Generate(context.Background(), "q", chunks())
	require.NoError(t, err)
	assert.Equal(t, "answer from gemini/flash", answer)
}

func TestGenerate_FallsBackWhenPrimaryNotConfigured(t *testing.T) {
	var calls []call
	g := newGen(
		NewOpenAICompatible(ProviderConfig{}),
		&scriptedProvider{name: "gemini", models: []string{"flash"}, calls: &calls},
	)
	answer, err := g.Generate(context.Background(), "q", chunks())
	require.NoError(t, err)
	assert.Equal(t, "answer from gemini/flash", answer)
}

func TestGenerate_RotatesModelsOnRateLimit(t *testing.T) {
	var calls []call
	g := newGen(&scriptedProvider{
		name:   "gemini",
		models: []string{"m1", "m2", "m3"},
		calls:  &calls,
		errs:   map[string]error{"m1": rateLimited(), "m2": rateLimited()},
	})
	answer, err := g.Generate(context.Background(), "q", chunks())
	require.NoError(t, err)
	assert.Equal(t, "answer from gemini/m3", answer)
	assert.Equal(t, []call{{"gemini", "m1"}, {"gemini", "m2"}, {"gemini", "m3"}}, calls)
}

func TestGenerate_AllModelsRateLimitedIsTerminal(t *testing.T) {
	var calls []call
	g := newGen(
		&scriptedProvider{name: "groq", models: []string{"a", "b"}, calls: &calls,
			errs: map[string]error{"a": rateLimited(), "b": rateLimited()}},
		&scriptedProvider{name: "gemini", models: []string{"flash"}, calls: &calls},
	)
	_, err := g.Generate(context.Background(), "q", chunks())
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrAllModelsRateLimited)
	assert.ErrorIs(t, err, rag.ErrGeneration)
	assert.Len(t, calls, 2)
	assert.Equal(t, "All AI models are currently rate-limited. Please try again in a minute.", rag.PublicMessage(err))
}

func TestGenerate_AllProvidersFail(t *testing.T) {
	var calls []call
	g := newGen(
		&scriptedProvider{name: "groq", models: []string{"a"}, calls: &calls,
			errs: map[string]error{"a": errors.New("boom")}},
		&scriptedProvider{name: "gemini", models: []string{"b"}, calls: &calls,
			errs: map[string]error{"b": errors.New("bang")}},
	)
	_, err := g.Generate(context.Background(), "q", chunks())
	assert.ErrorIs(t, err, rag.ErrGeneration)
	assert.NotErrorIs(t, err, rag.ErrAllModelsRateLimited)
	assert.Len(t, calls, 2)
}

func TestGenerate_NonTransientStopsImmediately(t *testing.T) {
	var calls []call
	g := newGen(
		&scriptedProvider{name: "groq", models: []string{"a"}, calls: &calls,
			errs: map[string]error{"a": fmt.Errorf("%w: prompt too long", rag.ErrInvalidInput)}},
		&scriptedProvider{name: "gemini", models: []string{"b"}, calls: &calls},
	)
	_, err := g.Generate(context.Background(), "q", chunks())
	assert.ErrorIs(t, err, rag.ErrInvalidInput)
	assert.Len(t, calls, 1)
}

func TestGenerate_EmptyQuestion(t *testing.T) {
	var calls []call
	g := newGen(&scriptedProvider{name: "groq", models: []string{"a"}, calls: &calls})
	_, err := g.Generate(context.Background(), "   ", chunks())
	assert.ErrorIs(t, err, rag.ErrInvalidInput)
	assert.Empty(t, calls)
}

func TestGenerate_NoProviders(t *testing.T) {
	_, err := newGen().Generate(context.Background(), "q", nil)
	assert.ErrorIs(t, err, rag.ErrGeneration)
}

func TestGenerate_CancelledDuringRetryWait(t *testing.T) {
	var calls []call
	logger, _ := test.NewNullLogger()
	g := NewGenerator([]rag.ChatProvider{&scriptedProvider{
		name: "gemini", models: []string{"m1", "m2"}, calls: &calls,
		errs: map[string]error{"m1": rateLimited()},
	}}, WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, "q", chunks())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, calls, 1)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  What is alpha?  ", chunks())
	assert.Contains(t, prompt, "Source: a.pdf\nContent: Alpha facts.\n\n---\n\nSource: b.txt\nContent: Beta facts.")
	assert.Contains(t, prompt, "Question: What is alpha?\n")
	assert.Contains(t, prompt, "I don't know based on the provided documents")
	assert.NotContains(t, prompt, "0.9")
	assert.Less(t, strings.Index(prompt, "a.pdf"), strings.Index(prompt, "b.txt"))
}

func TestOpenAICompatible_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gk", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"It is **alpha**."}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatible(ProviderConfig{APIKey: "gk", BaseURL: srv.URL})
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, DefaultGroqModels, p.Models())

	answer, err := p.Complete(context.Background(), "llama-3.3-70b-versatile", "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "It is **alpha**.", answer)
	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.Zero(t, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "prompt text", got.Messages[0].Content)
}

func TestOpenAICompatible_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"429", http.StatusTooManyRequests, `{"error":"slow down"}`, rag.ErrRateLimited},
		{"quota in body", http.StatusForbidden, `{"error":{"message":"You exceeded your current quota"}}`, rag.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAICompatible(ProviderConfig{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), "m", "p")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.NotErrorIs(t, err, rag.ErrRateLimited)
				assert.True(t, rag.IsTransient(err))
			}
		})
	}
}

func TestOpenAICompatible_MissingKey(t *testing.T) {
	_, err := NewOpenAICompatible(ProviderConfig{}).Complete(context.Background(), "m", "p")
	assert.ErrorIs(t, err, rag.ErrProviderNotConfigured)
}

func TestGemini_Complete(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"world"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(ProviderConfig{APIKey: "key", BaseURL: srv.URL})
	assert.Equal(t, DefaultGeminiModels, g.Models())

	answer, err := g.Complete(context.Background(), "gemini-2.5-flash", "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", answer)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "the prompt", got.Contents[0].Parts[0].Text)
}

func TestGemini_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGemini(ProviderConfig{APIKey: "key", BaseURL: srv.URL}).Complete(context.Background(), "m", "p")
	assert.Error(t, err)
}

func TestGemini_ResourceExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini(ProviderConfig{APIKey: "key", BaseURL: srv.URL}).Complete(context.Background(), "m", "p")
	assert.ErrorIs(t, err, rag.ErrRateLimited)
}
