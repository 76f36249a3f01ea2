package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/rag"
)

// DefaultRetryDelay is the pause before the next model after a rate limit.
const DefaultRetryDelay = 2 * time.Second

// Generator walks providers in priority order and, within a provider, its
// models. A rate limit moves to the provider's next model; any other failure
// moves to the next provider.
type Generator struct {
	providers  []rag.ChatProvider
	retryDelay time.Duration
	log        logrus.FieldLogger
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetryDelay sets the wait after a rate-limited model. Zero disables it.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Generator) {
		if d >= 0 {
			g.retryDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a generator over providers, highest priority first.
func NewGenerator(providers []rag.ChatProvider, opts ...Option) *Generator {
	g := &Generator{
		providers:  providers,
		retryDelay: DefaultRetryDelay,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers question from chunks.
func (g *Generator) Generate(ctx context.Context, question string, chunks []rag.ScoredChunk) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is empty", rag.ErrInvalidInput)
	}
	if len(g.providers) == 0 {
		return "", fmt.Errorf("%w: no chat providers configured", rag.ErrGeneration)
	}
	prompt := BuildPrompt(question, chunks)

	var lastErr error
	for i, p := range g.providers {
		log := g.log.WithField("provider", p.Name())
		answer, err := g.tryProvider(ctx, log, p, prompt)
		if err == nil {
			if i > 0 {
				log.WithField("attempt", i+1).Info("llm: used fallback provider")
			}
			return answer, nil
		}
		if errors.Is(err, rag.ErrAllModelsRateLimited) || !rag.IsTransient(err) {
			return "", err
		}
		lastErr = err
		log.WithError(err).Warn("llm: provider failed, trying next")
	}
	return "", fmt.Errorf("%w: all providers failed: %w", rag.ErrGeneration, lastErr)
}

// tryProvider walks the provider's models. It returns ErrAllModelsRateLimited
// only when every model was rate limited.
func (g *Generator) tryProvider(ctx context.Context, log logrus.FieldLogger, p rag.ChatProvider, prompt string) (string, error) {
	models := p.Models()
	if len(models) == 0 {
		return "", fmt.Errorf("%w: %s has no models", rag.ErrProviderNotConfigured, p.Name())
	}
	for i, model := range models {
		answer, err := p.Complete(ctx, model, prompt)
		if err == nil {
			return answer, nil
		}
		if !errors.Is(err, rag.ErrRateLimited) {
			return "", fmt.Errorf("%s/%s: %w", p.Name(), model, err)
		}

		log.WithField("model", model).Warn("llm: model rate limited")
		if i == len(models)-1 {
			break
		}
		if err := g.wait(ctx); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %w: %s", rag.ErrGeneration, rag.ErrAllModelsRateLimited, p.Name())
}

func (g *Generator) wait(ctx context.Context) error {
	if g.retryDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
