// Package genai is the Genkit-backed model client.
//
// It implements dialogue.Generator and knowledge.Embedder on top of the
// configured provider plugin (Google AI by default, Ollama for local runs).
// Every backend call goes through the same resilience stack: proactive rate
// limiting, retry with exponential backoff on transient failures, and a
// circuit breaker that fails fast while the backend is down.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"golang.org/x/time/rate"

	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/session"
)

// FallbackResponseMessage is returned when the model produces an empty
// response.
const FallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// Client talks to the model backend through Genkit.
type Client struct {
	g         *genkit.Genkit
	embedder  ai.Embedder
	modelName string

	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
	logger  log.Logger
}

// Options tunes the resilience stack. Zero values use defaults.
type Options struct {
	Retry       RetryConfig
	Breaker     CircuitBreakerConfig
	RateLimiter *rate.Limiter
}

// New initializes Genkit with the configured provider and returns the client.
func New(ctx context.Context, cfg *config.Config, opts Options, logger log.Logger) (*Client, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		return nil, errors.New("genai: logger is required")
	}

	var g *genkit.Genkit
	var embedder ai.Embedder

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized Genkit with googleai provider",
			"model", cfg.ModelName)
	}

	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q",
			cfg.EmbedderModel, cfg.Provider)
	}

	retryCfg := opts.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = DefaultRetryConfig()
	}
	limiter := opts.RateLimiter
	if limiter == nil {
		// 10 req/s sustained, burst of 30
		limiter = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:         g,
		embedder:  embedder,
		modelName: cfg.FullModelName(),
		retry:     retryCfg,
		breaker:   NewCircuitBreaker(opts.Breaker),
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Generate implements dialogue.Generator.
func (c *Client) Generate(ctx context.Context, req dialogue.Request) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("circuit breaker is open, rejecting generation",
			"state", c.breaker.State().String())
		return "", fmt.Errorf("service unavailable: %w", err)
	}

	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role == session.RoleAgent {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.UserMessage)))

	resp, err := executeWithRetry(ctx, c, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g,
			ai.WithSystem(req.System),
			ai.WithMessages(messages...),
			ai.WithModelName(c.modelName),
		)
	})
	if err != nil {
		c.breaker.Failure()
		return "", fmt.Errorf("generating response: %w", err)
	}
	c.breaker.Success()

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		c.logger.Warn("model returned empty response")
		return FallbackResponseMessage, nil
	}
	return text, nil
}

// Embed implements knowledge.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("circuit breaker is open, rejecting embedding",
			"state", c.breaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := executeWithRetry(ctx, c, func(ctx context.Context) (*ai.EmbedResponse, error) {
		return c.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	})
	if err != nil {
		c.breaker.Failure()
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	c.breaker.Success()

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts",
			len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Embedding
	}
	return out, nil
}

// BreakerState exposes the circuit state for the readiness endpoint.
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}
