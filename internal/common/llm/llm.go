// Package llm adapts chat completion providers to a single call shape: one
// system message, one user prompt, a JSON object back as raw text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/internal/common/logger"
)

var (
	ErrNoChoices       = errors.New("completion response contained no choices")
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Request is a single completion call.
type Request struct {
	System string
	Prompt string
}

// Completer returns the raw text of a model completion. Implementations
// never retry; retry policy belongs to the workflow.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Options are the sampling settings shared by every provider.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func optionsFrom(cfg config.LLMConfig) Options {
	return Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// New selects the provider named in cfg.
func New(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client, log logger.Logger) (Completer, error) {
	log = log.WithFields(map[string]interface{}{
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, optionsFrom(cfg), httpClient, log), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL, optionsFrom(cfg), httpClient, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func logCompletion(log logger.Logger, start time.Time, content string, finishReason string) {
	fields := map[string]interface{}{
		"duration_ms":   time.Since(start).Milliseconds(),
		"contentLength": len(content),
		"finishReason":  finishReason,
	}
	// a length cut-off almost always yields unparsable JSON downstream
	if finishReason == "length" || finishReason == "MAX_TOKENS" {
		log.Warn("completion truncated by token limit", fields)
		return
	}
	log.Debug("completion received", fields)
}
