package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"travel-planner-workers/internal/common/logger"

	"google.golang.org/genai"
)

// GeminiClient requests application/json completions from the Gemini API.
type GeminiClient struct {
	cli    *genai.Client
	opts   Options
	logger logger.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, baseURL string, opts Options, httpClient *http.Client, log logger.Logger) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, opts: opts, logger: log}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(g.opts.Temperature)),
	}
	if g.opts.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(g.opts.MaxTokens)
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, g.opts.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		gc,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoChoices
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	text := sb.String()
	logCompletion(g.logger, start, text, string(candidate.FinishReason))
	return text, nil
}
