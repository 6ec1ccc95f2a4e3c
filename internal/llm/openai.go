package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openaiProvider wraps any OpenAI-compatible endpoint; it is the
// fallback family since many self-hosted servers mimic the same wire
// contract. Images are passed by URL, not inline.
type openaiProvider struct {
	model        llms.Model
	modelName    string
	temperature  float64
	maxTokens    int
	handleImages bool
	tryAcquire   permitFunc
	logger       *slog.Logger
}

func newOpenAI(opts backendOptions) (*openaiProvider, error) {
	if opts.apiKey == "" {
		return nil, errors.New("openai API key is required")
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.apiKey),
		openai.WithModel(opts.modelName),
	}
	if opts.baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.baseURL))
	}

	model, err := openai.New(clientOpts...)
	if err != nil {
		return nil, generationErr("openai", err)
	}

	return &openaiProvider{
		model:        model,
		modelName:    opts.modelName,
		temperature:  opts.temperature,
		maxTokens:    opts.maxTokens,
		handleImages: opts.handleImages,
		tryAcquire:   opts.tryAcquire,
		logger:       opts.logger,
	}, nil
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	if err := acquire(p.tryAcquire); err != nil {
		return "", err
	}

	userParts := []llms.ContentPart{llms.TextPart(req.Prompt)}
	if len(req.ImageURLs) > 0 && p.handleImages {
		for _, url := range req.ImageURLs {
			userParts = append(userParts, llms.ImageURLPart(url))
		}
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		{Role: llms.ChatMessageTypeHuman, Parts: userParts},
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, messages,
		llms.WithTemperature(p.temperature),
		llms.WithMaxTokens(p.maxTokens),
	)
	if err != nil {
		p.logger.Error("openai generation failed", "model", p.modelName, "error", err)
		return "", generationErr("openai", err)
	}

	text, err := firstChoice(resp)
	if err != nil {
		return "", generationErr("openai", err)
	}

	p.logger.Debug("response generated",
		"provider", "openai",
		"model", p.modelName,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_len", len(req.Prompt),
		"images", len(req.ImageURLs),
	)
	return text, nil
}
