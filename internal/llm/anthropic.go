package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// anthropicProvider wraps the Claude model family. The system prompt
// travels as a dedicated system message and images as base64 inline
// blocks inside the user message.
type anthropicProvider struct {
	model        llms.Model
	modelName    string
	temperature  float64
	maxTokens    int
	handleImages bool
	tryAcquire   permitFunc
	fetcher      *imageFetcher
	logger       *slog.Logger
}

func newAnthropic(opts backendOptions) (*anthropicProvider, error) {
	if opts.apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	model, err := anthropic.New(
		anthropic.WithToken(opts.apiKey),
		anthropic.WithModel(opts.modelName),
	)
	if err != nil {
		return nil, generationErr("anthropic", err)
	}

	return &anthropicProvider{
		model:        model,
		modelName:    opts.modelName,
		temperature:  opts.temperature,
		maxTokens:    opts.maxTokens,
		handleImages: opts.handleImages,
		tryAcquire:   opts.tryAcquire,
		fetcher:      opts.fetcher,
		logger:       opts.logger,
	}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	if err := acquire(p.tryAcquire); err != nil {
		return "", err
	}

	userParts := []llms.ContentPart{llms.TextPart(req.Prompt)}
	if len(req.ImageURLs) > 0 && p.handleImages {
		imageParts, err := p.fetcher.binaryParts(ctx, req.ImageURLs)
		if err != nil {
			return "", generationErr("anthropic", err)
		}
		userParts = append(userParts, imageParts...)
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
		p.logger.Error("anthropic generation failed", "model", p.modelName, "error", err)
		return "", generationErr("anthropic", err)
	}

	text, err := firstChoice(resp)
	if err != nil {
		return "", generationErr("anthropic", err)
	}

	p.logger.Debug("response generated",
		"provider", "anthropic",
		"model", p.modelName,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_len", len(req.Prompt),
		"images", len(req.ImageURLs),
	)
	return text, nil
}
