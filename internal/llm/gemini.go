package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// geminiProvider wraps the Gemini model family. Images are fetched and
// attached as inline media; the system prompt is folded into the text
// part, matching the family's single-content payload shape.
type geminiProvider struct {
	model        llms.Model
	modelName    string
	temperature  float64
	maxTokens    int
	handleImages bool
	tryAcquire   permitFunc
	fetcher      *imageFetcher
	logger       *slog.Logger
}

func newGemini(ctx context.Context, opts backendOptions) (*geminiProvider, error) {
	if opts.apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(opts.apiKey),
		googleai.WithDefaultModel(opts.modelName),
		googleai.WithHarmThreshold(googleai.HarmBlockOnlyHigh),
	)
	if err != nil {
		return nil, generationErr("gemini", err)
	}

	return &geminiProvider{
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

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	if err := acquire(p.tryAcquire); err != nil {
		return "", err
	}

	parts := []llms.ContentPart{
		llms.TextPart(req.SystemPrompt + "\n" + req.Prompt),
	}
	if len(req.ImageURLs) > 0 && p.handleImages {
		imageParts, err := p.fetcher.binaryParts(ctx, req.ImageURLs)
		if err != nil {
			return "", generationErr("gemini", err)
		}
		parts = append(parts, imageParts...)
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, messages,
		llms.WithTemperature(p.temperature),
		llms.WithMaxTokens(p.maxTokens),
	)
	if err != nil {
		p.logger.Error("gemini generation failed", "model", p.modelName, "error", err)
		return "", generationErr("gemini", err)
	}

	text, err := firstChoice(resp)
	if err != nil {
		return "", generationErr("gemini", err)
	}

	p.logger.Debug("response generated",
		"provider", "gemini",
		"model", p.modelName,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_len", len(req.Prompt),
		"images", len(req.ImageURLs),
	)
	return text, nil
}
