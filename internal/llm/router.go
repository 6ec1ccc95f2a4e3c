package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jamisonl/Reverie/internal/config"
	"github.com/jamisonl/Reverie/internal/ratelimit"
)

// Family identifies a backend family sharing one wire contract.
type Family string

const (
	FamilyGemini    Family = "gemini"
	FamilyAnthropic Family = "anthropic"
	FamilyOpenAI    Family = "openai"
)

// FamilyFor selects the backend family for a model identifier. Matching
// is case-insensitive substring with fixed priority; anything unmatched
// falls back to the OpenAI-compatible family.
func FamilyFor(modelIdentifier string) Family {
	model := strings.ToLower(modelIdentifier)
	switch {
	case strings.Contains(model, "gemini"), strings.Contains(model, "tunedmodels"):
		return FamilyGemini
	case strings.Contains(model, "claude"):
		return FamilyAnthropic
	default:
		return FamilyOpenAI
	}
}

// backendOptions carries the per-backend settings shared by all variants.
type backendOptions struct {
	modelName    string
	apiKey       string
	baseURL      string
	temperature  float64
	maxTokens    int
	handleImages bool
	tryAcquire   permitFunc
	fetcher      *imageFetcher
	logger       *slog.Logger
}

// NewProvider constructs the generation backend for the configured
// model, wired to its rate limiter. Selection happens once at startup;
// a missing credential fails construction.
func NewProvider(ctx context.Context, cfg config.Config, limiter *ratelimit.Limiter, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := backendOptions{
		modelName:    cfg.ModelName,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
		handleImages: cfg.HandleImages,
		tryAcquire:   limiter.TryAcquire,
		fetcher:      newImageFetcher(),
		logger:       logger,
	}

	family := FamilyFor(cfg.ModelName)
	logger.Debug("selected generation backend", "model", cfg.ModelName, "family", family)

	switch family {
	case FamilyGemini:
		return newGemini(ctx, opts)
	case FamilyAnthropic:
		return newAnthropic(opts)
	default:
		return newOpenAI(opts)
	}
}
