// Package llm provides generation backends and embeddings using langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Request carries one generation call.
type Request struct {
	Prompt       string
	SystemPrompt string
	ImageURLs    []string
}

// Provider is the uniform generation contract over one hosted model
// family. Generate returns the first text completion; a rate-limit
// denial yields ErrUnavailable and any remote failure a *GenerationError,
// so callers can apply different user-facing messaging.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// permitFunc acquires a rate-limit permit; nil error means proceed.
type permitFunc func() error

// acquire maps a rate-limit denial onto ErrUnavailable.
func acquire(tryAcquire permitFunc) error {
	if err := tryAcquire(); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return nil
}

func validate(req Request) error {
	if req.Prompt == "" {
		return errors.New("prompt must not be empty")
	}
	return nil
}

// imageFetcher downloads image bytes for backends whose payload shape
// requires inline media rather than URLs.
type imageFetcher struct {
	client *http.Client
}

func newImageFetcher() *imageFetcher {
	return &imageFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// fetch returns the image bytes and reported content type.
func (f *imageFetcher) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// binaryParts fetches every URL and returns inline media parts.
func (f *imageFetcher) binaryParts(ctx context.Context, urls []string) ([]llms.ContentPart, error) {
	parts := make([]llms.ContentPart, 0, len(urls))
	for _, url := range urls {
		data, mime, err := f.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		parts = append(parts, llms.BinaryPart(mime, data))
	}
	return parts, nil
}

// firstChoice extracts the first text completion from a response.
func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Content, nil
}
