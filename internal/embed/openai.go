package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chanuka/mjadala/internal/model"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings through the OpenAI API. Failures
// map onto the recoverable error classes so the pipeline can fall back
// to the local hashing embedder instead of aborting the run.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    model.EmbeddingConfig
	apiKey string
}

// NewOpenAIEmbedder creates a remote embedder from the embedding config
func NewOpenAIEmbedder(cfg model.EmbeddingConfig, apiKey string) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
		apiKey: apiKey,
	}
}

// Name returns the model name
func (e *OpenAIEmbedder) Name() string {
	return e.cfg.Model
}

// Available reports whether an API key is configured
func (e *OpenAIEmbedder) Available() bool {
	return e.apiKey != ""
}

// Embed generates a vector for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for multiple texts, chunked to the
// configured batch size with a bounded timeout per call
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if !e.Available() {
		return nil, fmt.Errorf("embed: no API key: %w", model.ErrExternalServiceUnavailable)
	}
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	vectors := make([]Vector, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, chunk...)
	}

	return vectors, nil
}

func (e *OpenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([]Vector, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.cfg.Model),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embed: %s: %w", e.cfg.Model, model.ErrTimeout)
		}
		return nil, fmt.Errorf("embed: %s: %v: %w", e.cfg.Model, err, model.ErrExternalServiceUnavailable)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts: %w",
			len(resp.Data), len(texts), model.ErrExternalServiceUnavailable)
	}

	vectors := make([]Vector, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = Vector(d.Embedding)
	}

	return vectors, nil
}
