// Package embedding converts chunk and query text into fixed-dimension
// vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the embedding model used unless configured otherwise.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size of text-embedding-3-small.
	DefaultDimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	DefaultBatchSize = 500
)

// Model embeds text into fixed-length vectors. Implementations must be
// deterministic for identical input.
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OpenAI is the openai-go backed Model. It batches requests and retries
// rate-limited batches with exponential backoff.
type OpenAI struct {
	client    *Client
	model     string
	batchSize int
}

// NewOpenAI creates an OpenAI embedder. Empty model and zero batch size
// select the defaults.
func NewOpenAI(client *Client, model string, batchSize int) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &OpenAI{client: client, model: model, batchSize: batchSize}
}

// Dimension returns the embedding vector length.
func (o *OpenAI) Dimension() int { return DefaultDimension }

// Embed generates one vector per input text, in input order.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32
	for i := 0; i < len(texts); i += o.batchSize {
		end := min(i+o.batchSize, len(texts))
		vectors, err := o.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatch embeds a single batch, retrying HTTP 429 with backoff. Other
// errors are permanent.
func (o *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := o.client.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: o.model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows API float64 vectors to the float32 storage type.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
