package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/mlewan/docquery/internal/embedding"
)

// DefaultModel is the chat model used unless configured otherwise.
const DefaultModel = "gpt-4o-mini"

// OpenAI is the openai-go backed Gateway. Rate-limited requests are retried
// with exponential backoff; every other failure surfaces as ErrBackend.
type OpenAI struct {
	client *embedding.Client
	model  string
}

// NewOpenAI creates an OpenAI gateway sharing the embedding client. An
// empty model selects the default.
func NewOpenAI(client *embedding.Client, model string) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: client, model: model}
}

// Complete sends the prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	var answer string

	operation := func() error {
		resp, err := o.client.API().Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model:       o.model,
			Temperature: openai.Float(temperature),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return answer, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
