package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// Client wraps the OpenAI client shared by the embedder and the completion
// gateway.
type Client struct {
	api *openai.Client
}

// NewClient creates an OpenAI client. It requires OPENAI_API_KEY in the
// environment.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment
	api := openai.NewClient()

	return &Client{api: &api}, nil
}

// API exposes the underlying client for other packages (completion gateway).
func (c *Client) API() *openai.Client {
	return c.api
}
