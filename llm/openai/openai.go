// Package openai implements llm.Client over the OpenAI chat completion
// API, including any OpenAI-compatible endpoint via WithBaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/gasl-lang/gasl/llm"
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

// Client calls the OpenAI chat completion endpoint.
type Client struct {
	client      *goopenai.Client
	model       string
	temperature float32
}

var _ llm.Client = (*Client)(nil)

type options struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithAPIKey sets the API key. Defaults to the OPENAI_API_KEY
// environment variable.
func WithAPIKey(apiKey string) Option {
	return func(o *options) { o.apiKey = apiKey }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithModel sets the model name. Defaults to gpt-4o.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float32) Option {
	return func(o *options) { o.temperature = temperature }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// New creates an OpenAI-backed llm.Client.
func New(opts ...Option) (*Client, error) {
	o := &options{
		apiKey: os.Getenv("OPENAI_API_KEY"),
		model:  goopenai.GPT4o,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	cfg := goopenai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &Client{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       o.model,
		temperature: o.temperature,
	}, nil
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []goopenai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured implements llm.Client.
func (c *Client) GenerateStructured(ctx context.Context, system, prompt string, out any) error {
	reply, err := c.Generate(ctx, system, prompt)
	if err != nil {
		return err
	}
	return llm.DecodeStructured(reply, out)
}
