// Package langchain adapts any langchaingo llms.Model to the engine's
// llm.Client interface, so the full roster of langchaingo providers can
// drive an analysis.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/gasl-lang/gasl/llm"
)

// Client wraps a langchaingo model.
type Client struct {
	model llms.Model
	opts  []llms.CallOption
}

var _ llm.Client = (*Client)(nil)

// New wraps model; callOpts are forwarded to every GenerateContent call.
func New(model llms.Model, callOpts ...llms.CallOption) *Client {
	return &Client{model: model, opts: callOpts}
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	resp, err := c.model.GenerateContent(ctx, messages, c.opts...)
	if err != nil {
		return "", fmt.Errorf("langchain generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain generate: empty response")
	}
	return resp.Choices[0].Content, nil
}

// GenerateStructured implements llm.Client.
func (c *Client) GenerateStructured(ctx context.Context, system, prompt string, out any) error {
	reply, err := c.Generate(ctx, system, prompt)
	if err != nil {
		return err
	}
	return llm.DecodeStructured(reply, out)
}
