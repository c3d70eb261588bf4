package assist

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Completer is the outbound boundary to the text-generation service. The
// pipeline treats it as an opaque request/reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatClient calls an OpenAI-compatible chat-completions endpoint with a
// fixed model, temperature and output-length ceiling.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewChatClient builds a client. baseURL may be empty for the default
// endpoint; apiKey must be set by the caller (it is persisted in the
// credential store, not here).
func NewChatClient(apiKey, baseURL, model string, temperature float32, maxTokens int) (*ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chat client: missing api key")
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion: empty reply")
	}
	return resp.Choices[0].Message.Content, nil
}
