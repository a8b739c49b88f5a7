package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI-backed client.
type OpenAIConfig struct {
	// APIKey authenticates against the service. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string

	// Model selects the completion model. Default: gpt-4o-mini.
	Model string

	// BaseURL overrides the API endpoint for OpenAI-compatible services.
	BaseURL string
}

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates an OpenAIClient. Returns an error when no API
// key is configured or discoverable from the environment.
func NewOpenAIClient(config OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured and OPENAI_API_KEY not set")
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Warn("no model configured, using default", "model", model)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// Complete submits the prompt as a single user message and returns the
// first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("submitting analysis prompt", "model", c.model, "prompt_bytes", len(prompt))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("reasoning service call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("reasoning service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
