// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// OpenAIClient implements schemas.VisionModel against an OpenAI compatible chat API.
// The screenshot URL is passed through and fetched by the provider.
type OpenAIClient struct {
	client     *openai.Client
	httpClient *http.Client
	logger     *zap.Logger
	config     config.ModelConfig
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.ModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httpClient
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: httpClient,
		logger:     logger.Named("llm_client.openai"),
		config:     cfg,
	}, nil
}

// Invoke sends one chat completion carrying the prompt and the screenshot URL.
func (c *OpenAIClient) Invoke(ctx context.Context, req schemas.InvocationRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokensFor(req, c.config),
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    req.ImageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("OpenAI API returned an error",
				zap.Int("status", apiErr.HTTPStatusCode),
				zap.String("message", apiErr.Message))
		} else {
			c.logger.Warn("OpenAI request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		return "", invocationError("openai request failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", invocationError("openai returned no usable reply", fmt.Errorf("openai API returned no choices"))
	}
	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		return "", invocationError("openai returned no usable reply", fmt.Errorf("empty message content (Reason: %s)", choice.FinishReason))
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.String("model", c.config.Model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return choice.Message.Content, nil
}

// Close implements schemas.VisionModel.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
