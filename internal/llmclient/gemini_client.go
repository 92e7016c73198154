// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// GeminiClient implements schemas.VisionModel on the Google Gen AI SDK.
type GeminiClient struct {
	client      *genai.Client
	httpClient  *http.Client
	imageClient *http.Client
	logger      *zap.Logger
	config      config.ModelConfig
}

// NewGeminiClient initializes the client. No network traffic happens until Invoke.
func NewGeminiClient(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		httpClient:  httpClient,
		imageClient: newImageClient(cfg.APITimeout, cfg.AllowPrivateImageHosts),
		logger:      logger.Named("llm_client.gemini"),
		config:      cfg,
	}, nil
}

// Invoke sends the prompt and the screenshot to the model once and returns its text.
// The screenshot is downloaded and sent inline.
func (c *GeminiClient) Invoke(ctx context.Context, req schemas.InvocationRequest) (string, error) {
	image, mimeType, err := fetchImage(ctx, c.imageClient, req.ImageURL)
	if err != nil {
		return "", invocationError("could not load screenshot", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, c.generationConfig(req))
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("Gemini request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", invocationError("gemini request failed", err)
	}

	text, err := replyText(resp)
	if err != nil {
		return "", invocationError("gemini returned no usable reply", err)
	}

	fields := []zap.Field{
		zap.String("model", c.config.Model),
		zap.Duration("duration", duration),
	}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
			zap.Int32("total_tokens", u.TotalTokenCount),
		)
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)

	return text, nil
}

// Close implements schemas.VisionModel. The SDK client holds no closable resources.
func (c *GeminiClient) Close() error {
	c.httpClient.CloseIdleConnections()
	c.imageClient.CloseIdleConnections()
	return nil
}

func (c *GeminiClient) generationConfig(req schemas.InvocationRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensFor(req, c.config)),
		Temperature:     genai.Ptr(c.config.Temperature),
	}
	if c.config.TopP > 0 {
		gc.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.TopK > 0 {
		gc.TopK = genai.Ptr(float32(c.config.TopK))
	}

	// Viper lowercases map keys; the API expects the upper case enum names.
	for category, threshold := range c.config.SafetyFilters {
		gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(strings.ToUpper(category)),
			Threshold: genai.HarmBlockThreshold(strings.ToUpper(threshold)),
		})
	}
	return gc
}

// replyText joins the non-thought text parts of the first candidate.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked (Reason: %s)", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini API returned no text (Reason: %s)", candidate.FinishReason)
	}
	return sb.String(), nil
}
