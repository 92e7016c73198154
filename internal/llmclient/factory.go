// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// NewClient is a factory function that creates a VisionModel based on the configuration.
func NewClient(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (schemas.VisionModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

// maxTokensFor resolves the output cap for one invocation.
func maxTokensFor(req schemas.InvocationRequest, cfg config.ModelConfig) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return schemas.DefaultMaxOutputTokens
}

// invocationError reports a provider failure in the shared taxonomy.
func invocationError(reason string, err error) error {
	return schemas.NewError(schemas.ErrKindModelInvocation, reason, err)
}
