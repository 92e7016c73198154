// -- cmd/components.go --
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/decision"
	"github.com/xkilldash9x/pagepilot/internal/imagehost"
	"github.com/xkilldash9x/pagepilot/internal/llmclient"
)

// Constructors are variables so command tests can substitute fakes.
var (
	newVisionModel = llmclient.NewClient
	newImageHost   = func(cfg config.ImageHostConfig, logger *zap.Logger) (schemas.ImageHost, error) {
		host, err := imagehost.NewGitHubHost(cfg, logger)
		if err != nil {
			return nil, err
		}
		return host, nil
	}
	newPageCapturer = func(cfg config.BrowserConfig, logger *zap.Logger) schemas.PageCapturer {
		return browser.NewCapturer(cfg, logger)
	}
)

// buildDecider wires a vision model into a decision service. The returned close
// function releases the model's connections.
func buildDecider(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.Decider, func(), error) {
	modelCfg := cfg.Model()
	model, err := newVisionModel(ctx, modelCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vision model client: %w", err)
	}

	svc := decision.NewService(model, logger,
		decision.WithTimeout(modelCfg.APITimeout),
		decision.WithMaxOutputTokens(modelCfg.MaxTokens),
	)
	closeFn := func() {
		if err := model.Close(); err != nil {
			logger.Warn("Failed to close vision model client", zap.Error(err))
		}
	}
	return svc, closeFn, nil
}
