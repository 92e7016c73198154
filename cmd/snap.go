// -- cmd/snap.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// snapOutput is what snap prints: the captured state next to the decision made from it.
type snapOutput struct {
	CurrentURL string                  `json:"current_url"`
	Title      string                  `json:"title,omitempty"`
	ImgURL     string                  `json:"img_url"`
	Elements   schemas.ElementMap      `json:"elements"`
	Decision   *schemas.DecisionResult `json:"decision"`
}

func newSnapCmd() *cobra.Command {
	var (
		url     string
		goal    string
		logs    []string
		headful bool
	)

	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Capture a page, upload its screenshot, and decide the next action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if headful {
				cfg.SetBrowserHeadless(false)
			}

			// Fail on configuration before paying for a browser launch.
			host, err := newImageHost(cfg.ImageHost(), logger)
			if err != nil {
				return fmt.Errorf("failed to create image host: %w", err)
			}
			decider, closeModel, err := buildDecider(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeModel()

			capturer := newPageCapturer(cfg.Browser(), logger)
			defer func() {
				if err := capturer.Close(); err != nil {
					logger.Warn("Failed to close browser", zap.Error(err))
				}
			}()

			snap, err := capturer.Capture(ctx, url)
			if err != nil {
				return err
			}

			imgURL, err := host.Put(ctx, snap.Screenshot)
			if err != nil {
				return err
			}

			if logs == nil {
				logs = []string{}
			}
			result, err := decider.Decide(ctx, schemas.DecisionRequest{
				Goal:          goal,
				Elements:      snap.Elements,
				Log:           logs,
				CurrentURL:    snap.CurrentURL,
				ScreenshotRef: imgURL,
			})
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), snapOutput{
				CurrentURL: snap.CurrentURL,
				Title:      snap.Title,
				ImgURL:     imgURL,
				Elements:   snap.Elements,
				Decision:   result,
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page to capture")
	cmd.Flags().StringVar(&goal, "goal", "", "what the user wants to achieve")
	cmd.Flags().StringArrayVar(&logs, "log", nil, "previous action taken toward the goal (repeatable)")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}
