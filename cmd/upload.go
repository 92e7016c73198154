// -- cmd/upload.go --
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload an image to the configured image host and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			host, err := newImageHost(cfg.ImageHost(), logger)
			if err != nil {
				return fmt.Errorf("failed to create image host: %w", err)
			}

			url, err := host.Put(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
