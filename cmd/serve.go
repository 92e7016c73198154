// -- cmd/serve.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/server"
)

// runServer is replaced in tests to avoid binding a real port.
var runServer = func(ctx context.Context, srv *server.Server) error { return srv.Run(ctx) }

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door (/process_query, /upload)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SetServerAddr(addr)
				srvCfg := cfg.Server()
				if err := srvCfg.Validate(); err != nil {
					return fmt.Errorf("invalid --addr: %w", err)
				}
			}

			decider, closeModel, err := buildDecider(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeModel()

			// Uploads are optional; decisions work without an image host.
			var host schemas.ImageHost
			if h, err := newImageHost(cfg.ImageHost(), logger); err != nil {
				logger.Warn("Image host disabled, /upload will fail", zap.Error(err))
			} else {
				host = h
			}

			srv := server.New(cfg.Server(), decider, host, logger)
			if err := runServer(ctx, srv); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server exited with error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr (e.g. :5000)")
	return cmd
}
