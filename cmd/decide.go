// -- cmd/decide.go --
package cmd

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newDecideCmd() *cobra.Command {
	var requestFile string

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Run one decision for a request file and print the chosen action",
		Long: `Reads a request in the same shape /process_query accepts
(query_string, img_url, element_centers, current_link, log) and prints the
decision as JSON. Use "-" to read the request from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			raw, err := readRequest(cmd, requestFile)
			if err != nil {
				return err
			}
			var req server.ProcessQueryRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("failed to parse request file: %w", err)
			}

			decider, closeModel, err := buildDecider(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeModel()

			result, err := decider.Decide(ctx, req.ToDecisionRequest())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&requestFile, "request", "r", "", "path to the request JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func readRequest(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read request from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
