package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over MCP or REST",
		Long: "Serve the retrieval tools and ingestion triggers.\n" +
			"  stdio  MCP over stdin/stdout (default)\n" +
			"  http   REST plus MCP streamable HTTP at /mcp\n" +
			"  rest   REST only",
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("transport", "t", "", "Transport: stdio, http or rest (default from config)")
	cmd.Flags().String("addr", "", "Listen address for http/rest (default from config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, done, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer done()

	cfg := a.Config.Server
	if transport != "" {
		cfg.Transport = transport
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if err := server.Serve(ctx, cfg, a.Dispatcher, a.Pipeline, a.Log, Version); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
