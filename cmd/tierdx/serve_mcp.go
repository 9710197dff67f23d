package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tierdx/tierdx/internal/mcp"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start the MCP server",
	Long: `serve-mcp exposes classify_variant, run_validation,
get_cached_evidence, and list_source_health as MCP tools over stdio or
HTTP-SSE, whichever transport the configuration or environment
selects.`,
	Example: `  tierdx serve-mcp`,
	RunE:    runServeMCP,
}

func runServeMCP(cmd *cobra.Command, args []string) error {
	configManager, err := loadConfig()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(configManager)
	if err != nil {
		return fmt.Errorf("building MCP server: %w", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return server.Start(ctx)
}
