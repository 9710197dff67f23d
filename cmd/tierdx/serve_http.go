package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tierdx/tierdx/internal/api"
)

var serveHTTPPort int

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the REST API",
	Long: `serve-http exposes POST /api/v1/classify and POST
/api/v1/validate over plain HTTP, for callers that would rather not
speak MCP.`,
	Example: `  tierdx serve-http --port 8080`,
	RunE:    runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().IntVarP(&serveHTTPPort, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	configManager, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHTTPPort != 0 {
		configManager.GetConfig().Server.Port = serveHTTPPort
	}

	server := api.NewServer(configManager)

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
