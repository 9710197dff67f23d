// Package mcp implements the Model Context Protocol surface: a custom
// JSON-RPC 2.0 core (protocol/, transport/) bridged into the official
// MCP SDK, exposing the tiering pipeline as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/mcp/observability"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
	"github.com/tierdx/tierdx/internal/mcp/tools"
	"github.com/tierdx/tierdx/internal/mcp/transport"
	"github.com/tierdx/tierdx/internal/wiring"
)

// Server is the tierdx MCP server: it exposes classify_variant,
// run_validation, get_cached_evidence, and list_source_health over
// whichever transport the configuration or environment selects.
type Server struct {
	config          *config.Manager
	mcpServer       *mcp.Server
	transportMgr    *transport.Manager
	activeTransport transport.Transport
	toolRegistry    *tools.ToolRegistry
	obs             *observability.Hub
	logger          *logrus.Logger
}

// NewServer builds a Server, wiring the full assessment pipeline and
// validator from configManager's configuration.
func NewServer(configManager *config.Manager) (*Server, error) {
	logger := logrus.New()
	cfg := configManager.GetConfig()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	tables := config.DefaultTables()
	pipeline := wiring.Build(cfg, tables, logger)
	validator := wiring.BuildValidator(cfg, tables, logger)
	sourceClients := wiring.SourceClients(cfg)

	transportMgr := transport.NewManager(logger, &cfg.MCP)
	router := protocol.NewMessageRouter(logger)

	obs := observability.New(logger)
	toolRegistry := tools.NewToolRegistry(logger, router, obs)
	if err := toolRegistry.RegisterAllTools(pipeline, validator, sourceClients); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	if err := toolRegistry.ValidateAllTools(); err != nil {
		return nil, fmt.Errorf("validating tools: %w", err)
	}

	serverInfo := &mcp.Implementation{Name: "tierdx", Version: "v0.1.0"}
	mcpServer := mcp.NewServer(serverInfo, nil)

	server := &Server{
		config:       configManager,
		mcpServer:    mcpServer,
		transportMgr: transportMgr,
		toolRegistry: toolRegistry,
		obs:          obs,
		logger:       logger,
	}

	if err := server.registerMCPTools(mcpServer, toolRegistry); err != nil {
		return nil, fmt.Errorf("registering MCP tools with SDK: %w", err)
	}

	return server, nil
}

// registerMCPTools bridges every domain tool handler into the MCP SDK's
// tool registry.
func (s *Server) registerMCPTools(mcpServer *mcp.Server, toolRegistry *tools.ToolRegistry) error {
	toolsInfo := toolRegistry.GetRegisteredToolsInfo()
	for _, toolInfo := range toolsInfo {
		toolDef := &mcp.Tool{Name: toolInfo.Name, Description: toolInfo.Description}
		handler := NewMCPToolHandler(toolRegistry, toolInfo.Name, s.logger)
		mcpServer.AddTool(toolDef, handler)
		s.logger.WithField("tool_name", toolInfo.Name).Debug("registered MCP tool")
	}
	s.logger.WithField("tool_count", len(toolsInfo)).Info("registered all tools with MCP SDK")
	return nil
}

// Start starts the server on the transport selected by configuration,
// command-line flag, or environment, and blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting tierdx MCP server")

	s.obs.Start(ctx)

	activeTransport, err := s.transportMgr.StartTransport(ctx)
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	s.activeTransport = activeTransport
	s.logger.WithField("transport_type", activeTransport.GetType()).Info("transport initialized")

	mcpTransport := NewMCPTransportBridge(activeTransport, s.logger)
	if err := s.mcpServer.Run(ctx, mcpTransport); err != nil {
		s.activeTransport.Close()
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases server resources.
func (s *Server) Close() error {
	s.obs.Close()
	if s.activeTransport != nil {
		s.activeTransport.Close()
	}
	return nil
}
