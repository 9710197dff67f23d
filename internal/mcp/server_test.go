package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/config"
)

func TestNewServerWiresDefaultConfig(t *testing.T) {
	configManager, err := config.NewManager()
	require.NoError(t, err)

	server, err := NewServer(configManager)
	require.NoError(t, err)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.logger)
	assert.NotNil(t, server.toolRegistry)
}

func TestNewServerRegistersTieringTools(t *testing.T) {
	configManager, err := config.NewManager()
	require.NoError(t, err)

	server, err := NewServer(configManager)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, info := range server.toolRegistry.GetRegisteredToolsInfo() {
		names[info.Name] = true
	}
	assert.True(t, names["classify_variant"])
	assert.True(t, names["run_validation"])
	assert.True(t, names["get_cached_evidence"])
	assert.True(t, names["list_source_health"])
}
