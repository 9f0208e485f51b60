package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMCPCmd_Use(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
}

func TestMCPCmd_HasHTTPFlag(t *testing.T) {
	flag := mcpCmd.Flags().Lookup("http")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestMCPCmd_NoIngestion(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	ingestionService = nil

	_, err := execute(t, "mcp")

	assert.EqualError(t, err, "ingestion service not configured")
}
