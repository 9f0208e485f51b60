package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

Tools: ask, ingest, collection_info, reset_memory, memory_stats.
The ask tool keeps conversation memory for the lifetime of the server.

By default the server communicates over stdio. Use --http to serve
streamable HTTP instead, e.g. for the MCP Inspector.

Examples:
  # Stdio mode (for desktop assistants)
  ragengine mcp

  # HTTP mode
  ragengine mcp --http 127.0.0.1:8090

Assistant configuration:
  {
    "mcpServers": {
      "ragengine": {
        "command": "/path/to/ragengine",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	ports := &mcp.Ports{
		Ingestion:  ingestionService,
		Extensions: appConfig.Ingestion.Extensions,
	}
	if conversationFactory != nil {
		ports.Conversation = conversationFactory.NewConversation()
	}

	server, err := mcp.NewServer(ports, version)
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		cmd.Printf("MCP server listening on http://%s\n", mcpHTTPAddr)
		return server.RunHTTP(cmd.Context(), mcpHTTPAddr)
	}
	return server.Run(cmd.Context())
}
