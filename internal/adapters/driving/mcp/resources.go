package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for engine resources.
	uriScheme = "ragengine://"

	collectionURI = uriScheme + "collection"
	summaryURI    = uriScheme + "memory/summary"
	historyURI    = uriScheme + "memory/history"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         collectionURI,
		Name:        "collection",
		Description: "The vector collection backing the document index",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)

	s.server.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "conversation-summary",
		Description: "Running summary of the conversation",
		MIMEType:    "text/plain",
	}, s.handleSummaryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         historyURI,
		Name:        "conversation-history",
		Description: "Messages held verbatim in conversation memory",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

// handleCollectionResource returns the collection description.
func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	info, err := s.ports.Ingestion.CollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("describing collection: %w", err)
	}
	return jsonResource(req.Params.URI, info)
}

// handleSummaryResource returns the running conversation summary.
func (s *Server) handleSummaryResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Conversation == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     s.ports.Conversation.Summary(),
		}},
	}, nil
}

// handleHistoryResource returns the verbatim messages in memory.
func (s *Server) handleHistoryResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Conversation == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, s.ports.Conversation.History())
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
