package mcp

import (
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ingestion indexes folders and describes the collection.
	Ingestion driving.IngestionService

	// Conversation answers questions. One conversation serves the whole
	// MCP session, so follow-up questions share memory. Optional.
	Conversation driving.ConversationService

	// Extensions are used by the ingest tool when the caller names none.
	Extensions []string
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	return nil
}
