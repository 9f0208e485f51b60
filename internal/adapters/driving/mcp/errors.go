// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// RAG engine. It lets AI assistants ask questions about the indexed documents
// and trigger ingestion.
package mcp

import "errors"

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is required")

// ErrNoConversation is returned by conversation tools when no LLM is configured.
var ErrNoConversation = errors.New("mcp: conversation is not available, configure an LLM provider")
