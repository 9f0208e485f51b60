package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer             string                  `json:"answer"`
	Sources            []domain.SourceCitation `json:"sources"`
	NumSources         int                     `json:"num_sources"`
	TokensUsed         int                     `json:"tokens_used"`
	Cost               float64                 `json:"cost"`
	StandaloneQuestion string                  `json:"standalone_question,omitempty"`
	Warnings           []string                `json:"warnings,omitempty"`
	Error              string                  `json:"error,omitempty"`
	ErrorKind          string                  `json:"error_kind,omitempty"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Folder     string   `json:"folder" jsonschema:"the folder to index"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"file suffixes to index, e.g. .pdf (default: configured extensions)"`
	Force      bool     `json:"force,omitempty" jsonschema:"reprocess files even when unchanged"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	TotalFiles    int      `json:"total_files"`
	NewFiles      int      `json:"new_files"`
	UpdatedFiles  int      `json:"updated_files"`
	SkippedFiles  int      `json:"skipped_files"`
	TotalChunks   int      `json:"total_chunks"`
	Errors        []string `json:"processing_errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	ManifestSaved bool     `json:"manifest_saved"`
	DurationMS    int64    `json:"duration_ms"`
}

// EmptyInput is the input of tools without arguments.
type EmptyInput struct{}

// CollectionOutput is the output schema for the collection_info tool.
type CollectionOutput struct {
	Name        string `json:"name"`
	PointsCount int    `json:"points_count"`
	Status      string `json:"status"`
	Dimension   int    `json:"dimension"`
	Metric      string `json:"metric,omitempty"`
}

// MemoryOutput is the output schema for the memory tools.
type MemoryOutput struct {
	Summary string             `json:"summary"`
	Stats   domain.MemoryStats `json:"stats"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents, citing sources. Follow-up questions share conversation memory.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest",
		Description: "Index new and changed documents in a folder",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "collection_info",
		Description: "Describe the vector collection: points count, status and dimension",
	}, s.handleCollectionInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reset_memory",
		Description: "Forget the conversation so far",
	}, s.handleResetMemory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Report the conversation summary and memory usage",
	}, s.handleMemoryStats)
}

// handleAsk answers a question. Provider failures are reported in the
// output, not as tool errors.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Conversation == nil {
		return nil, AskOutput{}, ErrNoConversation
	}
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, domain.ErrInvalidInput
	}

	result := s.ports.Conversation.Query(ctx, input.Question)
	return nil, AskOutput{
		Answer:             result.Answer,
		Sources:            result.Sources,
		NumSources:         result.Metadata.NumSources,
		TokensUsed:         result.Metadata.TokensUsed,
		Cost:               result.Metadata.Cost,
		StandaloneQuestion: result.Metadata.StandaloneQuestion,
		Warnings:           result.Metadata.Warnings,
		Error:              result.Metadata.Error,
		ErrorKind:          string(result.Metadata.ErrorKind),
	}, nil
}

// handleIngest indexes a folder.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if strings.TrimSpace(input.Folder) == "" {
		return nil, IngestOutput{}, domain.ErrInvalidInput
	}
	extensions := input.Extensions
	if len(extensions) == 0 {
		extensions = s.ports.Extensions
	}

	stats, err := s.ports.Ingestion.Ingest(ctx, domain.IngestOptions{
		Folder:     input.Folder,
		Extensions: extensions,
		Force:      input.Force,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		TotalFiles:    stats.TotalFiles,
		NewFiles:      stats.NewFiles,
		UpdatedFiles:  stats.UpdatedFiles,
		SkippedFiles:  stats.SkippedFiles,
		TotalChunks:   stats.TotalChunks,
		Errors:        stats.Errors,
		Warnings:      stats.Warnings,
		ManifestSaved: stats.ManifestSaved,
		DurationMS:    stats.Duration.Milliseconds(),
	}, nil
}

// handleCollectionInfo describes the collection.
func (s *Server) handleCollectionInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, CollectionOutput, error) {
	info, err := s.ports.Ingestion.CollectionInfo(ctx)
	if err != nil {
		return nil, CollectionOutput{}, err
	}
	return nil, CollectionOutput{
		Name:        info.Name,
		PointsCount: info.PointsCount,
		Status:      info.Status,
		Dimension:   info.Dimension,
		Metric:      info.Metric,
	}, nil
}

// handleResetMemory clears the conversation.
func (s *Server) handleResetMemory(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, MemoryOutput, error) {
	if s.ports.Conversation == nil {
		return nil, MemoryOutput{}, ErrNoConversation
	}
	s.ports.Conversation.Reset()
	return nil, s.memoryOutput(), nil
}

// handleMemoryStats reports memory usage.
func (s *Server) handleMemoryStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, MemoryOutput, error) {
	if s.ports.Conversation == nil {
		return nil, MemoryOutput{}, ErrNoConversation
	}
	return nil, s.memoryOutput(), nil
}

func (s *Server) memoryOutput() MemoryOutput {
	return MemoryOutput{
		Summary: s.ports.Conversation.Summary(),
		Stats:   s.ports.Conversation.MemoryStats(),
	}
}
