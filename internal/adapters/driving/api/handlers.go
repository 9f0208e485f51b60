package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Folder     string   `json:"folder"`
	Extensions []string `json:"extensions"`
	Force      bool     `json:"force"`
}

// MemoryResponse describes a session's memory.
type MemoryResponse struct {
	SessionID string             `json:"session_id"`
	Summary   string             `json:"summary"`
	Stats     domain.MemoryStats `json:"stats"`
	History   []domain.Message   `json:"history"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		abortWithError(c, errBadRequest("question is required"))
		return
	}
	conv, ok := s.conversation(c, req.SessionID, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conv.Query(c.Request.Context(), req.Question))
}

func (s *Server) handleIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Folder) == "" {
		abortWithError(c, errBadRequest("folder is required"))
		return
	}
	extensions := req.Extensions
	if len(extensions) == 0 {
		extensions = s.extensions
	}
	stats, err := s.ingestion.Ingest(c.Request.Context(), domain.IngestOptions{
		Folder:     req.Folder,
		Extensions: extensions,
		Force:      req.Force,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCollection(c *gin.Context) {
	info, err := s.ingestion.CollectionInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleMemory(c *gin.Context) {
	id := s.sessionID(c, c.Query("session_id"))
	conv, ok := s.conversation(c, id, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, memoryResponse(id, conv))
}

func (s *Server) handleResetMemory(c *gin.Context) {
	id := s.sessionID(c, c.Query("session_id"))
	conv, ok := s.conversation(c, id, false)
	if !ok {
		return
	}
	conv.Reset()
	c.JSON(http.StatusOK, memoryResponse(id, conv))
}

// conversation resolves the request's session. With create unset an
// unknown session is reported as not found.
func (s *Server) conversation(c *gin.Context, requested string, create bool) (driving.ConversationService, bool) {
	if s.sessions == nil {
		abortWithError(c, domain.ErrLLMUnavailable)
		return nil, false
	}
	id := s.sessionID(c, requested)
	if create {
		return s.sessions.Get(id), true
	}
	conv, ok := s.sessions.Lookup(id)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "unknown session " + id})
		return nil, false
	}
	return conv, true
}

// sessionID prefers the authenticated subject over the requested id.
func (s *Server) sessionID(c *gin.Context, requested string) string {
	if subject := c.GetString(contextSessionKey); subject != "" {
		return subject
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if header := strings.TrimSpace(c.GetHeader("X-Session-ID")); header != "" {
		return header
	}
	return DefaultSession
}

func memoryResponse(id string, conv driving.ConversationService) MemoryResponse {
	return MemoryResponse{
		SessionID: id,
		Summary:   conv.Summary(),
		Stats:     conv.MemoryStats(),
		History:   conv.History(),
	}
}
