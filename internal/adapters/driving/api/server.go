// Package api serves the engine over HTTP: questions, ingestion, the
// collection description and per-session conversation memory.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// DefaultSession is used when a request names no session and
// authentication is off.
const DefaultSession = "default"

// ErrMissingIngestionService is returned when the ingestion service is nil.
var ErrMissingIngestionService = errors.New("api: ingestion service is required")

// Deps are the services behind the API.
type Deps struct {
	Ingestion driving.IngestionService

	// Conversations starts per-session conversations. Nil disables the
	// query and memory routes.
	Conversations driving.ConversationFactory

	// Extensions are used by ingest requests that name none.
	Extensions []string

	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret []byte

	MaxSessions int
}

// Server is the HTTP API.
type Server struct {
	ingestion  driving.IngestionService
	sessions   *Sessions
	extensions []string
	secret     []byte
	engine     *gin.Engine
}

// NewServer builds the router.
func NewServer(deps Deps) (*Server, error) {
	if deps.Ingestion == nil {
		return nil, ErrMissingIngestionService
	}
	s := &Server{
		ingestion:  deps.Ingestion,
		extensions: deps.Extensions,
		secret:     deps.JWTSecret,
	}
	if deps.Conversations != nil {
		sessions, err := NewSessions(deps.Conversations, deps.MaxSessions)
		if err != nil {
			return nil, err
		}
		s.sessions = sessions
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), gzip.Gzip(gzip.DefaultCompression))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	if len(s.secret) > 0 {
		v1.Use(JWTAuth(s.secret))
	}
	v1.POST("/query", s.handleQuery)
	v1.POST("/ingest", s.handleIngest)
	v1.GET("/collection", s.handleCollection)
	v1.GET("/memory", s.handleMemory)
	v1.DELETE("/memory", s.handleResetMemory)
	return engine
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the session registry, nil without conversations.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api: listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
