package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports, "test")
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources", func(t *testing.T) {
		conv := &mockConversation{result: domain.QueryResult{
			Answer: "Cats sleep a lot.",
			Sources: []domain.SourceCitation{
				{FileName: "cats.txt", SourceFile: "docs/cats.txt", Preview: "The cat sleeps...", Score: 0.9},
			},
			Metadata: domain.QueryMetadata{NumSources: 4, TokensUsed: 120, Cost: 0.0002},
		}}
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}, Conversation: conv})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "Do cats sleep?"})

		require.NoError(t, err)
		assert.Equal(t, "Cats sleep a lot.", out.Answer)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "cats.txt", out.Sources[0].FileName)
		assert.Equal(t, 4, out.NumSources)
		assert.Equal(t, 120, out.TokensUsed)
		assert.Equal(t, []string{"Do cats sleep?"}, conv.questions)
	})

	t.Run("provider failure is reported in output", func(t *testing.T) {
		conv := &mockConversation{result: domain.QueryResult{
			Answer:   "Sorry, I encountered an error: timeout",
			Metadata: domain.QueryMetadata{Error: "timeout", ErrorKind: domain.ErrorKindTimeout},
		}}
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}, Conversation: conv})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})

		require.NoError(t, err)
		assert.Equal(t, "timeout", out.Error)
		assert.Equal(t, string(domain.ErrorKindTimeout), out.ErrorKind)
	})

	t.Run("empty question is invalid", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}, Conversation: &mockConversation{}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "  "})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no conversation", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})

		assert.ErrorIs(t, err, ErrNoConversation)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("uses configured extensions by default", func(t *testing.T) {
		ingestion := &mockIngestionService{stats: domain.IngestionStats{
			TotalFiles: 3, NewFiles: 2, SkippedFiles: 1, TotalChunks: 9,
			ManifestSaved: true, Duration: 1500 * time.Millisecond,
		}}
		server := newTestServer(t, &Ports{Ingestion: ingestion, Extensions: []string{".md"}})

		_, out, err := server.handleIngest(ctx, nil, IngestInput{Folder: "/docs"})

		require.NoError(t, err)
		assert.Equal(t, 3, out.TotalFiles)
		assert.Equal(t, 2, out.NewFiles)
		assert.Equal(t, 9, out.TotalChunks)
		assert.True(t, out.ManifestSaved)
		assert.Equal(t, int64(1500), out.DurationMS)
		assert.Equal(t, domain.IngestOptions{Folder: "/docs", Extensions: []string{".md"}}, ingestion.lastOpts)
	})

	t.Run("explicit extensions and force", func(t *testing.T) {
		ingestion := &mockIngestionService{}
		server := newTestServer(t, &Ports{Ingestion: ingestion, Extensions: []string{".md"}})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Folder: "/docs", Extensions: []string{".pdf"}, Force: true})

		require.NoError(t, err)
		assert.Equal(t, []string{".pdf"}, ingestion.lastOpts.Extensions)
		assert.True(t, ingestion.lastOpts.Force)
	})

	t.Run("missing folder", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("ingestion failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{err: errors.New("embedding failed")}})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Folder: "/docs"})

		assert.EqualError(t, err, "embedding failed")
	})
}

func TestServer_handleCollectionInfo(t *testing.T) {
	ingestion := &mockIngestionService{info: domain.CollectionInfo{
		Name: "my_documents", PointsCount: 42, Status: domain.CollectionStatusReady, Dimension: 1536,
	}}
	server := newTestServer(t, &Ports{Ingestion: ingestion})

	_, out, err := server.handleCollectionInfo(context.Background(), nil, EmptyInput{})

	require.NoError(t, err)
	assert.Equal(t, "my_documents", out.Name)
	assert.Equal(t, 42, out.PointsCount)
	assert.Equal(t, "green", out.Status)
	assert.Equal(t, 1536, out.Dimension)
}

func TestServer_MemoryTools(t *testing.T) {
	ctx := context.Background()
	conv := &mockConversation{result: domain.QueryResult{Answer: "a"}}
	server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}, Conversation: conv})

	_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
	require.NoError(t, err)

	_, stats, err := server.handleMemoryStats(ctx, nil, EmptyInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stats.TotalMessages)
	assert.Equal(t, domain.NoHistorySummary, stats.Summary)

	_, reset, err := server.handleResetMemory(ctx, nil, EmptyInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, conv.resets)
	assert.Equal(t, 0, reset.Stats.TotalMessages)
}

func TestServer_MemoryToolsWithoutConversation(t *testing.T) {
	server := newTestServer(t, &Ports{Ingestion: &mockIngestionService{}})

	_, _, err := server.handleMemoryStats(context.Background(), nil, EmptyInput{})
	assert.ErrorIs(t, err, ErrNoConversation)

	_, _, err = server.handleResetMemory(context.Background(), nil, EmptyInput{})
	assert.ErrorIs(t, err, ErrNoConversation)
}
