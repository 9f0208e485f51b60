// Package ai provides factory functions for creating AI service adapters
// and the stores they feed.
package ai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/config/file"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/embedding/cache"
	geminiembed "github.com/Qingzhee/rag-engine/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/Qingzhee/rag-engine/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/Qingzhee/rag-engine/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/Qingzhee/rag-engine/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/Qingzhee/rag-engine/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/Qingzhee/rag-engine/internal/adapters/driven/llm/ollama"
	openaillm "github.com/Qingzhee/rag-engine/internal/adapters/driven/llm/openai"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/storage/jsonfile"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/storage/memory"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/storage/sqlite"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/tokenizer"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/vector/postgres"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/vector/qdrant"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// newTokenizer is replaced in tests; loading an encoding may hit the network.
var newTokenizer = func() driven.Tokenizer { return tokenizer.New("") }

// Components are the driven adapters built from a configuration.
type Components struct {
	Embedder    driven.EmbeddingService
	Chat        driven.ChatModel // nil when the LLM provider is not configured.
	VectorIndex driven.VectorIndex
	Manifest    driven.ManifestStore
	Prompts     driven.PromptStore // nil uses the built-in prompts.
	Tokenizer   driven.Tokenizer
	Warnings    []string // Non-fatal issues found while building.

	stores map[string]*sqlite.Store
}

// Close releases every resource held by the components.
func (c *Components) Close() error {
	var errs []error
	if c.Embedder != nil {
		errs = append(errs, c.Embedder.Close())
	}
	if c.Chat != nil {
		errs = append(errs, c.Chat.Close())
	}
	if c.VectorIndex != nil {
		errs = append(errs, c.VectorIndex.Close())
	}
	for _, s := range c.stores {
		errs = append(errs, s.Close())
	}
	c.stores = nil
	return errors.Join(errs...)
}

// Build creates every driven adapter the engine needs. A missing LLM is a
// warning, since ingestion runs without one; a missing embedder is an error.
func Build(ctx context.Context, cfg domain.Config) (*Components, error) {
	c := &Components{
		Tokenizer: newTokenizer(),
		stores:    make(map[string]*sqlite.Store),
	}

	embedder, err := CreateEmbeddingService(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder

	chat, err := CreateChatModel(ctx, cfg.LLM)
	switch {
	case errors.Is(err, domain.ErrLLMUnavailable):
		c.Warnings = append(c.Warnings, err.Error())
		logger.Warn("%v", err)
	case err != nil:
		_ = c.Close()
		return nil, err
	default:
		c.Chat = chat
	}

	index, err := c.createVectorIndex(ctx, cfg.VectorIndex)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.VectorIndex = index

	manifest, err := c.createManifestStore(cfg.Manifest, cfg.VectorIndex)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Manifest = manifest

	if cfg.PromptsDir != "" {
		prompts, err := file.NewPromptStore(cfg.PromptsDir)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("opening prompts: %w", err)
		}
		c.Prompts = prompts
	}

	return c, nil
}

// CreateEmbeddingService creates the embedding service named by settings,
// wrapped in a query cache when settings.CacheSize is positive.
func CreateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.Provider.SupportsEmbeddings() {
		return nil, fmt.Errorf("%w: provider %q has no embedding API, use ollama, openai or gemini",
			domain.ErrEmbeddingUnavailable, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s requires an API key", domain.ErrEmbeddingUnavailable, settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[settings.Provider]
	}
	dimensions := settings.Dimensions
	if dimensions <= 0 {
		dimensions = domain.EmbeddingDimensions()[model]
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		})
	case domain.AIProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		})
	case domain.AIProviderGemini:
		svc, err = geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	if settings.CacheSize > 0 {
		svc = cache.Wrap(svc, settings.CacheSize, cache.DefaultTTL)
	}
	return svc, nil
}

// CreateChatModel creates the text-generation model named by settings.
func CreateChatModel(ctx context.Context, settings domain.LLMSettings) (driven.ChatModel, error) {
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", domain.ErrLLMUnavailable, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s requires an API key", domain.ErrLLMUnavailable, settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultLLMModels()[settings.Provider]
	}

	var (
		chat driven.ChatModel
		err  error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		chat = ollamallm.NewChatModel(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   model,
		})
	case domain.AIProviderOpenAI:
		chat, err = openaillm.NewChatModel(openaillm.LLMConfig{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             model,
			RequestsPerSecond: settings.RequestsPerSecond,
		})
	case domain.AIProviderAnthropic:
		chat, err = anthropicllm.NewChatModel(anthropicllm.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             model,
			RequestsPerSecond: settings.RequestsPerSecond,
		})
	case domain.AIProviderGemini:
		chat, err = geminillm.NewChatModel(ctx, geminillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return chat, nil
}

// createVectorIndex opens the configured vector backend.
func (c *Components) createVectorIndex(ctx context.Context, settings domain.VectorIndexSettings) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.VectorBackendQdrant:
		return qdrant.New(qdrant.Config{URL: settings.URL, APIKey: settings.APIKey}), nil

	case domain.VectorBackendPgvector:
		index, err := postgres.Open(ctx, settings.DSN)
		if err != nil {
			return nil, err
		}
		return index, nil

	case domain.VectorBackendSQLite:
		store, err := c.sqliteStore(settings.Path)
		if err != nil {
			return nil, err
		}
		return store.VectorIndex(), nil

	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(), nil

	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}

// createManifestStore opens the configured manifest backend. A SQLite
// manifest without its own database path shares the vector database when
// that is SQLite too.
func (c *Components) createManifestStore(settings domain.ManifestSettings, vector domain.VectorIndexSettings) (driven.ManifestStore, error) {
	switch settings.Backend {
	case domain.ManifestBackendFile:
		return jsonfile.NewManifestStore(settings.Path), nil

	case domain.ManifestBackendSQLite:
		path := settings.Path
		if path == "" || strings.EqualFold(filepath.Ext(path), ".json") {
			path = ""
			if vector.Backend == domain.VectorBackendSQLite {
				path = vector.Path
			}
		}
		store, err := c.sqliteStore(path)
		if err != nil {
			return nil, err
		}
		return store.ManifestStore(), nil

	case domain.ManifestBackendMemory:
		return memory.NewManifestStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown manifest backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}

// sqliteStore opens a database once per path. An empty path is the default
// database under ~/.ragengine/data.
func (c *Components) sqliteStore(path string) (*sqlite.Store, error) {
	if s, ok := c.stores[path]; ok {
		return s, nil
	}
	var (
		s   *sqlite.Store
		err error
	)
	if path == "" {
		s, err = sqlite.NewStore("")
	} else {
		s, err = sqlite.OpenStore(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLocalIO, err)
	}
	if c.stores == nil {
		c.stores = make(map[string]*sqlite.Store)
	}
	c.stores[path] = s
	return s, nil
}
