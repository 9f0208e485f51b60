// Package gemini provides an embedding service adapter using the Google
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/httpapi"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768

	// taskRetrieval marks embeddings used for document retrieval.
	taskRetrieval = "RETRIEVAL_DOCUMENT"
)

const providerName = "gemini"

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// Dimensions is the embedding vector size.
	Dimensions int
}

// contentEmbedder is the subset of *genai.Models the service calls.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// EmbeddingService generates embeddings using Gemini.
type EmbeddingService struct {
	models     contentEmbedder
	model      string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return newEmbeddingService(client.Models, cfg), nil
}

func newEmbeddingService(models contentEmbedder, cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		if dims, ok := domain.EmbeddingDimensions()[cfg.Model]; ok {
			cfg.Dimensions = dims
		} else {
			cfg.Dimensions = DefaultDimensions
		}
	}
	return &EmbeddingService{
		models:     models,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates one embedding per text in a single request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	dims := int32(s.dimensions) //nolint:gosec // dimensions are small positive ints
	resp, err := s.models.EmbedContent(ctx, s.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskRetrieval,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, ClassifyError("embed", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, domain.NewProviderError(providerName, "embed", domain.ErrorKindProviderLogic,
			fmt.Errorf("got %d embeddings for %d inputs", got, len(texts)))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, domain.NewProviderError(providerName, "embed", domain.ErrorKindProviderLogic,
				fmt.Errorf("empty embedding for input %d", i))
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short probe text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return errors.Join(domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// ClassifyError maps a genai error onto a *domain.ProviderError.
func ClassifyError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return httpapi.StatusError(providerName, op, apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(providerName, op, domain.ErrorKindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewProviderError(providerName, op, domain.ErrorKindCanceled, err)
	}
	return domain.NewProviderError(providerName, op, domain.ErrorKindTransport, err)
}
