package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// AIConfigValidator validates provider configurations.
// Implementations verify that configurations are valid by testing connectivity
// to the underlying services.
type AIConfigValidator interface {
	// ValidateEmbedding validates an embedding configuration by pinging the provider.
	ValidateEmbedding(ctx context.Context, config domain.EmbeddingSettings) error

	// ValidateLLM validates an LLM configuration by pinging the provider.
	ValidateLLM(ctx context.Context, config domain.LLMSettings) error

	// ValidateVectorIndex checks the vector backend answers an info request.
	ValidateVectorIndex(ctx context.Context, config domain.VectorIndexSettings) error
}
