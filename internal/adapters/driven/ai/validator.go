package ai

import (
	"context"
	"fmt"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator validates provider configurations by building the
// adapter and pinging it.
type ConfigValidator struct {
	newEmbedder func(context.Context, domain.EmbeddingSettings) (driven.EmbeddingService, error)
	newChat     func(context.Context, domain.LLMSettings) (driven.ChatModel, error)
	newIndex    func(context.Context, domain.VectorIndexSettings) (driven.VectorIndex, func() error, error)
}

// NewConfigValidator creates a new config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		newEmbedder: CreateEmbeddingService,
		newChat:     CreateChatModel,
		newIndex:    openVectorIndex,
	}
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, config domain.EmbeddingSettings) error {
	svc, err := v.newEmbedder(ctx, config)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// ValidateLLM validates an LLM configuration by pinging the provider.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, config domain.LLMSettings) error {
	chat, err := v.newChat(ctx, config)
	if err != nil {
		return err
	}
	defer chat.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := chat.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return nil
}

// ValidateVectorIndex checks the backend answers an info request for the
// configured collection. A missing collection is not an error.
func (v *ConfigValidator) ValidateVectorIndex(ctx context.Context, config domain.VectorIndexSettings) error {
	index, closeFn, err := v.newIndex(ctx, config)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := index.Info(ctx, config.Collection); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

// openVectorIndex opens a standalone vector index with its own resources.
func openVectorIndex(ctx context.Context, settings domain.VectorIndexSettings) (driven.VectorIndex, func() error, error) {
	c := &Components{}
	index, err := c.createVectorIndex(ctx, settings)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	c.VectorIndex = index
	return index, c.Close, nil
}
