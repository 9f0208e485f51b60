package postprocessors

import (
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewDefaultPipeline builds the pipeline named by the configuration with the
// built-in processors.
func NewDefaultPipeline(cfg domain.Config) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(cfg)
}

// buildChunker creates the adaptive chunker from the chunking settings.
func buildChunker(cfg domain.Config) (driven.PostProcessor, error) {
	if err := cfg.Chunking.Default.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Chunking.Large.Validate(); err != nil {
		return nil, err
	}
	return chunker.New(cfg.Chunking), nil
}
