package domain

import (
	"errors"
	"fmt"
	"strings"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI || p == AIProviderGemini
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendQdrant is a Qdrant server reached over REST.
	VectorBackendQdrant VectorBackend = "qdrant"

	// VectorBackendSQLite is a local SQLite file with brute-force search.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendPgvector is PostgreSQL with the pgvector extension.
	VectorBackendPgvector VectorBackend = "pgvector"

	// VectorBackendMemory keeps vectors in process memory.
	VectorBackendMemory VectorBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendQdrant, VectorBackendSQLite, VectorBackendPgvector, VectorBackendMemory:
		return true
	default:
		return false
	}
}

// ManifestBackend selects where the manifest is persisted.
type ManifestBackend string

// Available manifest backends.
const (
	ManifestBackendFile   ManifestBackend = "file"
	ManifestBackendSQLite ManifestBackend = "sqlite"
	ManifestBackendMemory ManifestBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b ManifestBackend) IsValid() bool {
	switch b {
	case ManifestBackendFile, ManifestBackendSQLite, ManifestBackendMemory:
		return true
	default:
		return false
	}
}

// SizePolicy is a chunk size with its overlap, both in characters.
type SizePolicy struct {
	ChunkSize    int
	ChunkOverlap int
}

// Validate checks the overlap is smaller than the chunk size.
func (p SizePolicy) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", ErrInvalidInput, p.ChunkOverlap, p.ChunkSize)
	}
	return nil
}

// ChunkingSettings holds the adaptive size policy.
type ChunkingSettings struct {
	// Default applies to documents up to LargeThreshold characters.
	Default SizePolicy

	// Large applies to documents longer than LargeThreshold characters.
	Large SizePolicy

	// LargeThreshold is the length above which Large is used.
	LargeThreshold int
}

// PolicyFor returns the size policy for a document of the given length.
func (c ChunkingSettings) PolicyFor(length int) SizePolicy {
	if length > c.LargeThreshold {
		return c.Large
	}
	return c.Default
}

// IngestionSettings holds ingestion knobs.
type IngestionSettings struct {
	// Extensions are the file suffixes ingested by default.
	Extensions []string

	// EmbedBatchSize is the number of chunk texts per embedding request.
	EmbedBatchSize int

	// UpsertBatchSize is the number of points per upsert request.
	UpsertBatchSize int

	// Processors is the ordered post-processor pipeline, "chunker" first.
	Processors []string
}

// RetrievalSettings holds retriever knobs.
type RetrievalSettings struct {
	K          int
	FetchK     int
	SearchType SearchMode

	// MMRLambda weighs relevance against diversity under MMR.
	MMRLambda float64
}

// ConversationSettings holds memory and answer shaping knobs.
type ConversationSettings struct {
	MemoryMaxTokens     int
	SummaryEnabled      bool
	CondenseQuestion    bool
	UseCompression      bool
	CompressConcurrency int
	MaxSourcesDisplay   int
	SourcePreviewLength int
	TrackCosts          bool
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions is the vector size.
	Dimensions int

	// CacheSize bounds the query-embedding cache. 0 disables it.
	CacheSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds text-generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	Temperature float64
	MaxTokens   int

	// RequestsPerSecond throttles calls. 0 disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	Backend    VectorBackend
	Collection string

	// URL and APIKey address a Qdrant server.
	URL    string
	APIKey string

	// DSN addresses a PostgreSQL database for pgvector.
	DSN string

	// Path is the SQLite database file.
	Path string
}

// ManifestSettings holds manifest persistence configuration.
type ManifestSettings struct {
	Backend ManifestBackend

	// Path is the JSON manifest file or SQLite database.
	Path string
}

// ServerSettings holds the HTTP API configuration.
type ServerSettings struct {
	Addr string

	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret string

	// MaxSessions bounds the number of live conversation sessions.
	MaxSessions int

	// Schedule is a cron expression for periodic ingestion. Empty disables it.
	Schedule string

	// Folder is ingested on schedule.
	Folder string
}

// LoggingSettings holds logger configuration.
type LoggingSettings struct {
	Enabled bool
	Level   string
}

// Config holds every knob consumed by the core and its adapters.
type Config struct {
	Ingestion    IngestionSettings
	Chunking     ChunkingSettings
	Retrieval    RetrievalSettings
	Conversation ConversationSettings
	Embedding    EmbeddingSettings
	LLM          LLMSettings
	VectorIndex  VectorIndexSettings
	Manifest     ManifestSettings
	Server       ServerSettings
	Logging      LoggingSettings

	// PromptsDir overrides the built-in prompts when set.
	PromptsDir string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Ingestion: IngestionSettings{
			Extensions:      []string{".pdf", ".txt", ".md", ".docx"},
			EmbedBatchSize:  64,
			UpsertBatchSize: 64,
			Processors:      []string{"chunker"},
		},
		Chunking: ChunkingSettings{
			Default:        SizePolicy{ChunkSize: 800, ChunkOverlap: 100},
			Large:          SizePolicy{ChunkSize: 1200, ChunkOverlap: 150},
			LargeThreshold: 5000,
		},
		Retrieval: RetrievalSettings{
			K:          6,
			FetchK:     20,
			SearchType: SearchModeMMR,
			MMRLambda:  0.5,
		},
		Conversation: ConversationSettings{
			MemoryMaxTokens:     800,
			SummaryEnabled:      true,
			CondenseQuestion:    true,
			UseCompression:      true,
			CompressConcurrency: 4,
			MaxSourcesDisplay:   3,
			SourcePreviewLength: 200,
			TrackCosts:          true,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			CacheSize:  256,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.1,
			MaxTokens:   1000,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendQdrant,
			Collection: "my_documents",
			URL:        "http://localhost:6333",
		},
		Manifest: ManifestSettings{
			Backend: ManifestBackendFile,
			Path:    "processed_files.json",
		},
		Server: ServerSettings{
			Addr:        "127.0.0.1:8080",
			MaxSessions: 128,
		},
		Logging: LoggingSettings{
			Enabled: true,
			Level:   "info",
		},
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	if err := c.Chunking.Default.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking.default: %w", err))
	}
	if err := c.Chunking.Large.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking.large: %w", err))
	}
	if c.Chunking.LargeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunking.large_threshold must be positive", ErrInvalidInput))
	}
	if c.Retrieval.K <= 0 {
		errs = append(errs, fmt.Errorf("%w: retrieval.k must be positive", ErrInvalidInput))
	}
	if c.Retrieval.FetchK < c.Retrieval.K {
		errs = append(errs, fmt.Errorf("%w: retrieval.fetch_k (%d) must be >= retrieval.k (%d)",
			ErrInvalidInput, c.Retrieval.FetchK, c.Retrieval.K))
	}
	if !c.Retrieval.SearchType.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown search type %q", ErrInvalidInput, c.Retrieval.SearchType))
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		errs = append(errs, fmt.Errorf("%w: retrieval.mmr_lambda must be in [0,1]", ErrInvalidInput))
	}
	if c.Conversation.MemoryMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%w: conversation.memory_max_tokens must be positive", ErrInvalidInput))
	}
	if strings.TrimSpace(c.VectorIndex.Collection) == "" {
		errs = append(errs, fmt.Errorf("%w: vector.collection is required", ErrInvalidInput))
	}
	if !c.VectorIndex.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown vector backend %q", ErrInvalidInput, c.VectorIndex.Backend))
	}
	if !c.Manifest.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown manifest backend %q", ErrInvalidInput, c.Manifest.Backend))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.dimensions must be positive", ErrInvalidInput))
	}
	if !c.Embedding.Provider.SupportsEmbeddings() {
		errs = append(errs, fmt.Errorf("%w: provider %q has no embedding API", ErrInvalidInput, c.Embedding.Provider))
	}
	if !c.LLM.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown llm provider %q", ErrInvalidInput, c.LLM.Provider))
	}

	return errors.Join(errs...)
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-3.5-turbo",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
