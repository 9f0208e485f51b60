package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindList
)

// settingValue carries a parsed value of any kind.
type settingValue struct {
	s    string
	i    int
	f    float64
	b    bool
	list []string
}

// setting describes one dot-notation config key.
type setting struct {
	key  string
	kind settingKind
	env  string
	set  func(c *domain.Config, v settingValue)
}

// settings lists every configurable key.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var settings = []setting{
	{"ingestion.extensions", kindList, "RAG_SUPPORTED_EXTENSIONS", func(c *domain.Config, v settingValue) { c.Ingestion.Extensions = v.list }},
	{"ingestion.embed_batch_size", kindInt, "", func(c *domain.Config, v settingValue) { c.Ingestion.EmbedBatchSize = v.i }},
	{"ingestion.upsert_batch_size", kindInt, "", func(c *domain.Config, v settingValue) { c.Ingestion.UpsertBatchSize = v.i }},
	{"ingestion.processors", kindList, "", func(c *domain.Config, v settingValue) { c.Ingestion.Processors = v.list }},

	{"chunking.chunk_size", kindInt, "RAG_CHUNK_SIZE", func(c *domain.Config, v settingValue) { c.Chunking.Default.ChunkSize = v.i }},
	{"chunking.chunk_overlap", kindInt, "RAG_CHUNK_OVERLAP", func(c *domain.Config, v settingValue) { c.Chunking.Default.ChunkOverlap = v.i }},
	{"chunking.large_chunk_size", kindInt, "RAG_LARGE_DOC_CHUNK_SIZE", func(c *domain.Config, v settingValue) { c.Chunking.Large.ChunkSize = v.i }},
	{"chunking.large_chunk_overlap", kindInt, "RAG_LARGE_DOC_CHUNK_OVERLAP", func(c *domain.Config, v settingValue) { c.Chunking.Large.ChunkOverlap = v.i }},
	{"chunking.large_threshold", kindInt, "RAG_LARGE_DOC_THRESHOLD", func(c *domain.Config, v settingValue) { c.Chunking.LargeThreshold = v.i }},

	{"retrieval.k", kindInt, "RAG_RETRIEVAL_K", func(c *domain.Config, v settingValue) { c.Retrieval.K = v.i }},
	{"retrieval.fetch_k", kindInt, "RAG_RETRIEVAL_FETCH_K", func(c *domain.Config, v settingValue) { c.Retrieval.FetchK = v.i }},
	{"retrieval.search_type", kindString, "RAG_SEARCH_TYPE", func(c *domain.Config, v settingValue) { c.Retrieval.SearchType = domain.SearchMode(v.s) }},
	{"retrieval.mmr_lambda", kindFloat, "", func(c *domain.Config, v settingValue) { c.Retrieval.MMRLambda = v.f }},

	{"conversation.memory_max_tokens", kindInt, "RAG_MEMORY_MAX_TOKENS", func(c *domain.Config, v settingValue) { c.Conversation.MemoryMaxTokens = v.i }},
	{"conversation.summary_enabled", kindBool, "RAG_ENABLE_SUMMARY_MEMORY", func(c *domain.Config, v settingValue) { c.Conversation.SummaryEnabled = v.b }},
	{"conversation.condense_question", kindBool, "", func(c *domain.Config, v settingValue) { c.Conversation.CondenseQuestion = v.b }},
	{"conversation.use_compression", kindBool, "RAG_USE_COMPRESSION", func(c *domain.Config, v settingValue) { c.Conversation.UseCompression = v.b }},
	{"conversation.compress_concurrency", kindInt, "", func(c *domain.Config, v settingValue) { c.Conversation.CompressConcurrency = v.i }},
	{"conversation.max_sources_display", kindInt, "RAG_MAX_SOURCES_DISPLAY", func(c *domain.Config, v settingValue) { c.Conversation.MaxSourcesDisplay = v.i }},
	{"conversation.source_preview_length", kindInt, "RAG_SOURCE_PREVIEW_LENGTH", func(c *domain.Config, v settingValue) { c.Conversation.SourcePreviewLength = v.i }},
	{"conversation.track_costs", kindBool, "RAG_TRACK_COSTS", func(c *domain.Config, v settingValue) { c.Conversation.TrackCosts = v.b }},

	{"embedding.provider", kindString, "RAG_EMBEDDING_PROVIDER", func(c *domain.Config, v settingValue) { c.Embedding.Provider = domain.AIProvider(v.s) }},
	{"embedding.model", kindString, "RAG_EMBEDDING_MODEL", func(c *domain.Config, v settingValue) { c.Embedding.Model = v.s }},
	{"embedding.base_url", kindString, "", func(c *domain.Config, v settingValue) { c.Embedding.BaseURL = v.s }},
	{"embedding.api_key", kindString, "", func(c *domain.Config, v settingValue) { c.Embedding.APIKey = v.s }},
	{"embedding.dimensions", kindInt, "RAG_EMBEDDING_DIMENSIONS", func(c *domain.Config, v settingValue) { c.Embedding.Dimensions = v.i }},
	{"embedding.cache_size", kindInt, "", func(c *domain.Config, v settingValue) { c.Embedding.CacheSize = v.i }},

	{"llm.provider", kindString, "RAG_LLM_PROVIDER", func(c *domain.Config, v settingValue) { c.LLM.Provider = domain.AIProvider(v.s) }},
	{"llm.model", kindString, "RAG_LLM_MODEL", func(c *domain.Config, v settingValue) { c.LLM.Model = v.s }},
	{"llm.base_url", kindString, "", func(c *domain.Config, v settingValue) { c.LLM.BaseURL = v.s }},
	{"llm.api_key", kindString, "", func(c *domain.Config, v settingValue) { c.LLM.APIKey = v.s }},
	{"llm.temperature", kindFloat, "RAG_TEMPERATURE", func(c *domain.Config, v settingValue) { c.LLM.Temperature = v.f }},
	{"llm.max_tokens", kindInt, "RAG_MAX_TOKENS", func(c *domain.Config, v settingValue) { c.LLM.MaxTokens = v.i }},
	{"llm.requests_per_second", kindFloat, "", func(c *domain.Config, v settingValue) { c.LLM.RequestsPerSecond = v.f }},

	{"vector.backend", kindString, "RAG_VECTOR_BACKEND", func(c *domain.Config, v settingValue) { c.VectorIndex.Backend = domain.VectorBackend(v.s) }},
	{"vector.collection", kindString, "RAG_COLLECTION_NAME", func(c *domain.Config, v settingValue) { c.VectorIndex.Collection = v.s }},
	{"vector.url", kindString, "QDRANT_URL", func(c *domain.Config, v settingValue) { c.VectorIndex.URL = v.s }},
	{"vector.api_key", kindString, "QDRANT_API_KEY", func(c *domain.Config, v settingValue) { c.VectorIndex.APIKey = v.s }},
	{"vector.dsn", kindString, "RAG_PG_DSN", func(c *domain.Config, v settingValue) { c.VectorIndex.DSN = v.s }},
	{"vector.path", kindString, "", func(c *domain.Config, v settingValue) { c.VectorIndex.Path = v.s }},

	{"manifest.backend", kindString, "", func(c *domain.Config, v settingValue) { c.Manifest.Backend = domain.ManifestBackend(v.s) }},
	{"manifest.path", kindString, "RAG_MANIFEST_FILE", func(c *domain.Config, v settingValue) { c.Manifest.Path = v.s }},

	{"server.addr", kindString, "RAG_SERVER_ADDR", func(c *domain.Config, v settingValue) { c.Server.Addr = v.s }},
	{"server.jwt_secret", kindString, "RAG_JWT_SECRET", func(c *domain.Config, v settingValue) { c.Server.JWTSecret = v.s }},
	{"server.max_sessions", kindInt, "", func(c *domain.Config, v settingValue) { c.Server.MaxSessions = v.i }},
	{"server.schedule", kindString, "", func(c *domain.Config, v settingValue) { c.Server.Schedule = v.s }},
	{"server.folder", kindString, "", func(c *domain.Config, v settingValue) { c.Server.Folder = v.s }},

	{"logging.enabled", kindBool, "RAG_ENABLE_LOGGING", func(c *domain.Config, v settingValue) { c.Logging.Enabled = v.b }},
	{"logging.level", kindString, "RAG_LOG_LEVEL", func(c *domain.Config, v settingValue) { c.Logging.Level = v.s }},

	{"prompts.dir", kindString, "", func(c *domain.Config, v settingValue) { c.PromptsDir = v.s }},
}

// providerKeyEnv names the API key variable of each cloud provider.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

// SettingsService resolves configuration from defaults, the config store
// and the environment, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service reading the process
// environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	s.lookupEnv = lookup
	return s
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Config {
	return domain.DefaultConfig()
}

// Load implements driving.SettingsService.
func (s *SettingsService) Load() (domain.Config, error) {
	cfg := domain.DefaultConfig()
	var errs []error
	explicitDims := false

	// 1. Config file
	if s.configStore != nil {
		for _, st := range settings {
			if _, ok := s.configStore.Get(st.key); !ok {
				continue
			}
			st.set(&cfg, s.fromStore(st))
			if st.key == "embedding.dimensions" {
				explicitDims = true
			}
		}
	}

	// 2. Environment
	for _, st := range settings {
		if st.env == "" {
			continue
		}
		raw, ok := s.lookupEnv(st.env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := parseSetting(st.kind, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.env, err))
			continue
		}
		st.set(&cfg, v)
		if st.key == "embedding.dimensions" {
			explicitDims = true
		}
	}

	// 3. Provider credentials
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = s.env(providerKeyEnv[cfg.LLM.Provider])
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = s.env(providerKeyEnv[cfg.Embedding.Provider])
	}

	// 4. Derived values
	if !explicitDims {
		if dims, ok := domain.EmbeddingDimensions()[cfg.Embedding.Model]; ok {
			cfg.Embedding.Dimensions = dims
		}
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Set implements driving.SettingsService. String values are parsed into
// the key's type.
func (s *SettingsService) Set(key string, value any) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if s.configStore == nil {
		return fmt.Errorf("save %s: no config store", key)
	}

	if raw, isString := value.(string); isString {
		v, err := parseSetting(st.kind, raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		value = v.any(st.kind)
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every configurable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for _, st := range settings {
		keys = append(keys, st.key)
	}
	sort.Strings(keys)
	return keys
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settings {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

func (s *SettingsService) fromStore(st setting) settingValue {
	switch st.kind {
	case kindInt:
		return settingValue{i: s.configStore.GetInt(st.key)}
	case kindFloat:
		return settingValue{f: s.configStore.GetFloat(st.key)}
	case kindBool:
		return settingValue{b: s.configStore.GetBool(st.key)}
	case kindList:
		return settingValue{list: s.configStore.GetStringSlice(st.key)}
	default:
		return settingValue{s: s.configStore.GetString(st.key)}
	}
}

func (s *SettingsService) env(name string) string {
	if name == "" {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return strings.TrimSpace(v)
}

func parseSetting(kind settingKind, raw string) (settingValue, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return settingValue{}, fmt.Errorf("not an integer: %q", raw)
		}
		return settingValue{i: i}, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return settingValue{}, fmt.Errorf("not a number: %q", raw)
		}
		return settingValue{f: f}, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return settingValue{}, fmt.Errorf("not a boolean: %q", raw)
		}
		return settingValue{b: b}, nil
	case kindList:
		var list []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return settingValue{list: list}, nil
	default:
		return settingValue{s: raw}, nil
	}
}

func (v settingValue) any(kind settingKind) any {
	switch kind {
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindBool:
		return v.b
	case kindList:
		return v.list
	default:
		return v.s
	}
}
