// Package app assembles the engine from configuration: settings, driven
// adapters and the core services that use them.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/ai"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/config/file"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/llm/prompted"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/storage/memory"
	"github.com/Qingzhee/rag-engine/internal/connectors/filesystem"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/services"
	"github.com/Qingzhee/rag-engine/internal/logger"
	"github.com/Qingzhee/rag-engine/internal/normalisers"
	"github.com/Qingzhee/rag-engine/internal/postprocessors"
)

// Options locate the configuration sources.
type Options struct {
	// ConfigPath is the TOML or YAML config file. Empty uses
	// ~/.ragengine/config.toml and MemoryConfig keeps settings in memory,
	// so only defaults and the environment apply.
	ConfigPath string

	// EnvFile is a dotenv file applied before the environment is read.
	// Empty loads ./.env when present.
	EnvFile string

	// Verbose enables debug logging regardless of the configured level.
	Verbose bool
}

// App holds the assembled engine.
type App struct {
	Config     domain.Config
	Settings   *services.SettingsService
	Components *ai.Components
	Files      *filesystem.Connector
	Ingestion  *services.IngestionService

	// Conversations is nil when no LLM provider is configured.
	Conversations *services.ConversationEngineFactory
}

// ErrNoConversation is returned by NewConversation without an LLM.
var ErrNoConversation = fmt.Errorf("%w: conversation needs a configured LLM provider", domain.ErrLLMUnavailable)

// MemoryConfig is the ConfigPath that selects an in-memory config store.
const MemoryConfig = ":memory:"

// LoadSettings reads the env file and config file and returns the settings
// service over them.
func LoadSettings(opts Options) (*services.SettingsService, driven.ConfigStore, error) {
	if err := file.LoadEnv(opts.EnvFile); err != nil {
		return nil, nil, err
	}

	var (
		store driven.ConfigStore
		err   error
	)
	switch opts.ConfigPath {
	case MemoryConfig:
		store = memory.NewConfigStore()
	case "":
		store, err = file.NewConfigStore("")
	default:
		store, err = file.OpenConfigStore(opts.ConfigPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return services.NewSettingsService(store), store, nil
}

// New resolves the configuration and builds every component.
func New(ctx context.Context, opts Options) (*App, error) {
	settings, _, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := settings.Load()
	if err != nil {
		return nil, err
	}
	ConfigureLogging(cfg.Logging, opts.Verbose)

	components, err := ai.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a, err := Assemble(cfg, components)
	if err != nil {
		_ = components.Close()
		return nil, err
	}
	a.Settings = settings
	return a, nil
}

// Assemble wires the core services over already-built components.
func Assemble(cfg domain.Config, components *ai.Components) (*App, error) {
	pipeline, err := postprocessors.NewDefaultPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	files := filesystem.New()
	ingestion := services.NewIngestionService(services.IngestionDeps{
		Files:       files,
		Normalisers: normalisers.NewDefaultRegistry(),
		Pipeline:    pipeline,
		Embedder:    components.Embedder,
		Index:       components.VectorIndex,
		Manifest:    components.Manifest,
	}, cfg.VectorIndex.Collection, cfg.Ingestion)

	a := &App{
		Config:     cfg,
		Components: components,
		Files:      files,
		Ingestion:  ingestion,
	}

	if components.Chat != nil {
		a.Conversations = newConversationFactory(cfg, components)
	}
	return a, nil
}

func newConversationFactory(cfg domain.Config, c *ai.Components) *services.ConversationEngineFactory {
	opts := prompted.Options{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}

	generator := prompted.NewGenerator(c.Chat, opts)
	compressor := prompted.NewCompressor(c.Chat, cfg.LLM.MaxTokens)
	condenser := prompted.NewCondenser(c.Chat, prompted.Options{Temperature: 0, MaxTokens: cfg.LLM.MaxTokens})
	summarizer := prompted.NewSummarizer(c.Chat, prompted.Options{Temperature: 0, MaxTokens: cfg.LLM.MaxTokens})

	template := ""
	if c.Prompts != nil {
		for _, aware := range []driven.PromptStoreAware{generator, compressor, condenser, summarizer} {
			aware.SetPromptStore(c.Prompts)
		}
		if t, err := c.Prompts.Load(driven.PromptAnswer); err == nil {
			template = t
		} else {
			logger.Warn("loading answer prompt: %v", err)
		}
	}

	deps := services.ConversationDeps{
		Retriever:  services.NewRetriever(c.Embedder, c.VectorIndex, cfg.VectorIndex.Collection, cfg.Retrieval),
		Generator:  generator,
		Compressor: compressor,
		Condenser:  condenser,
		Template:   template,
	}
	return services.NewConversationEngineFactory(deps, c.Tokenizer, summarizer, cfg.Conversation)
}

// NewConversation starts a conversation with empty memory.
func (a *App) NewConversation() (*services.ConversationEngine, error) {
	if a.Conversations == nil {
		return nil, ErrNoConversation
	}
	return a.Conversations.New(), nil
}

// Close releases the components and the file watchers.
func (a *App) Close() error {
	var errs []error
	if a.Files != nil {
		errs = append(errs, a.Files.Close())
	}
	if a.Components != nil {
		errs = append(errs, a.Components.Close())
	}
	return errors.Join(errs...)
}

// ConfigureLogging applies the logging settings. Disabled logging still
// reports errors.
func ConfigureLogging(settings domain.LoggingSettings, verbose bool) {
	switch {
	case verbose:
		logger.SetVerbose(true)
	case !settings.Enabled:
		logger.SetLevel(logger.LevelError)
	default:
		level, err := logger.ParseLevel(settings.Level)
		if err != nil {
			logger.Warn("%v, using info", err)
		}
		logger.SetLevel(level)
	}
}

// DefaultConfigPath returns the config file used when none is given.
func DefaultConfigPath() (string, error) {
	dir, err := file.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file.DefaultConfigFile), nil
}
