// Package cli implements the ragengine command line.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/ai"
	"github.com/Qingzhee/rag-engine/internal/app"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// annotationBootstrap selects how much of the engine a command needs.
const annotationBootstrap = "bootstrap"

const (
	// bootstrapNone commands need nothing.
	bootstrapNone = "none"

	// bootstrapSettings commands need the resolved configuration only.
	bootstrapSettings = "settings"
)

// Global flags.
var (
	configPath string
	envFile    string
	verbose    bool
)

// Services used by the commands. They are set by the bootstrap before a
// command runs, or directly by tests.
var (
	appConfig           domain.Config
	configFilePath      string
	settingsService     driving.SettingsService
	ingestionService    driving.IngestionService
	conversationFactory driving.ConversationFactory
	fileWatcher         driven.FileWatcher
	configValidator     driven.AIConfigValidator
	closeServices       func() error
)

// servicesReady skips the bootstrap when the services are already set.
var servicesReady bool

// newApp builds the engine. Replaced in tests.
var newApp = app.New

var rootCmd = &cobra.Command{
	Use:   "ragengine",
	Short: "Ask questions about a folder of documents",
	Long: `ragengine indexes a folder of documents into a vector index and answers
questions about them with a language model, citing the source files.

Follow-up questions in a chat share conversation memory: recent turns are
kept verbatim and older ones are folded into a running summary.`,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrap,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ragengine/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer shutdown()

	return rootCmd.ExecuteContext(ctx)
}

func options() app.Options {
	return app.Options{ConfigPath: configPath, EnvFile: envFile, Verbose: verbose}
}

func bootstrap(cmd *cobra.Command, _ []string) error {
	if servicesReady {
		return nil
	}
	switch cmd.Annotations[annotationBootstrap] {
	case bootstrapNone:
		return nil
	case bootstrapSettings:
		return loadSettings()
	default:
		return loadServices(cmd.Context())
	}
}

// loadSettings resolves the configuration without building any adapter.
// An invalid configuration is reported but not fatal, so it can be fixed
// with "config set".
func loadSettings() error {
	settings, store, err := app.LoadSettings(options())
	if err != nil {
		return err
	}
	settingsService = settings
	configFilePath = store.Path()

	cfg, err := settings.Load()
	if err != nil {
		logger.Warn("%v", err)
		cfg = settings.GetDefaults()
	}
	appConfig = cfg
	app.ConfigureLogging(cfg.Logging, verbose)
	servicesReady = true
	return nil
}

func loadServices(ctx context.Context) error {
	a, err := newApp(ctx, options())
	if err != nil {
		return err
	}

	appConfig = a.Config
	if a.Settings != nil {
		settingsService = a.Settings
	}
	if a.Ingestion != nil {
		ingestionService = a.Ingestion
	}
	if a.Conversations != nil {
		conversationFactory = a.Conversations
	}
	if a.Files != nil {
		fileWatcher = a.Files
	}
	configValidator = ai.NewConfigValidator()
	closeServices = a.Close

	if a.Components != nil {
		for _, w := range a.Components.Warnings {
			logger.Warn("%s", w)
		}
	}
	servicesReady = true
	return nil
}

// shutdown releases whatever the bootstrap opened.
func shutdown() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("closing: %v", err)
	}
	closeServices = nil
}

// errNoConversation is returned by commands that need a language model.
var errNoConversation = errors.New("conversation service not configured: set llm.provider (see 'ragengine config')")
