package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/ai"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the configuration file.

Settings are resolved from defaults, the config file, the environment and
command flags, in increasing precedence. Use 'config keys' to list every
key and 'config set' to change one.`,
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective configuration",
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Long: `Set a dot-notation key in the config file, e.g.

  ragengine config set retrieval.k 4
  ragengine config set ingestion.extensions .pdf,.md
  ragengine config set vector.backend sqlite`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:         "keys",
	Short:       "List the configuration keys",
	Annotations: map[string]string{annotationBootstrap: bootstrapNone},
	Run: func(cmd *cobra.Command, _ []string) {
		for _, key := range services.Keys() {
			cmd.Println(key)
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file path",
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(configFilePath)
	},
}

var configWizardCmd = &cobra.Command{
	Use:         "wizard",
	Short:       "Interactive setup wizard",
	Long:        `Run an interactive wizard to choose the embedding provider, LLM provider and vector backend.`,
	Annotations: map[string]string{annotationBootstrap: bootstrapSettings},
	RunE:        runConfigWizard,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configWizardCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	cfg := appConfig

	cmd.Println("Current Configuration")
	cmd.Println("=====================")
	if configFilePath != "" {
		cmd.Printf("File: %s\n", configFilePath)
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider:   %s\n", cfg.Embedding.Provider)
	cmd.Printf("  Model:      %s\n", cfg.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
	printProviderAccess(cmd, cfg.Embedding.Provider, cfg.Embedding.BaseURL, cfg.Embedding.APIKey)
	cmd.Printf("  Status:     %s\n", configuredStatus(cfg.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider:    %s\n", cfg.LLM.Provider)
	cmd.Printf("  Model:       %s\n", cfg.LLM.Model)
	cmd.Printf("  Temperature: %.2f\n", cfg.LLM.Temperature)
	cmd.Printf("  Max tokens:  %d\n", cfg.LLM.MaxTokens)
	printProviderAccess(cmd, cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.APIKey)
	cmd.Printf("  Status:      %s\n", configuredStatus(cfg.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend:    %s\n", cfg.VectorIndex.Backend)
	cmd.Printf("  Collection: %s\n", cfg.VectorIndex.Collection)
	switch cfg.VectorIndex.Backend {
	case domain.VectorBackendQdrant:
		cmd.Printf("  URL:        %s\n", cfg.VectorIndex.URL)
	case domain.VectorBackendPgvector:
		cmd.Printf("  DSN:        %s\n", maskDSN(cfg.VectorIndex.DSN))
	case domain.VectorBackendSQLite:
		cmd.Printf("  Path:       %s\n", cfg.VectorIndex.Path)
	}
	cmd.Printf("  Manifest:   %s (%s)\n", cfg.Manifest.Backend, cfg.Manifest.Path)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Search:   %s (k=%d, fetch_k=%d)\n", cfg.Retrieval.SearchType, cfg.Retrieval.K, cfg.Retrieval.FetchK)
	cmd.Printf("  Chunks:   %d/%d, large %d/%d above %d chars\n",
		cfg.Chunking.Default.ChunkSize, cfg.Chunking.Default.ChunkOverlap,
		cfg.Chunking.Large.ChunkSize, cfg.Chunking.Large.ChunkOverlap, cfg.Chunking.LargeThreshold)
	cmd.Printf("  Types:    %s\n", strings.Join(cfg.Ingestion.Extensions, " "))
	cmd.Println()

	cmd.Println("[Conversation]")
	cmd.Printf("  Memory:      %d tokens, summary %s\n", cfg.Conversation.MemoryMaxTokens, onOff(cfg.Conversation.SummaryEnabled))
	cmd.Printf("  Compression: %s\n", onOff(cfg.Conversation.UseCompression))
	cmd.Printf("  Condense:    %s\n", onOff(cfg.Conversation.CondenseQuestion))
	cmd.Printf("  Cost:        %s\n", onOff(cfg.Conversation.TrackCosts))
	cmd.Println()

	if err := cfg.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ragengine config wizard' or 'ragengine config set' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	shown := value
	if isSecretKey(key) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runConfigWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if configValidator == nil {
		configValidator = ai.NewConfigValidator()
	}

	cmd.Println("ragengine Setup Wizard")
	cmd.Println("======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	if err := configureProvider(cmd, reader, "embedding", embeddingProviders, domain.DefaultEmbeddingModels()); err != nil {
		return err
	}

	cmd.Println("Step 2: LLM Provider")
	cmd.Println("--------------------")
	if err := configureProvider(cmd, reader, "llm", llmProviders, domain.DefaultLLMModels()); err != nil {
		return err
	}

	cmd.Println("Step 3: Vector Backend")
	cmd.Println("----------------------")
	backends := []domain.VectorBackend{
		domain.VectorBackendSQLite, domain.VectorBackendQdrant, domain.VectorBackendPgvector, domain.VectorBackendMemory,
	}
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b)
	}
	cmd.Print("\nEnter choice [1]: ")
	backend := backends[parseChoice(readLine(reader), len(backends), 1)-1]
	if err := settingsService.Set("vector.backend", string(backend)); err != nil {
		return fmt.Errorf("failed to set vector backend: %w", err)
	}
	switch backend {
	case domain.VectorBackendQdrant:
		if err := promptSetting(cmd, reader, "vector.url", "Qdrant URL", "http://localhost:6333"); err != nil {
			return err
		}
	case domain.VectorBackendPgvector:
		if err := promptSetting(cmd, reader, "vector.dsn", "PostgreSQL DSN", ""); err != nil {
			return err
		}
	}

	cfg, err := settingsService.Load()
	if err != nil {
		cmd.Printf("Warning: %v\n", err)
		return nil
	}
	cmd.Print("Validating vector index... ")
	if err := configValidator.ValidateVectorIndex(cmd.Context(), cfg.VectorIndex); err != nil {
		cmd.Printf("FAILED: %v\n", err)
	} else {
		cmd.Println("OK")
	}

	cmd.Println()
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	cmd.Println("All settings are saved.")
	return nil
}

var (
	embeddingProviders = []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderGemini}
	llmProviders       = []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderAnthropic, domain.AIProviderGemini}
)

// configureProvider prompts for a provider, model and API key under the
// "embedding" or "llm" prefix, saves them and pings the provider.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, prefix string, providers []domain.AIProvider, defaults map[domain.AIProvider]string) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p)
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := providers[parseChoice(readLine(reader), len(providers), 1)-1]

	defaultModel := defaults[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.Set(prefix+".provider", string(provider)); err != nil {
		return fmt.Errorf("failed to set %s provider: %w", prefix, err)
	}
	if err := settingsService.Set(prefix+".model", model); err != nil {
		return fmt.Errorf("failed to set %s model: %w", prefix, err)
	}
	if apiKey != "" {
		if err := settingsService.Set(prefix+".api_key", apiKey); err != nil {
			return fmt.Errorf("failed to set %s API key: %w", prefix, err)
		}
	}
	if prefix == "embedding" {
		if dims, ok := domain.EmbeddingDimensions()[model]; ok {
			if err := settingsService.Set("embedding.dimensions", dims); err != nil {
				return fmt.Errorf("failed to set embedding dimensions: %w", err)
			}
		}
	}

	cfg, err := settingsService.Load()
	if err != nil {
		return fmt.Errorf("%s configuration invalid: %w", prefix, err)
	}

	cmd.Print("Validating configuration... ")
	if prefix == "embedding" {
		err = configValidator.ValidateEmbedding(cmd.Context(), cfg.Embedding)
	} else {
		err = configValidator.ValidateLLM(cmd.Context(), cfg.LLM)
	}
	if err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", prefix, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n\n", prefix, provider, model)
	return nil
}

func promptSetting(cmd *cobra.Command, reader *bufio.Reader, key, label, defaultValue string) error {
	if defaultValue != "" {
		cmd.Printf("Enter %s [%s]: ", label, defaultValue)
	} else {
		cmd.Printf("Enter %s: ", label)
	}
	value := readLine(reader)
	if value == "" {
		value = defaultValue
	}
	if value == "" {
		return fmt.Errorf("%s is required", label)
	}
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func printProviderAccess(cmd *cobra.Command, provider domain.AIProvider, baseURL, apiKey string) {
	if provider.IsLocal() || baseURL != "" {
		url := baseURL
		if url == "" {
			url = "(default)"
		}
		cmd.Printf("  Base URL:   %s\n", url)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key:    %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key:    (not set)\n")
		}
	}
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "jwt_secret") || strings.HasSuffix(key, ".dsn")
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise a plain line.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password of a postgres:// DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}
