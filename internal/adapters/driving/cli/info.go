package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	infoCheck bool
	infoJSON  bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the configuration and the collection",
	Long: `Show the effective providers and backends, and describe the vector
collection. Use --check to verify that every provider is reachable.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoCheck, "check", false, "ping the embedding, LLM and vector index providers")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output the collection as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	info, err := ingestionService.CollectionInfo(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to describe collection: %w", err)
	}
	if infoJSON {
		return printJSON(cmd, info)
	}

	cfg := appConfig
	cmd.Println("[Providers]")
	cmd.Printf("  Embedding: %s (%s)\n", cfg.Embedding.Provider, cfg.Embedding.Model)
	if cfg.LLM.IsConfigured() {
		cmd.Printf("  LLM:       %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		cmd.Println("  LLM:       not configured")
	}
	cmd.Printf("  Vector:    %s\n", cfg.VectorIndex.Backend)
	cmd.Printf("  Manifest:  %s\n", cfg.Manifest.Backend)
	cmd.Println()

	cmd.Println("[Collection]")
	cmd.Printf("  Name:      %s\n", info.Name)
	cmd.Printf("  Status:    %s\n", info.Status)
	cmd.Printf("  Points:    %d\n", info.PointsCount)
	if info.Dimension > 0 {
		cmd.Printf("  Dimension: %d\n", info.Dimension)
	}

	if !infoCheck {
		return nil
	}
	if configValidator == nil {
		return errors.New("config validator not configured")
	}

	cmd.Println()
	cmd.Println("[Checks]")
	var failed []error
	check := func(name string, err error) {
		if err != nil {
			cmd.Printf("  %-10s FAILED: %v\n", name+":", err)
			failed = append(failed, err)
			return
		}
		cmd.Printf("  %-10s OK\n", name+":")
	}
	check("Embedding", configValidator.ValidateEmbedding(cmd.Context(), cfg.Embedding))
	if cfg.LLM.IsConfigured() {
		check("LLM", configValidator.ValidateLLM(cmd.Context(), cfg.LLM))
	}
	check("Vector", configValidator.ValidateVectorIndex(cmd.Context(), cfg.VectorIndex))

	if len(failed) > 0 {
		return fmt.Errorf("%d provider checks failed", len(failed))
	}
	return nil
}
