package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printIngestionStats(cmd *cobra.Command, stats domain.IngestionStats) {
	cmd.Printf("Ingestion finished in %s\n", stats.Duration.Round(time.Millisecond))
	cmd.Printf("  Files:    %d total, %d new, %d updated, %d skipped\n",
		stats.TotalFiles, stats.NewFiles, stats.UpdatedFiles, stats.SkippedFiles)
	cmd.Printf("  Chunks:   %d\n", stats.TotalChunks)
	if stats.ManifestSaved {
		cmd.Println("  Manifest: saved")
	} else {
		cmd.Println("  Manifest: not saved")
	}
	for _, w := range stats.Warnings {
		cmd.Printf("  Warning: %s\n", w)
	}
	if len(stats.Errors) > 0 {
		cmd.Printf("  Errors (%d):\n", len(stats.Errors))
		for _, e := range stats.Errors {
			cmd.Printf("    - %s\n", e)
		}
	}
}

func printQueryResult(cmd *cobra.Command, result domain.QueryResult, showCost bool) {
	cmd.Println(result.Answer)

	if len(result.Sources) > 0 {
		cmd.Println()
		cmd.Printf("Sources (%d of %d):\n", len(result.Sources), result.Metadata.NumSources)
		for i, src := range result.Sources {
			location := src.FileName
			if src.Page > 0 {
				location = fmt.Sprintf("%s, page %d", src.FileName, src.Page)
			}
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, location, src.Score)
			if src.Preview != "" {
				cmd.Printf("      %s\n", oneLine(src.Preview))
			}
		}
	}

	for _, w := range result.Metadata.Warnings {
		cmd.Printf("Warning: %s\n", w)
	}
	if showCost && result.Metadata.TokensUsed > 0 {
		cmd.Printf("\nTokens: %d, cost: $%.4f\n", result.Metadata.TokensUsed, result.Metadata.Cost)
	}
}

func printMemoryStats(cmd *cobra.Command, stats domain.MemoryStats) {
	cmd.Printf("Messages: %d (%d human, %d ai)\n", stats.TotalMessages, stats.HumanMessages, stats.AIMessages)
	cmd.Printf("Tokens:   %d buffer + %d summary of %d\n", stats.BufferTokens, stats.SummaryTokens, stats.MaxTokens)
	if stats.HasSummary {
		cmd.Println("Summary:  yes")
	} else {
		cmd.Println("Summary:  no")
	}
}

func printHistory(cmd *cobra.Command, messages []domain.Message) {
	if len(messages) == 0 {
		cmd.Println("No messages in memory.")
		return
	}
	for _, m := range messages {
		cmd.Printf("%s: %s\n", m.Role, m.Content)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitExtensions normalises extension flags to lower-case ".ext" form.
func splitExtensions(values []string) []string {
	var out []string
	for _, v := range values {
		for _, ext := range strings.Split(v, ",") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			out = append(out, ext)
		}
	}
	return out
}
