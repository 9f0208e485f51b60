package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	pruneExtensions []string
	pruneDryRun     bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune <folder>",
	Short: "Remove deleted files from the index",
	Long: `Remove the vectors and manifest entries of files that no longer exist
under the folder. Use --dry-run to list them without removing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().StringSliceVarP(&pruneExtensions, "ext", "e", nil, "file extensions that were indexed (default: ingestion.extensions)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "list files that would be removed")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	extensions := splitExtensions(pruneExtensions)
	if len(extensions) == 0 {
		extensions = appConfig.Ingestion.Extensions
	}

	stats, err := ingestionService.Reconcile(cmd.Context(), args[0], extensions, pruneDryRun)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	verb := "Removed"
	if stats.DryRun {
		verb = "Would remove"
	}
	cmd.Printf("Checked %d indexed files. %s %d.\n", stats.Checked, verb, len(stats.Removed))
	for _, path := range stats.Removed {
		cmd.Printf("  - %s\n", path)
	}
	return nil
}
