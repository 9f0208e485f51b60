package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/services"
)

var (
	ingestExtensions []string
	ingestForce      bool
	ingestWatch      bool
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Index the documents in a folder",
	Long: `Index new and changed documents in a folder into the vector index.

Files whose content is unchanged since the last run are skipped. Use --force
to reprocess everything, and --watch to keep re-indexing as files change.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestExtensions, "ext", "e", nil, "file extensions to index, e.g. .pdf,.md (default: ingestion.extensions)")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "reprocess files even when unchanged")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the folder and re-index on change")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output stats as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	extensions := splitExtensions(ingestExtensions)
	if len(extensions) == 0 {
		extensions = appConfig.Ingestion.Extensions
	}
	opts := domain.IngestOptions{
		Folder:     args[0],
		Extensions: extensions,
		Force:      ingestForce,
	}

	stats, err := ingestionService.Ingest(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if ingestJSON {
		if err := printJSON(cmd, stats); err != nil {
			return err
		}
	} else {
		printIngestionStats(cmd, stats)
	}

	if !ingestWatch {
		return nil
	}
	if fileWatcher == nil {
		return errors.New("file watcher not configured")
	}

	opts.Force = false
	watcher := services.NewFolderWatcher(fileWatcher, ingestionService, services.DefaultDebounce).
		OnRun(func(run services.WatchRun) {
			if run.Err != nil {
				cmd.PrintErrf("Re-index failed: %v\n", run.Err)
				return
			}
			if run.Reconcile != nil && len(run.Reconcile.Removed) > 0 {
				cmd.Printf("Removed %d deleted files from the index\n", len(run.Reconcile.Removed))
			}
			printIngestionStats(cmd, run.Stats)
		})

	cmd.Printf("\nWatching %s for changes. Press Ctrl+C to stop.\n", opts.Folder)
	return watcher.Run(cmd.Context(), opts)
}
