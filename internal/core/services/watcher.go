package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// DefaultDebounce is the quiet period after the last change before a
// re-ingest starts.
const DefaultDebounce = 2 * time.Second

// WatchRun reports one re-ingest triggered by changes.
type WatchRun struct {
	Changes   int
	Stats     domain.IngestionStats
	Reconcile *domain.ReconcileStats
	Err       error
}

// FolderWatcher re-ingests a folder when its files change. Bursts of
// changes are coalesced into one run.
type FolderWatcher struct {
	source    driven.FileWatcher
	ingestion driving.IngestionService
	debounce  time.Duration
	onRun     func(WatchRun)
}

// NewFolderWatcher creates a watcher. A non-positive debounce uses
// DefaultDebounce.
func NewFolderWatcher(source driven.FileWatcher, ingestion driving.IngestionService, debounce time.Duration) *FolderWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FolderWatcher{
		source:    source,
		ingestion: ingestion,
		debounce:  debounce,
	}
}

// OnRun sets a callback invoked after every triggered run.
func (w *FolderWatcher) OnRun(fn func(WatchRun)) *FolderWatcher {
	w.onRun = fn
	return w
}

// Run watches opts.Folder until ctx is cancelled. Deletions also prune
// the removed files from the index.
func (w *FolderWatcher) Run(ctx context.Context, opts domain.IngestOptions) error {
	changes, err := w.source.Watch(ctx, opts.Folder, opts.Extensions)
	if err != nil {
		return fmt.Errorf("watching %s: %w", opts.Folder, err)
	}
	logger.Info("watching %s for changes", opts.Folder)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := 0
	deleted := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("watch: %s %s", change.Type, change.Path)
			pending++
			if change.Type == domain.ChangeDeleted {
				deleted = true
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if pending == 0 {
				continue
			}
			run := w.runOnce(ctx, opts, pending, deleted)
			pending, deleted = 0, false
			if w.onRun != nil {
				w.onRun(run)
			}
		}
	}
}

func (w *FolderWatcher) runOnce(ctx context.Context, opts domain.IngestOptions, changes int, deleted bool) WatchRun {
	run := WatchRun{Changes: changes}

	if deleted {
		rstats, err := w.ingestion.Reconcile(ctx, opts.Folder, opts.Extensions, false)
		if err != nil {
			logger.Warn("watch: pruning deleted files: %v", err)
		} else {
			run.Reconcile = &rstats
		}
	}

	run.Stats, run.Err = w.ingestion.Ingest(ctx, opts)
	if run.Err != nil {
		logger.Error("watch: re-ingest failed: %v", run.Err)
		return run
	}
	logger.Info("watch: %d changes, %d new, %d updated, %d chunks",
		changes, run.Stats.NewFiles, run.Stats.UpdatedFiles, run.Stats.TotalChunks)
	return run
}
