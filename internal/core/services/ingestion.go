package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService incrementally indexes a folder of documents.
type IngestionService struct {
	// runMu serialises Ingest and Reconcile; both read, modify and save
	// the whole manifest.
	runMu sync.Mutex

	files       driven.FileSource
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	embedder    driven.EmbeddingService
	index       driven.VectorIndex
	manifest    driven.ManifestStore

	collection string
	settings   domain.IngestionSettings
	now        func() time.Time
}

// IngestionDeps are the collaborators of an IngestionService.
type IngestionDeps struct {
	Files       driven.FileSource
	Normalisers driven.NormaliserRegistry
	Pipeline    driven.PostProcessorPipeline
	Embedder    driven.EmbeddingService
	Index       driven.VectorIndex
	Manifest    driven.ManifestStore
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(deps IngestionDeps, collection string, settings domain.IngestionSettings) *IngestionService {
	defaults := domain.DefaultConfig().Ingestion
	if settings.EmbedBatchSize <= 0 {
		settings.EmbedBatchSize = defaults.EmbedBatchSize
	}
	if settings.UpsertBatchSize <= 0 {
		settings.UpsertBatchSize = defaults.UpsertBatchSize
	}
	if len(settings.Extensions) == 0 {
		settings.Extensions = defaults.Extensions
	}
	return &IngestionService{
		files:       deps.Files,
		normalisers: deps.Normalisers,
		pipeline:    deps.Pipeline,
		embedder:    deps.Embedder,
		index:       deps.Index,
		manifest:    deps.Manifest,
		collection:  collection,
		settings:    settings,
		now:         time.Now,
	}
}

// processedFile is a file whose chunks are waiting to be embedded.
type processedFile struct {
	file   domain.SourceFile
	chunks []domain.Chunk
}

// Ingest implements driving.IngestionService.
//
// Per-file failures are recorded and skipped. The accumulated chunks are
// embedded and upserted after every file was visited; only when that
// succeeds are stale vectors removed and the manifest saved, so a failed
// run is retried in full by the next one.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestionService) Ingest(ctx context.Context, opts domain.IngestOptions) (domain.IngestionStats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	stats := domain.IngestionStats{StartedAt: start}
	defer func() { stats.Duration = s.now().Sub(start) }()

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = s.settings.Extensions
	}

	logger.Section("Ingest " + opts.Folder)

	// 1. Load the manifest; corrupt state counts as empty
	manifest, err := s.loadManifest(ctx, &stats)
	if err != nil {
		return stats, err
	}

	// 2. Enumerate candidate files
	files, err := s.files.List(ctx, opts.Folder, extensions)
	if err != nil {
		return stats, fmt.Errorf("list files: %w", err)
	}
	stats.TotalFiles = len(files)
	logger.Info("found %d candidate files in %s", len(files), opts.Folder)

	// 3. Decide and chunk each file
	var pending []processedFile
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("ingestion interrupted: %v", err)
			return stats, err
		}

		fp, err := FingerprintFile(file.Path)
		if err != nil {
			stats.AddError(fmt.Sprintf("%s: %v", file.Key, err))
			continue
		}
		file.Fingerprint = fp

		decision := Decide(file.Key, fp, manifest, opts.Force)
		if decision == domain.DecisionSkip {
			logger.Debug("skip %s (unchanged)", file.Key)
			stats.SkippedFiles++
			continue
		}

		chunks, err := s.chunkFile(ctx, file)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.AddError(fmt.Sprintf("%s: %v", file.Key, err))
			logger.Warn("failed to process %s: %v", file.Key, err)
			continue
		}

		logger.Debug("%s %s: %d chunks", decision, file.Key, len(chunks))
		if decision == domain.DecisionNew {
			stats.NewFiles++
		} else {
			stats.UpdatedFiles++
		}
		stats.TotalChunks += len(chunks)
		pending = append(pending, processedFile{file: file, chunks: chunks})
	}

	if len(pending) == 0 {
		logger.Info("no new or changed files")
		return stats, nil
	}

	// 4. Embed and upsert every accumulated chunk
	if err := s.index.EnsureCollection(ctx, s.collection, s.embedder.Dimensions(), domain.DistanceCosine); err != nil {
		return stats, fmt.Errorf("ensure collection: %w", err)
	}
	points, err := s.embed(ctx, pending)
	if err != nil {
		return stats, fmt.Errorf("embed chunks: %w", err)
	}
	if err := s.upsert(ctx, points); err != nil {
		return stats, fmt.Errorf("upsert points: %w", err)
	}

	// 5. Drop vectors left over from previous versions of the files
	for _, p := range pending {
		if err := s.dropStale(ctx, p); err != nil {
			return stats, err
		}
	}

	// 6. Persist the manifest
	processedAt := s.now().UTC()
	for _, p := range pending {
		manifest[p.file.Key] = domain.ManifestEntry{
			Hash:          p.file.Fingerprint.String(),
			ProcessedDate: processedAt,
			ChunksCount:   len(p.chunks),
		}
	}
	if err := s.manifest.Save(ctx, manifest); err != nil {
		return stats, fmt.Errorf("save manifest: %w", err)
	}
	stats.ManifestSaved = true

	logger.Info("ingested %d files (%d new, %d updated, %d skipped), %d chunks",
		stats.NewFiles+stats.UpdatedFiles, stats.NewFiles, stats.UpdatedFiles, stats.SkippedFiles, stats.TotalChunks)
	return stats, nil
}

// dropStale removes the points of p's file that the fresh upsert did not
// overwrite: those of another file hash, and those whose sequence is past
// the new chunk count. The second case covers a forced re-ingest whose
// chunking produced fewer chunks for unchanged content.
func (s *IngestionService) dropStale(ctx context.Context, p processedFile) error {
	filters := []domain.PointFilter{
		{SourceFile: p.file.Key, ExceptFileHash: p.file.Fingerprint.String()},
		// A zero MinSequence selects every point of the file, which is
		// right when the file produced no chunks.
		{SourceFile: p.file.Key, MinSequence: len(p.chunks)},
	}

	for _, f := range filters {
		removed, err := s.index.DeleteWhere(ctx, s.collection, f)
		if err != nil {
			return fmt.Errorf("delete stale points for %s: %w", p.file.Key, err)
		}
		if removed > 0 {
			logger.Debug("removed %d stale points for %s", removed, p.file.Key)
		}
	}
	return nil
}

func (s *IngestionService) loadManifest(ctx context.Context, stats *domain.IngestionStats) (domain.Manifest, error) {
	manifest, err := s.manifest.Load(ctx)
	switch {
	case err == nil:
		if manifest == nil {
			manifest = domain.NewManifest()
		}
		return manifest, nil
	case errors.Is(err, domain.ErrManifestCorrupt):
		msg := fmt.Sprintf("manifest unreadable, reprocessing all files: %v", err)
		logger.Warn("%s", msg)
		stats.AddWarning(msg)
		return domain.NewManifest(), nil
	default:
		return nil, fmt.Errorf("load manifest: %w", err)
	}
}

// chunkFile normalises a file and runs it through the post-processor pipeline.
func (s *IngestionService) chunkFile(ctx context.Context, file domain.SourceFile) ([]domain.Chunk, error) {
	normaliser, err := s.normalisers.Get(strings.ToLower(filepath.Ext(file.Path)))
	if err != nil {
		return nil, err
	}

	pages, err := normaliser.Normalise(ctx, file.Path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrLocalIO, err)
	}

	doc := &domain.SourceDocument{File: file, Pages: pages}
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	for i := range chunks {
		chunks[i].Metadata.SourceFile = file.Key
		chunks[i].Metadata.FileHash = file.Fingerprint.String()
		chunks[i].Metadata.FileSize = file.Size
	}
	return chunks, nil
}

// embed turns pending chunks into index points, batch by batch. Any failed
// batch fails the whole step.
func (s *IngestionService) embed(ctx context.Context, pending []processedFile) ([]domain.IndexPoint, error) {
	var chunks []domain.Chunk
	for _, p := range pending {
		chunks = append(chunks, p.chunks...)
	}

	points := make([]domain.IndexPoint, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.settings.EmbedBatchSize {
		end := min(start+s.settings.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, domain.NewProviderError(s.embedder.ModelName(), "embed", domain.ErrorKindProviderLogic,
				fmt.Errorf("got %d vectors for %d texts", len(vectors), len(batch)))
		}

		for i, c := range batch {
			points = append(points, domain.IndexPoint{
				ID:       c.ID,
				Vector:   vectors[i],
				Content:  c.Content,
				Metadata: c.Metadata,
			})
		}
		logger.Debug("embedded %d/%d chunks", end, len(chunks))
	}
	return points, nil
}

func (s *IngestionService) upsert(ctx context.Context, points []domain.IndexPoint) error {
	for start := 0; start < len(points); start += s.settings.UpsertBatchSize {
		end := min(start+s.settings.UpsertBatchSize, len(points))
		if err := s.index.Upsert(ctx, s.collection, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile implements driving.IngestionService.
func (s *IngestionService) Reconcile(ctx context.Context, folder string, extensions []string, dryRun bool) (domain.ReconcileStats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	stats := domain.ReconcileStats{DryRun: dryRun}

	manifest, err := s.manifest.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load manifest: %w", err)
	}
	if len(extensions) == 0 {
		extensions = s.settings.Extensions
	}

	files, err := s.files.List(ctx, folder, extensions)
	if err != nil {
		return stats, fmt.Errorf("list files: %w", err)
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Key] = true
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	for _, key := range manifest.Keys() {
		if !allowed[strings.ToLower(filepath.Ext(key))] {
			continue
		}
		stats.Checked++
		if !present[key] {
			stats.Removed = append(stats.Removed, key)
		}
	}

	if dryRun || len(stats.Removed) == 0 {
		return stats, nil
	}

	for _, key := range stats.Removed {
		if _, err := s.index.DeleteWhere(ctx, s.collection, domain.PointFilter{SourceFile: key}); err != nil {
			return stats, fmt.Errorf("delete points for %s: %w", key, err)
		}
		delete(manifest, key)
		logger.Info("pruned %s", key)
	}

	if err := s.manifest.Save(ctx, manifest); err != nil {
		return stats, fmt.Errorf("save manifest: %w", err)
	}
	return stats, nil
}

// CollectionInfo implements driving.IngestionService.
func (s *IngestionService) CollectionInfo(ctx context.Context) (domain.CollectionInfo, error) {
	info, err := s.index.Info(ctx, s.collection)
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("collection info: %w", err)
	}
	return info, nil
}
