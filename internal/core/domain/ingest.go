package domain

import "time"

// IngestOptions parameterises an ingestion run.
type IngestOptions struct {
	// Folder is the root directory to walk.
	Folder string

	// Extensions filters files by suffix, e.g. ".pdf". Empty uses the configured set.
	Extensions []string

	// Force reprocesses files even when their fingerprint is unchanged.
	Force bool
}

// IngestionStats summarises an ingestion run.
type IngestionStats struct {
	TotalFiles   int      `json:"total_files"`
	NewFiles     int      `json:"new_files"`
	UpdatedFiles int      `json:"updated_files"`
	SkippedFiles int      `json:"skipped_files"`
	TotalChunks  int      `json:"total_chunks"`
	Errors       []string `json:"processing_errors"`

	// Warnings lists recoverable problems, such as a corrupt manifest.
	Warnings []string `json:"warnings,omitempty"`

	// ManifestSaved is true when the run persisted the manifest.
	ManifestSaved bool `json:"manifest_saved"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// AddError records a per-file failure.
func (s *IngestionStats) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// AddWarning records a recoverable problem.
func (s *IngestionStats) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// ReconcileStats summarises a reconciliation pass.
type ReconcileStats struct {
	// Checked is the number of manifest entries examined.
	Checked int `json:"checked"`

	// Removed lists the file keys whose vectors and entries were dropped.
	Removed []string `json:"removed"`

	// DryRun is true when nothing was changed.
	DryRun bool `json:"dry_run"`
}
