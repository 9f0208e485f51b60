package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// manifestStore implements driven.ManifestStore.
type manifestStore struct {
	store *Store
}

var _ driven.ManifestStore = (*manifestStore)(nil)

// Load returns every manifest row. Unparseable dates are reported as
// domain.ErrManifestCorrupt.
func (s *manifestStore) Load(ctx context.Context) (domain.Manifest, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT path, hash, processed_date, chunks_count FROM manifest
	`)
	if err != nil {
		return nil, fmt.Errorf("querying manifest: %w", err)
	}
	defer rows.Close()

	m := domain.NewManifest()
	for rows.Next() {
		var path, hash, processed string
		var chunks int
		if err := rows.Scan(&path, &hash, &processed, &chunks); err != nil {
			return nil, fmt.Errorf("scanning manifest: %w", err)
		}
		date, err := time.Parse(time.RFC3339Nano, processed)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", domain.ErrManifestCorrupt, path, err)
		}
		m[path] = domain.ManifestEntry{Hash: hash, ProcessedDate: date, ChunksCount: chunks}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifest: %w", err)
	}
	return m, nil
}

// Save replaces every row in one transaction.
func (s *manifestStore) Save(ctx context.Context, m domain.Manifest) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM manifest"); err != nil {
		return fmt.Errorf("clearing manifest: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO manifest (path, hash, processed_date, chunks_count) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, path := range m.Keys() {
		e := m[path]
		if _, err := stmt.ExecContext(ctx, path, e.Hash,
			e.ProcessedDate.UTC().Format(time.RFC3339Nano), e.ChunksCount); err != nil {
			return fmt.Errorf("saving manifest entry %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing manifest: %w", err)
	}
	return nil
}
