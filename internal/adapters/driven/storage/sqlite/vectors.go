package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/vectormath"
)

// vectorIndex implements driven.VectorIndex with a brute-force cosine scan
// over the points table. It suits corpora of a few hundred thousand chunks.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// pointPayload is the JSON stored alongside each vector.
type pointPayload struct {
	Content  string               `json:"content"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

// EnsureCollection creates the collection row if absent.
func (v *vectorIndex) EnsureCollection(ctx context.Context, name string, dimension int, metric domain.DistanceMetric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if metric == "" {
		metric = domain.DistanceCosine
	}

	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO collections (name, dimension, metric) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, dimension, string(metric))
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	existing, _, err := v.collection(ctx, name)
	if err != nil {
		return err
	}
	if existing != dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, not %d",
			domain.ErrInvalidInput, name, existing, dimension)
	}
	return nil
}

// collection returns the dimension and metric, or domain.ErrNotFound.
func (v *vectorIndex) collection(ctx context.Context, name string) (int, string, error) {
	var dimension int
	var metric string
	err := v.store.db.QueryRowContext(ctx,
		"SELECT dimension, metric FROM collections WHERE name = ?", name,
	).Scan(&dimension, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return 0, "", fmt.Errorf("reading collection %s: %w", name, err)
	}
	return dimension, metric, nil
}

// Upsert inserts or replaces points by ID in one transaction.
func (v *vectorIndex) Upsert(ctx context.Context, name string, points []domain.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	dimension, _, err := v.collection(ctx, name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %s has dimension %d, not %d",
				domain.ErrInvalidInput, p.ID, len(p.Vector), dimension)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, source_file, file_hash, vector, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			source_file = excluded.source_file,
			file_hash = excluded.file_hash,
			vector = excluded.vector,
			payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payload, err := json.Marshal(pointPayload{Content: p.Content, Metadata: p.Metadata})
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, name, p.ID, p.Metadata.SourceFile, p.Metadata.FileHash,
			float32SliceToBytes(p.Vector), string(payload)); err != nil {
			return fmt.Errorf("upserting point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing points: %w", err)
	}
	return nil
}

// Search scores every point of the collection and applies the request mode.
func (v *vectorIndex) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, vector, payload FROM points WHERE collection = ?
	`, req.Collection)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var id, payloadJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}

		var payload pointPayload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshaling payload of %s: %w", id, err)
		}

		vector := bytesToFloat32Slice(blob)
		hits = append(hits, domain.SearchHit{
			ID:       id,
			Score:    vectormath.Cosine(req.Vector, vector),
			Content:  payload.Content,
			Metadata: payload.Metadata,
			Vector:   vector,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// Ties break on ID so results are deterministic.
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })

	pool := vectormath.Rank(hits, vectormath.PoolSize(req))
	return vectormath.Select(req, pool), nil
}

// DeleteWhere removes the points matching filter.
func (v *vectorIndex) DeleteWhere(ctx context.Context, name string, filter domain.PointFilter) (int, error) {
	clauses := []string{"collection = ?"}
	args := []any{name}
	if filter.SourceFile != "" {
		clauses = append(clauses, "source_file = ?")
		args = append(args, filter.SourceFile)
	}
	if filter.ExceptFileHash != "" {
		clauses = append(clauses, "file_hash <> ?")
		args = append(args, filter.ExceptFileHash)
	}
	if filter.MinSequence > 0 {
		clauses = append(clauses, "json_extract(payload, '$.metadata.sequence') >= ?")
		args = append(args, filter.MinSequence)
	}

	result, err := v.store.db.ExecContext(ctx,
		"DELETE FROM points WHERE "+strings.Join(clauses, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting points: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return int(n), nil
}

// Info describes the collection.
func (v *vectorIndex) Info(ctx context.Context, name string) (domain.CollectionInfo, error) {
	dimension, metric, err := v.collection(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CollectionInfo{Name: name, Status: domain.CollectionStatusMissing}, nil
	}
	if err != nil {
		return domain.CollectionInfo{}, err
	}

	var count int
	if err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", name,
	).Scan(&count); err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("counting points: %w", err)
	}

	return domain.CollectionInfo{
		Name:        name,
		PointsCount: count,
		Status:      domain.CollectionStatusReady,
		Dimension:   dimension,
		Metric:      metric,
	}, nil
}

// Close is a no-op; the owning Store holds the connection.
func (v *vectorIndex) Close() error {
	return nil
}
