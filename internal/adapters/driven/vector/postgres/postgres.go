// Package postgres implements driven.VectorIndex on PostgreSQL with the
// pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/vectormath"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// VectorIndex keeps every collection in the rag_points table. Nearest
// neighbours are ordered by the cosine distance operator.
type VectorIndex struct {
	db *sqlx.DB
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*VectorIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err)
	}

	v := &VectorIndex{db: db}
	if err := v.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return v, nil
}

// NewWithDB wraps an existing connection. The schema must already exist.
func NewWithDB(db *sqlx.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

func (v *VectorIndex) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range splitStatements(string(content)) {
			if _, err := v.db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}

// splitStatements splits a migration on semicolons, dropping empty statements.
func splitStatements(content string) []string {
	var out []string
	for _, q := range strings.Split(content, ";") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// rebind converts ? placeholders to $n.
func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

type collectionRow struct {
	Dimension int    `db:"dimension"`
	Metric    string `db:"metric"`
}

func (v *VectorIndex) collection(ctx context.Context, name string) (collectionRow, error) {
	var row collectionRow
	err := v.db.GetContext(ctx, &row, rebind("SELECT dimension, metric FROM rag_collections WHERE name = ?"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return row, nil
}

// EnsureCollection creates the collection row if absent.
func (v *VectorIndex) EnsureCollection(ctx context.Context, name string, dimension int, metric domain.DistanceMetric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if metric == "" {
		metric = domain.DistanceCosine
	}

	if _, err := v.db.ExecContext(ctx, rebind(`
		INSERT INTO rag_collections (name, dimension, metric) VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING
	`), name, dimension, string(metric)); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	row, err := v.collection(ctx, name)
	if err != nil {
		return err
	}
	if row.Dimension != dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, not %d",
			domain.ErrInvalidInput, name, row.Dimension, dimension)
	}
	return nil
}

// Upsert inserts or replaces points by ID in one transaction.
func (v *VectorIndex) Upsert(ctx context.Context, collection string, points []domain.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	row, err := v.collection(ctx, collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != row.Dimension {
			return fmt.Errorf("%w: point %s has dimension %d, not %d",
				domain.ErrInvalidInput, p.ID, len(p.Vector), row.Dimension)
		}
	}

	tx, err := v.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := rebind(`
		INSERT INTO rag_points (collection, id, source_file, file_hash, content, embedding, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			source_file = EXCLUDED.source_file,
			file_hash = EXCLUDED.file_hash,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload
	`)
	for _, p := range points {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, collection, p.ID, p.Metadata.SourceFile, p.Metadata.FileHash,
			p.Content, pgvector.NewVector(p.Vector), string(meta)); err != nil {
			return fmt.Errorf("upserting point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing points: %w", err)
	}
	return nil
}

type pointRow struct {
	ID        string          `db:"id"`
	Content   string          `db:"content"`
	Payload   []byte          `db:"payload"`
	Embedding pgvector.Vector `db:"embedding"`
	Score     float64         `db:"score"`
}

// Search orders by cosine distance in the database, then applies the
// request mode to the fetched pool.
func (v *VectorIndex) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	query := rebind(`
		SELECT id, content, payload, embedding, 1 - (embedding <=> ?) AS score
		FROM rag_points
		WHERE collection = ?
		ORDER BY embedding <=> ?, id
		LIMIT ?
	`)
	vec := pgvector.NewVector(req.Vector)

	var rows []pointRow
	if err := v.db.SelectContext(ctx, &rows, query, vec, req.Collection, vec, vectormath.PoolSize(req)); err != nil {
		return nil, fmt.Errorf("searching %s: %w", req.Collection, err)
	}

	pool := make([]domain.SearchHit, 0, len(rows))
	for _, r := range rows {
		var meta domain.ChunkMetadata
		if err := json.Unmarshal(r.Payload, &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling payload of %s: %w", r.ID, err)
		}
		pool = append(pool, domain.SearchHit{
			ID:       r.ID,
			Score:    r.Score,
			Content:  r.Content,
			Metadata: meta,
			Vector:   r.Embedding.Slice(),
		})
	}
	return vectormath.Select(req, pool), nil
}

// deleteQuery builds the DELETE statement for filter.
func deleteQuery(collection string, f domain.PointFilter) (string, []any) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	if f.SourceFile != "" {
		clauses = append(clauses, "source_file = ?")
		args = append(args, f.SourceFile)
	}
	if f.ExceptFileHash != "" {
		clauses = append(clauses, "file_hash <> ?")
		args = append(args, f.ExceptFileHash)
	}
	if f.MinSequence > 0 {
		clauses = append(clauses, "(payload->>'sequence')::int >= ?")
		args = append(args, f.MinSequence)
	}
	return rebind("DELETE FROM rag_points WHERE " + strings.Join(clauses, " AND ")), args
}

// DeleteWhere removes the points matching filter.
func (v *VectorIndex) DeleteWhere(ctx context.Context, collection string, f domain.PointFilter) (int, error) {
	query, args := deleteQuery(collection, f)
	res, err := v.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return int(n), nil
}

// Info describes the collection.
func (v *VectorIndex) Info(ctx context.Context, name string) (domain.CollectionInfo, error) {
	row, err := v.collection(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CollectionInfo{Name: name, Status: domain.CollectionStatusMissing}, nil
	}
	if err != nil {
		return domain.CollectionInfo{}, err
	}

	var count int
	if err := v.db.GetContext(ctx, &count, rebind("SELECT COUNT(*) FROM rag_points WHERE collection = ?"), name); err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("counting points: %w", err)
	}

	return domain.CollectionInfo{
		Name:        name,
		PointsCount: count,
		Status:      domain.CollectionStatusReady,
		Dimension:   row.Dimension,
		Metric:      row.Metric,
	}, nil
}

// Close closes the connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}
