package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/vectormath"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type collection struct {
	dimension int
	metric    domain.DistanceMetric
	points    map[string]domain.IndexPoint
}

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Search is a brute-force cosine scan.
type VectorIndex struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		collections: make(map[string]*collection),
	}
}

// EnsureCollection creates the collection if absent.
func (v *VectorIndex) EnsureCollection(_ context.Context, name string, dimension int, metric domain.DistanceMetric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if c, ok := v.collections[name]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, not %d",
				domain.ErrInvalidInput, name, c.dimension, dimension)
		}
		return nil
	}
	v.collections[name] = &collection{
		dimension: dimension,
		metric:    metric,
		points:    make(map[string]domain.IndexPoint),
	}
	return nil
}

// Upsert inserts or replaces points by ID.
func (v *VectorIndex) Upsert(_ context.Context, name string, points []domain.IndexPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.collections[name]
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("%w: point %s has dimension %d, not %d",
				domain.ErrInvalidInput, p.ID, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		c.points[p.ID] = p
	}
	return nil
}

// Search ranks every point by cosine similarity and applies the request mode.
func (v *VectorIndex) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.collections[req.Collection]
	if !ok || len(c.points) == 0 {
		return nil, nil
	}

	hits := make([]domain.SearchHit, 0, len(c.points))
	for _, p := range c.points {
		hits = append(hits, domain.SearchHit{
			ID:       p.ID,
			Score:    vectormath.Cosine(req.Vector, p.Vector),
			Content:  p.Content,
			Metadata: p.Metadata,
			Vector:   p.Vector,
		})
	}
	// Ties break on ID so results are deterministic.
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })

	pool := vectormath.Rank(hits, vectormath.PoolSize(req))
	return vectormath.Select(req, pool), nil
}

// DeleteWhere removes the points matching filter.
func (v *VectorIndex) DeleteWhere(_ context.Context, name string, filter domain.PointFilter) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.collections[name]
	if !ok {
		return 0, nil
	}
	removed := 0
	for id, p := range c.points {
		if filter.Matches(p.Metadata) {
			delete(c.points, id)
			removed++
		}
	}
	return removed, nil
}

// Info describes the collection.
func (v *VectorIndex) Info(_ context.Context, name string) (domain.CollectionInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.collections[name]
	if !ok {
		return domain.CollectionInfo{Name: name, Status: domain.CollectionStatusMissing}, nil
	}
	return domain.CollectionInfo{
		Name:        name,
		PointsCount: len(c.points),
		Status:      domain.CollectionStatusReady,
		Dimension:   c.dimension,
		Metric:      string(c.metric),
	}, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
