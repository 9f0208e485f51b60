// Package qdrant implements driven.VectorIndex over the Qdrant REST API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/httpapi"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
	"github.com/Qingzhee/rag-engine/internal/vectormath"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Default configuration values.
const (
	DefaultURL       = "http://localhost:6333"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 64
)

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout bounds a single request (default: 30s).
	Timeout time.Duration

	// BatchSize is the number of points per upsert request (default: 64).
	BatchSize int

	// MaxRetries follows httpapi.Config semantics.
	MaxRetries int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// VectorIndex stores points in Qdrant collections. Payloads keep the
// chunk text under page_content and its metadata under metadata.
type VectorIndex struct {
	client    *httpapi.Client
	batchSize int
}

// New creates a Qdrant-backed index.
func New(cfg Config) *VectorIndex {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["api-key"] = cfg.APIKey
	}

	return &VectorIndex{
		client: httpapi.New(httpapi.Config{
			Provider:   "qdrant",
			BaseURL:    cfg.URL,
			Headers:    headers,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			HTTPClient: cfg.HTTPClient,
		}),
		batchSize: cfg.BatchSize,
	}
}

// Wire types.

type envelope[T any] struct {
	Result T      `json:"result"`
	Status string `json:"status"`
}

type collectionResult struct {
	Status      string `json:"status"`
	PointsCount *int   `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type payload struct {
	PageContent string               `json:"page_content"`
	Metadata    domain.ChunkMetadata `json:"metadata"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

type scoredPoint struct {
	ID      any       `json:"id"`
	Score   float64   `json:"score"`
	Payload payload   `json:"payload"`
	Vector  []float32 `json:"vector"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type match struct {
	Value string `json:"value"`
}

type valueRange struct {
	GTE int `json:"gte"`
}

type condition struct {
	Key   string      `json:"key"`
	Match *match      `json:"match,omitempty"`
	Range *valueRange `json:"range,omitempty"`
}

type filter struct {
	Must    []condition `json:"must,omitempty"`
	MustNot []condition `json:"must_not,omitempty"`
}

func collectionPath(name string, suffix ...string) string {
	return "/collections/" + url.PathEscape(name) + strings.Join(suffix, "")
}

// isNotFound reports whether Qdrant answered 404.
func isNotFound(err error) bool {
	var perr *domain.ProviderError
	return errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound
}

func (v *VectorIndex) getCollection(ctx context.Context, name string) (*collectionResult, error) {
	var resp envelope[collectionResult]
	if err := v.client.Do(ctx, "get_collection", http.MethodGet, collectionPath(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// EnsureCollection creates the collection with cosine distance if absent.
func (v *VectorIndex) EnsureCollection(ctx context.Context, name string, dimension int, metric domain.DistanceMetric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}

	existing, err := v.getCollection(ctx, name)
	switch {
	case err == nil:
		if size := existing.Config.Params.Vectors.Size; size != dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, not %d",
				domain.ErrInvalidInput, name, size, dimension)
		}
		return nil
	case !isNotFound(err):
		return err
	}

	logger.Info("Creating collection: %s", name)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distanceName(metric),
		},
	}
	return v.client.Do(ctx, "create_collection", http.MethodPut, collectionPath(name), body, nil)
}

func distanceName(metric domain.DistanceMetric) string {
	switch metric {
	case domain.DistanceCosine, "":
		return "Cosine"
	default:
		return string(metric)
	}
}

// Upsert writes points in batches and waits for each batch to be applied.
func (v *VectorIndex) Upsert(ctx context.Context, collection string, points []domain.IndexPoint) error {
	for start := 0; start < len(points); start += v.batchSize {
		end := min(start+v.batchSize, len(points))

		batch := make([]point, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, point{
				ID:      p.ID,
				Vector:  p.Vector,
				Payload: payload{PageContent: p.Content, Metadata: p.Metadata},
			})
		}

		body := map[string]any{"points": batch}
		if err := v.client.Do(ctx, "upsert", http.MethodPut,
			collectionPath(collection, "/points?wait=true"), body, nil); err != nil {
			return err
		}
	}
	return nil
}

// Search queries the nearest neighbours. MMR requests fetch vectors with the
// pool and re-rank locally.
func (v *VectorIndex) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	body := searchRequest{
		Vector:      req.Vector,
		Limit:       vectormath.PoolSize(req),
		WithPayload: true,
		WithVector:  req.Mode == domain.SearchModeMMR,
	}

	var resp envelope[[]scoredPoint]
	err := v.client.Do(ctx, "search", http.MethodPost, collectionPath(req.Collection, "/points/search"), body, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pool := make([]domain.SearchHit, 0, len(resp.Result))
	for _, sp := range resp.Result {
		pool = append(pool, domain.SearchHit{
			ID:       fmt.Sprint(sp.ID),
			Score:    sp.Score,
			Content:  sp.Payload.PageContent,
			Metadata: sp.Payload.Metadata,
			Vector:   sp.Vector,
		})
	}
	return vectormath.Select(req, pool), nil
}

// DeleteWhere deletes by payload filter. Qdrant does not report how many
// points matched, so the count is -1.
func (v *VectorIndex) DeleteWhere(ctx context.Context, collection string, f domain.PointFilter) (int, error) {
	var q filter
	if f.SourceFile != "" {
		q.Must = append(q.Must, condition{Key: "metadata.source_file", Match: &match{Value: f.SourceFile}})
	}
	if f.ExceptFileHash != "" {
		q.MustNot = append(q.MustNot, condition{Key: "metadata.file_hash", Match: &match{Value: f.ExceptFileHash}})
	}
	if f.MinSequence > 0 {
		q.Must = append(q.Must, condition{Key: "metadata.sequence", Range: &valueRange{GTE: f.MinSequence}})
	}

	body := map[string]any{"filter": q}
	err := v.client.Do(ctx, "delete", http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), body, nil)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return -1, nil
}

// Info describes the collection.
func (v *VectorIndex) Info(ctx context.Context, name string) (domain.CollectionInfo, error) {
	c, err := v.getCollection(ctx, name)
	if isNotFound(err) {
		return domain.CollectionInfo{Name: name, Status: domain.CollectionStatusMissing}, nil
	}
	if err != nil {
		return domain.CollectionInfo{}, err
	}

	info := domain.CollectionInfo{
		Name:      name,
		Status:    c.Status,
		Dimension: c.Config.Params.Vectors.Size,
		Metric:    strings.ToLower(c.Config.Params.Vectors.Distance),
	}
	if c.PointsCount != nil {
		info.PointsCount = *c.PointsCount
	}
	return info, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
