// Package vectormath provides the similarity and re-ranking helpers shared by
// the vector index adapters.
package vectormath

import (
	"math"
	"sort"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched or zero vectors have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp floating point drift.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// MMR selects up to k candidate indices by maximal marginal relevance.
// lambda weighs relevance to the query against dissimilarity to the
// candidates already chosen: 1 is pure relevance, 0 pure diversity.
// Indices are returned in selection order.
func MMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c)
	}

	selected := make([]int, 0, k)
	chosen := make([]bool, len(candidates))
	// maxSim[i] is the highest similarity of candidate i to any selected one.
	maxSim := make([]float64, len(candidates))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if chosen[i] {
				continue
			}
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}

		chosen[best] = true
		selected = append(selected, best)

		for i := range candidates {
			if chosen[i] {
				continue
			}
			if s := Cosine(candidates[i], candidates[best]); s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}

	return selected
}

// Rank orders hits by descending score and keeps the first k. Ties keep
// their input order.
func Rank(hits []domain.SearchHit, k int) []domain.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Select applies the search mode to a pool of hits that carry vectors and
// are ranked by raw similarity. Similarity mode keeps the top k; MMR mode
// re-ranks the pool.
func Select(req domain.SearchRequest, pool []domain.SearchHit) []domain.SearchHit {
	if req.Mode != domain.SearchModeMMR {
		return Rank(pool, req.K)
	}

	vectors := make([][]float32, len(pool))
	for i, h := range pool {
		vectors[i] = h.Vector
	}

	idx := MMR(req.Vector, vectors, req.K, req.Lambda)
	out := make([]domain.SearchHit, 0, len(idx))
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

// PoolSize returns how many neighbours to fetch before selection.
func PoolSize(req domain.SearchRequest) int {
	if req.Mode == domain.SearchModeMMR && req.FetchK > req.K {
		return req.FetchK
	}
	return req.K
}
