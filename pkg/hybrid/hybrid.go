// Package hybrid fuses BM25 lexical, HNSW vector, and FRE graph-distance
// scores into a single ranked result set.
package hybrid

import (
	"context"
	"sort"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/bm25"
	"github.com/agrama/agrama/pkg/fre"
	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/agrama/agrama/pkg/vector"
)

// Query is one hybrid search request. Text drives BM25 and, absent an
// explicit Embedding, a deterministic placeholder for HNSW. StartingNodes
// seeds an FRE forward traversal bounded by MaxGraphHops.
//
// Alpha, Beta and Gamma are pointers so a caller can distinguish "didn't
// specify a weight" (nil, defaults apply) from "explicitly disabled this
// engine" (0.0): a query with all three weights explicitly set to zero
// must return no results, not the default-weighted ranking.
type Query struct {
	Text          string
	Embedding     *vector.Embedding
	StartingNodes []graphmodel.ID
	K             int
	MaxGraphHops  int

	Alpha *float64 // BM25 weight, default 0.4
	Beta  *float64 // HNSW weight, default 0.4
	Gamma *float64 // FRE weight, default 0.2
}

// DefaultAlpha, DefaultBeta and DefaultGamma are applied to any of Query's
// weight fields left nil.
const (
	DefaultAlpha = 0.4
	DefaultBeta  = 0.4
	DefaultGamma = 0.2
)

func weightOrDefault(w *float64, def float64) float64 {
	if w == nil {
		return def
	}
	return *w
}

// ValidateWeights rejects a weight sum greater than 1+1e-6 or any negative
// weight; equality or less is accepted so callers can selectively disable
// an engine by zeroing its weight.
func (q Query) ValidateWeights() error {
	alpha, beta, gamma := weightOrDefault(q.Alpha, DefaultAlpha), weightOrDefault(q.Beta, DefaultBeta), weightOrDefault(q.Gamma, DefaultGamma)
	if alpha < 0 || beta < 0 || gamma < 0 {
		return agrama.NewError(agrama.KindInvalidArgument, "validate_weights", nil)
	}
	if alpha+beta+gamma > 1.0+1e-6 {
		return agrama.NewError(agrama.KindInvalidArgument, "validate_weights", nil)
	}
	return nil
}

// Result is one fused hit, carrying every per-engine signal the data model
// calls for so a caller can explain a ranking.
type Result struct {
	DocID              uint64
	Path               string
	BM25Score          float64
	HNSWScore          float64
	FREScore           float64
	CombinedScore      float64
	MatchingTerms      []string
	SemanticSimilarity float64
	GraphDistance      float64
}

// Engine ties a BM25 index, an HNSW index, and an FRE engine together. None
// of the three is owned here; Engine holds borrowed references only.
type Engine struct {
	bm25Index *bm25.Index
	hnswIndex *vector.Index
	freEngine *fre.Engine

	docIDs map[uint64]graphmodel.ID // maps BM25 doc ids to graph ids, for FRE fusion
}

// New returns an Engine over the given indices. Any of them may be nil, in
// which case that engine contributes nothing regardless of its weight.
func New(bm25Index *bm25.Index, hnswIndex *vector.Index, freEngine *fre.Engine, docIDs map[uint64]graphmodel.ID) *Engine {
	if docIDs == nil {
		docIDs = map[uint64]graphmodel.ID{}
	}
	return &Engine{bm25Index: bm25Index, hnswIndex: hnswIndex, freEngine: freEngine, docIDs: docIDs}
}

// Search runs the full triple-hybrid pipeline: BM25 over text, HNSW over
// an embedding (real or placeholder), FRE forward from StartingNodes, each
// normalized to [0,1] against its own result set's maximum, then combined
// by weight and truncated to the top k.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := q.ValidateWeights(); err != nil {
		return nil, err
	}
	k := q.K
	if k <= 0 {
		k = 10
	}
	alpha := weightOrDefault(q.Alpha, DefaultAlpha)
	beta := weightOrDefault(q.Beta, DefaultBeta)
	gamma := weightOrDefault(q.Gamma, DefaultGamma)

	scores := make(map[uint64]*Result)
	nodeToDoc := make(map[graphmodel.ID]uint64, len(e.docIDs))
	for docID, nodeID := range e.docIDs {
		nodeToDoc[nodeID] = docID
	}

	if alpha > 0 && e.bm25Index != nil && q.Text != "" {
		kb := k * 4
		hits := e.bm25Index.Search(q.Text, kb)
		maxScore := 0.0
		for _, h := range hits {
			if h.Score > maxScore {
				maxScore = h.Score
			}
		}
		for _, h := range hits {
			r := scores[h.DocID]
			if r == nil {
				r = &Result{DocID: h.DocID, Path: h.Path}
				scores[h.DocID] = r
			}
			r.MatchingTerms = h.MatchingTerms
			if maxScore > 0 {
				r.BM25Score = h.Score / maxScore
			}
		}
	}

	if beta > 0 && e.hnswIndex != nil {
		queryVec := resolveEmbedding(q)
		if queryVec != nil {
			ef := k
			if ef < 64 {
				ef = 64
			}
			hits := e.hnswIndex.Search(queryVec, k*4, ef)
			maxSim := 0.0
			type hnswHit struct {
				docID uint64
				sim   float64
			}
			var converted []hnswHit
			for _, h := range hits {
				docID, ok := nodeToDoc[h.ID]
				if !ok {
					continue
				}
				sim := 1 - float64(h.Distance)
				if sim < 0 {
					sim = 0
				}
				converted = append(converted, hnswHit{docID, sim})
				if sim > maxSim {
					maxSim = sim
				}
			}
			for _, h := range converted {
				r := scores[h.docID]
				if r == nil {
					r = &Result{DocID: h.docID}
					scores[h.docID] = r
				}
				r.SemanticSimilarity = h.sim
				if maxSim > 0 {
					r.HNSWScore = h.sim / maxSim
				}
			}
		}
	}

	if gamma > 0 && e.freEngine != nil && len(q.StartingNodes) > 0 {
		path := e.freEngine.ComputePaths(ctx, q.StartingNodes, graphmodel.DirForward, q.MaxGraphHops, fre.TimeRange{})
		maxDist := 0.0
		for _, d := range path.Distances {
			if d > maxDist {
				maxDist = d
			}
		}
		for id, dist := range path.Distances {
			docID, ok := nodeToDoc[id]
			if !ok {
				continue
			}
			r := scores[docID]
			if r == nil {
				r = &Result{DocID: docID}
				scores[docID] = r
			}
			r.GraphDistance = dist
			// Closer nodes should score higher: invert before normalizing.
			if maxDist > 0 {
				r.FREScore = (maxDist - dist) / maxDist
			} else {
				r.FREScore = 1
			}
		}
	}

	out := make([]Result, 0, len(scores))
	for _, r := range scores {
		r.CombinedScore = alpha*r.BM25Score + beta*r.HNSWScore + gamma*r.FREScore
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].DocID < out[j].DocID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Combine fuses three already-normalized per-engine scores by weight. It
// exists independent of Search so the fusion arithmetic can be exercised
// directly without building indices.
func Combine(bm25Score, hnswScore, freScore, alpha, beta, gamma float64) float64 {
	return alpha*bm25Score + beta*hnswScore + gamma*freScore
}

func resolveEmbedding(q Query) []float32 {
	if q.Embedding != nil {
		return q.Embedding.Final()
	}
	if q.Text == "" {
		return nil
	}
	emb := vector.PlaceholderEmbedding(q.Text, 64, nil)
	return emb.Final()
}

