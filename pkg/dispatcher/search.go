package dispatcher

import (
	"context"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/agrama/agrama/pkg/hybrid"
	"github.com/agrama/agrama/pkg/vector"
)

// searchPrimitive runs the triple-hybrid pipeline over a request's text,
// embedding and/or starting nodes.
func (d *Dispatcher) searchPrimitive(ctx context.Context, req Request) (map[string]any, error) {
	q := hybrid.Query{
		Text:         mustString(req.Params, "text"),
		K:            paramInt(req.Params, "k", d.cfg.DefaultK),
		MaxGraphHops: paramInt(req.Params, "max_graph_hops", d.cfg.DefaultHops),
	}

	if vec := paramFloatSlice(req.Params, "embedding"); vec != nil {
		q.Embedding = &vector.Embedding{Full: vec}
	}
	for _, key := range paramStringSlice(req.Params, "starting_nodes") {
		q.StartingNodes = append(q.StartingNodes, graphmodel.IDForKey(key))
	}
	if v, ok := req.Params["alpha"]; ok {
		f := toFloat(v)
		q.Alpha = &f
	}
	if v, ok := req.Params["beta"]; ok {
		f := toFloat(v)
		q.Beta = &f
	}
	if v, ok := req.Params["gamma"]; ok {
		f := toFloat(v)
		q.Gamma = &f
	}

	engine := d.hybridEngine()
	results, err := engine.Search(ctx, q)
	if err != nil {
		return nil, agrama.NewError(agrama.KindOf(err), "search", err)
	}

	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{
			"doc_id":              r.DocID,
			"path":                r.Path,
			"bm25_score":          r.BM25Score,
			"hnsw_score":          r.HNSWScore,
			"fre_score":           r.FREScore,
			"combined_score":      r.CombinedScore,
			"matching_terms":      r.MatchingTerms,
			"semantic_similarity": r.SemanticSimilarity,
			"graph_distance":      r.GraphDistance,
		}
	}
	return map[string]any{"results": out}, nil
}

func mustString(params map[string]any, key string) string {
	s, _ := paramString(params, key)
	return s
}
