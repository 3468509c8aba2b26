package fre

import (
	"context"
	"sort"
	"time"

	"github.com/agrama/agrama/pkg/graphmodel"
)

// queryState is the per-query working memory for one ComputePaths call:
// ordinary function-local maps and slices, never shared across queries or
// held past the call that created it.
type queryState struct {
	engine    *Engine
	direction graphmodel.Direction
	timeRange TimeRange
	queryTime time.Time

	distances map[graphmodel.ID]float64
	prev      map[graphmodel.ID]graphmodel.ID
	hops      map[graphmodel.ID]int
	explored  int
}

// recurse implements the bounded recursion: the base case runs bounded
// temporal Dijkstra; the recursive case selects pivots, recurses at
// level-1 with half the distance bound, and unions results by keeping the
// shortest known distance per node.
func (s *queryState) recurse(ctx context.Context, sources []graphmodel.ID, level int, bound float64, maxHops int) {
	if level <= 0 || len(sources) <= 1 {
		s.dijkstra(ctx, sources, bound, maxHops)
		return
	}

	pivots := s.selectPivots(sources)
	for _, p := range pivots {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.recurse(ctx, []graphmodel.ID{p}, level-1, bound/2, maxHops)
	}
}

// selectPivots picks sources whose estimated subtree size (outgoing-edge
// count normalized by graph size) meets the configured threshold. If none
// qualify, every source is used.
func (s *queryState) selectPivots(sources []graphmodel.ID) []graphmodel.ID {
	graphSize := s.engine.graph.NodeCount()
	if graphSize == 0 {
		return sources
	}

	var pivots []graphmodel.ID
	for _, id := range sources {
		subtreeEstimate := float64(s.engine.graph.OutDegree(id)) / float64(graphSize)
		if subtreeEstimate >= s.engine.cfg.PivotThreshold {
			pivots = append(pivots, id)
		}
	}
	if len(pivots) == 0 {
		return sources
	}
	return pivots
}

// frontierEntry pairs an entry with its accumulated hop count, so the
// base case can enforce maxHops independently of the distance bound.
type frontierEntry struct {
	entry
	hopCount int
}

// dijkstra is the recursion's base case: a bounded multi-source Dijkstra
// whose frontier is ordered by dist + 0.1*temporalWeight + 0.1*semanticWeight
// and capped at MaxFrontierSize, truncating the worst entries when it
// overflows. Truncation is a controlled approximation: distances of
// dropped entries may end up wrong, but the algorithm never fabricates a
// shorter path than what it actually found.
func (s *queryState) dijkstra(ctx context.Context, sources []graphmodel.ID, bound float64, maxHops int) {
	frontier := make([]frontierEntry, 0, len(sources))
	for _, src := range sources {
		if existing, ok := s.distances[src]; ok && existing <= 0 {
			continue
		}
		s.distances[src] = 0
		node := s.engine.graph.Node(src)
		frontier = append(frontier, frontierEntry{
			entry: entry{
				id:             src,
				dist:           0,
				temporalWeight: temporalWeight(node, s.queryTime),
				semanticWeight: s.engine.cfg.SemanticWeight(src),
			},
			hopCount: 0,
		})
	}

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sort.Slice(frontier, func(i, j int) bool { return frontier[i].priority() < frontier[j].priority() })

		if len(frontier) > s.engine.cfg.MaxFrontierSize {
			dropped := len(frontier) - s.engine.cfg.MaxFrontierSize
			frontier = frontier[:s.engine.cfg.MaxFrontierSize]
			s.engine.trunc += int64(dropped)
			s.engine.cfg.Logger.Warn("fre.frontier_truncation", "dropped", dropped)
		}

		cur := frontier[0]
		frontier = frontier[1:]
		s.explored++

		if maxHops >= 0 && cur.hopCount >= maxHops {
			continue
		}
		if cur.dist > bound {
			continue
		}

		for _, edge := range s.activeEdges(cur.id) {
			next, edgeDist := s.traverse(cur.id, edge)
			if next.IsNil() {
				continue
			}
			newDist := cur.dist + edgeDist
			if newDist > bound {
				continue
			}
			if existing, ok := s.distances[next]; ok && existing <= newDist {
				continue
			}
			s.distances[next] = newDist
			s.prev[next] = cur.id
			s.hops[next] = cur.hopCount + 1

			node := s.engine.graph.Node(next)
			frontier = append(frontier, frontierEntry{
				entry: entry{
					id:             next,
					dist:           newDist,
					temporalWeight: temporalWeight(node, s.queryTime),
					semanticWeight: s.engine.cfg.SemanticWeight(next),
				},
				hopCount: cur.hopCount + 1,
			})
		}
	}
}

// activeEdges returns edges at the query time range's end, respecting the
// configured traversal direction.
func (s *queryState) activeEdges(id graphmodel.ID) []*graphmodel.Edge {
	t := s.timeRange.End
	if t.IsZero() {
		t = s.queryTime
	}
	return s.engine.graph.ActiveEdges(id, s.direction, t)
}

// traverse resolves the far endpoint of edge relative to id and its
// weight. Bidirectional traversal reverses reverse-edge endpoints on
// demand; edge weight is identical in both directions.
func (s *queryState) traverse(id graphmodel.ID, edge *graphmodel.Edge) (graphmodel.ID, float64) {
	switch {
	case edge.Source == id:
		return edge.Target, edge.Weight
	case edge.Target == id:
		return edge.Source, edge.Weight
	default:
		return graphmodel.NilID, 0
	}
}

// pathTo reconstructs the shortest path found to id by walking prev links.
func (s *queryState) pathTo(id graphmodel.ID) []graphmodel.ID {
	var path []graphmodel.ID
	for cur := id; ; {
		path = append(path, cur)
		prev, ok := s.prev[cur]
		if !ok {
			break
		}
		cur = prev
	}
	// reverse into source-to-target order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
