// Package fre implements the frontier reduction engine: bounded
// multi-source shortest paths over the typed temporal graph, using
// recursive pivot selection to shrink the Dijkstra frontier. It supports
// multiple sources, a graph-size-driven recursion schedule, temporal edge
// activation, and a bounded, best-effort frontier.
package fre

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/agrama/agrama/internal/logging"
	"github.com/agrama/agrama/pkg/graphmodel"
)

const oneYear = 365 * 24 * time.Hour

// Config tunes the engine's approximation knobs.
type Config struct {
	MaxFrontierSize  int
	PivotThreshold   float64
	DefaultRecursion int // clamp for the else-branch of the level schedule
	// SemanticWeight optionally scores a node's relevance for frontier
	// ordering. The default is always 0, making frontier order depend only
	// on distance and temporal weight until a caller supplies a real
	// scorer (e.g. from pkg/hybrid's embedding similarity).
	SemanticWeight func(id graphmodel.ID) float64
	Logger         logging.Logger
}

// DefaultConfig returns sized-for-production defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrontierSize:  10_000,
		PivotThreshold:   0.01,
		DefaultRecursion: 4,
		SemanticWeight:   func(graphmodel.ID) float64 { return 0 },
		Logger:           logging.Nop(),
	}
}

// Engine runs bounded multi-source shortest-path queries against a
// borrowed *graphmodel.Graph. It holds no back-references into the
// graph's internals; per-query working state (frontier, visited set,
// distance map) is ordinary function-local memory, not a shared arena.
type Engine struct {
	graph *graphmodel.Graph
	cfg   Config
	trunc int64 // frontier_truncations metric
}

// New returns an Engine over graph with the given config.
func New(graph *graphmodel.Graph, cfg Config) *Engine {
	if cfg.MaxFrontierSize <= 0 {
		cfg.MaxFrontierSize = DefaultConfig().MaxFrontierSize
	}
	if cfg.SemanticWeight == nil {
		cfg.SemanticWeight = func(graphmodel.ID) float64 { return 0 }
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Engine{graph: graph, cfg: cfg}
}

// FrontierTruncations returns the running count of frontier-overflow
// truncations observed by this engine, a best-effort metric.
func (e *Engine) FrontierTruncations() int64 {
	return e.trunc
}

// TimeRange sets the instant a query's edges must be active at: End, or
// now when End is zero. Start is not consulted, so an edge that was active
// only earlier inside [Start, End] is not relaxed.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// entry is one frontier member, ordered by dist + 0.1*temporalWeight +
// 0.1*semanticWeight.
type entry struct {
	id             graphmodel.ID
	dist           float64
	temporalWeight float64
	semanticWeight float64
}

func (f entry) priority() float64 {
	return f.dist + 0.1*f.temporalWeight + 0.1*f.semanticWeight
}

// temporalWeight computes node n's temporal weight w.r.t. query time t:
// 1 - clamp(|n.created_at - t|, 0, one_year) / one_year.
func temporalWeight(n *graphmodel.Node, t time.Time) float64 {
	if n == nil {
		return 0
	}
	delta := n.CreatedAt.Sub(t)
	if delta < 0 {
		delta = -delta
	}
	if delta > oneYear {
		delta = oneYear
	}
	return 1 - float64(delta)/float64(oneYear)
}

// recursionLevel selects ℓ from graph size and |S|.
func (e *Engine) recursionLevel(graphSize, sourceCount int) int {
	switch {
	case graphSize < 100:
		return 1
	case graphSize <= 1000:
		return 2
	case graphSize <= 10000:
		return 3
	default:
		level := int(math.Floor((2.0 / 3.0) * math.Log(float64(graphSize))))
		if level < 1 {
			level = 1
		}
		if level > e.cfg.DefaultRecursion {
			level = e.cfg.DefaultRecursion
		}
		return level
	}
}

// PathResult is the output of ComputePaths.
type PathResult struct {
	ReachableNodes []graphmodel.ID
	Distances      map[graphmodel.ID]float64
	Paths          map[graphmodel.ID][]graphmodel.ID
	ExploredCount  int
	ElapsedMs      float64
}

// ComputePaths runs bounded multi-source shortest paths from sources,
// bounded by maxHops and honoring timeRange (only edges active at
// timeRange.End, or at now when End is zero, are relaxed; timeRange.Start
// is not consulted). A maxHops of 0 sets the distance bound
// to 0, so only the sources themselves are reachable.
func (e *Engine) ComputePaths(ctx context.Context, sources []graphmodel.ID, direction graphmodel.Direction, maxHops int, timeRange TimeRange) PathResult {
	start := time.Now()

	bound := math.Inf(1)
	if maxHops >= 0 {
		bound = float64(maxHops)
	}

	queryTime := timeRange.End
	if queryTime.IsZero() {
		queryTime = time.Now()
	}

	state := &queryState{
		engine:    e,
		direction: direction,
		timeRange: timeRange,
		queryTime: queryTime,
		distances: make(map[graphmodel.ID]float64),
		prev:      make(map[graphmodel.ID]graphmodel.ID),
		hops:      make(map[graphmodel.ID]int),
	}

	level := e.recursionLevel(e.graph.NodeCount(), len(sources))
	state.recurse(ctx, sources, level, bound, maxHops)

	reachable := make([]graphmodel.ID, 0, len(state.distances))
	for id := range state.distances {
		reachable = append(reachable, id)
	}
	sort.Slice(reachable, func(i, j int) bool { return state.distances[reachable[i]] < state.distances[reachable[j]] })

	paths := make(map[graphmodel.ID][]graphmodel.ID, len(reachable))
	for _, id := range reachable {
		paths[id] = state.pathTo(id)
	}

	e.cfg.Logger.Info("fre.compute_paths",
		"sources", len(sources),
		"reachable", len(reachable),
		"explored", state.explored,
	)

	return PathResult{
		ReachableNodes: reachable,
		Distances:      state.distances,
		Paths:          paths,
		ExploredCount:  state.explored,
		ElapsedMs:      float64(time.Since(start)) / float64(time.Millisecond),
	}
}

// Reachable reports whether any source can reach any target within
// maxDistance.
func (e *Engine) Reachable(ctx context.Context, sources, targets []graphmodel.ID, maxDistance float64) bool {
	hops := -1
	if !math.IsInf(maxDistance, 1) {
		hops = int(math.Ceil(maxDistance))
	}
	result := e.ComputePaths(ctx, sources, graphmodel.DirForward, hops, TimeRange{End: time.Now()})
	targetSet := make(map[graphmodel.ID]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}
	for id, dist := range result.Distances {
		if targetSet[id] && dist <= maxDistance {
			return true
		}
	}
	return false
}

// Subgraph is an induced view of the graph: a node set plus the edges
// active at a point in time whose endpoints are both in that set.
type Subgraph struct {
	Nodes []graphmodel.ID
	Edges []*graphmodel.Edge
}

// AnalyzeDependencies returns the subgraph induced by nodes reachable
// from root within maxDepth, plus edges active at now whose both
// endpoints are reachable.
func (e *Engine) AnalyzeDependencies(ctx context.Context, root graphmodel.ID, direction graphmodel.Direction, maxDepth int) Subgraph {
	now := time.Now()
	result := e.ComputePaths(ctx, []graphmodel.ID{root}, direction, maxDepth, TimeRange{End: now})

	reachableSet := make(map[graphmodel.ID]bool, len(result.ReachableNodes))
	for _, id := range result.ReachableNodes {
		reachableSet[id] = true
	}

	var edges []*graphmodel.Edge
	seen := make(map[graphmodel.ID]bool)
	for _, id := range result.ReachableNodes {
		for _, edge := range e.graph.ActiveEdges(id, graphmodel.DirBidirectional, now) {
			if seen[edge.ID] {
				continue
			}
			if reachableSet[edge.Source] && reachableSet[edge.Target] {
				seen[edge.ID] = true
				edges = append(edges, edge)
			}
		}
	}

	return Subgraph{Nodes: result.ReachableNodes, Edges: edges}
}

// ImpactResult is the output of ImpactRadius.
type ImpactResult struct {
	Forward             []graphmodel.ID
	Reverse             []graphmodel.ID
	CriticalPaths       [][]graphmodel.ID
	EstimatedComplexity float64
}

// ImpactRadius returns the forward and reverse reachable sets from
// changedNodes, plus paths of length >= maxRadius as critical paths, and
// an estimated complexity of |forward| / |graph|.
func (e *Engine) ImpactRadius(ctx context.Context, changedNodes []graphmodel.ID, maxRadius int) ImpactResult {
	now := time.Now()
	fwd := e.ComputePaths(ctx, changedNodes, graphmodel.DirForward, -1, TimeRange{End: now})
	rev := e.ComputePaths(ctx, changedNodes, graphmodel.DirReverse, -1, TimeRange{End: now})

	var critical [][]graphmodel.ID
	for _, path := range fwd.Paths {
		if maxRadius > 0 && len(path) >= maxRadius {
			critical = append(critical, path)
		}
	}

	graphSize := e.graph.NodeCount()
	complexity := 0.0
	if graphSize > 0 {
		complexity = float64(len(fwd.ReachableNodes)) / float64(graphSize)
	}

	return ImpactResult{
		Forward:             fwd.ReachableNodes,
		Reverse:             rev.ReachableNodes,
		CriticalPaths:       critical,
		EstimatedComplexity: complexity,
	}
}
