package fre

import (
	"context"
	"testing"
	"time"

	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) (*graphmodel.Graph, map[string]graphmodel.ID) {
	t.Helper()
	g := graphmodel.NewGraph()
	now := time.Now()

	ids := map[string]graphmodel.ID{
		"A": graphmodel.IDForKey("A"),
		"B": graphmodel.IDForKey("B"),
		"C": graphmodel.IDForKey("C"),
		"D": graphmodel.IDForKey("D"),
	}
	for _, id := range ids {
		g.UpsertNode(id, graphmodel.NodeFile, nil, "tester", now)
	}
	g.AddEdge(ids["A"], ids["B"], graphmodel.RelDependsOn, 1.0, "tester", now)
	g.AddEdge(ids["B"], ids["C"], graphmodel.RelDependsOn, 1.0, "tester", now)
	return g, ids
}

func TestComputePathsZeroDistanceReachesOnlySource(t *testing.T) {
	g, ids := buildChain(t)
	e := New(g, DefaultConfig())

	result := e.ComputePaths(context.Background(), []graphmodel.ID{ids["A"]}, graphmodel.DirForward, 0, TimeRange{End: time.Now()})
	assert.Equal(t, []graphmodel.ID{ids["A"]}, result.ReachableNodes)
}

func TestReachableTrueAlongChainFalseToIsolated(t *testing.T) {
	g, ids := buildChain(t)
	e := New(g, DefaultConfig())
	ctx := context.Background()

	assert.True(t, e.Reachable(ctx, []graphmodel.ID{ids["A"]}, []graphmodel.ID{ids["C"]}, 5))
	assert.False(t, e.Reachable(ctx, []graphmodel.ID{ids["A"]}, []graphmodel.ID{ids["D"]}, 5))
}

func TestComputePathsDistancesIncreaseAlongChain(t *testing.T) {
	g, ids := buildChain(t)
	e := New(g, DefaultConfig())

	result := e.ComputePaths(context.Background(), []graphmodel.ID{ids["A"]}, graphmodel.DirForward, 5, TimeRange{End: time.Now()})
	require.Contains(t, result.Distances, ids["B"])
	require.Contains(t, result.Distances, ids["C"])
	assert.Less(t, result.Distances[ids["B"]], result.Distances[ids["C"]])
}

func TestAnalyzeDependenciesInducedSubgraph(t *testing.T) {
	g, ids := buildChain(t)
	e := New(g, DefaultConfig())

	sub := e.AnalyzeDependencies(context.Background(), ids["A"], graphmodel.DirForward, 5)
	assert.Contains(t, sub.Nodes, ids["A"])
	assert.Contains(t, sub.Nodes, ids["B"])
	assert.Contains(t, sub.Nodes, ids["C"])
	assert.Len(t, sub.Edges, 2)
}

func TestImpactRadiusComplexityBounded(t *testing.T) {
	g, ids := buildChain(t)
	e := New(g, DefaultConfig())

	result := e.ImpactRadius(context.Background(), []graphmodel.ID{ids["A"]}, 2)
	assert.GreaterOrEqual(t, result.EstimatedComplexity, 0.0)
	assert.LessOrEqual(t, result.EstimatedComplexity, 1.0)
}

func TestEdgesOnlyActiveWithinTimeRangeAreRelaxed(t *testing.T) {
	g := graphmodel.NewGraph()
	past := time.Now().Add(-48 * time.Hour)
	a, b := graphmodel.IDForKey("A"), graphmodel.IDForKey("B")
	g.UpsertNode(a, graphmodel.NodeFile, nil, "tester", past)
	g.UpsertNode(b, graphmodel.NodeFile, nil, "tester", past)
	edge := g.AddEdge(a, b, graphmodel.RelDependsOn, 1.0, "tester", past)
	closed := past.Add(time.Hour)
	edge.Invalidate(closed)

	e := New(g, DefaultConfig())
	result := e.ComputePaths(context.Background(), []graphmodel.ID{a}, graphmodel.DirForward, 5, TimeRange{End: time.Now()})
	assert.NotContains(t, result.ReachableNodes, b)
}
