package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/agrama/agrama/pkg/temporal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveThenLoadRoundTripsChangeHistory(t *testing.T) {
	ctx := context.Background()
	store := temporal.New()
	_, err := store.Save("a.ts", []byte("v1"), "alice")
	require.NoError(t, err)
	_, err = store.Save("a.ts", []byte("v2"), "bob")
	require.NoError(t, err)
	_, err = store.Save("b.ts", []byte("hello"), "alice")
	require.NoError(t, err)

	graph := graphmodel.NewGraph()

	snap := openTestStore(t)
	require.NoError(t, snap.Save(ctx, store, graph))

	restoredStore, _, err := snap.Load(ctx)
	require.NoError(t, err)

	cur, err := restoredStore.GetCurrent("a.ts")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(cur))

	hist, err := restoredStore.GetHistory("a.ts", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "v2", string(hist[0].Content))
	assert.Equal(t, "v1", string(hist[1].Content))
	assert.Equal(t, "bob", hist[0].Author)

	cur, err = restoredStore.GetCurrent("b.ts")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(cur))
}

func TestSaveThenLoadRoundTripsGraph(t *testing.T) {
	ctx := context.Background()
	store := temporal.New()
	graph := graphmodel.NewGraph()

	now := time.Unix(1_700_000_000, 0).UTC()
	srcID := graphmodel.IDForKey("a.ts")
	dstID := graphmodel.IDForKey("b.ts")
	graph.UpsertNode(srcID, graphmodel.NodeFile, map[string]string{"lang": "ts"}, "alice", now)
	graph.UpsertNode(dstID, graphmodel.NodeFile, nil, "alice", now)
	edge := graph.AddEdge(srcID, dstID, graphmodel.RelDependsOn, 0.75, "alice", now)

	snap := openTestStore(t)
	require.NoError(t, snap.Save(ctx, store, graph))

	_, restoredGraph, err := snap.Load(ctx)
	require.NoError(t, err)

	n := restoredGraph.Node(srcID)
	require.NotNil(t, n)
	assert.Equal(t, graphmodel.NodeFile, n.Type)
	assert.Equal(t, "ts", n.Properties["lang"])
	assert.Equal(t, "alice", n.CreatedBy)

	edges := restoredGraph.ActiveEdges(srcID, graphmodel.DirForward, now)
	require.Len(t, edges, 1)
	assert.Equal(t, edge.ID, edges[0].ID)
	assert.Equal(t, dstID, edges[0].Target)
	assert.Equal(t, 0.75, edges[0].Weight)
}

func TestSaveOverwritesPreviousSnapshotContents(t *testing.T) {
	ctx := context.Background()
	snap := openTestStore(t)

	store1 := temporal.New()
	_, err := store1.Save("a.ts", []byte("first"), "alice")
	require.NoError(t, err)
	require.NoError(t, snap.Save(ctx, store1, graphmodel.NewGraph()))

	store2 := temporal.New()
	_, err = store2.Save("b.ts", []byte("second"), "bob")
	require.NoError(t, err)
	require.NoError(t, snap.Save(ctx, store2, graphmodel.NewGraph()))

	restored, _, err := snap.Load(ctx)
	require.NoError(t, err)

	_, err = restored.GetCurrent("a.ts")
	assert.Error(t, err)

	cur, err := restored.GetCurrent("b.ts")
	require.NoError(t, err)
	assert.Equal(t, "second", string(cur))
}

func TestLoadOnEmptySnapshotReturnsEmptyStoreAndGraph(t *testing.T) {
	ctx := context.Background()
	snap := openTestStore(t)

	store, graph := must2(snap.Load(ctx))
	assert.Equal(t, 0, store.KeyCount())
	nodes, edges := graph.Snapshot()
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}

func must2(store *temporal.Store, graph *graphmodel.Graph, err error) (*temporal.Store, *graphmodel.Graph) {
	if err != nil {
		panic(err)
	}
	return store, graph
}

func TestInvalidatedEdgeSurvivesRoundTripWithEndSet(t *testing.T) {
	ctx := context.Background()
	store := temporal.New()
	graph := graphmodel.NewGraph()

	now := time.Unix(1_700_000_000, 0).UTC()
	later := now.Add(time.Hour)
	srcID := graphmodel.IDForKey("a.ts")
	dstID := graphmodel.IDForKey("b.ts")
	graph.UpsertNode(srcID, graphmodel.NodeFile, nil, "alice", now)
	graph.UpsertNode(dstID, graphmodel.NodeFile, nil, "alice", now)
	edge := graph.AddEdge(srcID, dstID, graphmodel.RelDependsOn, 1.0, "alice", now)
	graph.InvalidateEdge(edge.ID, later)

	snap := openTestStore(t)
	require.NoError(t, snap.Save(ctx, store, graph))

	_, restoredGraph, err := snap.Load(ctx)
	require.NoError(t, err)

	restoredEdge := restoredGraph.Edge(edge.ID)
	require.NotNil(t, restoredEdge)
	require.NotNil(t, restoredEdge.End)
	assert.True(t, restoredEdge.End.Equal(later))
	assert.False(t, restoredEdge.ActiveAt(later.Add(time.Second)))
}
