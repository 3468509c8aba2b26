package vector

import (
	"math/rand"
	"testing"

	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randVec(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	normalize(v)
	return v
}

func TestInsertAndSearchFindsExactMatch(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ix := New(DefaultConfig())

	var target graphmodel.ID
	for i := 0; i < 200; i++ {
		vec := randVec(r, 16)
		id := graphmodel.NewID()
		ix.Insert(id, Embedding{Full: vec})
		if i == 100 {
			target = id
		}
	}

	targetNode := ix.nodes[target]
	results := ix.Search(targetNode.embedding.Final(), 5, 64)
	require.NotEmpty(t, results)
	assert.Equal(t, target, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}

func TestSearchReturnsAscendingDistance(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	ix := New(DefaultConfig())
	for i := 0; i < 100; i++ {
		ix.Insert(graphmodel.NewID(), Embedding{Full: randVec(r, 8)})
	}

	results := ix.Search(randVec(r, 8), 10, 64)
	for i := 0; i+1 < len(results); i++ {
		assert.LessOrEqual(t, results[i].Distance, results[i+1].Distance)
	}
}

func TestEntryPointAlwaysLiveNode(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	ix := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		ix.Insert(graphmodel.NewID(), Embedding{Full: randVec(r, 4)})
	}
	require.True(t, ix.hasEntry)
	assert.NotNil(t, ix.nodes[ix.entryPoint])
	assert.False(t, ix.nodes[ix.entryPoint].deleted)
}

func TestGraphSymmetricAfterInsert(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	ix := New(Config{M: 4, EfConstruction: 32, Distance: CosineDistance})
	ids := make([]graphmodel.ID, 30)
	for i := range ids {
		ids[i] = graphmodel.NewID()
		ix.Insert(ids[i], Embedding{Full: randVec(r, 6)})
	}

	for _, id := range ids {
		node := ix.nodes[id]
		for layer, neighbors := range node.neighbors {
			for _, nb := range neighbors {
				nbNode := ix.nodes[nb]
				require.NotNil(t, nbNode)
				if layer >= len(nbNode.neighbors) {
					continue
				}
				assert.Contains(t, nbNode.neighbors[layer], id, "edge not symmetric at layer %d", layer)
			}
		}
	}
}

func TestDeleteRemovesFromResultsAndReplacesEntryPoint(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	ix := New(DefaultConfig())
	ids := make([]graphmodel.ID, 10)
	for i := range ids {
		ids[i] = graphmodel.NewID()
		ix.Insert(ids[i], Embedding{Full: randVec(r, 4)})
	}

	entry := ix.entryPoint
	ix.Delete(entry)

	assert.True(t, ix.hasEntry)
	assert.NotEqual(t, entry, ix.entryPoint)

	results := ix.Search(randVec(r, 4), len(ids), 64)
	for _, res := range results {
		assert.NotEqual(t, entry, res.ID)
	}
}

func TestUpsertReassignsEntryPointInsteadOfDegenerating(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ix := New(DefaultConfig())
	ids := make([]graphmodel.ID, 30)
	for i := range ids {
		ids[i] = graphmodel.NewID()
		ix.Insert(ids[i], Embedding{Full: randVec(r, 8)})
	}

	entry := ix.entryPoint
	newVec := randVec(r, 8)
	ix.Upsert(entry, Embedding{Full: newVec})

	require.True(t, ix.hasEntry)
	require.NotNil(t, ix.nodes[entry])
	assert.False(t, ix.nodes[entry].deleted)

	// A degenerated graph (entry point left pointing at an emptied node)
	// would only ever find nodes adjacent to entry; a healthy one finds
	// many distinct live nodes scattered across the original insert order.
	results := ix.Search(randVec(r, 8), len(ids), 64)
	seen := make(map[graphmodel.ID]bool, len(results))
	for _, res := range results {
		seen[res.ID] = true
	}
	assert.Greater(t, len(seen), len(ids)/2)
}

func TestUpsertOnNewIDBehavesLikeInsert(t *testing.T) {
	ix := New(DefaultConfig())
	id := graphmodel.NewID()
	ix.Upsert(id, Embedding{Full: []float32{1, 0, 0, 0}})

	assert.True(t, ix.hasEntry)
	assert.Equal(t, id, ix.entryPoint)
	results := ix.Search([]float32{1, 0, 0, 0}, 1, 8)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
}

func TestMatryoshkaSearchFallsBackWithoutPrefixes(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	ix := New(DefaultConfig())
	for i := 0; i < 50; i++ {
		ix.Insert(graphmodel.NewID(), Embedding{Full: randVec(r, 16)})
	}

	q := Embedding{Full: randVec(r, 16)}
	got := ix.SearchMatryoshka(q, 5, 64, 20)
	assert.LessOrEqual(t, len(got), 5)
}

func TestMatryoshkaFinalScoreUsesFullResolution(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ix := New(DefaultConfig())
	var target graphmodel.ID
	for i := 0; i < 80; i++ {
		id := graphmodel.NewID()
		ix.Insert(id, Embedding{Full: randVec(r, 64), PrefixLens: []int{16, 32}})
		if i == 40 {
			target = id
		}
	}

	q := Embedding{Full: ix.nodes[target].embedding.Final(), PrefixLens: []int{16, 32}}
	results := ix.SearchMatryoshka(q, 3, 64, 30)
	require.NotEmpty(t, results)
	assert.Equal(t, target, results[0].ID)
}

func TestPlaceholderEmbeddingIsDeterministic(t *testing.T) {
	a := PlaceholderEmbedding("function f(){}", 32, []int{8, 16})
	b := PlaceholderEmbedding("function f(){}", 32, []int{8, 16})
	assert.Equal(t, a.Full, b.Full)

	c := PlaceholderEmbedding("different content", 32, []int{8, 16})
	assert.NotEqual(t, a.Full, c.Full)
}
