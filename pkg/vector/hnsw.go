package vector

import (
	"container/heap"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/agrama/agrama/pkg/graphmodel"
)

// Config holds the tunable HNSW parameters.
type Config struct {
	M              int          // max bidirectional links per node above layer 0
	EfConstruction int          // candidate list size used while building
	Distance       DistanceFunc // Cosine by default; L2 accepted
}

// DefaultConfig returns standard HNSW defaults (M=16, efConstruction=200).
func DefaultConfig() Config {
	return Config{M: 16, EfConstruction: 200, Distance: CosineDistance}
}

type hnswNode struct {
	id        graphmodel.ID
	embedding Embedding
	level     int
	neighbors [][]graphmodel.ID // neighbors[layer]
	deleted   bool
}

// Index is the layered proximity graph. Inserts acquire the writer lock;
// queries proceed under a reader lock; the entry point is updated last in
// an insert so queries never observe a half-built node.
type Index struct {
	mu sync.RWMutex

	m              int
	maxM           int // 2*M, layer-0 degree cap
	efConstruction int
	mL             float64 // 1/ln(M), the level assignment scale
	dist           DistanceFunc

	nodes      map[graphmodel.ID]*hnswNode
	entryPoint graphmodel.ID
	hasEntry   bool

	rng *rand.Rand
}

// New returns an empty HNSW index.
func New(cfg Config) *Index {
	if cfg.M <= 1 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.Distance == nil {
		cfg.Distance = CosineDistance
	}
	return &Index{
		m:              cfg.M,
		maxM:           cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		mL:             1.0 / math.Log(float64(cfg.M)),
		dist:           cfg.Distance,
		nodes:          make(map[graphmodel.ID]*hnswNode),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// selectLevel samples a level by floor(-ln(U) * mL), U ~ Uniform(0,1), the
// standard HNSW level assignment distribution.
func (ix *Index) selectLevel() int {
	u := ix.rng.Float64()
	for u == 0 {
		u = ix.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * ix.mL))
	if level > 32 {
		level = 32 // defensive cap against a pathological U near 0
	}
	return level
}

// Insert adds embedding for id to the index. Re-inserting an existing id
// is a caller error; use Upsert instead.
func (ix *Index) Insert(id graphmodel.ID, embedding Embedding) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertLocked(id, embedding)
}

// Upsert inserts embedding for id, replacing any existing entry first. The
// replacement runs under the same lock acquisition as the insert so a
// reader never observes id half-deleted, and so a re-upserted current
// entry point is reassigned (via deleteLocked) before the insert's greedy
// descent runs, rather than having the descent start from a node whose
// neighbor lists were just wiped out from under it.
func (ix *Index) Upsert(id graphmodel.ID, embedding Embedding) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.nodes[id] != nil {
		ix.deleteLocked(id)
	}
	ix.insertLocked(id, embedding)
}

func (ix *Index) insertLocked(id graphmodel.ID, embedding Embedding) {
	level := ix.selectLevel()
	node := &hnswNode{
		id:        id,
		embedding: embedding,
		level:     level,
		neighbors: make([][]graphmodel.ID, level+1),
	}
	for i := range node.neighbors {
		node.neighbors[i] = []graphmodel.ID{}
	}
	ix.nodes[id] = node

	if !ix.hasEntry {
		ix.entryPoint = id
		ix.hasEntry = true
		return
	}

	query := embedding.Final()
	entry := ix.nodes[ix.entryPoint]
	curr := []graphmodel.ID{ix.entryPoint}
	for lc := entry.level; lc > level; lc-- {
		curr = ix.searchLayer(query, curr, 1, lc)
	}

	for lc := min(level, entry.level); lc >= 0; lc-- {
		degreeCap := ix.m
		if lc == 0 {
			degreeCap = ix.maxM
		}
		candidates := ix.searchLayer(query, curr, ix.efConstruction, lc)
		neighbors := ix.selectNeighborsHeuristic(query, candidates, degreeCap)

		node.neighbors[lc] = neighbors
		for _, nb := range neighbors {
			ix.addConnection(nb, id, lc)
			ix.pruneIfNeeded(nb, lc)
		}
		curr = neighbors
	}

	// Entry point updated last so concurrent readers never see it pointing
	// at a node whose neighbor lists are still being built.
	if level > ix.nodes[ix.entryPoint].level {
		ix.entryPoint = id
	}
}

func (ix *Index) pruneIfNeeded(id graphmodel.ID, layer int) {
	node := ix.nodes[id]
	if node == nil || layer >= len(node.neighbors) {
		return
	}
	cap := ix.m
	if layer == 0 {
		cap = ix.maxM
	}
	if len(node.neighbors[layer]) <= cap {
		return
	}
	kept := ix.selectNeighborsHeuristic(node.embedding.Final(), node.neighbors[layer], cap)
	// Drop the reverse link from every neighbor pruned here so the layer
	// stays symmetric. The list is cloned, not edited in place, because the
	// caller may be ranging over it.
	for _, old := range node.neighbors[layer] {
		if other := ix.nodes[old]; other != nil && layer < len(other.neighbors) && !slices.Contains(kept, old) {
			other.neighbors[layer] = slices.DeleteFunc(slices.Clone(other.neighbors[layer]), func(x graphmodel.ID) bool { return x == id })
		}
	}
	node.neighbors[layer] = kept
}

func (ix *Index) addConnection(from, to graphmodel.ID, layer int) {
	node := ix.nodes[from]
	if node == nil || layer >= len(node.neighbors) {
		return
	}
	for _, nb := range node.neighbors[layer] {
		if nb == to {
			return
		}
	}
	node.neighbors[layer] = append(node.neighbors[layer], to)
}

// selectNeighborsHeuristic prefers diverse short-distance candidates: a
// candidate is kept only if it is closer to the new point than to any
// already-kept neighbor.
func (ix *Index) selectNeighborsHeuristic(query []float32, candidates []graphmodel.ID, m int) []graphmodel.ID {
	type scored struct {
		id   graphmodel.ID
		dist float32
	}
	pool := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		n := ix.nodes[c]
		if n == nil {
			continue
		}
		pool = append(pool, scored{c, ix.dist(query, n.embedding.Final())})
	}
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			if pool[j].dist < pool[i].dist {
				pool[i], pool[j] = pool[j], pool[i]
			}
		}
	}

	kept := make([]graphmodel.ID, 0, m)
	for _, cand := range pool {
		if len(kept) >= m {
			break
		}
		candVec := ix.nodes[cand.id].embedding.Final()
		diverse := true
		for _, k := range kept {
			kVec := ix.nodes[k].embedding.Final()
			if ix.dist(candVec, kVec) < cand.dist {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, cand.id)
		}
	}
	// If the heuristic rejected everyone (pathological vector layout),
	// fall back to the plain closest-m so the graph never stalls with a
	// node that has no neighbors at all.
	if len(kept) == 0 && len(pool) > 0 {
		for i := 0; i < m && i < len(pool); i++ {
			kept = append(kept, pool[i].id)
		}
	}
	return kept
}

type heapItem struct {
	id   graphmodel.ID
	dist float32
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type maxHeap struct{ minHeap }

func (h maxHeap) Less(i, j int) bool { return h.minHeap[i].dist > h.minHeap[j].dist }

// searchLayer is the ef-bounded best-first search within one layer,
// expanding the closest unvisited candidate until no candidate can
// improve on the current worst kept result.
func (ix *Index) searchLayer(query []float32, entryPoints []graphmodel.ID, ef int, layer int) []graphmodel.ID {
	visited := make(map[graphmodel.ID]bool)
	candidates := &minHeap{}
	found := &maxHeap{}

	for _, id := range entryPoints {
		n := ix.nodes[id]
		if n == nil {
			continue
		}
		d := ix.dist(query, n.embedding.Final())
		heap.Push(candidates, heapItem{id, d})
		heap.Push(found, heapItem{id, d})
		visited[id] = true
	}

	for candidates.Len() > 0 {
		if found.Len() > 0 && (*candidates)[0].dist > found.minHeap[0].dist {
			break
		}
		cur := heap.Pop(candidates).(heapItem)
		curNode := ix.nodes[cur.id]
		if curNode == nil || layer >= len(curNode.neighbors) {
			continue
		}
		for _, nb := range curNode.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode := ix.nodes[nb]
			if nbNode == nil {
				continue
			}
			d := ix.dist(query, nbNode.embedding.Final())
			if found.Len() < ef || d < found.minHeap[0].dist {
				heap.Push(candidates, heapItem{nb, d})
				heap.Push(found, heapItem{nb, d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	result := make([]graphmodel.ID, found.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(found).(heapItem).id
	}
	return result
}

// Result is one scored neighbor from Search.
type Result struct {
	ID       graphmodel.ID
	Distance float32
}

// Search performs approximate k-NN search: greedy-descend from the entry
// point to layer 1, then an ef-bounded best-first search at layer 0, then
// return the k closest visited points.
func (ix *Index) Search(query []float32, k, ef int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.hasEntry {
		return nil
	}
	if ef < k {
		ef = k
	}

	entry := ix.nodes[ix.entryPoint]
	curr := []graphmodel.ID{ix.entryPoint}
	for layer := entry.level; layer > 0; layer-- {
		curr = ix.searchLayer(query, curr, 1, layer)
	}

	candidates := ix.searchLayer(query, curr, ef, 0)

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		n := ix.nodes[id]
		if n == nil || n.deleted {
			continue
		}
		results = append(results, Result{ID: id, Distance: ix.dist(query, n.embedding.Final())})
	}
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Distance < results[i].Distance {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// SearchMatryoshka runs a coarse-to-fine search when the index was built
// with nested prefix lengths: an initial pass over the coarsest prefix
// shortlists `shortlist` candidates, refined at each subsequent
// resolution, with the final score always computed at full resolution.
// If query has no nested prefixes it behaves exactly like Search.
func (ix *Index) SearchMatryoshka(query Embedding, k, ef, shortlist int) []Result {
	if len(query.PrefixLens) == 0 {
		return ix.Search(query.Final(), k, ef)
	}

	candidateIDs := ix.Search(query.Prefix(0), shortlist, max(ef, shortlist))
	for stage := 1; stage < len(query.PrefixLens); stage++ {
		candidateIDs = ix.rerank(query.Prefix(stage), idsOf(candidateIDs), shortlist)
	}

	final := ix.rerank(query.Final(), idsOf(candidateIDs), k)
	return final
}

func idsOf(results []Result) []graphmodel.ID {
	ids := make([]graphmodel.ID, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// rerank scores a fixed candidate set at the given resolution and returns
// the top `keep`, used by the Matryoshka coarse-to-fine pipeline instead
// of re-traversing the graph at every resolution.
func (ix *Index) rerank(query []float32, candidates []graphmodel.ID, keep int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		n := ix.nodes[id]
		if n == nil || n.deleted {
			continue
		}
		results = append(results, Result{ID: id, Distance: ix.dist(query, n.embedding.Final())})
	}
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Distance < results[i].Distance {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if keep < len(results) {
		results = results[:keep]
	}
	return results
}

// Delete soft-deletes a node. Neighbors elsewhere still list the id;
// Search filters deleted nodes out of results, and a future insert into
// the vacated neighbor slots happens naturally via pruning.
func (ix *Index) Delete(id graphmodel.ID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deleteLocked(id)
}

func (ix *Index) deleteLocked(id graphmodel.ID) {
	n := ix.nodes[id]
	if n == nil {
		return
	}
	n.deleted = true

	if ix.entryPoint == id {
		ix.hasEntry = false
		for otherID, other := range ix.nodes {
			if !other.deleted {
				ix.entryPoint = otherID
				ix.hasEntry = true
				break
			}
		}
	}
}

// Size returns the number of live (non-deleted) nodes.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	count := 0
	for _, n := range ix.nodes {
		if !n.deleted {
			count++
		}
	}
	return count
}
