package graphmodel

import (
	"sync"
	"time"
)

// Graph is the in-memory, directed, typed temporal graph, guarded by a
// single reader-writer lock so frontier traversal can run many concurrent
// readers against a writer that only blocks during a single link() call.
// Nodes and edges carry no back-pointers into other packages.
type Graph struct {
	mu sync.RWMutex

	nodes map[ID]*Node
	// outgoing/incoming index edge ids by endpoint for O(degree) traversal.
	outgoing map[ID][]ID
	incoming map[ID][]ID
	edges    map[ID]*Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[ID]*Node),
		outgoing: make(map[ID][]ID),
		incoming: make(map[ID][]ID),
		edges:    make(map[ID]*Edge),
	}
}

// UpsertNode creates the node if absent, or updates its properties and
// LastModified timestamp if present. Returns the live node.
func (g *Graph) UpsertNode(id ID, typ NodeType, properties map[string]string, author string, now time.Time) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.nodes[id]; ok {
		if properties != nil {
			if n.Properties == nil {
				n.Properties = map[string]string{}
			}
			for k, v := range properties {
				n.Properties[k] = v
			}
		}
		n.LastModified = now
		return n
	}

	n := &Node{
		ID:           id,
		Type:         typ,
		Properties:   properties,
		CreatedAt:    now,
		ValidFrom:    now,
		LastModified: now,
		CreatedBy:    author,
	}
	g.nodes[id] = n
	return n
}

// Node returns the node for id, or nil if absent.
func (g *Graph) Node(id ID) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// InvalidateNode marks a node invalid as of t rather than removing it.
func (g *Graph) InvalidateNode(id ID, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.ValidTo = &t
	}
}

// AddEdge appends a new directed edge. Edges are append-only: calling this
// twice for the same (source, target, relation) produces two distinct edges,
// each separately invalidatable.
func (g *Graph) AddEdge(source, target ID, relation Relation, weight float64, author string, now time.Time) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := &Edge{
		ID:       NewID(),
		Source:   source,
		Target:   target,
		Relation: relation,
		Weight:   weight,
		Start:    now,
		Author:   author,
	}
	g.edges[e.ID] = e
	g.outgoing[source] = append(g.outgoing[source], e.ID)
	g.incoming[target] = append(g.incoming[target], e.ID)
	return e
}

// Edge returns the edge for id, or nil if absent.
func (g *Graph) Edge(id ID) *Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// InvalidateEdge closes an edge's validity interval at t instead of
// deleting it.
func (g *Graph) InvalidateEdge(id ID, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.edges[id]; ok {
		e.Invalidate(t)
	}
}

// Direction selects which endpoint set a traversal expands from.
type Direction string

const (
	DirForward       Direction = "forward"
	DirReverse       Direction = "reverse"
	DirBidirectional Direction = "bidirectional"
)

// ActiveEdges returns every edge incident to id in the requested direction
// that is active at t. Bidirectional traversal combines both sets; edge
// weight is identical regardless of traversal direction.
func (g *Graph) ActiveEdges(id ID, dir Direction, t time.Time) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Edge
	if dir == DirForward || dir == DirBidirectional {
		for _, eid := range g.outgoing[id] {
			if e := g.edges[eid]; e != nil && e.ActiveAt(t) {
				out = append(out, e)
			}
		}
	}
	if dir == DirReverse || dir == DirBidirectional {
		for _, eid := range g.incoming[id] {
			if e := g.edges[eid]; e != nil && e.ActiveAt(t) {
				out = append(out, e)
			}
		}
	}
	return out
}

// NodeCount returns the number of nodes in the graph, invalidated ones
// included, used by the frontier engine's graph-size-driven recursion level schedule.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// OutDegree returns the number of outgoing edges recorded for id,
// regardless of validity, used by FRE's pivot-estimation heuristic.
func (g *Graph) OutDegree(id ID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.outgoing[id])
}

// RestoreNode reinserts a node exactly as persisted, preserving its id and
// timestamps. Unlike UpsertNode it never merges with an already-registered
// node; it is for use by pkg/snapshot while rebuilding an empty graph.
func (g *Graph) RestoreNode(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *n
	g.nodes[cp.ID] = &cp
}

// RestoreEdge reinserts an edge with its original id, for use by
// pkg/snapshot. AddEdge cannot be reused here because it always mints a
// fresh random id.
func (g *Graph) RestoreEdge(e *Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *e
	g.edges[cp.ID] = &cp
	g.outgoing[cp.Source] = append(g.outgoing[cp.Source], cp.ID)
	g.incoming[cp.Target] = append(g.incoming[cp.Target], cp.ID)
}

// Snapshot returns a defensive copy of all nodes and edges, for use by
// pkg/snapshot. Consistent with respect to writes only if the caller holds
// no concurrent writers, mirroring the temporal store's snapshot contract.
func (g *Graph) Snapshot() ([]*Node, []*Edge) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		cp := *n
		if n.Properties != nil {
			cp.Properties = make(map[string]string, len(n.Properties))
			for k, v := range n.Properties {
				cp.Properties[k] = v
			}
		}
		nodes = append(nodes, &cp)
	}
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		cp := *e
		edges = append(edges, &cp)
	}
	return nodes, edges
}
