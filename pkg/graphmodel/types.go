// Package graphmodel defines the typed temporal graph shared by the HNSW
// index, the frontier reduction engine and the primitive dispatcher: nodes,
// edges, 128-bit identifiers, and the validity-interval semantics that make
// the graph temporal. No package in this module holds back-references into
// graphmodel values; everything else addresses nodes and edges by ID.
package graphmodel

import (
	"time"

	"github.com/google/uuid"
)

// ID is a 128-bit node or edge identifier. It is a thin wrapper over
// uuid.UUID so the zero value is invalid and comparable, and so IDs print
// and marshal as plain strings.
type ID uuid.UUID

// NilID is the zero-value, invalid ID.
var NilID = ID(uuid.Nil)

// String returns the canonical hyphenated hex form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == NilID
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// strings in JSON rather than byte arrays.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ID(u)
	return nil
}

// keyNamespace is a fixed namespace UUID used to hash store keys into
// deterministic node IDs: the same key always upserts the same node.
var keyNamespace = uuid.MustParse("9b1e3a10-6e2b-4f4d-9c21-6b6e0d9f9a10")

// IDForKey deterministically hashes a temporal-store key to a 128-bit node
// ID using SHA-1 over a fixed namespace, per RFC 4122 §4.3.
func IDForKey(key string) ID {
	return ID(uuid.NewSHA1(keyNamespace, []byte(key)))
}

// NewID generates a fresh random (v4) identifier, used for edges and for
// graph nodes that are not addressed by a store key.
func NewID() ID {
	return ID(uuid.New())
}

// NodeType tags the kind of entity a node represents.
type NodeType string

const (
	NodeFile     NodeType = "file"
	NodeFunction NodeType = "function"
	NodeClass    NodeType = "class"
	NodeModule   NodeType = "module"
	NodePackage  NodeType = "package"
	NodeAgent    NodeType = "agent"
	NodeDecision NodeType = "decision"
	NodeChange   NodeType = "change"
)

// Relation tags the kind of relationship an edge represents.
type Relation string

const (
	RelDependsOn  Relation = "depends_on"
	RelContains   Relation = "contains"
	RelImplements Relation = "implements"
	RelCalls      Relation = "calls"
	RelModifies   Relation = "modifies"
	RelCreatedBy  Relation = "created_by"
	RelInfluences Relation = "influences"
	RelSimilarTo  Relation = "similar_to"
)

// Valid reports whether r is one of the eight known relation kinds.
func (r Relation) Valid() bool {
	switch r {
	case RelDependsOn, RelContains, RelImplements, RelCalls, RelModifies, RelCreatedBy, RelInfluences, RelSimilarTo:
		return true
	default:
		return false
	}
}

// Node is a typed, temporally-tagged vertex in the graph. A node is created
// on first link touching it, updated when properties change, and marked
// ValidTo rather than removed.
type Node struct {
	ID         ID
	Type       NodeType
	Properties map[string]string

	CreatedAt    time.Time
	ValidFrom    time.Time
	ValidTo      *time.Time // nil means still valid
	LastModified time.Time
	CreatedBy    string
}

// Active reports whether the node is valid at time t.
func (n *Node) Active(t time.Time) bool {
	if t.Before(n.ValidFrom) {
		return false
	}
	return n.ValidTo == nil || !t.After(*n.ValidTo)
}

// Edge is a directed, weighted, typed relationship between two nodes, valid
// over [Start, End]. An open End means the edge is still valid. Edges are
// appended on link() and never deleted; invalidation closes End instead.
type Edge struct {
	ID       ID
	Source   ID
	Target   ID
	Relation Relation
	Weight   float64
	Start    time.Time
	End      *time.Time
	Author   string
}

// ActiveAt reports whether the edge is active at time t: start <= t <= end
// (an open end means still valid).
func (e *Edge) ActiveAt(t time.Time) bool {
	if t.Before(e.Start) {
		return false
	}
	return e.End == nil || !t.After(*e.End)
}

// Invalidate closes the edge's validity interval at t. Idempotent: closing
// an already-closed edge a second time leaves End at its original value.
func (e *Edge) Invalidate(t time.Time) {
	if e.End != nil {
		return
	}
	e.End = &t
}
