// Package dispatcher executes the five primitives — store, retrieve,
// search, link, transform — against the temporal store and indices. Every
// write primitive updates all affected indices synchronously before
// acknowledgement; search never blocks a writer of an unrelated key.
package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/internal/logging"
	"github.com/agrama/agrama/pkg/bm25"
	"github.com/agrama/agrama/pkg/events"
	"github.com/agrama/agrama/pkg/fre"
	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/agrama/agrama/pkg/hybrid"
	"github.com/agrama/agrama/pkg/orchestration"
	"github.com/agrama/agrama/pkg/temporal"
	"github.com/agrama/agrama/pkg/vector"
)

// Request is the adapter-agnostic primitive request envelope.
type Request struct {
	ID        string         `json:"id"`
	Primitive string         `json:"primitive"`
	Params    map[string]any `json:"params"`
	AgentID   string         `json:"agent_id,omitempty"`
}

// ErrorPayload is the error half of a Response.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the adapter-agnostic primitive response envelope. Exactly
// one of Result/Error is populated.
type Response struct {
	ID        string         `json:"id"`
	Result    map[string]any `json:"result,omitempty"`
	Error     *ErrorPayload  `json:"error,omitempty"`
	ElapsedMs float64        `json:"elapsed_ms"`
}

// TransformFunc is a registered, allowlisted deterministic transformation:
// given the key's current content and caller-supplied args, it returns new
// content and a short summary of what it did.
type TransformFunc func(content []byte, args map[string]any) ([]byte, string, error)

// Config configures a Dispatcher and its collaborators.
type Config struct {
	RetryBudget    int // optimistic-conflict retries before giving up, default 3
	DefaultK       int // default search k, default 20
	DefaultHops    int // default max_graph_hops, default 3
	CodeLikeMinLen int // minimum byte length for store()'s code-like heuristic, default 50

	Logger     logging.Logger
	EventBus   *events.Bus
	Transforms map[string]TransformFunc

	// Registry, if set, receives a contribution count for every
	// successful store/link/search/transform a request's AgentID
	// performs. An unregistered AgentID is silently skipped rather than
	// failing the primitive: registration is the caller's concern, not
	// this dispatcher's.
	Registry *orchestration.Registry

	HNSW vector.Config
	FRE  fre.Config
	BM25 bm25.Config
}

// DefaultConfig returns sane defaults matching the data model's documented
// constants.
func DefaultConfig() Config {
	return Config{
		RetryBudget:    3,
		DefaultK:       20,
		DefaultHops:    3,
		CodeLikeMinLen: 50,
		Logger:         logging.Nop(),
		EventBus:       events.NewBus(256),
		Transforms:     DefaultTransforms(),
		HNSW:           vector.DefaultConfig(),
		FRE:            fre.DefaultConfig(),
		BM25:           bm25.DefaultConfig(),
	}
}

// Dispatcher ties the temporal store and every index together. It holds
// borrowed references for the duration of each request; none of its
// collaborators hold a reference back into it.
type Dispatcher struct {
	cfg Config

	store *temporal.Store
	bm25  *bm25.Index
	hnsw  *vector.Index
	graph *graphmodel.Graph
	fre   *fre.Engine

	docMu     sync.Mutex
	keyToDoc  map[string]uint64
	docToNode map[uint64]graphmodel.ID
	nextDocID uint64
}

// New builds a Dispatcher over fresh, empty collaborators.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.EventBus == nil {
		cfg.EventBus = events.NewBus(256)
	}
	if cfg.Transforms == nil {
		cfg.Transforms = DefaultTransforms()
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 20
	}
	if cfg.DefaultHops <= 0 {
		cfg.DefaultHops = 3
	}
	if cfg.CodeLikeMinLen <= 0 {
		cfg.CodeLikeMinLen = 50
	}

	hnswCfg := cfg.HNSW
	if hnswCfg.Distance == nil {
		hnswCfg = vector.DefaultConfig()
	}
	freCfg := cfg.FRE
	freCfg.Logger = cfg.Logger
	bm25Cfg := cfg.BM25
	if bm25Cfg.K1 <= 0 && bm25Cfg.B <= 0 {
		bm25Cfg = bm25.DefaultConfig()
	}

	g := graphmodel.NewGraph()
	freEngine := fre.New(g, freCfg)

	return &Dispatcher{
		cfg:       cfg,
		store:     temporal.New(),
		bm25:      bm25.New(bm25Cfg),
		hnsw:      vector.New(hnswCfg),
		graph:     g,
		fre:       freEngine,
		keyToDoc:  make(map[string]uint64),
		docToNode: make(map[uint64]graphmodel.ID),
	}
}

// EventBus returns the dispatcher's observer event bus, for adapters to
// subscribe to.
func (d *Dispatcher) EventBus() *events.Bus {
	return d.cfg.EventBus
}

// Dispatch executes one primitive request end to end, never panicking: any
// failure is returned as a populated Error field with Result left nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	result, err := d.route(ctx, req)
	resp := Response{ID: req.ID, ElapsedMs: elapsedMs(start)}
	if err != nil {
		resp.Error = &ErrorPayload{Kind: string(agrama.KindOf(err)), Message: err.Error()}
		d.cfg.Logger.Warn("dispatcher.error", "primitive", req.Primitive, "id", req.ID, "kind", string(agrama.KindOf(err)))
		return resp
	}
	resp.Result = result
	return resp
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func (d *Dispatcher) route(ctx context.Context, req Request) (map[string]any, error) {
	if err := checkCancelled(ctx, req.Primitive); err != nil {
		return nil, err
	}
	var (
		result      map[string]any
		err         error
		contributes orchestration.Contribution
	)
	switch req.Primitive {
	case "store":
		result, err = d.storePrimitive(ctx, req)
		contributes = orchestration.ContributionStore
	case "retrieve":
		return d.retrievePrimitive(ctx, req)
	case "search":
		result, err = d.searchPrimitive(ctx, req)
		contributes = orchestration.ContributionSearch
	case "link":
		result, err = d.linkPrimitive(ctx, req)
		contributes = orchestration.ContributionLink
	case "transform":
		result, err = d.transformPrimitive(ctx, req)
		contributes = orchestration.ContributionTransform
	default:
		return nil, agrama.NewError(agrama.KindInvalidArgument, "dispatch", errors.New("unknown primitive: "+req.Primitive))
	}

	if err == nil && d.cfg.Registry != nil && req.AgentID != "" {
		// A caller whose AgentID was never registered simply earns no
		// contribution credit; it is not an error for this request.
		_ = d.cfg.Registry.RecordContribution(req.AgentID, contributes, 1)
	}
	return result, err
}

func checkCancelled(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return agrama.NewError(agrama.KindCancelled, op, ctx.Err())
	default:
		return nil
	}
}

// docIDFor returns the stable 64-bit BM25 doc id and deterministic graph
// node id for key, assigning a doc id on first sight. The node id lets
// hybrid search fuse BM25/HNSW doc ids with FRE graph distances.
func (d *Dispatcher) docIDFor(key string) (uint64, graphmodel.ID) {
	d.docMu.Lock()
	defer d.docMu.Unlock()

	nodeID := graphmodel.IDForKey(key)
	if id, ok := d.keyToDoc[key]; ok {
		return id, nodeID
	}
	d.nextDocID++
	id := d.nextDocID
	d.keyToDoc[key] = id
	d.docToNode[id] = nodeID
	return id, nodeID
}

// hybridEngine builds a hybrid.Engine over a defensive snapshot of the
// doc-id-to-node-id map, so a concurrent store() can keep mutating the
// live map while a search reads a consistent point-in-time view.
func (d *Dispatcher) hybridEngine() *hybrid.Engine {
	d.docMu.Lock()
	defer d.docMu.Unlock()

	snapshot := make(map[uint64]graphmodel.ID, len(d.docToNode))
	for k, v := range d.docToNode {
		snapshot[k] = v
	}
	return hybrid.New(d.bm25, d.hnsw, d.fre, snapshot)
}

func isCodeLike(content []byte, minLen int) bool {
	if len(content) < minLen {
		return false
	}
	s := string(content)
	for _, kw := range []string{"function", "class", "import", "const"} {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

type changeEvent struct {
	Key       string `json:"key"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

type linkEvent struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

func (d *Dispatcher) publish(typ events.Type, payload any, at time.Time) {
	if d.cfg.EventBus == nil {
		return
	}
	d.cfg.EventBus.Publish(events.New(typ, payload, at.UnixMilli()))
}

// withRetry runs fn up to cfg.RetryBudget+1 times, retrying only on
// KindConflict. Every other error or a nil error returns immediately.
func (d *Dispatcher) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= d.cfg.RetryBudget; attempt++ {
		if attempt > 0 {
			if cerr := checkCancelled(ctx, op); cerr != nil {
				return cerr
			}
		}
		err = fn()
		if err == nil || agrama.KindOf(err) != agrama.KindConflict {
			return err
		}
	}
	return err
}
