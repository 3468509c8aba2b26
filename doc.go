// Package agrama is the retrieval/indexing core of a temporal knowledge-graph
// service for collaborating AI agents and human users. It owns the temporal
// value store, the BM25 lexical index, the HNSW vector index, the frontier
// reduction engine (FRE) for bounded graph shortest paths, the triple-hybrid
// search fusion, and the primitive dispatcher that ties them together.
//
// # Primitives
//
// Clients issue five operations through pkg/dispatcher: store, retrieve,
// search, link, transform. Every write primitive updates the affected
// indices synchronously before acknowledgement; search primitives never
// block writers of unrelated keys.
//
//	disp := dispatcher.New(dispatcher.DefaultConfig())
//	resp := disp.Dispatch(ctx, dispatcher.Request{
//	    ID:        "1",
//	    Primitive: "store",
//	    Params:    map[string]any{"key": "a.ts", "content": "function f(){}"},
//	})
//
// # Scope
//
// Transport adapters (JSON-RPC over stdio, an event-stream adapter for
// browser observers), authentication/authorization, CRDT-driven
// collaborative editing, CLI argument parsing, configuration loading and
// logging sink wiring all live outside this module; agrama only defines
// the contracts they call into. The core is in-memory: durable on-disk
// storage and crash recovery, distributed replication, production-grade
// signature verification and embedding-model inference are all non-goals.
// See pkg/snapshot for the optional, integrator-invoked persistence hook.
package agrama
