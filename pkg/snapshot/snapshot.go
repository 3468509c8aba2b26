// Package snapshot is the optional, integrator-invoked persistence hook
// for an otherwise in-memory core: it serializes a temporal.Store's full
// per-key history and a graphmodel.Graph's current nodes and edges to a
// SQLite file, and reconstructs both from one later.
//
// The core never opens a Store itself; durability and crash recovery
// policy (when to save, how often, whether to keep generations) are an
// integrator concern. BM25 and HNSW indices are deliberately excluded from
// the schema: both own derived structures that are cheap to rebuild by
// replaying store() against the restored temporal history, which keeps
// this package's contract to the two components that actually own
// irreplaceable state.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agrama/agrama/pkg/graphmodel"
	"github.com/agrama/agrama/pkg/temporal"
)

// Store is a handle to a SQLite-backed snapshot file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a snapshot file at path and ensures its
// schema exists. Use ":memory:" for a throwaway snapshot, e.g. in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum reclaims space left behind by a Save that shrank the snapshot, and
// refreshes the query planner's statistics. It is a maintenance operation,
// not something the running dispatcher ever calls on its own.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("snapshot: vacuum: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("snapshot: analyze: %w", err)
	}
	return nil
}

// Counts reports the number of distinct keys, nodes, and edges currently
// held in the snapshot, for maintenance tooling.
func (s *Store) Counts(ctx context.Context) (keys, nodes, edges int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT key) FROM changes`).Scan(&keys); err != nil {
		return 0, 0, 0, fmt.Errorf("snapshot: count keys: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		return 0, 0, 0, fmt.Errorf("snapshot: count nodes: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		return 0, 0, 0, fmt.Errorf("snapshot: count edges: %w", err)
	}
	return keys, nodes, edges, nil
}

func (s *Store) createTables(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS changes (
		key TEXT NOT NULL,
		timestamp_ns INTEGER NOT NULL,
		content BLOB NOT NULL,
		author TEXT NOT NULL,
		PRIMARY KEY (key, timestamp_ns)
	);
	CREATE INDEX IF NOT EXISTS idx_changes_key ON changes(key);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		properties TEXT,
		created_at INTEGER NOT NULL,
		valid_from INTEGER NOT NULL,
		valid_to INTEGER,
		last_modified INTEGER NOT NULL,
		created_by TEXT
	);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		relation TEXT NOT NULL,
		weight REAL NOT NULL,
		start_ns INTEGER NOT NULL,
		end_ns INTEGER,
		author TEXT
	);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("snapshot: create tables: %w", err)
	}
	return nil
}

// Save replaces the snapshot's contents with store's full per-key history
// and graph's current nodes and edges, in one transaction. Neither store
// nor graph is locked here: per their own Snapshot() contracts, callers
// must hold off concurrent writers to get a consistent point-in-time copy.
func (s *Store) Save(ctx context.Context, store *temporal.Store, graph *graphmodel.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"changes", "nodes", "edges"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("snapshot: clear %s: %w", table, err)
		}
	}

	if err := saveChanges(ctx, tx, store); err != nil {
		return err
	}
	if err := saveGraph(ctx, tx, graph); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	return nil
}

func saveChanges(ctx context.Context, tx *sql.Tx, store *temporal.Store) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO changes (key, timestamp_ns, content, author) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare changes: %w", err)
	}
	defer stmt.Close()

	for key := range store.Snapshot() {
		history, err := store.GetHistory(key, math.MaxInt32)
		if err != nil {
			return fmt.Errorf("snapshot: history for %q: %w", key, err)
		}
		for _, c := range history {
			if _, err := stmt.ExecContext(ctx, c.Key, c.Timestamp.UnixNano(), c.Content, c.Author); err != nil {
				return fmt.Errorf("snapshot: insert change for %q: %w", key, err)
			}
		}
	}
	return nil
}

func saveGraph(ctx context.Context, tx *sql.Tx, graph *graphmodel.Graph) error {
	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (id, type, properties, created_at, valid_from, valid_to, last_modified, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare nodes: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (id, source, target, relation, weight, start_ns, end_ns, author) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare edges: %w", err)
	}
	defer edgeStmt.Close()

	nodes, edges := graph.Snapshot()
	for _, n := range nodes {
		propsJSON, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("snapshot: encode properties for %s: %w", n.ID, err)
		}
		var validTo any
		if n.ValidTo != nil {
			validTo = n.ValidTo.UnixNano()
		}
		if _, err := nodeStmt.ExecContext(ctx, n.ID.String(), string(n.Type), string(propsJSON),
			n.CreatedAt.UnixNano(), n.ValidFrom.UnixNano(), validTo, n.LastModified.UnixNano(), n.CreatedBy); err != nil {
			return fmt.Errorf("snapshot: insert node %s: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		var endNS any
		if e.End != nil {
			endNS = e.End.UnixNano()
		}
		if _, err := edgeStmt.ExecContext(ctx, e.ID.String(), e.Source.String(), e.Target.String(),
			string(e.Relation), e.Weight, e.Start.UnixNano(), endNS, e.Author); err != nil {
			return fmt.Errorf("snapshot: insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

// Load reconstructs a fresh temporal.Store and graphmodel.Graph from the
// snapshot's current contents.
func (s *Store) Load(ctx context.Context) (*temporal.Store, *graphmodel.Graph, error) {
	store, err := loadChanges(ctx, s.db)
	if err != nil {
		return nil, nil, err
	}
	graph, err := loadGraph(ctx, s.db)
	if err != nil {
		return nil, nil, err
	}
	return store, graph, nil
}

func loadChanges(ctx context.Context, db *sql.DB) (*temporal.Store, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, timestamp_ns, content, author FROM changes ORDER BY key, timestamp_ns`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query changes: %w", err)
	}
	defer rows.Close()

	var changes []temporal.Change
	for rows.Next() {
		var key, author string
		var ts int64
		var content []byte
		if err := rows.Scan(&key, &ts, &content, &author); err != nil {
			return nil, fmt.Errorf("snapshot: scan change: %w", err)
		}
		changes = append(changes, temporal.Change{
			Key:       key,
			Timestamp: time.Unix(0, ts),
			Content:   content,
			Author:    author,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate changes: %w", err)
	}

	store := temporal.New()
	store.Restore(changes)
	return store, nil
}

func loadGraph(ctx context.Context, db *sql.DB) (*graphmodel.Graph, error) {
	graph := graphmodel.NewGraph()

	nodeRows, err := db.QueryContext(ctx, `SELECT id, type, properties, created_at, valid_from, valid_to, last_modified, created_by FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query nodes: %w", err)
	}
	defer nodeRows.Close()

	for nodeRows.Next() {
		var idStr, typ, createdBy string
		var propsJSON sql.NullString
		var createdAt, validFrom, lastModified int64
		var validTo sql.NullInt64
		if err := nodeRows.Scan(&idStr, &typ, &propsJSON, &createdAt, &validFrom, &validTo, &lastModified, &createdBy); err != nil {
			return nil, fmt.Errorf("snapshot: scan node: %w", err)
		}
		id, err := parseID(idStr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: parse node id %q: %w", idStr, err)
		}
		var props map[string]string
		if propsJSON.Valid && propsJSON.String != "" && propsJSON.String != "null" {
			if err := json.Unmarshal([]byte(propsJSON.String), &props); err != nil {
				return nil, fmt.Errorf("snapshot: decode properties for %s: %w", idStr, err)
			}
		}
		n := &graphmodel.Node{
			ID:           id,
			Type:         graphmodel.NodeType(typ),
			Properties:   props,
			CreatedAt:    time.Unix(0, createdAt),
			ValidFrom:    time.Unix(0, validFrom),
			LastModified: time.Unix(0, lastModified),
			CreatedBy:    createdBy,
		}
		if validTo.Valid {
			t := time.Unix(0, validTo.Int64)
			n.ValidTo = &t
		}
		graph.RestoreNode(n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate nodes: %w", err)
	}

	edgeRows, err := db.QueryContext(ctx, `SELECT id, source, target, relation, weight, start_ns, end_ns, author FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var idStr, sourceStr, targetStr, relation, author string
		var weight float64
		var startNS int64
		var endNS sql.NullInt64
		if err := edgeRows.Scan(&idStr, &sourceStr, &targetStr, &relation, &weight, &startNS, &endNS, &author); err != nil {
			return nil, fmt.Errorf("snapshot: scan edge: %w", err)
		}
		id, err := parseID(idStr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: parse edge id %q: %w", idStr, err)
		}
		source, err := parseID(sourceStr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: parse edge source %q: %w", sourceStr, err)
		}
		target, err := parseID(targetStr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: parse edge target %q: %w", targetStr, err)
		}
		e := &graphmodel.Edge{
			ID:       id,
			Source:   source,
			Target:   target,
			Relation: graphmodel.Relation(relation),
			Weight:   weight,
			Start:    time.Unix(0, startNS),
			Author:   author,
		}
		if endNS.Valid {
			t := time.Unix(0, endNS.Int64)
			e.End = &t
		}
		graph.RestoreEdge(e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate edges: %w", err)
	}

	return graph, nil
}

func parseID(s string) (graphmodel.ID, error) {
	var id graphmodel.ID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return graphmodel.NilID, err
	}
	return id, nil
}
