package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/events"
	"github.com/agrama/agrama/pkg/graphmodel"
)

// linkPrimitive upserts the source and target nodes (keys hashed to
// deterministic 128-bit ids) and appends a directed, time-stamped edge
// between them. Edges are append-only: calling link twice for the same
// pair and relation produces two distinct edges.
func (d *Dispatcher) linkPrimitive(ctx context.Context, req Request) (map[string]any, error) {
	source, ok := paramString(req.Params, "source")
	if !ok || source == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "link", errors.New("missing source"))
	}
	target, ok := paramString(req.Params, "target")
	if !ok || target == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "link", errors.New("missing target"))
	}
	relationStr, ok := paramString(req.Params, "relation")
	if !ok || relationStr == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "link", errors.New("missing relation"))
	}
	relation := graphmodel.Relation(relationStr)
	if !relation.Valid() {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "link", errors.New("unknown relation: "+relationStr))
	}
	weight := paramFloat(req.Params, "weight", 1.0)
	if weight < 0 {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "link", errors.New("weight must be non-negative"))
	}
	properties := paramMetadata(req.Params, "properties")

	if err := checkCancelled(ctx, "link"); err != nil {
		return nil, err
	}

	author := req.AgentID
	if author == "" {
		author = "anonymous"
	}
	now := time.Now()

	sourceID := graphmodel.IDForKey(source)
	targetID := graphmodel.IDForKey(target)

	d.graph.UpsertNode(sourceID, graphmodel.NodeFile, nil, author, now)
	d.graph.UpsertNode(targetID, graphmodel.NodeFile, properties, author, now)

	edge := d.graph.AddEdge(sourceID, targetID, relation, weight, author, now)

	d.publish(events.TypeLink, linkEvent{Source: source, Target: target, Relation: relationStr}, now)

	return map[string]any{"edge_id": edge.ID.String()}, nil
}
