package dispatcher

import (
	"context"
	"errors"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/events"
	"github.com/agrama/agrama/pkg/vector"
	"golang.org/x/sync/errgroup"
)

// storePrimitive writes key/content to the temporal store, then fans out
// the resulting index updates concurrently via errgroup: BM25 re-indexing
// and, when the content looks code-like, an HNSW upsert. The two are
// independent of one another, unlike link()'s node-then-edge sequencing.
func (d *Dispatcher) storePrimitive(ctx context.Context, req Request) (map[string]any, error) {
	key, ok := paramString(req.Params, "key")
	if !ok || key == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "store", errors.New("missing key"))
	}
	contentStr, ok := paramString(req.Params, "content")
	if !ok {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "store", errors.New("missing content"))
	}
	content := []byte(contentStr)

	author := req.AgentID
	if author == "" {
		author = "anonymous"
	}

	ch, err := d.store.Save(key, content, author)
	if err != nil {
		return nil, agrama.NewError(agrama.KindOf(err), "store", err)
	}

	docID, nodeID := d.docIDFor(key)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.bm25.AddDocument(docID, key, string(content))
		return nil
	})
	if isCodeLike(content, d.cfg.CodeLikeMinLen) {
		g.Go(func() error {
			emb := vector.PlaceholderEmbedding(string(content), 64, nil)
			d.hnsw.Upsert(nodeID, emb)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, agrama.NewError(agrama.KindInternal, "store", err)
	}

	d.publish(events.TypeChange, changeEvent{Key: key, Author: author, Timestamp: ch.Timestamp.UnixMilli()}, ch.Timestamp)

	return map[string]any{
		"change_id": changeID(key, ch.Timestamp),
		"timestamp": ch.Timestamp.UnixMilli(),
	}, nil
}
