package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/events"
	"github.com/agrama/agrama/pkg/vector"
)

// DefaultTransforms returns the built-in transformation allowlist. An
// integrator may register additional ops (or override these) through
// Config.Transforms; transform() rejects any op not present in the map.
func DefaultTransforms() map[string]TransformFunc {
	return map[string]TransformFunc{
		"uppercase": transformUppercase,
		"lowercase": transformLowercase,
		"trim":      transformTrim,
		"truncate":  transformTruncate,
		"replace":   transformReplace,
	}
}

func transformUppercase(content []byte, _ map[string]any) ([]byte, string, error) {
	out := bytes.ToUpper(content)
	return out, fmt.Sprintf("uppercased %d bytes", len(content)), nil
}

func transformLowercase(content []byte, _ map[string]any) ([]byte, string, error) {
	out := bytes.ToLower(content)
	return out, fmt.Sprintf("lowercased %d bytes", len(content)), nil
}

func transformTrim(content []byte, _ map[string]any) ([]byte, string, error) {
	out := bytes.TrimSpace(content)
	return out, fmt.Sprintf("trimmed %d bytes of surrounding whitespace", len(content)-len(out)), nil
}

func transformTruncate(content []byte, args map[string]any) ([]byte, string, error) {
	length := paramInt(args, "length", len(content))
	if length < 0 {
		return nil, "", agrama.NewError(agrama.KindInvalidArgument, "transform.truncate", errors.New("length must be non-negative"))
	}
	if length > len(content) {
		length = len(content)
	}
	return content[:length], fmt.Sprintf("truncated to %d bytes", length), nil
}

func transformReplace(content []byte, args map[string]any) ([]byte, string, error) {
	from, _ := paramString(args, "from")
	to, _ := paramString(args, "to")
	if from == "" {
		return nil, "", agrama.NewError(agrama.KindInvalidArgument, "transform.replace", errors.New("missing from"))
	}
	out := strings.ReplaceAll(string(content), from, to)
	return []byte(out), fmt.Sprintf("replaced %d occurrence(s)", strings.Count(string(content), from)), nil
}

// transformPrimitive applies a deterministic, allowlisted transformation to
// a key's current value and stores the result as a new change. Read,
// compute and write are not atomic as a single lock hold, so a concurrent
// writer racing the same key is detected via the store's optimistic
// version check and retried up to the configured retry budget before
// surfacing Conflict.
func (d *Dispatcher) transformPrimitive(ctx context.Context, req Request) (map[string]any, error) {
	key, ok := paramString(req.Params, "key")
	if !ok || key == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "transform", errors.New("missing key"))
	}
	op, ok := paramString(req.Params, "op")
	if !ok || op == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "transform", errors.New("missing op"))
	}
	fn, ok := d.cfg.Transforms[op]
	if !ok {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "transform", fmt.Errorf("unregistered transform op: %q", op))
	}
	args, _ := req.Params["args"].(map[string]any)

	author := req.AgentID
	if author == "" {
		author = "anonymous"
	}

	var changeID_ string
	var outputSummary string

	err := d.withRetry(ctx, "transform", func() error {
		version := d.store.Version(key)
		current, err := d.store.GetCurrent(key)
		if err != nil {
			return agrama.NewError(agrama.KindOf(err), "transform", err)
		}

		newContent, summary, err := fn(current, args)
		if err != nil {
			return err
		}

		ch, err := d.store.SaveIfVersion(key, version, newContent, author)
		if err != nil {
			return agrama.NewError(agrama.KindOf(err), "transform", err)
		}

		docID, nodeID := d.docIDFor(key)
		d.bm25.AddDocument(docID, key, string(newContent))
		if isCodeLike(newContent, d.cfg.CodeLikeMinLen) {
			emb := vector.PlaceholderEmbedding(string(newContent), 64, nil)
			d.hnsw.Upsert(nodeID, emb)
		}

		changeID_ = changeID(key, ch.Timestamp)
		outputSummary = summary
		d.publish(events.TypeChange, changeEvent{Key: key, Author: author, Timestamp: ch.Timestamp.UnixMilli()}, ch.Timestamp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"change_id":      changeID_,
		"output_summary": outputSummary,
	}, nil
}
