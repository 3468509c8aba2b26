package dispatcher

import (
	"context"
	"errors"

	"github.com/agrama/agrama"
)

// retrievePrimitive returns a key's current value plus, if with_history is
// set, its newest-first change history bounded by limit.
func (d *Dispatcher) retrievePrimitive(_ context.Context, req Request) (map[string]any, error) {
	key, ok := paramString(req.Params, "key")
	if !ok || key == "" {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "retrieve", errors.New("missing key"))
	}

	content, err := d.store.GetCurrent(key)
	if err != nil {
		return nil, agrama.NewError(agrama.KindOf(err), "retrieve", err)
	}

	out := map[string]any{"content": string(content)}

	if paramBool(req.Params, "with_history", false) {
		limit := paramInt(req.Params, "limit", 10)
		hist, err := d.store.GetHistory(key, limit)
		if err != nil {
			return nil, agrama.NewError(agrama.KindOf(err), "retrieve", err)
		}
		entries := make([]map[string]any, len(hist))
		for i, c := range hist {
			entries[i] = map[string]any{
				"content":   string(c.Content),
				"timestamp": c.Timestamp.UnixMilli(),
				"author":    c.Author,
			}
		}
		out["history"] = entries
	}

	return out, nil
}
