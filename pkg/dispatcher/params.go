package dispatcher

import (
	"fmt"
	"time"
)

// paramString extracts a string param, reporting whether it was present
// and of the right type.
func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// paramStringSlice extracts a string slice, accepting either a native
// []string or the []any shape json.Unmarshal produces for a JSON array.
func paramStringSlice(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// paramFloatSlice extracts a float32 slice (an embedding vector), accepting
// []float32, []float64 and the []any shape json.Unmarshal produces.
func paramFloatSlice(params map[string]any, key string) []float32 {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []float32:
		return vv
	case []float64:
		out := make([]float32, len(vv))
		for i, f := range vv {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(vv))
		for _, e := range vv {
			out = append(out, float32(toFloat(e)))
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) float64 {
	switch vv := v.(type) {
	case float64:
		return vv
	case float32:
		return float64(vv)
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	default:
		return 0
	}
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	return toFloat(v)
}

func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch vv := v.(type) {
	case int:
		return vv
	case int64:
		return int(vv)
	case float64:
		return int(vv)
	default:
		return def
	}
}

func paramBool(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// paramMetadata extracts a string-to-string map, stringifying any non-
// string value it finds rather than dropping it.
func paramMetadata(params map[string]any, key string) map[string]string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// changeID derives a stable, opaque id for a store() response from the key
// and the change's timestamp, since the temporal store itself assigns no
// surrogate id to a Change.
func changeID(key string, ts time.Time) string {
	return fmt.Sprintf("%s@%d", key, ts.UnixNano())
}
