// Package vector implements the HNSW proximity graph over Matryoshka
// multi-resolution embeddings.
package vector

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Embedding is a single high-dimensional vector accompanied by prefix
// lengths defining nested resolutions (e.g. 64, 256, 768). Each prefix is
// an independently usable embedding over the same item; the coarsest
// prefix is used for candidate selection and the finest for final scoring.
type Embedding struct {
	Full       []float32
	PrefixLens []int // strictly increasing, last entry <= len(Full)
}

// Prefix returns the embedding truncated to its i-th nested resolution.
// i == len(PrefixLens) returns the full vector.
func (e Embedding) Prefix(i int) []float32 {
	if i >= len(e.PrefixLens) {
		return e.Full
	}
	n := e.PrefixLens[i]
	if n > len(e.Full) {
		n = len(e.Full)
	}
	return e.Full[:n]
}

// Final returns the highest-fidelity prefix, used for final scoring.
func (e Embedding) Final() []float32 {
	return e.Full
}

// NumResolutions returns the number of nested prefixes, including the
// implicit final (full-length) resolution.
func (e Embedding) NumResolutions() int {
	return len(e.PrefixLens) + 1
}

// PlaceholderEmbedding deterministically derives a reproducible, but
// semantically meaningless, embedding from content when no real embedding
// is supplied. Callers expecting similarity semantics must provide a real
// embedding; this only keeps result sets reproducible.
func PlaceholderEmbedding(content string, dim int, prefixLens []int) Embedding {
	vec := make([]float32, dim)
	h := sha256.Sum256([]byte(content))
	for i := range vec {
		// Expand the 32-byte digest across dim by re-hashing the index in,
		// so the vector doesn't just repeat every 8 floats.
		seed := sha256.Sum256(append(h[:], byte(i), byte(i>>8)))
		bits := binary.LittleEndian.Uint64(seed[:8])
		// Map to [-1, 1] via the fractional part of a large odd multiplier,
		// cheap and good enough for a placeholder's purposes.
		frac := float64(bits%1_000_003) / 1_000_003.0
		vec[i] = float32(frac*2 - 1)
	}
	normalize(vec)
	return Embedding{Full: vec, PrefixLens: clampPrefixes(prefixLens, dim)}
}

func clampPrefixes(lens []int, dim int) []int {
	out := make([]int, 0, len(lens))
	for _, l := range lens {
		if l > 0 && l < dim {
			out = append(out, l)
		}
	}
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
