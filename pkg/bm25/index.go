package bm25

import (
	"math"
	"sort"
	"sync"
)

// Config holds the BM25 scoring parameters.
type Config struct {
	K1 float64 // term-frequency saturation, default 1.2
	B  float64 // length-normalization strength, default 0.75
}

// DefaultConfig returns the standard Okapi BM25 parameters (k1=1.2, b=0.75).
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75}
}

// document is one indexed document's corpus-relevant statistics.
type document struct {
	id      uint64
	path    string
	length  int
	termFreq map[string]int
}

// Index is a code-aware BM25 lexical index over documents identified by a
// 64-bit id plus a display path. Single writer / multiple readers:
// re-indexing an existing id is a critical section where old postings are
// removed before new ones are added, so searches never see a half-updated
// document.
type Index struct {
	mu  sync.RWMutex
	cfg Config

	docs     map[uint64]*document
	postings map[string]map[uint64]int // term -> docID -> term frequency
	totalLen int
}

// New returns an empty BM25 index scored with cfg.
func New(cfg Config) *Index {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultConfig().K1
	}
	if cfg.B <= 0 {
		cfg.B = DefaultConfig().B
	}
	return &Index{
		cfg:      cfg,
		docs:     make(map[uint64]*document),
		postings: make(map[string]map[uint64]int),
	}
}

// AddDocument tokenizes content, updates corpus statistics, and returns the
// number of tokens indexed. Re-adding an id replaces the prior entry
// atomically with respect to searches.
func (ix *Index) AddDocument(id uint64, path string, content string) int {
	tokens := Tokens(content)

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.docs[id]; ok {
		for term := range old.termFreq {
			delete(ix.postings[term], id)
			if len(ix.postings[term]) == 0 {
				delete(ix.postings, term)
			}
		}
		ix.totalLen -= old.length
	}

	doc := &document{id: id, path: path, length: len(tokens), termFreq: freq}
	ix.docs[id] = doc
	ix.totalLen += doc.length

	for term, tf := range freq {
		bucket, ok := ix.postings[term]
		if !ok {
			bucket = make(map[uint64]int)
			ix.postings[term] = bucket
		}
		bucket[id] = tf
	}

	return len(tokens)
}

// Result is one scored document from Search.
type Result struct {
	DocID         uint64
	Path          string
	Score         float64
	MatchingTerms []string
}

// Search returns the top-k documents for query_text by BM25 score, ties
// broken by ascending document id. An empty query returns an empty result,
// not an error. If k exceeds the number of matches, all matches are
// returned.
func (ix *Index) Search(queryText string, k int) []Result {
	query := dedupe(Tokens(queryText))
	if len(query) == 0 {
		return []Result{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := float64(len(ix.docs))
	if n == 0 {
		return []Result{}
	}
	avgdl := float64(ix.totalLen) / n

	scores := make(map[uint64]float64)
	matches := make(map[uint64][]string)

	for _, term := range query {
		bucket := ix.postings[term]
		df := float64(len(bucket))
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for docID, tf := range bucket {
			doc := ix.docs[docID]
			if doc == nil {
				continue
			}
			tfF := float64(tf)
			denom := tfF + ix.cfg.K1*(1-ix.cfg.B+ix.cfg.B*float64(doc.length)/avgdl)
			scores[docID] += idf * (tfF * (ix.cfg.K1 + 1)) / denom
			matches[docID] = append(matches[docID], term)
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		doc := ix.docs[docID]
		results = append(results, Result{
			DocID:         docID,
			Path:          doc.path,
			Score:         score,
			MatchingTerms: matches[docID],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Size returns the number of indexed documents.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}
