// Package bm25 implements a code-aware lexical index: tokenization and
// classic BM25 scoring over an inverted index. Tokenization splits on
// camelCase and snake_case boundaries rather than whitespace, and keeps
// stop words instead of removing them, since identifier recall matters
// more for code than prose relevance.
package bm25

import "unicode"

// Tokenize splits content into the lowercased token sequence the BM25
// index and corpus statistics are built from:
//  1. split into runs of [A-Za-z0-9]
//  2. split each run at camelCase boundaries and underscores
//  3. lowercase everything
//  4. discard tokens shorter than 2 characters
//
// Output is a lazy, finite sequence (Go 1.23 iterator) so callers that only
// need the first few tokens (or none, for an empty document) never pay for
// the rest.
func Tokenize(content string) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		runes := []rune(content)
		n := len(runes)
		i := 0
		for i < n {
			if !isWordRune(runes[i]) {
				i++
				continue
			}
			j := i
			for j < n && isWordRune(runes[j]) {
				j++
			}
			if !emitRun(runes[i:j], yield) {
				return
			}
			i = j
		}
	}
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// emitRun splits one alphanumeric run at camelCase boundaries, lowercases
// each piece, and yields those with length >= 2. Underscores split runs
// upstream in Tokenize (they fail isWordRune), so snake_case words arrive
// here already separated.
func emitRun(run []rune, yield func(string) bool) bool {
	start := 0
	for i := 1; i <= len(run); i++ {
		atBoundary := i == len(run) || isCamelBoundary(run, i)
		if atBoundary {
			if i > start {
				if !yieldLower(run[start:i], yield) {
					return false
				}
			}
			start = i
		}
	}
	return true
}

// isCamelBoundary reports whether position i in run starts a new
// camelCase word: lower-to-upper ("fooBar" -> foo|Bar), or the last upper
// of an acronym run followed by a lowercase letter ("HTTPServer" ->
// HTTP|Server), or a letter-to-digit or digit-to-letter transition
// ("utf8Decode" -> utf|8|Decode, "sha256" -> sha|256).
func isCamelBoundary(run []rune, i int) bool {
	prev, cur := run[i-1], run[i]
	prevLower, curUpper := unicode.IsLower(prev), unicode.IsUpper(cur)
	if prevLower && curUpper {
		return true
	}
	if unicode.IsUpper(prev) && curUpper && i+1 < len(run) && unicode.IsLower(run[i+1]) {
		return true
	}
	prevDigit, curDigit := unicode.IsDigit(prev), unicode.IsDigit(cur)
	prevLetter, curLetter := unicode.IsLetter(prev), unicode.IsLetter(cur)
	if prevLetter && curDigit {
		return true
	}
	if prevDigit && curLetter {
		return true
	}
	return false
}

func yieldLower(run []rune, yield func(string) bool) bool {
	if len(run) < 2 {
		return true
	}
	lower := make([]rune, len(run))
	for i, r := range run {
		lower[i] = unicode.ToLower(r)
	}
	return yield(string(lower))
}

// Tokens materializes Tokenize's lazy sequence into a slice, preserving
// input order (ties in downstream sorts are broken by this order).
func Tokens(content string) []string {
	var out []string
	Tokenize(content)(func(tok string) bool {
		out = append(out, tok)
		return true
	})
	return out
}
