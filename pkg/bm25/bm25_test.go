package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeCamelCaseAndLength(t *testing.T) {
	toks := Tokens("getUserDataFromAPI")
	assert.Contains(t, toks, "get")
	assert.Contains(t, toks, "user")
	assert.Contains(t, toks, "data")
	assert.Contains(t, toks, "api")
	for _, tok := range toks {
		assert.GreaterOrEqual(t, len(tok), 2)
		assert.Equal(t, tok, toOnlyLower(tok))
	}
}

func toOnlyLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

func TestTokenizeSnakeCase(t *testing.T) {
	toks := Tokens("user_id_value")
	assert.Equal(t, []string{"user", "id", "value"}, toks)
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	toks := Tokens("a I of x function")
	assert.NotContains(t, toks, "a")
	assert.NotContains(t, toks, "i")
	assert.Contains(t, toks, "of")
	assert.NotContains(t, toks, "x")
	assert.Contains(t, toks, "function")
}

func TestScoreNonNegativeAndEmptyQueryIsZero(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(1, "a.go", "function calculateDistance(){}")

	results := ix.Search("calculate", 5)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Score, 0.0)

	assert.Empty(t, ix.Search("", 5))
}

func TestSearchRanksCalculateDistanceHighest(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(1, "calc.js", "function calculateDistance(){}")
	ix.AddDocument(2, "user.ts", "interface User{}")
	ix.AddDocument(3, "email.js", "validateEmail")

	results := ix.Search("function calculate", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(1), results[0].DocID)
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
}

func TestReAddReplacesPostingsAtomically(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(1, "a.go", "alpha beta")
	ix.AddDocument(1, "a.go", "gamma delta")

	assert.Empty(t, ix.Search("alpha", 5))
	results := ix.Search("gamma", 5)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].DocID)
}

func TestSearchTiesBrokenByAscendingDocID(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(5, "b.go", "widget widget")
	ix.AddDocument(2, "a.go", "widget widget")

	results := ix.Search("widget", 5)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-9)
	assert.Equal(t, uint64(2), results[0].DocID)
	assert.Equal(t, uint64(5), results[1].DocID)
}

func TestSearchKExceedingMatchesReturnsAll(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(1, "a.go", "widget")
	results := ix.Search("widget", 100)
	assert.Len(t, results, 1)
}
