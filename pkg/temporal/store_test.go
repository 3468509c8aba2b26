package temporal

import (
	"sync"
	"testing"

	"github.com/agrama/agrama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenGetCurrent(t *testing.T) {
	s := New()
	_, err := s.Save("a.ts", []byte("function f(){}"), "agent-1")
	require.NoError(t, err)

	got, err := s.GetCurrent("a.ts")
	require.NoError(t, err)
	assert.Equal(t, "function f(){}", string(got))
}

func TestGetCurrentNotFound(t *testing.T) {
	s := New()
	_, err := s.GetCurrent("missing")
	require.Error(t, err)
	assert.Equal(t, agrama.KindNotFound, agrama.KindOf(err))
}

func TestHistoryNewestFirstAndLimit(t *testing.T) {
	s := New()
	for _, v := range []string{"v1", "v2", "v3"} {
		_, err := s.Save("a.ts", []byte(v), "agent-1")
		require.NoError(t, err)
	}

	hist, err := s.GetHistory("a.ts", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "v3", string(hist[0].Content))
	assert.Equal(t, "v2", string(hist[1].Content))

	for i := 0; i+1 < len(hist); i++ {
		assert.True(t, hist[i].Timestamp.After(hist[i+1].Timestamp) || hist[i].Timestamp.Equal(hist[i+1].Timestamp))
	}
}

func TestHistoryAbsentKeyReturnsEmpty(t *testing.T) {
	s := New()
	hist, err := s.GetHistory("nope", 5)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestHistoryZeroLimitIsInvalidArgument(t *testing.T) {
	s := New()
	_, err := s.Save("a.ts", []byte("v1"), "agent-1")
	require.NoError(t, err)

	_, err = s.GetHistory("a.ts", 0)
	require.Error(t, err)
	assert.Equal(t, agrama.KindInvalidArgument, agrama.KindOf(err))
}

func TestSaveIdenticalContentStillAppends(t *testing.T) {
	s := New()
	_, err := s.Save("a.ts", []byte("same"), "agent-1")
	require.NoError(t, err)
	_, err = s.Save("a.ts", []byte("same"), "agent-1")
	require.NoError(t, err)

	hist, err := s.GetHistory("a.ts", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestHistoryStrictlyMonotonicUnderConcurrentWrites(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Save("hot", []byte{byte(i)}, "agent")
		}(i)
	}
	wg.Wait()

	hist, err := s.GetHistory("hot", 50)
	require.NoError(t, err)
	require.Len(t, hist, 50)
	for i := 0; i+1 < len(hist); i++ {
		assert.True(t, hist[i].Timestamp.After(hist[i+1].Timestamp))
	}
}

func TestSnapshotIteratesCurrentValues(t *testing.T) {
	s := New()
	_, _ = s.Save("a", []byte("1"), "x")
	_, _ = s.Save("b", []byte("2"), "x")

	seen := map[string]string{}
	s.Snapshot()(func(key string, current []byte) bool {
		seen[key] = string(current)
		return true
	})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
