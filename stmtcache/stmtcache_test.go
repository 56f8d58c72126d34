package stmtcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxshcn/geesql/namedsql"
)

func query(sql string) *namedsql.Query {
	return &namedsql.Query{Original: sql, SQL: sql}
}

func TestNewKeyCanonicalSizes(t *testing.T) {
	a := NewKey("select 1", map[string]int{"b": 2, "a": 1}, "", false, false, nil)
	b := NewKey("select 1", map[string]int{"a": 1, "b": 2}, "", false, false, nil)
	assert.Equal(t, a, b)
	assert.Equal(t, "a=1,b=2", a.Sizes)

	c := NewKey("select 1", map[string]int{"a": 3, "b": 2}, "", false, false, nil)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a.String(), c.String())
}

func TestKeyDistinguishesOptions(t *testing.T) {
	base := NewKey("select 1", nil, "", false, false, nil)
	keys := []Key{
		NewKey("select 1", nil, "q", false, false, nil),
		NewKey("select 1", nil, "", true, false, nil),
		NewKey("select 1", nil, "", false, true, nil),
		NewKey("select 1", nil, "", false, false, []string{"id"}),
	}
	for _, k := range keys {
		assert.NotEqual(t, base, k)
		assert.NotEqual(t, base.String(), k.String())
	}
}

func TestUnbounded(t *testing.T) {
	c := NewUnbounded()
	k := NewKey("select 1", nil, "", false, false, nil)
	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Add(k, query("a"))
	c.Add(k, query("b"))
	q, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "b", q.SQL)
	assert.Equal(t, 1, c.Len())
}

func TestLRUEvictsByCount(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)
	k1 := NewKey("k1", nil, "", false, false, nil)
	k2 := NewKey("k2", nil, "", false, false, nil)
	k3 := NewKey("k3", nil, "", false, false, nil)
	c.Add(k1, query("k1"))
	c.Add(k2, query("k2"))
	_, _ = c.Get(k1)
	c.Add(k3, query("k3"))

	_, ok := c.Get(k2)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(k1)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	_, err = NewLRU(0)
	assert.Error(t, err)
}

func TestByteLRURemoveOldest(t *testing.T) {
	k1 := NewKey("key1", nil, "", false, false, nil)
	k2 := NewKey("k2", nil, "", false, false, nil)
	k3 := NewKey("k3", nil, "", false, false, nil)
	v1, v2, v3 := query("value1"), query("v2"), query("v3")
	limit := entrySize(k1, v1) + entrySize(k2, v2)
	lru := newByteLRU(limit)
	lru.add(k1, v1)
	lru.add(k2, v2)
	lru.add(k3, v3)

	if _, ok := lru.get(k1); ok || lru.ll.Len() != 2 {
		t.Fatalf("RemoveOldest key1 failed")
	}
	assert.Equal(t, entrySize(k2, v2)+entrySize(k3, v3), lru.nBytes)
}

func TestByteLRUKeepsOversizedNewest(t *testing.T) {
	lru := newByteLRU(1)
	k := NewKey("select * from a_rather_long_table", nil, "", false, false, nil)
	lru.add(k, query(k.SQL))
	_, ok := lru.get(k)
	assert.True(t, ok)
}

func TestSharded(t *testing.T) {
	c, err := NewSharded(4, 1<<20)
	require.NoError(t, err)
	for _, sql := range []string{"a", "b", "c", "d", "e"} {
		c.Add(NewKey(sql, nil, "", false, false, nil), query(sql))
	}
	assert.Equal(t, 5, c.Len())
	q, ok := c.Get(NewKey("c", nil, "", false, false, nil))
	require.True(t, ok)
	assert.Equal(t, "c", q.SQL)

	_, err = NewSharded(0, 10)
	assert.Error(t, err)
	_, err = NewSharded(2, 0)
	assert.Error(t, err)
}

func TestGetOrCompute(t *testing.T) {
	s := New(nil)
	k := NewKey("select :a", nil, "", false, false, nil)
	var calls int
	compute := func() (*namedsql.Query, error) {
		calls++
		return query("select ?"), nil
	}
	q1, err := s.GetOrCompute(k, compute)
	require.NoError(t, err)
	q2, err := s.GetOrCompute(k, compute)
	require.NoError(t, err)
	assert.Same(t, q1, q2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Computes: 1, Size: 1}, s.Stats())
}

func TestGetOrComputeDoesNotCacheFailures(t *testing.T) {
	s := New(NewUnbounded())
	k := NewKey("select 'x", nil, "", false, false, nil)
	boom := errors.New("boom")
	_, err := s.GetOrCompute(k, func() (*namedsql.Query, error) { return nil, boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, 0, s.Stats().Size)

	q, err := s.GetOrCompute(k, func() (*namedsql.Query, error) { return query("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", q.SQL)
	assert.Equal(t, int64(2), s.Stats().Computes)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	s := New(nil)
	k := NewKey("select :a", nil, "", false, false, nil)
	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)
	compute := func() (*namedsql.Query, error) {
		calls.Add(1)
		<-release
		return query("select ?"), nil
	}
	results := make([]*namedsql.Query, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := s.GetOrCompute(k, compute)
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, q := range results {
		assert.Same(t, results[0], q)
	}
}

func TestGetOrComputeIndependentKeys(t *testing.T) {
	s := New(nil)
	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = s.GetOrCompute(NewKey("slow", nil, "", false, false, nil), func() (*namedsql.Query, error) {
			close(started)
			<-block
			return query("slow"), nil
		})
	}()
	<-started
	done := make(chan struct{})
	go func() {
		_, _ = s.GetOrCompute(NewKey("fast", nil, "", false, false, nil), func() (*namedsql.Query, error) {
			return query("fast"), nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("compute of an unrelated key was blocked")
	}
	close(block)
}
