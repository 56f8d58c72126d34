// Package stmtcache caches compiled named queries by statement shape.
//
// The cache is the only structure shared by concurrently running sessions.
// Lookups of unrelated keys never wait on each other's compilation.
package stmtcache

import (
	"sync"
	"sync/atomic"

	"github.com/bxshcn/geesql/namedsql"
	"golang.org/x/sync/singleflight"
)

// Cache stores compiled queries. Implementations must be safe for
// concurrent use and must only ever hold fully compiled queries.
type Cache interface {
	Get(key Key) (*namedsql.Query, bool)
	// Add stores q under key, replacing any previous entry.
	Add(key Key, q *namedsql.Query)
	Len() int
}

type unbounded struct {
	m sync.Map
	n atomic.Int64
}

// NewUnbounded returns the default policy: entries are never evicted and a
// key collision replaces the stored query.
func NewUnbounded() Cache {
	return &unbounded{}
}

func (c *unbounded) Get(key Key) (*namedsql.Query, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*namedsql.Query), true
}

func (c *unbounded) Add(key Key, q *namedsql.Query) {
	if _, loaded := c.m.Swap(key, q); !loaded {
		c.n.Add(1)
	}
}

func (c *unbounded) Len() int {
	return int(c.n.Load())
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits     int64
	Misses   int64
	Computes int64
	Size     int
}

// Statements fronts a Cache with get-or-compute semantics. Concurrent
// misses on the same key share a single compilation.
//
// The Cache must be chosen before the first lookup; replacing the cache of
// a Statements that is in use is not supported.
type Statements struct {
	cache    Cache
	flight   singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

func New(cache Cache) *Statements {
	if cache == nil {
		cache = NewUnbounded()
	}
	return &Statements{cache: cache}
}

// GetOrCompute returns the cached query for key, compiling it with compute
// on a miss. A failed compute is not cached.
func (s *Statements) GetOrCompute(key Key, compute func() (*namedsql.Query, error)) (*namedsql.Query, error) {
	if q, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return q, nil
	}
	s.misses.Add(1)
	v, err, _ := s.flight.Do(key.String(), func() (interface{}, error) {
		// another flight may have finished between our Get and Do
		if q, ok := s.cache.Get(key); ok {
			return q, nil
		}
		s.computes.Add(1)
		q, err := compute()
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, q)
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*namedsql.Query), nil
}

func (s *Statements) Cache() Cache {
	return s.cache
}

func (s *Statements) Stats() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Computes: s.computes.Load(),
		Size:     s.cache.Len(),
	}
}
