package stmtcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bxshcn/geesql/namedsql"
)

type countBounded struct {
	lru *lru.Cache[Key, *namedsql.Query]
}

// NewLRU returns a cache holding at most size queries, evicting the least
// recently used one first.
func NewLRU(size int) (Cache, error) {
	c, err := lru.New[Key, *namedsql.Query](size)
	if err != nil {
		return nil, err
	}
	return &countBounded{lru: c}, nil
}

func (c *countBounded) Get(key Key) (*namedsql.Query, bool) {
	return c.lru.Get(key)
}

func (c *countBounded) Add(key Key, q *namedsql.Query) {
	c.lru.Add(key, q)
}

func (c *countBounded) Len() int {
	return c.lru.Len()
}
