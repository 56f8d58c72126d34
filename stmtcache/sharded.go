package stmtcache

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/bxshcn/geesql/namedsql"
)

// byteLRU bounds its entries by their approximate size in bytes. It is not
// safe for concurrent use; shard guards it.
type byteLRU struct {
	maxBytes int64
	nBytes   int64
	ll       *list.List
	cache    map[Key]*list.Element
}

type entry struct {
	key   Key
	value *namedsql.Query
}

func entrySize(key Key, q *namedsql.Query) int64 {
	return int64(len(key.SQL)+len(key.Sizes)+len(key.Name)+len(key.GeneratedKeys)) + int64(q.Size())
}

func newByteLRU(maxBytes int64) *byteLRU {
	return &byteLRU{
		maxBytes: maxBytes,
		ll:       list.New(),
		cache:    make(map[Key]*list.Element),
	}
}

func (c *byteLRU) get(key Key) (*namedsql.Query, bool) {
	if ele, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ele)
		return ele.Value.(*entry).value, true
	}
	return nil, false
}

func (c *byteLRU) removeOldest() {
	ele := c.ll.Back()
	if ele != nil {
		c.ll.Remove(ele)
		kv := ele.Value.(*entry)
		delete(c.cache, kv.key)
		c.nBytes -= entrySize(kv.key, kv.value)
	}
}

func (c *byteLRU) add(key Key, q *namedsql.Query) {
	if ele, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ele)
		kv := ele.Value.(*entry)
		c.nBytes += entrySize(key, q) - entrySize(key, kv.value)
		kv.value = q
	} else {
		ele := c.ll.PushFront(&entry{key, q})
		c.cache[key] = ele
		c.nBytes += entrySize(key, q)
	}
	// keep the newest entry even if it alone exceeds maxBytes
	for c.maxBytes != 0 && c.nBytes > c.maxBytes && c.ll.Len() > 1 {
		c.removeOldest()
	}
}

type shard struct {
	mu  sync.Mutex
	lru *byteLRU
}

type sharded struct {
	shards []*shard
}

// NewSharded returns a cache split into shards, each an LRU bounded to
// maxBytes/shards bytes. A key always maps to the same shard, so lookups
// only contend with keys hashed to the same shard.
func NewSharded(shards int, maxBytes int64) (Cache, error) {
	if shards <= 0 {
		return nil, errors.Errorf("stmtcache: shard count must be positive, got %d", shards)
	}
	if maxBytes <= 0 {
		return nil, errors.Errorf("stmtcache: max bytes must be positive, got %d", maxBytes)
	}
	per := maxBytes / int64(shards)
	if per == 0 {
		per = 1
	}
	c := &sharded{shards: make([]*shard, shards)}
	for i := range c.shards {
		c.shards[i] = &shard{lru: newByteLRU(per)}
	}
	return c, nil
}

func (c *sharded) shardFor(key Key) *shard {
	h := xxhash.Sum64String(key.String())
	return c.shards[h%uint64(len(c.shards))]
}

func (c *sharded) Get(key Key) (*namedsql.Query, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.get(key)
}

func (c *sharded) Add(key Key, q *namedsql.Query) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.add(key, q)
}

func (c *sharded) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.lru.ll.Len()
		s.mu.Unlock()
	}
	return n
}
