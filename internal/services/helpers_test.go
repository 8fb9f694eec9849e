package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type seqIDs struct {
	mu   sync.Mutex
	next int64
}

func (s *seqIDs) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

type spyCache struct {
	data   map[string]interface{}
	gen    uint64
	purges int
}

func newSpyCache() *spyCache {
	return &spyCache{data: map[string]interface{}{}}
}

func (c *spyCache) Get(key string) interface{} { return c.data[key] }

func (c *spyCache) Set(key string, v interface{}) { c.data[key] = v }

func (c *spyCache) Generation() uint64 { return c.gen }

func (c *spyCache) SetIfGeneration(key string, v interface{}, gen uint64) bool {
	if gen != c.gen {
		return false
	}
	c.data[key] = v
	return true
}

func (c *spyCache) Purge() {
	c.purges++
	c.gen++
	c.data = map[string]interface{}{}
}

type spyScheduler struct {
	scheduled []int64
}

func (s *spyScheduler) Schedule(postID int64) { s.scheduled = append(s.scheduled, postID) }

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func nopLogger() *zap.Logger { return zap.NewNop() }
