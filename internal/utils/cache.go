package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache 本地 LRU 缓存，带 TTL
//
// 每次 Purge 都会让代数 (generation) 加一。读路径在查询前记下代数，
// 用 SetIfGeneration 回填；查询期间发生过 Purge 时结果不会写入缓存。
type Cache struct {
	lruCache *lru.Cache[string, CacheItem]
	ttl      time.Duration
	now      func() time.Time

	mu  sync.Mutex // 保护 gen，并让 Purge 与带代数的写入互斥
	gen uint64
}

// NewCache creates a cache holding at most size entries, each living ttl.
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lruCache: l, ttl: ttl, now: time.Now}, nil
}

// Set 设置缓存，使用默认 TTL
func (c *Cache) Set(key string, data interface{}) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	})
}

// Generation returns the current purge generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores data only if no Purge happened since gen was read.
// It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, data interface{}, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.Set(key, data)
	return true
}

// Get 获取缓存，若不存在或已过期则返回 nil
func (c *Cache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Purge 清空所有缓存（任何写操作之后调用）
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lruCache.Purge()
}
