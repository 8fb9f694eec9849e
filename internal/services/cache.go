package services

// ListCache is the read cache in front of the ranking queries. Any write that
// can change a listing purges it. A read that started before a purge must not
// fill the cache afterwards, so fills are conditioned on the purge
// generation. *utils.Cache satisfies it.
type ListCache interface {
	Get(key string) interface{}
	Generation() uint64
	SetIfGeneration(key string, data interface{}, gen uint64) bool
	Purge()
}

func purge(c ListCache) {
	if c != nil {
		c.Purge()
	}
}
