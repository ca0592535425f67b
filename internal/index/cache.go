package index

// resultCache keeps recent search results. Eviction is insertion-ordered:
// when full, the oldest entry goes first. Build clears it wholesale, so
// entries never outlive the index snapshot they were computed from.
type resultCache struct {
	max     int
	order   []string
	entries map[string]Result
}

func newResultCache(max int) *resultCache {
	if max < 1 {
		max = 1
	}
	return &resultCache{
		max:     max,
		entries: make(map[string]Result, max),
	}
}

func (c *resultCache) Get(key string) (Result, bool) {
	r, ok := c.entries[key]
	return r, ok
}

func (c *resultCache) Put(key string, r Result) {
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = r
}

func (c *resultCache) Len() int { return len(c.entries) }

func (c *resultCache) Clear() {
	c.order = c.order[:0]
	c.entries = make(map[string]Result, c.max)
}
