package pipeline

import "sync"

// Stats counts pipeline outcomes since startup.
type Stats struct {
	Cycles     int
	Polled     int
	Published  int
	Duplicates int
	Similar    int
	Queued     int
	Edited     int
	Skipped    int
	Errors     int
	// ByCategory counts published items per category.
	ByCategory map[string]int
}

// statsCounter is the mutable, lock-protected form behind Stats.
type statsCounter struct {
	mu    sync.Mutex
	stats Stats
}

func (c *statsCounter) add(mutate func(*Stats)) {
	c.mu.Lock()
	mutate(&c.stats)
	c.mu.Unlock()
}

// snapshot returns a copy of the current counters.
func (c *statsCounter) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	if c.stats.ByCategory != nil {
		out.ByCategory = make(map[string]int, len(c.stats.ByCategory))
		for k, v := range c.stats.ByCategory {
			out.ByCategory[k] = v
		}
	}
	return out
}
