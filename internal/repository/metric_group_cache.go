package repository

import (
	"context"
	"sort"
	"sync"
)

// MetricGroupCache holds the names of the known metric groups. It starts
// empty, is filled by Load and emptied by Invalidate; Add records a group
// created since the last load.
type MetricGroupCache struct {
	mu     sync.RWMutex
	loaded bool
	groups map[string]struct{}
}

func NewMetricGroupCache() *MetricGroupCache {
	return &MetricGroupCache{groups: make(map[string]struct{})}
}

func (c *MetricGroupCache) Load(ctx context.Context, load func(ctx context.Context) ([]string, error)) error {
	names, err := load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = make(map[string]struct{}, len(names))
	for _, name := range names {
		c.groups[name] = struct{}{}
	}
	c.loaded = true
	return nil
}

func (c *MetricGroupCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *MetricGroupCache) Has(group string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.groups[group]
	return ok
}

func (c *MetricGroupCache) Add(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[group] = struct{}{}
}

func (c *MetricGroupCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = make(map[string]struct{})
	c.loaded = false
}

func (c *MetricGroupCache) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
