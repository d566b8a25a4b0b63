package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
)

// Generation counts the evictions of a location. An analysis computed from data read at one
// generation is only cached while the generation is unchanged.
type Generation uint64

// AnalysisCache keeps derived market analysis keyed by location.
type AnalysisCache interface {
	// Get returns the cached analysis or, on a miss, the generation a later Set must present.
	Get(ctx context.Context, locationID uuid.UUID) (*model.MarketAnalysis, Generation, bool)
	// Set stores analysis unless the location was evicted since generation was read. stored
	// reports whether it was kept.
	Set(ctx context.Context, analysis model.MarketAnalysis, generation Generation) (stored bool, err error)
	Evict(ctx context.Context, locationID uuid.UUID) error
}

// MemoryAnalysisCache is an in process AnalysisCache.
type MemoryAnalysisCache struct {
	analyses    map[uuid.UUID]model.MarketAnalysis
	generations map[uuid.UUID]Generation
	mu          sync.RWMutex
}

var _ AnalysisCache = (*MemoryAnalysisCache)(nil)

func NewMemoryAnalysisCache() *MemoryAnalysisCache {
	return &MemoryAnalysisCache{
		analyses:    make(map[uuid.UUID]model.MarketAnalysis),
		generations: make(map[uuid.UUID]Generation),
	}
}

func (c *MemoryAnalysisCache) Get(_ context.Context, locationID uuid.UUID) (*model.MarketAnalysis, Generation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	generation := c.generations[locationID]
	analysis, found := c.analyses[locationID]
	if !found {
		return nil, generation, false
	}
	return &analysis, generation, true
}

func (c *MemoryAnalysisCache) Set(_ context.Context, analysis model.MarketAnalysis, generation Generation) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[analysis.LocationID] != generation {
		return false, nil
	}
	c.analyses[analysis.LocationID] = analysis
	return true, nil
}

func (c *MemoryAnalysisCache) Evict(_ context.Context, locationID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.analyses, locationID)
	c.generations[locationID]++
	return nil
}

func (c *MemoryAnalysisCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.analyses)
}
