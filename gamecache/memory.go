package gamecache

import (
	"context"
	"sync"

	"github.com/onnwee/streamlytics/twitchapi"
)

// MemoryCache is a process-local Cache. Game names are stable, so entries
// never expire; the map is bounded by the number of distinct games seen.
type MemoryCache struct {
	mu    sync.RWMutex
	games map[string]twitchapi.Game
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{games: make(map[string]twitchapi.Game)}
}

func (c *MemoryCache) GetGames(_ context.Context, ids []string) ([]twitchapi.Game, []string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var hits []twitchapi.Game
	var missing []string
	for _, id := range ids {
		if g, ok := c.games[id]; ok {
			hits = append(hits, g)
		} else {
			missing = append(missing, id)
		}
	}
	return hits, missing, nil
}

func (c *MemoryCache) PutGames(_ context.Context, games []twitchapi.Game) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range games {
		if g.ID != "" {
			c.games[g.ID] = g
		}
	}
	return nil
}
