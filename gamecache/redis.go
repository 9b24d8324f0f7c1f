package gamecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/streamlytics/twitchapi"
)

// DefaultTTL bounds how long a cached game reference survives without a
// refresh. Names are stable; a week keeps the cache from growing unbounded.
const DefaultTTL = 7 * 24 * time.Hour

// RedisCache is a shared Cache backed by Redis, for deployments running the
// ETL from multiple hosts against one store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func gameKey(id string) string { return "game:" + id + ":ref" }

func (c *RedisCache) GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("mget game refs: %w", err)
	}
	var hits []twitchapi.Game
	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var g twitchapi.Game
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			// Treat a corrupt entry as a miss; it gets rewritten on resolve.
			missing = append(missing, ids[i])
			continue
		}
		hits = append(hits, g)
	}
	return hits, missing, nil
}

func (c *RedisCache) PutGames(ctx context.Context, games []twitchapi.Game) error {
	if len(games) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, g := range games {
		if g.ID == "" {
			continue
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal game %s: %w", g.ID, err)
		}
		pipe.Set(ctx, gameKey(g.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
