// Package gamecache caches game reference rows across ETL cycles so repeat
// game ids don't hit the Helix lookup endpoint every run. Two backends exist:
// an in-process map and a shared Redis cache.
package gamecache

import (
	"context"
	"log/slog"

	"github.com/onnwee/streamlytics/transform"
	"github.com/onnwee/streamlytics/twitchapi"
)

// Cache stores resolved game references keyed by game id.
type Cache interface {
	// GetGames returns cached rows for ids and the subset of ids not found.
	GetGames(ctx context.Context, ids []string) (hits []twitchapi.Game, missing []string, err error)
	// PutGames stores resolved rows.
	PutGames(ctx context.Context, games []twitchapi.Game) error
}

// CachedResolver fronts a GameResolver with a Cache. Cache failures degrade to
// a plain resolver call with a warning; they never fail the transform.
type CachedResolver struct {
	Cache Cache
	Next  transform.GameResolver
}

var _ transform.GameResolver = (*CachedResolver)(nil)

func (r *CachedResolver) GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, error) {
	hits, missing, err := r.Cache.GetGames(ctx, ids)
	if err != nil {
		slog.Warn("game cache read failed, resolving all ids upstream",
			slog.Any("err", err), slog.String("component", "gamecache"))
		hits, missing = nil, ids
	}
	if len(missing) == 0 {
		return hits, nil
	}
	fetched, err := r.Next.GetGames(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		if err := r.Cache.PutGames(ctx, fetched); err != nil {
			slog.Warn("game cache write failed",
				slog.Any("err", err), slog.String("component", "gamecache"))
		}
	}
	return append(hits, fetched...), nil
}
