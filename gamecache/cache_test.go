package gamecache

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/streamlytics/twitchapi"
)

type countingResolver struct {
	games map[string]string
	calls [][]string
	err   error
}

func (r *countingResolver) GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, error) {
	r.calls = append(r.calls, ids)
	if r.err != nil {
		return nil, r.err
	}
	var out []twitchapi.Game
	for _, id := range ids {
		if name, ok := r.games[id]; ok {
			out = append(out, twitchapi.Game{ID: id, Name: name})
		}
	}
	return out, nil
}

// failingCache errors on every read to exercise the degraded path.
type failingCache struct{}

func (failingCache) GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, []string, error) {
	return nil, nil, errors.New("cache down")
}
func (failingCache) PutGames(ctx context.Context, games []twitchapi.Game) error {
	return errors.New("cache down")
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	hits, missing, err := c.GetGames(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("GetGames() error = %v", err)
	}
	if len(hits) != 0 || len(missing) != 2 {
		t.Errorf("cold cache = %d hits %d missing, want 0/2", len(hits), len(missing))
	}

	if err := c.PutGames(ctx, []twitchapi.Game{{ID: "1", Name: "Chess"}}); err != nil {
		t.Fatalf("PutGames() error = %v", err)
	}

	hits, missing, err = c.GetGames(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("GetGames() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "Chess" {
		t.Errorf("hits = %v, want [Chess]", hits)
	}
	if len(missing) != 1 || missing[0] != "2" {
		t.Errorf("missing = %v, want [2]", missing)
	}
}

func TestCachedResolver_SecondLookupServedFromCache(t *testing.T) {
	ctx := context.Background()
	upstream := &countingResolver{games: map[string]string{"1": "Chess", "2": "Poker"}}
	r := &CachedResolver{Cache: NewMemoryCache(), Next: upstream}

	games, err := r.GetGames(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("GetGames() error = %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("first lookup = %d games, want 2", len(games))
	}
	if len(upstream.calls) != 1 {
		t.Fatalf("upstream calls = %d, want 1", len(upstream.calls))
	}

	games, err = r.GetGames(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("GetGames() repeat error = %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("second lookup = %d games, want 2", len(games))
	}
	if len(upstream.calls) != 1 {
		t.Errorf("upstream calls after warm cache = %d, want still 1", len(upstream.calls))
	}
}

func TestCachedResolver_PartialHit(t *testing.T) {
	ctx := context.Background()
	upstream := &countingResolver{games: map[string]string{"1": "Chess", "2": "Poker"}}
	cache := NewMemoryCache()
	if err := cache.PutGames(ctx, []twitchapi.Game{{ID: "1", Name: "Chess"}}); err != nil {
		t.Fatal(err)
	}
	r := &CachedResolver{Cache: cache, Next: upstream}

	games, err := r.GetGames(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("GetGames() error = %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("lookup = %d games, want 2", len(games))
	}
	if len(upstream.calls) != 1 || len(upstream.calls[0]) != 1 || upstream.calls[0][0] != "2" {
		t.Errorf("upstream asked for %v, want only [2]", upstream.calls)
	}
}

func TestCachedResolver_CacheFailureDegrades(t *testing.T) {
	ctx := context.Background()
	upstream := &countingResolver{games: map[string]string{"1": "Chess"}}
	r := &CachedResolver{Cache: failingCache{}, Next: upstream}

	games, err := r.GetGames(ctx, []string{"1"})
	if err != nil {
		t.Fatalf("GetGames() error = %v, cache failure must not propagate", err)
	}
	if len(games) != 1 || games[0].Name != "Chess" {
		t.Errorf("games = %v, want [Chess] via upstream", games)
	}
}

func TestCachedResolver_UpstreamError(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("helix down")
	r := &CachedResolver{Cache: NewMemoryCache(), Next: &countingResolver{err: cause}}

	_, err := r.GetGames(ctx, []string{"1"})
	if !errors.Is(err, cause) {
		t.Errorf("GetGames() error = %v, want %v", err, cause)
	}
}
