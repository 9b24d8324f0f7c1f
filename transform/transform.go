// Package transform converts raw extracted stream rows plus a partial game
// reference table into a complete, analysis-ready record batch: temporal
// feature derivation, on-demand game-name resolution, and projection to the
// fixed output column set.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/onnwee/streamlytics/streams"
	"github.com/onnwee/streamlytics/twitchapi"
)

// GameResolver is the batch game-lookup capability the transform stage uses to
// resolve game ids missing from the known reference set. In production it is a
// twitchapi.HelixClient (optionally wrapped by gamecache.CachedResolver); tests
// use a static fixture. Implementations own chunking and rate-limit pauses.
type GameResolver interface {
	GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, error)
}

// UpstreamLookupError indicates the game-reference resolution call failed.
// It propagates to the caller rather than silently defaulting the affected
// rows to "Unknown": partial reference data must be a deliberate outcome, not
// a swallowed failure. The transport layer has already retried by this point.
type UpstreamLookupError struct {
	IDs []string
	Err error
}

func (e *UpstreamLookupError) Error() string {
	return fmt.Sprintf("game lookup for %d ids failed: %v", len(e.IDs), e.Err)
}

func (e *UpstreamLookupError) Unwrap() error { return e.Err }

// Result carries the analysis-ready batch plus the (possibly augmented) game
// reference set, so the caller can persist the reference table alongside.
type Result struct {
	Records []streams.Record
	Games   []twitchapi.Game
}

// Transform normalizes a raw stream batch. Game ids present in the batch but
// absent from refs are resolved through resolver; ids that still have no match
// afterward fall back to game_name = "Unknown". A nil resolver skips
// resolution entirely (every unmatched id becomes "Unknown").
func Transform(ctx context.Context, raw []twitchapi.Stream, refs []twitchapi.Game, resolver GameResolver) (Result, error) {
	names := make(map[string]string, len(refs))
	merged := make([]twitchapi.Game, 0, len(refs))
	for _, g := range refs {
		mergeGame(names, &merged, g)
	}

	missing := missingGameIDs(raw, names)
	if len(missing) > 0 && resolver != nil {
		fetched, err := resolver.GetGames(ctx, missing)
		if err != nil {
			return Result{}, &UpstreamLookupError{IDs: missing, Err: err}
		}
		for _, g := range fetched {
			mergeGame(names, &merged, g)
		}
		if len(fetched) < len(missing) {
			slog.Debug("some game ids did not resolve, falling back to Unknown",
				slog.Int("requested", len(missing)), slog.Int("resolved", len(fetched)),
				slog.String("component", "transform"))
		}
	}

	records := make([]streams.Record, 0, len(raw))
	for _, s := range raw {
		gid := canonicalID(s.GameID)
		name, ok := names[gid]
		if !ok || name == "" {
			name = streams.UnknownGame
		}
		rec := streams.Record{
			ID:                  s.ID,
			UserID:              s.UserID,
			UserLogin:           s.UserLogin,
			UserName:            s.UserName,
			GameID:              gid,
			GameName:            name,
			Type:                s.Type,
			Title:               s.Title,
			ViewerCount:         s.ViewerCount,
			Language:            s.Language,
			BroadcasterLanguage: s.BroadcasterLanguage,
			Tags:                s.Tags,
			IsMature:            s.IsMature,
		}
		rec.SetStartedAt(s.StartedAt)
		records = append(records, rec)
	}
	return Result{Records: records, Games: merged}, nil
}

// missingGameIDs returns the sorted set of game ids referenced by the batch
// but absent from the known reference set.
func missingGameIDs(raw []twitchapi.Stream, known map[string]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range raw {
		gid := canonicalID(s.GameID)
		if gid == "" {
			continue
		}
		if _, ok := known[gid]; ok {
			continue
		}
		if _, dup := seen[gid]; dup {
			continue
		}
		seen[gid] = struct{}{}
		out = append(out, gid)
	}
	sort.Strings(out)
	return out
}

// mergeGame adds g to the reference set keyed by canonical id, last-seen wins.
func mergeGame(names map[string]string, merged *[]twitchapi.Game, g twitchapi.Game) {
	id := canonicalID(g.ID)
	if id == "" {
		return
	}
	g.ID = id
	if _, exists := names[id]; exists {
		for i := range *merged {
			if (*merged)[i].ID == id {
				(*merged)[i] = g
				break
			}
		}
	} else {
		*merged = append(*merged, g)
	}
	names[id] = g.Name
}

// canonicalID normalizes a game id to an exact-match join key.
func canonicalID(id string) string { return strings.TrimSpace(id) }
