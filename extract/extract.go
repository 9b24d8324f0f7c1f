// Package extract pulls raw live-stream and game-reference rows from the
// Twitch Helix API, one paginated pass per ETL cycle, and persists the raw
// batch artifacts for the transform stage.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/onnwee/streamlytics/twitchapi"
)

// Artifact file names under DATA_DIR.
const (
	RawStreamsFile = "raw/twitch_streams.json"
	RawGamesFile   = "raw/twitch_games.json"
)

// defaultPagePause spaces out stream page requests to respect rate limits.
const defaultPagePause = 250 * time.Millisecond

// Extractor fetches a batch of raw stream rows plus the game references they
// point at. It is the upstream collaborator of the transform stage.
type Extractor struct {
	Client    *twitchapi.HelixClient
	MaxPages  int
	PerPage   int
	Languages []string // empty means no language filter
	DataDir   string   // empty disables raw artifact writes

	// PagePause overrides the inter-page pause; zero means the default.
	PagePause time.Duration
}

// Run performs one extraction cycle: page through live streams (per configured
// language), then prime the game reference set from the batch's unique game
// ids. Gaps left by ids Helix doesn't return are closed later by the transform
// stage's own on-demand resolution.
func (e *Extractor) Run(ctx context.Context) ([]twitchapi.Stream, []twitchapi.Game, error) {
	rows, err := e.fetchStreams(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		slog.Warn("no streams returned; increase TWITCH_MAX_PAGES or remove TWITCH_LANG_FILTER",
			slog.String("component", "extract"))
	}

	games, err := e.Client.GetGames(ctx, uniqueGameIDs(rows))
	if err != nil {
		return nil, nil, fmt.Errorf("prime game references: %w", err)
	}

	if e.DataDir != "" {
		if err := writeJSON(filepath.Join(e.DataDir, RawStreamsFile), rows); err != nil {
			return nil, nil, err
		}
		if err := writeJSON(filepath.Join(e.DataDir, RawGamesFile), games); err != nil {
			return nil, nil, err
		}
	}

	slog.Info("extraction complete",
		slog.Int("streams", len(rows)), slog.Int("games", len(games)),
		slog.String("component", "extract"))
	return rows, games, nil
}

func (e *Extractor) fetchStreams(ctx context.Context) ([]twitchapi.Stream, error) {
	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	pause := e.PagePause
	if pause == 0 {
		pause = defaultPagePause
	}
	langs := e.Languages
	if len(langs) == 0 {
		langs = []string{""}
	}

	var all []twitchapi.Stream
	for _, lang := range langs {
		after := ""
		for page := 0; page < maxPages; page++ {
			rows, cursor, err := e.Client.GetStreams(ctx, twitchapi.StreamsOpts{
				First:    e.PerPage,
				Language: lang,
				After:    after,
			})
			if err != nil {
				return nil, fmt.Errorf("streams page %d (lang %q): %w", page, lang, err)
			}
			all = append(all, rows...)
			if cursor == "" || len(rows) == 0 {
				break
			}
			after = cursor
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return all, nil
}

// uniqueGameIDs returns the sorted distinct non-empty game ids in the batch.
func uniqueGameIDs(rows []twitchapi.Stream) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		if r.GameID != "" {
			set[r.GameID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close artifact: %w", err)
	}
	return os.Rename(tmp, path)
}
