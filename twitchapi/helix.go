// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for listing live streams and resolving game metadata, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	helixBaseURL = "https://api.twitch.tv/helix"

	// helixMaxRetries bounds attempts per request for transient failures (429, 5xx, network).
	helixMaxRetries = 3

	// gamesChunkSize is the Helix per-call identifier limit for /helix/games.
	gamesChunkSize = 100

	// gamesChunkPause spaces out chunked game lookups to respect rate limits.
	gamesChunkPause = 200 * time.Millisecond
)

// Stream is one raw live-stream row as returned by /helix/streams.
// game_name is intentionally absent: names are resolved against the games
// reference set during transform, not trusted from the stream payload.
type Stream struct {
	ID                  string   `json:"id"`
	UserID              string   `json:"user_id"`
	UserLogin           string   `json:"user_login"`
	UserName            string   `json:"user_name"`
	GameID              string   `json:"game_id"`
	Type                string   `json:"type"`
	Title               string   `json:"title"`
	ViewerCount         int      `json:"viewer_count"`
	Language            string   `json:"language"`
	BroadcasterLanguage string   `json:"broadcaster_language"`
	StartedAt           string   `json:"started_at"`
	Tags                []string `json:"tags"`
	IsMature            bool     `json:"is_mature"`
}

// Game is one game reference row as returned by /helix/games.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// StreamsOpts filters a single /helix/streams page request.
type StreamsOpts struct {
	First    int    // page size, 1-100; defaults to 100
	Language string // optional language filter
	After    string // optional pagination cursor
}

// HelixClient provides the Helix methods needed for stream extraction.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
}

func (hc *HelixClient) httpClient() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// GetStreams fetches one page of live streams and returns the rows plus the
// next-page cursor (empty on the last page).
func (hc *HelixClient) GetStreams(ctx context.Context, opts StreamsOpts) ([]Stream, string, error) {
	first := opts.First
	if first <= 0 || first > 100 {
		first = 100
	}
	q := url.Values{}
	q.Set("first", strconv.Itoa(first))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.After != "" {
		q.Set("after", opts.After)
	}
	var body struct {
		Data       []Stream `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := hc.do(ctx, helixBaseURL+"/streams", q, &body); err != nil {
		return nil, "", err
	}
	return body.Data, body.Pagination.Cursor, nil
}

// GetGames resolves game ids to game metadata, chunking requests to the Helix
// per-call limit with a short pause between chunks. The merged result may be
// shorter than ids: unknown ids simply have no row.
func (hc *HelixClient) GetGames(ctx context.Context, ids []string) ([]Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]Game, 0, len(ids))
	for start := 0; start < len(ids); start += gamesChunkSize {
		end := start + gamesChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if start > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(gamesChunkPause):
			}
		}
		q := url.Values{}
		for _, id := range ids[start:end] {
			q.Add("id", id)
		}
		var body struct {
			Data []Game `json:"data"`
		}
		if err := hc.do(ctx, helixBaseURL+"/games", q, &body); err != nil {
			return nil, fmt.Errorf("games chunk %d-%d: %w", start, end, err)
		}
		out = append(out, body.Data...)
	}
	return out, nil
}

// do performs an authenticated GET against Helix with bounded retries.
// 429 and 5xx responses are retried up to helixMaxRetries attempts; a 401
// invalidates the cached token and retries once with a fresh one without
// consuming a retry slot.
func (hc *HelixClient) do(ctx context.Context, rawURL string, q url.Values, out any) error {
	refreshed := false
	for attempt := 1; ; attempt++ {
		tok, err := hc.AppTokenSource.Get(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.URL.RawQuery = q.Encode()
		req.Header.Set("Client-Id", hc.ClientID)
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := hc.httpClient().Do(req)
		if err != nil {
			if attempt < helixMaxRetries {
				if werr := helixWait(ctx, backoffFor(attempt)); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			decErr := json.NewDecoder(resp.Body).Decode(out)
			closeBody(resp)
			return decErr

		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			closeBody(resp)
			hc.AppTokenSource.Invalidate()
			refreshed = true
			continue

		case resp.StatusCode == http.StatusTooManyRequests && attempt < helixMaxRetries:
			wait := retryAfter(resp)
			closeBody(resp)
			slog.Warn("helix rate limited, retrying", slog.Duration("wait", wait), slog.Int("attempt", attempt))
			if werr := helixWait(ctx, wait); werr != nil {
				return werr
			}
			continue

		case resp.StatusCode >= 500 && attempt < helixMaxRetries:
			closeBody(resp)
			slog.Warn("helix server error, retrying", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt))
			if werr := helixWait(ctx, backoffFor(attempt)); werr != nil {
				return werr
			}
			continue

		default:
			status := resp.Status
			closeBody(resp)
			return fmt.Errorf("helix request %s failed: %s", req.URL.Path, status)
		}
	}
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			d := time.Duration(n) * time.Second
			if d > 5*time.Second {
				d = 5 * time.Second
			}
			return d
		}
	}
	return time.Second
}

func backoffFor(attempt int) time.Duration {
	return time.Duration(attempt) * 300 * time.Millisecond
}

func helixWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
