package transform

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/onnwee/streamlytics/streams"
	"github.com/onnwee/streamlytics/twitchapi"
)

// fixtureResolver serves games from a static table and records what was asked.
type fixtureResolver struct {
	games    map[string]string
	requests [][]string
	err      error
}

func (f *fixtureResolver) GetGames(ctx context.Context, ids []string) ([]twitchapi.Game, error) {
	f.requests = append(f.requests, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []twitchapi.Game
	for _, id := range ids {
		if name, ok := f.games[id]; ok {
			out = append(out, twitchapi.Game{ID: id, Name: name})
		}
	}
	return out, nil
}

func TestTransform_ResolvesKnownGames(t *testing.T) {
	raw := []twitchapi.Stream{
		{ID: "s1", GameID: "10", StartedAt: "2024-03-09T14:30:00Z"},
		{ID: "s2", GameID: "20", StartedAt: "2024-03-11T08:00:00Z"},
	}
	refs := []twitchapi.Game{
		{ID: "10", Name: "Chess"},
		{ID: "20", Name: "Poker"},
	}

	res, err := Transform(context.Background(), raw, refs, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Transform() records = %d, want 2", len(res.Records))
	}
	if res.Records[0].GameName != "Chess" || res.Records[1].GameName != "Poker" {
		t.Errorf("game names = %q, %q; want Chess, Poker",
			res.Records[0].GameName, res.Records[1].GameName)
	}
	if res.Records[0].Weekday != "Saturday" || !res.Records[0].IsWeekend {
		t.Errorf("record s1 temporal = %q weekend=%v, want Saturday weekend",
			res.Records[0].Weekday, res.Records[0].IsWeekend)
	}
	if res.Records[1].IsWeekend {
		t.Error("record s2 marked weekend, started on a Monday")
	}
}

func TestTransform_ResolvesOnlyMissingIDs(t *testing.T) {
	raw := []twitchapi.Stream{
		{ID: "s1", GameID: "10"},
		{ID: "s2", GameID: "30"},
		{ID: "s3", GameID: "30"}, // repeat id requested once
		{ID: "s4", GameID: "40"},
	}
	refs := []twitchapi.Game{{ID: "10", Name: "Chess"}}
	resolver := &fixtureResolver{games: map[string]string{"30": "Go", "40": "Shogi"}}

	res, err := Transform(context.Background(), raw, refs, resolver)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(resolver.requests) != 1 {
		t.Fatalf("resolver calls = %d, want 1", len(resolver.requests))
	}
	if want := []string{"30", "40"}; !reflect.DeepEqual(resolver.requests[0], want) {
		t.Errorf("resolved ids = %v, want %v", resolver.requests[0], want)
	}
	byID := map[string]string{}
	for _, r := range res.Records {
		byID[r.ID] = r.GameName
	}
	if byID["s2"] != "Go" || byID["s3"] != "Go" || byID["s4"] != "Shogi" {
		t.Errorf("resolved names = %v", byID)
	}
	// The returned reference set carries the newly resolved rows.
	if len(res.Games) != 3 {
		t.Errorf("merged reference set = %d rows, want 3", len(res.Games))
	}
}

func TestTransform_UnknownFallback(t *testing.T) {
	raw := []twitchapi.Stream{
		{ID: "s1", GameID: "999"},
		{ID: "s2", GameID: ""},
		{ID: "s3", GameID: "  "},
	}
	resolver := &fixtureResolver{games: map[string]string{}}

	res, err := Transform(context.Background(), raw, nil, resolver)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	for _, r := range res.Records {
		if r.GameName != streams.UnknownGame {
			t.Errorf("record %s game name = %q, want %q", r.ID, r.GameName, streams.UnknownGame)
		}
	}
	// Empty and whitespace-only ids never reach the resolver.
	if len(resolver.requests) != 1 || !reflect.DeepEqual(resolver.requests[0], []string{"999"}) {
		t.Errorf("resolver requests = %v, want [[999]]", resolver.requests)
	}
}

func TestTransform_ResolverError(t *testing.T) {
	raw := []twitchapi.Stream{{ID: "s1", GameID: "10"}}
	cause := errors.New("helix unavailable")
	resolver := &fixtureResolver{err: cause}

	_, err := Transform(context.Background(), raw, nil, resolver)
	var lookupErr *UpstreamLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Transform() error = %v, want *UpstreamLookupError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error chain lost the cause: %v", err)
	}
	if len(lookupErr.IDs) != 1 || lookupErr.IDs[0] != "10" {
		t.Errorf("lookup error ids = %v, want [10]", lookupErr.IDs)
	}
}

func TestTransform_DuplicateReferenceLastWins(t *testing.T) {
	raw := []twitchapi.Stream{{ID: "s1", GameID: "10"}}
	refs := []twitchapi.Game{
		{ID: "10", Name: "Old Name"},
		{ID: "10", Name: "New Name"},
	}

	res, err := Transform(context.Background(), raw, refs, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Records[0].GameName != "New Name" {
		t.Errorf("game name = %q, want last-seen New Name", res.Records[0].GameName)
	}
	if len(res.Games) != 1 {
		t.Errorf("merged reference set = %d rows, want 1", len(res.Games))
	}
}

func TestTransform_CanonicalizesGameIDs(t *testing.T) {
	raw := []twitchapi.Stream{{ID: "s1", GameID: " 10 "}}
	refs := []twitchapi.Game{{ID: "10", Name: "Chess"}}

	res, err := Transform(context.Background(), raw, refs, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Records[0].GameID != "10" {
		t.Errorf("game id = %q, want trimmed 10", res.Records[0].GameID)
	}
	if res.Records[0].GameName != "Chess" {
		t.Errorf("game name = %q, want Chess via canonical join", res.Records[0].GameName)
	}
}

func TestTransform_EmptyBatch(t *testing.T) {
	res, err := Transform(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("records = %d, want 0", len(res.Records))
	}
}
