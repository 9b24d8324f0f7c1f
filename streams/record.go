// Package streams defines the normalized stream snapshot record produced by the
// transform stage and persisted by the loader, plus the batch artifact format
// exchanged between pipeline stages.
package streams

import (
	"time"
)

// UnknownGame is the fallback display name for game ids that cannot be resolved.
const UnknownGame = "Unknown"

// Record is one observed snapshot of a live broadcast at extraction time.
// ID is unique per snapshot, not per broadcaster: the same broadcaster produces
// a new id per broadcast session. Records are append-only once persisted.
type Record struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	UserLogin           string    `json:"user_login"`
	UserName            string    `json:"user_name"`
	GameID              string    `json:"game_id"`
	GameName            string    `json:"game_name"`
	Type                string    `json:"type"`
	Title               string    `json:"title"`
	ViewerCount         int       `json:"viewer_count"`
	Language            string    `json:"language"`
	BroadcasterLanguage string    `json:"broadcaster_language"`
	StartedAt           time.Time `json:"started_at"`
	HourOfDay           *int      `json:"hour_of_day"` // nil when started_at was absent or unparsable
	Weekday             string    `json:"weekday"`     // empty when unknown
	IsWeekend           bool      `json:"is_weekend"`
	Tags                []string  `json:"tags"`
	IsMature            bool      `json:"is_mature"`

	// IngestedAt is stamped by the loader at load time. Zero for records not
	// yet loaded and for legacy rows persisted before provenance tracking.
	IngestedAt time.Time `json:"ingested_at,omitempty"`
}

// SetStartedAt parses a Helix started_at value (RFC3339, UTC) and derives the
// temporal attributes. An empty or unparsable value leaves the record in the
// explicit unknown temporal state (nil hour, empty weekday, is_weekend=false)
// rather than failing; the record is always retained.
func (r *Record) SetStartedAt(raw string) {
	if raw == "" {
		r.clearTemporal()
		return
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		r.clearTemporal()
		return
	}
	t = t.UTC()
	r.StartedAt = t
	h := t.Hour()
	r.HourOfDay = &h
	wd := t.Weekday()
	r.Weekday = wd.String()
	r.IsWeekend = wd == time.Saturday || wd == time.Sunday
}

func (r *Record) clearTemporal() {
	r.StartedAt = time.Time{}
	r.HourOfDay = nil
	r.Weekday = ""
	r.IsWeekend = false
}
