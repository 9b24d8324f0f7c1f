// Package load persists normalized stream record batches into the long-lived
// Postgres store. It is the only component permitted to write to the streams
// table. Historical mode appends with at-most-once insertion per stream id;
// replace mode is a destructive escape hatch.
package load

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/streamlytics/streams"
)

// Mode selects the load strategy.
type Mode int

const (
	// ModeHistorical appends only records whose id is not already in the
	// store, preserving all prior data. This is the steady-state path.
	ModeHistorical Mode = iota
	// ModeReplace unconditionally overwrites the entire table with the batch.
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeHistorical:
		return "historical"
	case ModeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// State is the store lifecycle state for the streams table.
// Absent -> Bootstrapped (first batch loaded) -> Steady (appends or skips).
// Replace may be invoked from any state and lands back in Bootstrapped-with-data.
type State int

const (
	// StateAbsent means the streams table does not exist yet.
	StateAbsent State = iota
	// StateBootstrapped means the table exists but holds no rows.
	StateBootstrapped
	// StateSteady means the table exists and holds rows.
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateBootstrapped:
		return "bootstrapped"
	case StateSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// DetectState inspects the store and reports the current lifecycle state.
func DetectState(ctx context.Context, dbx *sql.DB) (State, error) {
	var reg sql.NullString
	if err := dbx.QueryRowContext(ctx, `SELECT to_regclass('streams')::text`).Scan(&reg); err != nil {
		return StateAbsent, &StorageError{Op: "detect state", Err: err}
	}
	if !reg.Valid {
		return StateAbsent, nil
	}
	var n int64
	if err := dbx.QueryRowContext(ctx, `SELECT COUNT(*) FROM streams`).Scan(&n); err != nil {
		return StateAbsent, &StorageError{Op: "count rows", Err: err}
	}
	if n == 0 {
		return StateBootstrapped, nil
	}
	return StateSteady, nil
}

// Result summarizes one load operation.
type Result struct {
	Attempted int   // records in the batch
	Appended  int   // records actually inserted
	Total     int64 // rows in the store after the load
	State     State // store state after the load
}

// createTableSQL bootstraps the store on first load. The column set mirrors
// the migration files so either path yields the same schema.
const createTableSQL = `CREATE TABLE IF NOT EXISTS streams (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	user_login TEXT,
	user_name TEXT,
	game_id TEXT,
	game_name TEXT,
	type TEXT,
	title TEXT,
	viewer_count INTEGER DEFAULT 0,
	language TEXT,
	broadcaster_language TEXT,
	started_at TIMESTAMPTZ,
	hour_of_day INTEGER,
	weekday TEXT,
	is_weekend BOOLEAN DEFAULT FALSE,
	tags TEXT,
	is_mature BOOLEAN DEFAULT FALSE,
	ingested_at TIMESTAMPTZ
)`

const insertSQL = `INSERT INTO streams (
	id, user_id, user_login, user_name, game_id, game_name, type, title,
	viewer_count, language, broadcaster_language, started_at, hour_of_day,
	weekday, is_weekend, tags, is_mature, ingested_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

// indexStatements keep the store query-efficient. Created outside the data
// transaction: a failed CREATE INDEX must degrade performance, never abort or
// poison a committed append.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_streams_started ON streams(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_streams_game ON streams(game_id)`,
	`CREATE INDEX IF NOT EXISTS idx_streams_lang ON streams(language)`,
	`CREATE INDEX IF NOT EXISTS idx_streams_hour ON streams(hour_of_day)`,
	`CREATE INDEX IF NOT EXISTS idx_streams_id ON streams(id)`,
	`CREATE INDEX IF NOT EXISTS idx_streams_ingested ON streams(ingested_at)`,
}

// Load durably persists batch into the store according to mode and reports
// what happened. The append itself (bootstrap, dedup read, inserts) runs in a
// single transaction; a crash mid-load leaves the store in the pre-load state.
// Re-ingesting an already-seen batch in historical mode is a silent no-op.
func Load(ctx context.Context, dbx *sql.DB, batch []streams.Record, mode Mode) (Result, error) {
	if err := validate(batch); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	for i := range batch {
		batch[i].IngestedAt = now
	}

	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, &StorageError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// Bootstrap (no-op when the table exists). Legacy tables created before
	// provenance tracking gain the ingested_at column here; their old rows
	// keep a NULL ingested_at.
	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return Result{}, &StorageError{Op: "ensure table", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE streams ADD COLUMN IF NOT EXISTS ingested_at TIMESTAMPTZ`); err != nil {
		return Result{}, &StorageError{Op: "ensure provenance column", Err: err}
	}

	toInsert := batch
	if mode == ModeReplace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM streams`); err != nil {
			return Result{}, &StorageError{Op: "replace wipe", Err: err}
		}
	} else {
		existing, err := existingIDs(ctx, tx)
		if err != nil {
			return Result{}, err
		}
		toInsert = toInsert[:0:0]
		for _, r := range batch {
			if _, seen := existing[r.ID]; !seen {
				toInsert = append(toInsert, r)
			}
		}
	}

	if len(toInsert) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return Result{}, &StorageError{Op: "prepare insert", Err: err}
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range toInsert {
			if _, err := stmt.ExecContext(ctx,
				r.ID, r.UserID, r.UserLogin, r.UserName, r.GameID, r.GameName,
				r.Type, r.Title, r.ViewerCount, r.Language, r.BroadcasterLanguage,
				nullTime(r.StartedAt), nullInt(r.HourOfDay), nullString(r.Weekday),
				r.IsWeekend, strings.Join(r.Tags, ","), r.IsMature, r.IngestedAt,
			); err != nil {
				return Result{}, &StorageError{Op: "insert record " + r.ID, Err: err}
			}
		}
	}

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM streams`).Scan(&total); err != nil {
		return Result{}, &StorageError{Op: "count rows", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, &StorageError{Op: "commit", Err: err}
	}

	EnsureIndexes(ctx, dbx)

	res := Result{Attempted: len(batch), Appended: len(toInsert), Total: total, State: StateSteady}
	if total == 0 {
		res.State = StateBootstrapped
	}
	slog.Info("load complete",
		slog.String("mode", mode.String()),
		slog.Int("attempted", res.Attempted),
		slog.Int("appended", res.Appended),
		slog.Int64("total", res.Total),
		slog.String("component", "load"))
	return res, nil
}

// EnsureIndexes creates the query-supporting indexes if absent. Failures are
// logged as degraded-performance warnings and never abort a load.
func EnsureIndexes(ctx context.Context, dbx *sql.DB) {
	for _, stmt := range indexStatements {
		if _, err := dbx.ExecContext(ctx, stmt); err != nil {
			slog.Warn("index creation failed, queries may be slow",
				slog.String("stmt", stmt), slog.Any("err", err), slog.String("component", "load"))
		}
	}
}

// validate rejects batches that would corrupt the store before any write: a
// missing identity field or an id repeated within the batch.
func validate(batch []streams.Record) error {
	seen := make(map[string]struct{}, len(batch))
	for i, r := range batch {
		if r.ID == "" {
			return &ValidationError{Reason: "record " + strconv.Itoa(i) + " has no id"}
		}
		if _, dup := seen[r.ID]; dup {
			return &ValidationError{Reason: "duplicate id " + r.ID + " within batch"}
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func existingIDs(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM streams`)
	if err != nil {
		return nil, &StorageError{Op: "read existing ids", Err: err}
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "scan existing id", Err: err}
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate existing ids", Err: err}
	}
	return out, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
